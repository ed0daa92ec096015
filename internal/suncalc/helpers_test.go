package suncalc

import "time"

// London, where every date has a full civil twilight
const (
	testLatitude  = 51.5072
	testLongitude = -0.1276
)

func newTestSunCalc() *SunCalc {
	return NewSunCalc(testLatitude, testLongitude)
}

// equinoxDate returns the March 2024 equinox, roughly 12h of daylight
func equinoxDate() time.Time {
	return time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
}
