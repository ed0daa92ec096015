package thingspeak

import (
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/tphakala/wildlife-go/internal/conf"
	"github.com/tphakala/wildlife-go/internal/httpclient"
)

const testBase = "https://ts.example"

func testSettings() *conf.ThingSpeakSettings {
	return &conf.ThingSpeakSettings{
		BaseURL:       testBase,
		ChannelID:     "123456",
		ReadKey:       "READKEY123456789",
		WriteKey:      "WRITEKEY12345678",
		Timeout:       time.Second,
		WriteInterval: 15 * time.Second,
	}
}

// newMockClient returns an httpclient whose transport is an httpmock transport
func newMockClient(t *testing.T) (*httpclient.Client, *httpmock.MockTransport) {
	t.Helper()
	mock := httpmock.NewMockTransport()
	client := httpclient.New(&httpclient.Config{Transport: mock, DefaultTimeout: time.Second})
	t.Cleanup(client.Close)
	return client, mock
}
