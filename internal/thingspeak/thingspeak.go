// Package thingspeak talks to the ThingSpeak channel that relays sightings
// from the edge node to the server: single-record writes through the update
// endpoint and bounded reads of the channel feed.
package thingspeak

import (
	"net/url"
	"strings"

	"github.com/tphakala/wildlife-go/internal/errors"
	"github.com/tphakala/wildlife-go/internal/logger"
)

var (
	// ErrPublishRejected means the store assigned no entry id, usually rate limiting.
	ErrPublishRejected = errors.NewStd("publish rejected")
	// ErrPollTransport covers network, status and decode failures of a feed read.
	ErrPollTransport = errors.NewStd("poll transport failure")
)

// EntryID is the identifier the store assigns to an accepted write
type EntryID int64

const componentName = "thingspeak"

func getLogger() logger.Logger {
	return logger.Global().Module(componentName)
}

// endpoint joins base and path, keeping any path prefix on base
func endpoint(base, path string, query url.Values) string {
	u := strings.TrimRight(base, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}
