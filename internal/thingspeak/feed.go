package thingspeak

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tphakala/wildlife-go/internal/conf"
	"github.com/tphakala/wildlife-go/internal/errors"
	"github.com/tphakala/wildlife-go/internal/httpclient"
	"github.com/tphakala/wildlife-go/internal/logger"
)

// FeedRecord is one channel entry as the store returns it
type FeedRecord struct {
	EntryID   int64  `json:"entry_id"`
	CreatedAt string `json:"created_at"`
	Field1    *Value `json:"field1"` // motion
	Field2    *Value `json:"field2"` // distance cm
	Field3    *Value `json:"field3"` // light level
	Field4    *Value `json:"field4"` // false positive flag
	Field5    *Value `json:"field5"` // species id

	// DecodeErr is set when the entry itself could not be decoded. The rest of
	// the feed is unaffected; EntryID is kept when it could be read.
	DecodeErr error `json:"-"`
}

// UnmarshalJSON never fails on a single entry so that one bad record cannot
// discard the valid records around it.
func (r *FeedRecord) UnmarshalJSON(b []byte) error {
	type plain FeedRecord
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		*r = FeedRecord{EntryID: salvageEntryID(b), DecodeErr: err}
		return nil
	}
	*r = FeedRecord(p)
	return nil
}

// salvageEntryID reads a numeric entry_id from an entry that failed to decode,
// 0 when there is none
func salvageEntryID(b []byte) int64 {
	var head struct {
		EntryID json.RawMessage `json:"entry_id"`
	}
	if json.Unmarshal(b, &head) != nil {
		return 0
	}
	id, err := strconv.ParseInt(strings.Trim(string(head.EntryID), `"`), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// Channel is the feed header
type Channel struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	LastEntryID int64  `json:"last_entry_id"`
}

// Feed is the feeds.json document
type Feed struct {
	Channel Channel      `json:"channel"`
	Feeds   []FeedRecord `json:"feeds"`
}

// maxFeedBody bounds the decoded feed; 8000 records fit well within it
const maxFeedBody = 16 << 20

// FeedClient reads the most recent records of a channel
type FeedClient struct {
	http      *httpclient.Client
	baseURL   string
	channelID string
	readKey   string
	timeout   time.Duration
	log       logger.Logger
}

// NewFeedClient creates a client for the configured channel
func NewFeedClient(s *conf.ThingSpeakSettings, client *httpclient.Client) *FeedClient {
	if client == nil {
		client = httpclient.New(&httpclient.Config{DefaultTimeout: s.Timeout})
	}
	return &FeedClient{
		http:      client,
		baseURL:   s.BaseURL,
		channelID: s.ChannelID,
		readKey:   s.ReadKey,
		timeout:   s.Timeout,
		log:       getLogger().With(logger.String("channel", s.ChannelID)),
	}
}

// ClampResults bounds n to what the store accepts
func ClampResults(n int) int {
	return max(1, min(n, conf.MaxFeedResults))
}

// Poll fetches up to maxResults of the newest records, oldest first as the
// store returns them. Every failure matches ErrPollTransport.
func (f *FeedClient) Poll(ctx context.Context, maxResults int) ([]FeedRecord, error) {
	feed, err := f.fetch(ctx, ClampResults(maxResults))
	if err != nil {
		return nil, err
	}
	return feed.Feeds, nil
}

// Latest returns the newest record, or nil when the channel is empty
func (f *FeedClient) Latest(ctx context.Context) (*FeedRecord, error) {
	records, err := f.Poll(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[len(records)-1], nil
}

func (f *FeedClient) fetch(ctx context.Context, results int) (*Feed, error) {
	q := url.Values{}
	if f.readKey != "" {
		q.Set("api_key", f.readKey)
	}
	q.Set("results", strconv.Itoa(results))
	u := endpoint(f.baseURL, "/channels/"+url.PathEscape(f.channelID)+"/feeds.json", q)

	start := time.Now()
	resp, err := f.http.Get(ctx, u)
	if err != nil {
		return nil, f.pollError(err, "request", u, start)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			f.log.Debug("failed to close feed response body", logger.Error(cerr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, f.pollError(fmt.Errorf("unexpected status %d", resp.StatusCode), "status", u, start)
	}

	var feed Feed
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxFeedBody)).Decode(&feed); err != nil {
		// an invalid read key yields a bare -1 body, which lands here
		return nil, f.pollError(fmt.Errorf("decode feed: %w", err), "decode", u, start)
	}

	for idx := range feed.Feeds {
		if rec := &feed.Feeds[idx]; rec.DecodeErr != nil {
			f.log.Warn("undecodable feed entry",
				logger.Int64("entry_id", rec.EntryID),
				logger.Error(rec.DecodeErr))
		}
	}
	f.log.Debug("feed fetched",
		logger.Int("records", len(feed.Feeds)),
		logger.Int64("last_entry_id", feed.Channel.LastEntryID),
		logger.Duration("elapsed", time.Since(start)))
	return &feed, nil
}

func (f *FeedClient) pollError(err error, stage, u string, start time.Time) error {
	// transport errors quote the request url, read key included
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = logger.RedactSensitiveData(ue.URL)
	}
	return errors.New(fmt.Errorf("%w: %w", ErrPollTransport, err)).
		Component(componentName).
		Category(errors.CategoryPoll).
		NetworkContext(u, f.timeout).
		Context("stage", stage).
		Timing("feed-poll", time.Since(start)).
		Build()
}
