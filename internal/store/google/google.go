// Package google persists subscriptions in a Google Sheets tab laid out like
// the CSV file: a header row followed by one row per subscription.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	googleauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"abbonamenti/internal/cache"
	"abbonamenti/internal/core"
	"abbonamenti/internal/store"
)

const cacheKey = "subscriptions"

var (
	_ store.Store = (*Client)(nil)

	ErrNoCredentials = errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
)

// Options configures a Client.
type Options struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
	// CacheTTL bounds how long a read is served without hitting the API.
	// Zero disables read caching.
	CacheTTL time.Duration
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	cache         *cache.LRUCache[[]core.Subscription]
}

// New wraps an existing Sheets service. Tests pass one pointed at a fake endpoint.
func New(svc *gsheet.Service, spreadsheetID, sheet string, ttl time.Duration) *Client {
	c := &Client{svc: svc, spreadsheetID: spreadsheetID, sheet: sheet}
	if ttl > 0 {
		c.cache = cache.NewLRUCache[[]core.Subscription](1, ttl)
	}
	return c
}

// NewFromOptions authenticates with a service account and returns a Client.
func NewFromOptions(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheet := strings.TrimSpace(opts.SheetName)
	if sheet == "" {
		sheet = "Abbonamenti"
	}
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return New(svc, opts.SpreadsheetID, sheet, opts.CacheTTL), nil
}

func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	var (
		credentialsJSON []byte
		err             error
	)
	switch {
	case strings.TrimSpace(opts.ServiceAccountJSON) != "":
		credentialsJSON = []byte(opts.ServiceAccountJSON)
	case strings.TrimSpace(opts.ServiceAccountFile) != "":
		credentialsJSON, err = os.ReadFile(opts.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.InfoContext(ctx, "Read service account credentials", "path", opts.ServiceAccountFile)
	default:
		return nil, ErrNoCredentials
	}

	creds, err := googleauth.CredentialsFromJSON(ctx, credentialsJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}
	// The token source and the API calls share the pooled transport.
	authCtx := context.WithValue(ctx, oauth2.HTTPClient, newHTTPClient())
	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(oauth2.NewClient(authCtx, creds.TokenSource)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// newHTTPClient keeps a small pool of connections to the Sheets API.
func newHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			ForceAttemptHTTP2:     true,
		},
		Timeout: 60 * time.Second,
	}
}

// Load reads the whole tab. An empty tab gets the header written to it.
func (c *Client) Load(ctx context.Context) ([]core.Subscription, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	if c.cache != nil {
		if subs, ok := c.cache.Get(cacheKey); ok {
			return append([]core.Subscription{}, subs...), nil
		}
	}

	rng := fmt.Sprintf("%s!A:Z", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	if len(resp.Values) == 0 {
		if err := c.Save(ctx, nil); err != nil {
			return nil, fmt.Errorf("initialize %s: %w", c.sheet, err)
		}
		return []core.Subscription{}, nil
	}

	rows := make([][]string, 0, len(resp.Values)-1)
	for _, r := range resp.Values[1:] {
		rows = append(rows, toStrings(r))
	}
	subs, err := store.DecodeRows(toStrings(resp.Values[0]), rows)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.sheet, err)
	}
	if c.cache != nil {
		c.cache.Set(cacheKey, append([]core.Subscription{}, subs...))
	}
	return subs, nil
}

// Save writes the header and every row from A1, then clears whatever rows
// the previous, longer list left below.
func (c *Client) Save(ctx context.Context, subs []core.Subscription) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if c.cache != nil {
		c.cache.Delete(cacheKey)
	}

	encoded := store.EncodeRows(subs)
	values := make([][]interface{}, 0, len(encoded)+1)
	values = append(values, toInterfaces(store.Header))
	for _, row := range encoded {
		values = append(values, toInterfaces(row))
	}

	rng := fmt.Sprintf("%s!A1", c.sheet)
	vr := &gsheet.ValueRange{Values: values}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write %s: %w", rng, err)
	}

	tail := fmt.Sprintf("%s!A%d:Z", c.sheet, len(values)+1)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, tail, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", tail, err)
	}

	if c.cache != nil {
		c.cache.Set(cacheKey, append([]core.Subscription{}, subs...))
	}
	return nil
}

// CacheStats reports read cache hits and misses. It is zero when caching is off.
func (c *Client) CacheStats() cache.Stats {
	if c.cache == nil {
		return cache.Stats{}
	}
	return c.cache.Stats()
}

func toStrings(row []interface{}) []string {
	out := make([]string, len(row))
	for i, v := range row {
		if v == nil {
			continue
		}
		out[i] = fmt.Sprint(v)
	}
	return out
}

func toInterfaces(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}
