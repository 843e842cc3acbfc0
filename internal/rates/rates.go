// Package rates converts amounts between currencies using the daily rates
// published by the fawazahmed0 currency API, cached in memory and in a JSON
// side file so that a failed fetch can fall back to the last known rates.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"fintrack/internal/cache"
	"fintrack/internal/core"
)

// Mirrors of the rates API. {date} is YYYY-MM-DD or "latest", {base} a
// lowercase currency code.
const (
	JSDelivrMirror = "https://cdn.jsdelivr.net/npm/@fawazahmed0/currency-api@{date}/v1/currencies/{base}.min.json"
	PagesDevMirror = "https://{date}.currency-api.pages.dev/v1/currencies/{base}.json"
)

const maxCachedBases = 64

type Config struct {
	// CacheFile persists fetched rates between runs. Empty disables it.
	CacheFile string
	TTL       time.Duration
	// Timeout bounds each mirror request.
	Timeout time.Duration
	// Mirrors are tried in order. Defaults to jsDelivr then pages.dev.
	Mirrors    []string
	HTTPClient *http.Client
}

// Entry is the cached rate table of one base currency.
type Entry struct {
	Rates map[string]float64 `json:"rates"`
	// TS is the fetch time in unix seconds.
	TS   float64 `json:"ts"`
	Date string  `json:"date"`
}

func (e Entry) fetchedAt() time.Time {
	sec := int64(e.TS)
	return time.Unix(sec, int64((e.TS-float64(sec))*1e9))
}

type Service struct {
	cfg    Config
	client *http.Client
	mem    *cache.LRUCache[Entry]
	group  singleflight.Group
	now    func() time.Time

	mu   sync.Mutex
	last map[string]Entry // newest entry per base, including expired ones
}

// New creates the service and restores entries from the side file.
func New(cfg Config) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if len(cfg.Mirrors) == 0 {
		cfg.Mirrors = []string{JSDelivrMirror, PagesDevMirror}
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	s := &Service{
		cfg:    cfg,
		client: client,
		mem:    cache.NewLRUCache[Entry](maxCachedBases, cfg.TTL),
		now:    time.Now,
		last:   make(map[string]Entry),
	}
	s.load()
	return s
}

// Rates returns the rate table of base for date ("" means latest). Fresh
// cached rates for the same date are served without a request. When every
// mirror fails the last known table is returned, however old.
func (s *Service) Rates(ctx context.Context, base, date string) (map[string]float64, error) {
	base = strings.ToLower(strings.TrimSpace(base))
	if date == "" {
		date = "latest"
	}

	if e, ok := s.mem.Get(base); ok && e.Date == date {
		return e.Rates, nil
	}

	v, err, _ := s.group.Do(base+"@"+date, func() (any, error) {
		return s.fetch(ctx, base, date)
	})
	if err == nil {
		return v.(Entry).Rates, nil
	}

	s.mu.Lock()
	stale, ok := s.last[base]
	s.mu.Unlock()
	if ok {
		slog.WarnContext(ctx, "Using stale currency rates",
			"base", base,
			"date", date,
			"cached_date", stale.Date,
			"error", err)
		return stale.Rates, nil
	}
	return nil, fmt.Errorf("fetch rates for %s: %w", base, err)
}

// Convert converts amount from one currency to another at the rates of on,
// rounded to cents. Failures are *core.ConversionError.
func (s *Service) Convert(ctx context.Context, amount decimal.Decimal, from, to string, on core.Date) (decimal.Decimal, error) {
	from = strings.ToLower(strings.TrimSpace(from))
	to = strings.ToLower(strings.TrimSpace(to))
	if from == to {
		return amount, nil
	}

	table, err := s.Rates(ctx, from, on.String())
	if err != nil {
		return decimal.Zero, &core.ConversionError{From: from, To: to, Err: err}
	}
	rate, ok := table[to]
	if !ok {
		return decimal.Zero, &core.ConversionError{From: from, To: to, Err: fmt.Errorf("no rate %s->%s", from, to)}
	}
	return amount.Mul(decimal.NewFromFloat(rate)).Round(2), nil
}

// CleanExpired drops expired in-memory entries. The side file and the stale
// fallback are kept.
func (s *Service) CleanExpired() int {
	return s.mem.CleanExpired()
}

func (s *Service) fetch(ctx context.Context, base, date string) (Entry, error) {
	var errs []error
	for _, mirror := range s.cfg.Mirrors {
		url := strings.NewReplacer("{date}", date, "{base}", base).Replace(mirror)
		table, err := s.get(ctx, url, base)
		if err != nil {
			slog.DebugContext(ctx, "Rates mirror failed", "url", url, "error", err)
			errs = append(errs, err)
			continue
		}

		e := Entry{Rates: table, TS: float64(s.now().UnixNano()) / 1e9, Date: date}
		s.store(ctx, base, e)
		return e, nil
	}
	return Entry{}, errors.Join(errs...)
}

func (s *Service) get(ctx context.Context, url, base string) (map[string]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}

	var body map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}

	// Rates sit under the base code; some versions use "rates" instead.
	for _, key := range []string{base, "rates"} {
		raw, ok := body[key]
		if !ok {
			continue
		}
		var table map[string]float64
		if err := json.Unmarshal(raw, &table); err == nil && len(table) > 0 {
			return table, nil
		}
	}
	return nil, fmt.Errorf("no rates for %s in response", base)
}

func (s *Service) store(ctx context.Context, base string, e Entry) {
	s.mem.Set(base, e)

	s.mu.Lock()
	s.last[base] = e
	snapshot := make(map[string]Entry, len(s.last))
	for k, v := range s.last {
		snapshot[k] = v
	}
	s.mu.Unlock()

	if err := s.save(snapshot); err != nil {
		slog.WarnContext(ctx, "Failed to write rates cache file", "path", s.cfg.CacheFile, "error", err)
	}
}

func (s *Service) load() {
	if s.cfg.CacheFile == "" {
		return
	}
	data, err := os.ReadFile(s.cfg.CacheFile)
	if err != nil {
		return
	}
	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Warn("Ignoring unreadable rates cache file", "path", s.cfg.CacheFile, "error", err)
		return
	}

	for base, e := range entries {
		if len(e.Rates) == 0 {
			continue
		}
		s.last[base] = e
		s.mem.SetUntil(base, e, e.fetchedAt().Add(s.cfg.TTL))
	}
}

// save replaces the side file through a temporary file.
func (s *Service) save(entries map[string]Entry) error {
	if s.cfg.CacheFile == "" {
		return nil
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.cfg.CacheFile), 0755); err != nil {
		return err
	}
	tmp := s.cfg.CacheFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.cfg.CacheFile)
}
