// Package census fetches per-unit demographic statistics from the Census Bureau
// American Community Survey 5-year API.
package census

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/stwalsh4118/territory-mapper/internal/config"
	"github.com/stwalsh4118/territory-mapper/internal/logger"
	"github.com/stwalsh4118/territory-mapper/internal/metrics"
	"github.com/stwalsh4118/territory-mapper/internal/models"
	"golang.org/x/time/rate"
)

// ACS variables requested for every unit.
const (
	VarName             = "NAME"
	VarTotalPopulation  = "B01003_001E"
	VarDetachedOneUnit  = "B25024_002E"
	maxResponseBytes    = 1 << 20
	zipGeographyPrefix  = "zip code tabulation area"
	countyGeographyName = "county"
)

// ErrStatisticsUnavailable is returned when statistics for a unit cannot be obtained.
var ErrStatisticsUnavailable = errors.New("statistics unavailable")

// Lookup resolves statistics for a geographic unit.
type Lookup interface {
	Lookup(ctx context.Context, ref models.UnitRef) (models.UnitStats, error)
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLimiter replaces the rate limiter built from the config.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// Client queries the ACS 5-year dataset. It does not retry; callers decide
// how to treat ErrStatisticsUnavailable.
type Client struct {
	httpClient *http.Client
	baseURL    string
	year       int
	apiKey     string
	limiter    *rate.Limiter
	log        *logger.Logger
	metrics    *metrics.Metrics
}

var _ Lookup = (*Client)(nil)

// NewClient creates a Client from the Census configuration.
func NewClient(cfg config.CensusConfig, log *logger.Logger, m *metrics.Metrics, opts ...Option) *Client {
	burst := int(cfg.RateLimit)
	if burst < 1 {
		burst = 1
	}
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		year:       cfg.Year,
		apiKey:     cfg.APIKey,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), burst),
		log:        log.WithComponent("census"),
		metrics:    m,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup fetches total population and detached single-unit houses for a county or ZIP area.
// Every failure wraps ErrStatisticsUnavailable.
func (c *Client) Lookup(ctx context.Context, ref models.UnitRef) (models.UnitStats, error) {
	if err := ref.Validate(); err != nil {
		return models.UnitStats{}, fmt.Errorf("%w: %v", ErrStatisticsUnavailable, err)
	}

	start := time.Now()
	stats, name, err := c.fetch(ctx, ref)
	elapsed := time.Since(start)

	if err != nil {
		c.metrics.CensusLookup(metrics.CensusResultFailure, elapsed)
		return models.UnitStats{}, fmt.Errorf("%w: %s: %v", ErrStatisticsUnavailable, ref, err)
	}

	c.metrics.CensusLookup(metrics.CensusResultSuccess, elapsed)
	c.log.Debug("Fetched unit statistics", map[string]interface{}{
		"unit":               ref.String(),
		"name":               name,
		"population":         stats.Population,
		"stand_alone_houses": stats.StandAloneHouses,
		"duration_ms":        elapsed.Milliseconds(),
	})
	return stats, nil
}

func (c *Client) fetch(ctx context.Context, ref models.UnitRef) (models.UnitStats, string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return models.UnitStats{}, "", fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(ref), nil)
	if err != nil {
		return models.UnitStats{}, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.UnitStats{}, "", fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return models.UnitStats{}, "", fmt.Errorf("census returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return models.UnitStats{}, "", fmt.Errorf("read body: %w", err)
	}

	return parseResponse(body)
}

// requestURL builds {base}/{year}/acs/acs5?get=...&for=...[&in=...][&key=...].
func (c *Client) requestURL(ref models.UnitRef) string {
	params := url.Values{}
	params.Set("get", strings.Join([]string{VarName, VarTotalPopulation, VarDetachedOneUnit}, ","))

	switch ref.Kind {
	case models.KindCounty:
		params.Set("for", countyGeographyName+":"+ref.CountyFIPS())
		params.Set("in", "state:"+ref.StateFIPS())
	case models.KindZip:
		params.Set("for", zipGeographyPrefix+":"+ref.ID)
	}
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}

	return fmt.Sprintf("%s/%d/acs/acs5?%s", c.baseURL, c.year, params.Encode())
}

// parseResponse reads the [[header...],[row...]] table the Census API returns.
func parseResponse(body []byte) (models.UnitStats, string, error) {
	var table [][]interface{}
	if err := json.Unmarshal(body, &table); err != nil {
		return models.UnitStats{}, "", fmt.Errorf("parse response: %w", err)
	}
	if len(table) < 2 {
		return models.UnitStats{}, "", errors.New("response has no data row")
	}

	header, row := table[0], table[1]
	column := func(name string) (interface{}, bool) {
		for i, h := range header {
			if s, ok := h.(string); ok && s == name && i < len(row) {
				return row[i], true
			}
		}
		return nil, false
	}

	population, err := numericColumn(column, VarTotalPopulation)
	if err != nil {
		return models.UnitStats{}, "", err
	}
	houses, err := numericColumn(column, VarDetachedOneUnit)
	if err != nil {
		return models.UnitStats{}, "", err
	}

	var name string
	if v, ok := column(VarName); ok {
		name, _ = v.(string)
	}

	return models.UnitStats{Population: population, StandAloneHouses: houses}, name, nil
}

// numericColumn parses an estimate column. Negative values are Census annotation
// sentinels (for example -666666666) and count as zero.
func numericColumn(column func(string) (interface{}, bool), name string) (int64, error) {
	raw, ok := column(name)
	if !ok {
		return 0, fmt.Errorf("response is missing column %s", name)
	}

	var value int64
	switch v := raw.(type) {
	case string:
		text := strings.TrimSpace(v)
		parsed, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			// Some releases encode large estimates in exponent form ("1.2E7").
			f, ferr := strconv.ParseFloat(text, 64)
			if ferr != nil {
				return 0, fmt.Errorf("column %s: invalid number %q", name, v)
			}
			if parsed, err = wholeNumber(f); err != nil {
				return 0, fmt.Errorf("column %s: %w", name, err)
			}
		}
		value = parsed
	case float64:
		parsed, err := wholeNumber(v)
		if err != nil {
			return 0, fmt.Errorf("column %s: %w", name, err)
		}
		value = parsed
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("column %s: unexpected value %v", name, raw)
	}

	if value < 0 {
		return 0, nil
	}
	return value, nil
}

// wholeNumber converts an estimate to int64, rejecting fractions and values
// outside the int64 range instead of truncating them.
func wholeNumber(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("estimate %v is not a whole number", f)
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("estimate %v is out of range", f)
	}
	return int64(f), nil
}
