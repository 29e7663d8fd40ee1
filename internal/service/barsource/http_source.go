package barsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"PlanSentry/internal/domain/models"
	xhttp "PlanSentry/pkg/http"
	applogger "PlanSentry/pkg/logger"
)

// HTTPSource fetches bars from a kline REST endpoint
// (GET {base}/api/v3/klines?symbol=&interval=&limit=).
type HTTPSource struct {
	client   *xhttp.Client
	baseURL  string
	interval string
	log      *applogger.Logger
}

// NewHTTPSource builds a source for baseURL. interval is the kline interval
// label, e.g. "1m".
func NewHTTPSource(baseURL, interval string, log *applogger.Logger, opts ...xhttp.ClientOption) *HTTPSource {
	if interval == "" {
		interval = "1m"
	}
	return &HTTPSource{
		client:   xhttp.NewClient(opts...),
		baseURL:  strings.TrimRight(baseURL, "/"),
		interval: interval,
		log:      log.With(applogger.String("component", "bar_source")),
	}
}

func (s *HTTPSource) FetchBars(ctx context.Context, symbol string, count int) ([]models.Bar, error) {
	var body []byte
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    s.baseURL + "/api/v3/klines",
		QueryParams: map[string][]string{
			"symbol":   {symbol},
			"interval": {s.interval},
			"limit":    {strconv.Itoa(count)},
		},
	}, &body)
	if err != nil {
		return nil, classify(symbol, err)
	}

	bars, skipped, err := DecodeKlines(symbol, body)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		s.log.Warn("dropped invalid klines",
			applogger.String("symbol", symbol),
			applogger.Int("skipped", skipped),
		)
	}
	return bars, nil
}

func (s *HTTPSource) Health(ctx context.Context) error {
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    s.baseURL + "/api/v3/ping",
	}, nil)
	if err != nil {
		return fmt.Errorf("bar source health: %w", err)
	}
	return nil
}

// classify marks network failures and retryable statuses as transient.
func classify(symbol string, err error) error {
	var se *xhttp.StatusError
	if errors.As(err, &se) && !se.Temporary() {
		return fmt.Errorf("fetch %s: %w", symbol, err)
	}
	return models.NewDataError(models.ErrTransientFetch, symbol, "%v", err)
}

// DecodeKlines parses the array-of-arrays kline payload. Rows that do not
// form a valid bar are skipped and counted. Bars come back oldest first.
func DecodeKlines(symbol string, body []byte) ([]models.Bar, int, error) {
	var rows [][]interface{}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, 0, fmt.Errorf("decode klines %s: %w", symbol, err)
	}
	bars := make([]models.Bar, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		if len(row) < 6 {
			skipped++
			continue
		}
		openMs, ok := toFloat64(row[0])
		if !ok {
			skipped++
			continue
		}
		b := models.Bar{
			Symbol:    symbol,
			Timestamp: time.UnixMilli(int64(openMs)).UTC(),
		}
		var okO, okH, okL, okC, okV bool
		b.Open, okO = toFloat64(row[1])
		b.High, okH = toFloat64(row[2])
		b.Low, okL = toFloat64(row[3])
		b.Close, okC = toFloat64(row[4])
		b.Volume, okV = toFloat64(row[5])
		if !(okO && okH && okL && okC && okV) || b.Validate() != nil {
			skipped++
			continue
		}
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, skipped, nil
}

// toFloat64 accepts both quoted and bare numbers.
func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	case float64:
		return val, true
	default:
		return 0, false
	}
}
