package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/yitech/klinedesk/adapter"
	"github.com/yitech/klinedesk/model/candle"
)

const (
	klinePath = "/api/v3/klines"
	maxLimit  = 1000
)

// fetchKlines requests the most recent limit klines from the Binance REST API.
// Binance returns them oldest-first.
func fetchKlines(ctx context.Context, client *http.Client, baseURL, symbol, interval string, limit int) ([]candle.Candle, error) {
	fail := func(status int, err error) error {
		return &adapter.FeedError{Exchange: name, Op: "klines", Status: status, Err: err}
	}

	u, err := url.Parse(baseURL + klinePath)
	if err != nil {
		return nil, fail(0, fmt.Errorf("parse url: %w", err))
	}

	q := u.Query()
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(clampLimit(limit)))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fail(0, fmt.Errorf("build request: %w", err))
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fail(0, fmt.Errorf("http get: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fail(resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status))
	}

	// Each kline is a JSON array mixing numbers and strings.
	var raw [][]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fail(resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}

	out, err := parseKlines(symbol, interval, raw, time.Now().UnixMilli())
	if err != nil {
		return nil, fail(resp.StatusCode, err)
	}
	if len(out) == 0 {
		return nil, fail(resp.StatusCode, adapter.ErrEmptyHistory)
	}
	return out, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxLimit {
		return maxLimit
	}
	return limit
}

// parseKlines converts the raw Binance wire format into candle.Candle values.
// Rows with a zero or unparseable open time are dropped.
//
// Binance kline array layout:
//
//	[0]  Open time       (int64, Unix ms)
//	[1]  Open            (string)
//	[2]  High            (string)
//	[3]  Low             (string)
//	[4]  Close           (string)
//	[5]  Volume          (string, base asset)
//	[6]  Close time      (int64, Unix ms)
//	[7]  Quote volume    (string)
//	[8]  Trade count     (int64)
//	[9]  Taker buy base  (string)
//	[10] Taker buy quote (string)
//	[11] Ignore          (string)
func parseKlines(symbol, interval string, raw [][]json.RawMessage, nowMs int64) ([]candle.Candle, error) {
	out := make([]candle.Candle, 0, len(raw))
	for i, r := range raw {
		if len(r) < 7 {
			return nil, fmt.Errorf("kline[%d] has %d fields, want ≥7", i, len(r))
		}

		openTime, err := parseInt64(r[0])
		if err != nil || openTime <= 0 {
			continue
		}
		closeTime, _ := parseInt64(r[6])

		c := candle.Candle{
			Exchange:  name,
			Symbol:    symbol,
			Interval:  interval,
			OpenTime:  openTime,
			Open:      parseFloat(r[1]),
			High:      parseFloat(r[2]),
			Low:       parseFloat(r[3]),
			Close:     parseFloat(r[4]),
			Volume:    parseFloat(r[5]),
			CloseTime: closeTime,
			IsClosed:  closeTime > 0 && closeTime < nowMs,
		}
		if len(r) > 10 {
			c.QuoteVolume = parseFloat(r[7])
			c.TradeCount, _ = parseInt64(r[8])
			c.TakerBuyBaseVolume = parseFloat(r[9])
			c.TakerBuyQuoteVolume = parseFloat(r[10])
		}
		out = append(out, c)
	}
	return candle.Normalize(out), nil
}

// parseInt64 unmarshals a JSON number into an int64.
func parseInt64(raw json.RawMessage) (int64, error) {
	var v int64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// parseFloat reads a decimal string token ("123.45") or a bare number.
// Malformed tokens yield 0.
func parseFloat(raw json.RawMessage) float64 {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
