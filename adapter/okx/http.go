package okx

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/yitech/klinedesk/adapter"
	"github.com/yitech/klinedesk/model/candle"
)

const (
	recentPath  = "/api/v5/market/candles"
	historyPath = "/api/v5/market/history-candles"

	recentLimit  = 300
	historyLimit = 100
)

// fetchKlines returns up to limit of the most recent candles in chronological
// order. The first page comes from the recent-candles endpoint (which includes
// the in-progress candle); older pages are pulled from history-candles using
// the `after` cursor until limit is reached.
//
// OKX returns every page newest-first.
func fetchKlines(ctx context.Context, client *http.Client, baseURL, symbol, interval string, limit int) ([]candle.Candle, error) {
	if limit <= 0 {
		limit = recentLimit
	}
	instID, bar := InstID(symbol), Bar(interval)

	all, err := fetchBatch(ctx, client, baseURL, recentPath, instID, bar, "", min(limit, recentLimit))
	if err != nil {
		return nil, err
	}

	for len(all) > 0 && len(all) < limit {
		// all is newest-first; the oldest openTime is at the end.
		after := strconv.FormatInt(all[len(all)-1].OpenTime, 10)
		batch, err := fetchBatch(ctx, client, baseURL, historyPath, instID, bar, after, min(limit-len(all), historyLimit))
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)
	}

	for i := range all {
		all[i].Symbol = symbol
		all[i].Interval = interval
	}
	out := candle.Normalize(all)
	if len(out) == 0 {
		return nil, &adapter.FeedError{Exchange: name, Op: "candles", Err: adapter.ErrEmptyHistory}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// fetchBatch fetches a single page from an OKX candles endpoint.
func fetchBatch(ctx context.Context, client *http.Client, baseURL, path, instID, bar, after string, limit int) ([]candle.Candle, error) {
	fail := func(status int, err error) error {
		return &adapter.FeedError{Exchange: name, Op: "candles", Status: status, Err: err}
	}

	u, err := url.Parse(baseURL + path)
	if err != nil {
		return nil, fail(0, fmt.Errorf("parse url: %w", err))
	}

	q := u.Query()
	q.Set("instId", instID)
	q.Set("bar", bar)
	if after != "" {
		q.Set("after", after)
	}
	q.Set("limit", strconv.Itoa(limit))
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

	// OKX envelope
	var envelope struct {
		Code string     `json:"code"`
		Msg  string     `json:"msg"`
		Data [][]string `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fail(resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	if envelope.Code != "0" {
		return nil, fail(resp.StatusCode, fmt.Errorf("api error %s: %s", envelope.Code, envelope.Msg))
	}

	out, err := parseKlines(bar, envelope.Data)
	if err != nil {
		return nil, fail(resp.StatusCode, err)
	}
	return out, nil
}

// parseKlines converts the OKX wire format into candle.Candle values, keeping
// the exchange's newest-first order. Rows with a zero or unparseable open time
// are dropped.
//
// OKX kline array layout (REST and WebSocket):
//
//	[0] ts          (open time, ms)
//	[1] o           (open)
//	[2] h           (high)
//	[3] l           (low)
//	[4] c           (close)
//	[5] vol         (contracts)
//	[6] volCcy      (base currency volume)
//	[7] volCcyQuote (quote currency volume)
//	[8] confirm     ("1"=closed, "0"=current)
func parseKlines(bar string, rows [][]string) ([]candle.Candle, error) {
	intervalMs := intervalToMs(bar)
	out := make([]candle.Candle, 0, len(rows))

	for i, r := range rows {
		if len(r) < 6 {
			return nil, fmt.Errorf("kline[%d] has %d fields, want ≥6", i, len(r))
		}

		openTime, err := strconv.ParseInt(r[0], 10, 64)
		if err != nil || openTime <= 0 {
			continue
		}

		c := candle.Candle{
			Exchange: name,
			OpenTime: openTime,
			Open:     atof(r[1]),
			High:     atof(r[2]),
			Low:      atof(r[3]),
			Close:    atof(r[4]),
			Volume:   atof(r[5]),
			IsClosed: len(r) > 8 && r[8] == "1",
		}
		if intervalMs > 0 {
			c.CloseTime = openTime + intervalMs - 1
		}
		if len(r) > 7 {
			c.QuoteVolume = atof(r[7])
		}
		out = append(out, c)
	}
	return out, nil
}

// intervalToMs converts an OKX bar string to milliseconds.
// OKX uses lowercase m for minutes and uppercase H/D/W/M otherwise.
func intervalToMs(bar string) int64 {
	const minute = 60_000
	if len(bar) < 2 {
		return 0
	}
	n, err := strconv.ParseInt(bar[:len(bar)-1], 10, 64)
	if err != nil {
		return 0
	}

	switch bar[len(bar)-1] {
	case 'm':
		return n * minute
	case 'H':
		return n * 60 * minute
	case 'D':
		return n * 24 * 60 * minute
	case 'W':
		return n * 7 * 24 * 60 * minute
	case 'M':
		return n * 30 * 24 * 60 * minute // approximate
	}
	return 0
}

func atof(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
