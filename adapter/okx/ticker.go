package okx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"

	"github.com/yitech/klinedesk/adapter"
	"github.com/yitech/klinedesk/model/ticker"
)

const tickerPath = "/api/v5/market/ticker"

type okxTicker struct {
	InstID    string `json:"instId"`
	Last      string `json:"last"`
	Open24h   string `json:"open24h"`
	High24h   string `json:"high24h"`
	Low24h    string `json:"low24h"`
	Vol24h    string `json:"vol24h"`
	VolCcy24h string `json:"volCcy24h"`
}

// Ticker24h fetches the instrument ticker and derives the 24h change from
// open24h.
func (a *Adapter) Ticker24h(ctx context.Context, symbol string) (ticker.Stats, error) {
	symbol = adapter.NormalizeSymbol(symbol)
	t, err := a.fetchTicker(ctx, symbol)
	if err != nil {
		return ticker.Stats{}, err
	}

	s := ticker.Stats{
		Symbol:      symbol,
		Last:        atof(t.Last),
		High:        atof(t.High24h),
		Low:         atof(t.Low24h),
		Volume:      atof(t.Vol24h),
		QuoteVolume: atof(t.VolCcy24h),
	}
	s.ChangeFrom(atof(t.Open24h))
	return s, nil
}

// LastPrice returns the ticker's last traded price.
func (a *Adapter) LastPrice(ctx context.Context, symbol string) (ticker.PriceTick, error) {
	symbol = adapter.NormalizeSymbol(symbol)
	t, err := a.fetchTicker(ctx, symbol)
	if err != nil {
		return ticker.PriceTick{}, err
	}
	price := atof(t.Last)
	if price <= 0 {
		return ticker.PriceTick{}, &adapter.PriceFetchError{Exchange: name, Symbol: symbol, Err: errors.New("non-positive price")}
	}
	return ticker.PriceTick{Symbol: symbol, Price: price, Timestamp: time.Now()}, nil
}

func (a *Adapter) fetchTicker(ctx context.Context, symbol string) (okxTicker, error) {
	fail := func(err error) (okxTicker, error) {
		return okxTicker{}, &adapter.PriceFetchError{Exchange: name, Symbol: symbol, Err: err}
	}

	u, err := url.Parse(a.baseURL + tickerPath)
	if err != nil {
		return fail(fmt.Errorf("parse url: %w", err))
	}
	q := u.Query()
	q.Set("instId", InstID(symbol))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fail(fmt.Errorf("build request: %w", err))
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return fail(fmt.Errorf("http get: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fail(fmt.Errorf("unexpected status %s", resp.Status))
	}

	var envelope struct {
		Code string      `json:"code"`
		Msg  string      `json:"msg"`
		Data []okxTicker `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fail(fmt.Errorf("decode response: %w", err))
	}
	if envelope.Code != "0" {
		return fail(fmt.Errorf("api error %s: %s", envelope.Code, envelope.Msg))
	}
	if len(envelope.Data) == 0 {
		return fail(errors.New("empty ticker payload"))
	}
	return envelope.Data[0], nil
}
