package binance

import (
	"context"
	"errors"
	"time"

	"github.com/yitech/klinedesk/adapter"
	"github.com/yitech/klinedesk/model/ticker"
)

// Ticker24h fetches /api/v3/ticker/24hr for symbol.
func (a *Adapter) Ticker24h(ctx context.Context, symbol string) (ticker.Stats, error) {
	symbol = adapter.NormalizeSymbol(symbol)
	fail := func(err error) (ticker.Stats, error) {
		return ticker.Stats{}, &adapter.PriceFetchError{Exchange: name, Symbol: symbol, Err: err}
	}

	res, err := a.api.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
	if err != nil {
		return fail(err)
	}
	if len(res) == 0 {
		return fail(errors.New("empty ticker payload"))
	}

	r := res[0]
	return ticker.Stats{
		Symbol:      symbol,
		Last:        atof(r.LastPrice),
		High:        atof(r.HighPrice),
		Low:         atof(r.LowPrice),
		Volume:      atof(r.Volume),
		QuoteVolume: atof(r.QuoteVolume),
		Change:      atof(r.PriceChange),
		ChangePct:   atof(r.PriceChangePercent),
	}, nil
}

// LastPrice fetches /api/v3/ticker/price for symbol. A non-positive price is
// treated as a failure.
func (a *Adapter) LastPrice(ctx context.Context, symbol string) (ticker.PriceTick, error) {
	symbol = adapter.NormalizeSymbol(symbol)
	fail := func(err error) (ticker.PriceTick, error) {
		return ticker.PriceTick{}, &adapter.PriceFetchError{Exchange: name, Symbol: symbol, Err: err}
	}

	res, err := a.api.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return fail(err)
	}
	if len(res) == 0 {
		return fail(errors.New("empty price payload"))
	}

	price := atof(res[0].Price)
	if price <= 0 {
		return fail(errors.New("non-positive price"))
	}
	return ticker.PriceTick{Symbol: symbol, Price: price, Timestamp: time.Now()}, nil
}
