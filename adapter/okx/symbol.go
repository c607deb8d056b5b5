package okx

import "strings"

// InstID maps a Binance-style symbol onto an OKX perpetual swap instrument:
//
//	BTCUSDT       → BTC-USDT-SWAP
//	BTC-USDT-SWAP → BTC-USDT-SWAP (already an instrument id)
//	BTCUSD        → BTCUSD-SWAP
func InstID(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	switch {
	case strings.Contains(s, "-"):
		return s
	case strings.HasSuffix(s, "USDT") && len(s) > len("USDT"):
		return strings.TrimSuffix(s, "USDT") + "-USDT-SWAP"
	}
	return s + "-SWAP"
}

// Bar maps a Binance-style interval onto OKX bar notation. Minute bars keep
// their lowercase suffix; hour, day and week bars are upper-cased.
func Bar(interval string) string {
	if interval == "" {
		return "1m"
	}
	switch interval[len(interval)-1] {
	case 'h', 'd', 'w':
		return strings.ToUpper(interval)
	}
	return interval
}
