package analysis

import (
	"strings"

	"kingk/internal/domain"
)

var instruments = []domain.Instrument{
	{Name: "EUR/USD", Category: "Forex", Description: "Euro vs US Dollar"},
	{Name: "GBP/USD", Category: "Forex", Description: "British Pound"},
	{Name: "USD/JPY", Category: "Forex", Description: "Japanese Yen"},
	{Name: "AUD/USD", Category: "Forex", Description: "Australian Dollar"},
	{Name: "USD/CHF", Category: "Forex", Description: "Swiss Franc"},
	{Name: "XAU/USD", Category: "Commodities", Description: "Gold Spot"},
	{Name: "XAG/USD", Category: "Commodities", Description: "Silver Spot"},
	{Name: "USOIL", Category: "Commodities", Description: "WTI Crude Oil"},
	{Name: "NAS100", Category: "Indices", Description: "Nasdaq 100"},
	{Name: "US30", Category: "Indices", Description: "Dow Jones 30"},
	{Name: "SPX500", Category: "Indices", Description: "S&P 500"},
	{Name: "GER40", Category: "Indices", Description: "DAX 40"},
	{Name: "AAPL", Category: "Stocks", Description: "Apple Inc."},
	{Name: "TSLA", Category: "Stocks", Description: "Tesla, Inc."},
	{Name: "NVDA", Category: "Stocks", Description: "NVIDIA Corp"},
	{Name: "MSFT", Category: "Stocks", Description: "Microsoft"},
	{Name: "AMZN", Category: "Stocks", Description: "Amazon"},
	{Name: "GOOGL", Category: "Stocks", Description: "Alphabet"},
	{Name: "META", Category: "Stocks", Description: "Meta Platforms"},
	{Name: "BABA", Category: "Stocks", Description: "Alibaba Group"},
	{Name: "COIN", Category: "Stocks", Description: "Coinbase Global"},
	{Name: "BTC/USD", Category: "Crypto", Description: "Bitcoin"},
	{Name: "ETH/USD", Category: "Crypto", Description: "Ethereum"},
	{Name: "SOL/USD", Category: "Crypto", Description: "Solana"},
	{Name: "XRP/USD", Category: "Crypto", Description: "Ripple"},
	{Name: "DOGE/USD", Category: "Crypto", Description: "Dogecoin"},
}

// Instruments returns the selectable instruments in display order.
func Instruments() []domain.Instrument {
	out := make([]domain.Instrument, len(instruments))
	copy(out, instruments)
	return out
}

// FilterInstruments matches the query against name or category, ignoring case.
func FilterInstruments(query string) []domain.Instrument {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return Instruments()
	}
	out := make([]domain.Instrument, 0, len(instruments))
	for _, inst := range instruments {
		if strings.Contains(strings.ToLower(inst.Name), q) || strings.Contains(strings.ToLower(inst.Category), q) {
			out = append(out, inst)
		}
	}
	return out
}

func LookupInstrument(name string) (domain.Instrument, bool) {
	for _, inst := range instruments {
		if strings.EqualFold(inst.Name, strings.TrimSpace(name)) {
			return inst, true
		}
	}
	return domain.Instrument{}, false
}
