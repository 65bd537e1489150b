package chart

import (
	"bytes"
	"image"
	"image/png"
	"testing"
	"time"

	"kingk/internal/domain"

	"github.com/shopspring/decimal"
)

func sampleResult() *domain.TradeAnalysisResult {
	return &domain.TradeAnalysisResult{
		ID:          "a1",
		Timestamp:   time.Date(2025, 2, 1, 9, 30, 0, 0, time.UTC),
		Pair:        "XAU/USD",
		Trend:       domain.TrendBullish,
		TradeIdea:   domain.TradeBuy,
		Entry:       "2042.50",
		StopLoss:    "2038.00",
		TakeProfit1: "2050.00",
		TakeProfit2: "2058.00",
		RiskReward:  "1:3",
		Confidence:  domain.ConfidenceHigh,
		ConfluenceFactors: []domain.ConfluenceFactor{
			{Factor: "BOS Detected", Strength: 88, Status: domain.FactorVerified},
			{Factor: "Liquidity Sweep", Strength: 140, Status: domain.FactorPending},
		},
	}
}

func TestRenderSignalCardProducesPNG(t *testing.T) {
	cases := map[string]func(*domain.TradeAnalysisResult){
		"numeric levels": func(*domain.TradeAnalysisResult) {},
		"opaque levels": func(r *domain.TradeAnalysisResult) {
			r.Entry = "Market"
			r.TradeIdea = domain.TradeWait
		},
		"no factors": func(r *domain.TradeAnalysisResult) { r.ConfluenceFactors = nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			result := sampleResult()
			mutate(result)
			card, err := NewRenderer().RenderSignalCard(result)
			if err != nil {
				t.Fatalf("render failed: %v", err)
			}
			if card.MimeType != "image/png" {
				t.Fatalf("expected image/png, got %s", card.MimeType)
			}
			decoded, err := png.Decode(bytes.NewReader(card.Bytes))
			if err != nil {
				t.Fatalf("invalid png: %v", err)
			}
			if decoded.Bounds().Dx() != card.Width || decoded.Bounds().Dy() != card.Height {
				t.Fatalf("unexpected bounds %v", decoded.Bounds())
			}
		})
	}
}

func TestRenderSignalCardRejectsNil(t *testing.T) {
	if _, err := NewRenderer().RenderSignalCard(nil); err == nil {
		t.Fatal("expected error for nil result")
	}
}

func TestFileName(t *testing.T) {
	if got := FileName("XAU/USD"); got != "KingK_Signal_XAU_USD.png" {
		t.Fatalf("unexpected file name %q", got)
	}
	if got := FileName("US30"); got != "KingK_Signal_US30.png" {
		t.Fatalf("unexpected file name %q", got)
	}
}

func TestParseLevelsAcceptsThousandsSeparators(t *testing.T) {
	r := sampleResult()
	r.Entry = "1,234.5"
	r.StopLoss = "n/a"
	levels := parseLevels(r)
	if !levels[2].ok || !levels[2].value.Equal(decimal.RequireFromString("1234.5")) {
		t.Fatalf("entry not parsed: %+v", levels[2])
	}
	if levels[3].ok {
		t.Fatal("stop loss should not parse")
	}
}

func TestMapValueToYOrdersHigherPricesUp(t *testing.T) {
	rect := image.Rect(0, 0, 100, 100)
	lo, hi := decimal.NewFromInt(10), decimal.NewFromInt(20)
	if mapValueToY(hi, lo, hi, rect) >= mapValueToY(lo, lo, hi, rect) {
		t.Fatal("higher price must map above lower price")
	}
	if got := mapValueToY(lo, lo, lo, rect); got != 50 {
		t.Fatalf("flat range should center, got %d", got)
	}
}
