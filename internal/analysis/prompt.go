package analysis

import (
	"fmt"

	"kingk/internal/domain"

	"github.com/google/jsonschema-go/jsonschema"
)

const schemaName = "trade_analysis"

const analysisPrompt = `Act as the King K Deep Pro Analyst. THIS IS FOR HIGH-STAKES REAL MONEY.

Instrument: %s
Trading style: %s

CRITICAL ANALYSIS PROTOCOL:
1. Multi-Timeframe Confirmation: Compare HTF structure with LTF entries.
2. Structural Integrity: Identify BOS (Break of Structure) and CHoCH (Change of Character).
3. Institutional Zones: Mark clear Order Blocks (OB) and Fair Value Gaps (FVG).
4. Liquidity: Identify Inducement levels and Liquidity Pools (BSL/SSL).

TERMINOLOGY MANDATE:
You MUST output exactly these labels: "Entry Point", "Stop Loss", "Take Profit 1", "Take Profit 2".

Return a detailed JSON response including a list of "confluenceFactors" where you list specific SMC/ICT signals found.

Return strict JSON only.`

const briefingPrompt = `Provide a DEEP technical ICT/SMC deconstruction for this %s signal on %s.
Focus on:
- Why this specific %s makes sense now.
- The role of BSL/SSL liquidity.
- FVG or Order Block tapping.
- Use a master guru tone. Keep it to 3-4 punchy paragraphs.`

// GuruInstruction is the system instruction shared by the briefing and the
// assistant.
const GuruInstruction = `You are King K, the institutional trading guru.
- Use professional terminology: Entry Point, Stop Loss, Take Profit.
- Focus on SMC/ICT logic.
- Tone: Sharp, clinical, authoritative.`

func buildPrompt(instrument string, style Style) string {
	return fmt.Sprintf(analysisPrompt, instrument, style)
}

func buildBriefingPrompt(r *domain.TradeAnalysisResult) string {
	return fmt.Sprintf(briefingPrompt, r.TradeIdea, r.Pair, r.TradeIdea)
}

func enumOf[T ~string](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func ptr(v float64) *float64 { return &v }

// ResultSchema is the structured output contract for a trade analysis.
func ResultSchema() *jsonschema.Schema {
	str := func(desc string) *jsonschema.Schema {
		return &jsonschema.Schema{Type: "string", Description: desc}
	}
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"pair":      str("Instrument symbol"),
			"trend":     {Type: "string", Enum: enumOf(domain.Trends)},
			"tradeIdea": {Type: "string", Enum: enumOf(domain.TradeIdeas)},
			"entry":     str("Entry Point"),
			"sl":        str("Stop Loss"),
			"tp1":       str("Take Profit 1"),
			"tp2":       str("Take Profit 2"),
			"rr":        str("Risk to reward ratio, e.g. 1:3"),
			"confidence": {
				Type: "string",
				Enum: enumOf(domain.Confidences),
			},
			"reasoning": str("Narrative justification"),
			"confluenceFactors": {
				Type: "array",
				Items: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"factor":   str("e.g. BOS Detected, FVG Tap, SSL Swept"),
						"strength": {Type: "integer", Description: "0-100", Minimum: ptr(0), Maximum: ptr(100)},
						"status":   {Type: "string", Enum: enumOf(domain.FactorStatuses)},
					},
					Required: []string{"factor", "strength", "status"},
				},
			},
		},
		Required: []string{
			"pair", "trend", "tradeIdea", "entry", "sl", "tp1", "tp2",
			"rr", "confidence", "reasoning", "confluenceFactors",
		},
	}
}
