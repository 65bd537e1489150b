// Package chart rasterises a trade signal into a shareable PNG card.
package chart

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"kingk/internal/domain"

	"github.com/shopspring/decimal"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	cardWidth   = 720
	cardHeight  = 960
	cardPadding = 32
	maxFactors  = 6
	lineHeight  = 18
)

var (
	colBackground = color.RGBA{R: 10, G: 12, B: 18, A: 255}
	colPanel      = color.RGBA{R: 22, G: 26, B: 36, A: 255}
	colGrid       = color.RGBA{R: 44, G: 50, B: 66, A: 255}
	colText       = color.RGBA{R: 230, G: 234, B: 242, A: 255}
	colMuted      = color.RGBA{R: 128, G: 138, B: 160, A: 255}
	colGold       = color.RGBA{R: 234, G: 179, B: 8, A: 255}
	colBull       = color.RGBA{R: 16, G: 185, B: 129, A: 255}
	colBear       = color.RGBA{R: 239, G: 68, B: 68, A: 255}
	colNeutral    = color.RGBA{R: 148, G: 163, B: 184, A: 255}
)

type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// FileName is the download name used for a pair's card.
func FileName(pair string) string {
	return "KingK_Signal_" + strings.ReplaceAll(pair, "/", "_") + ".png"
}

// RenderSignalCard draws the banner, the level ladder and the confluence bars.
func (r *Renderer) RenderSignalCard(result *domain.TradeAnalysisResult) (*domain.ImageData, error) {
	if result == nil {
		return nil, fmt.Errorf("no analysis to render")
	}

	img := image.NewRGBA(image.Rect(0, 0, cardWidth, cardHeight))
	fillRect(img, img.Bounds(), colBackground)

	bannerRect := image.Rect(cardPadding, cardPadding, cardWidth-cardPadding, cardPadding+120)
	ladderRect := image.Rect(cardPadding, bannerRect.Max.Y+24, cardWidth-cardPadding, bannerRect.Max.Y+24+380)
	factorRect := image.Rect(cardPadding, ladderRect.Max.Y+24, cardWidth-cardPadding, cardHeight-cardPadding-40)

	drawBanner(img, bannerRect, result)
	drawLadder(img, ladderRect, result)
	drawFactors(img, factorRect, result.ConfluenceFactors)

	footer := fmt.Sprintf("KING K AI  |  %s", result.Timestamp.UTC().Format("2006-01-02 15:04 UTC"))
	drawText(img, cardPadding, cardHeight-cardPadding, footer, colMuted)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}

	return &domain.ImageData{
		MimeType: "image/png",
		Width:    cardWidth,
		Height:   cardHeight,
		Bytes:    buf.Bytes(),
	}, nil
}

func ideaColor(idea domain.TradeIdea) color.RGBA {
	switch idea {
	case domain.TradeBuy:
		return colBull
	case domain.TradeSell:
		return colBear
	default:
		return colNeutral
	}
}

func drawBanner(img *image.RGBA, rect image.Rectangle, result *domain.TradeAnalysisResult) {
	fillRect(img, rect, colPanel)
	accent := ideaColor(result.TradeIdea)
	fillRect(img, image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+8, rect.Max.Y), accent)

	x := rect.Min.X + 28
	drawText(img, x, rect.Min.Y+30, strings.ToUpper(result.Pair), colGold)
	drawText(img, x, rect.Min.Y+30+lineHeight*2, strings.ToUpper(string(result.TradeIdea)), accent)
	drawText(img, x, rect.Min.Y+30+lineHeight*3,
		fmt.Sprintf("Trend %s  Confidence %s  R:R %s", result.Trend, result.Confidence, result.RiskReward), colText)
}

type level struct {
	label string
	raw   string
	value decimal.Decimal
	ok    bool
	col   color.RGBA
}

func parseLevels(result *domain.TradeAnalysisResult) []level {
	levels := []level{
		{label: "TP2", raw: result.TakeProfit2, col: colBull},
		{label: "TP1", raw: result.TakeProfit1, col: colBull},
		{label: "ENTRY", raw: result.Entry, col: colGold},
		{label: "SL", raw: result.StopLoss, col: colBear},
	}
	for i := range levels {
		v, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(levels[i].raw), ",", ""))
		if err == nil {
			levels[i].value = v
			levels[i].ok = true
		}
	}
	return levels
}

// drawLadder places levels by price when they all parse, otherwise evenly.
func drawLadder(img *image.RGBA, rect image.Rectangle, result *domain.TradeAnalysisResult) {
	fillRect(img, rect, colPanel)
	drawGrid(img, rect, 1, 8)

	levels := parseLevels(result)
	inner := rect.Inset(28)

	allParsed := true
	lo, hi := decimal.Zero, decimal.Zero
	for i, lv := range levels {
		if !lv.ok {
			allParsed = false
			break
		}
		if i == 0 || lv.value.LessThan(lo) {
			lo = lv.value
		}
		if i == 0 || lv.value.GreaterThan(hi) {
			hi = lv.value
		}
	}
	if hi.Equal(lo) {
		allParsed = false
	}

	for i, lv := range levels {
		var y int
		if allParsed {
			y = mapValueToY(lv.value, lo, hi, inner)
		} else {
			y = inner.Min.Y + i*inner.Dy()/(len(levels)-1)
		}
		drawLine(img, inner.Min.X+90, y, inner.Max.X-140, y, lv.col)
		drawLine(img, inner.Min.X+90, y+1, inner.Max.X-140, y+1, lv.col)
		drawText(img, inner.Min.X, y+4, lv.label, lv.col)
		drawText(img, inner.Max.X-130, y+4, lv.raw, colText)
	}
}

func drawFactors(img *image.RGBA, rect image.Rectangle, factors []domain.ConfluenceFactor) {
	fillRect(img, rect, colPanel)
	drawText(img, rect.Min.X+20, rect.Min.Y+26, "CONFLUENCE", colMuted)

	if len(factors) > maxFactors {
		factors = factors[:maxFactors]
	}
	barX := rect.Min.X + 240
	barW := rect.Max.X - 20 - barX
	for i, f := range factors {
		y := rect.Min.Y + 56 + i*30
		drawText(img, rect.Min.X+20, y+10, truncate(f.Factor, 30), colText)

		fillRect(img, image.Rect(barX, y, barX+barW, y+12), colGrid)
		strength := f.Strength
		if strength < 0 {
			strength = 0
		}
		if strength > 100 {
			strength = 100
		}
		col := colGold
		if f.Status == domain.FactorVerified {
			col = colBull
		}
		fillRect(img, image.Rect(barX, y, barX+barW*strength/100, y+12), col)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "~"
}

func drawText(img *image.RGBA, x, y int, text string, col color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

func drawGrid(img *image.RGBA, rect image.Rectangle, cols, rows int) {
	for i := 0; i <= cols; i++ {
		x := rect.Min.X + i*rect.Dx()/cols
		drawLine(img, x, rect.Min.Y, x, rect.Max.Y-1, colGrid)
	}
	for i := 0; i <= rows; i++ {
		y := rect.Min.Y + i*rect.Dy()/rows
		drawLine(img, rect.Min.X, y, rect.Max.X-1, y, colGrid)
	}
}

func mapValueToY(v, lo, hi decimal.Decimal, rect image.Rectangle) int {
	span := hi.Sub(lo)
	if span.IsZero() {
		return rect.Min.Y + rect.Dy()/2
	}
	ratio := v.Sub(lo).Div(span).InexactFloat64()
	return rect.Max.Y - int(ratio*float64(rect.Dy()))
}

func fillRect(img *image.RGBA, rect image.Rectangle, col color.RGBA) {
	r := rect.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, col)
		}
	}
}

func drawLine(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	dx := abs(x1 - x0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -abs(y1 - y0)
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		if image.Pt(x0, y0).In(img.Bounds()) {
			img.SetRGBA(x0, y0, col)
		}
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			if x0 == x1 {
				break
			}
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			if y0 == y1 {
				break
			}
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
