package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"kingk/internal/analysis"
	"kingk/internal/chart"
	"kingk/internal/domain"
	"kingk/internal/repository"
	"kingk/internal/share"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

const maxImageBytes = 10 << 20

// ListInstruments godoc
// @Summary      Instrument catalog
// @Description  Returns the selectable instruments, optionally filtered by name or category
// @Tags         analyses
// @Produce      json
// @Param        q  query  string  false  "Case-insensitive filter"
// @Success      200  {object}  map[string]interface{}
// @Router       /api/instruments [get]
func (h *Handler) ListInstruments(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.list-instruments")
	defer span.End()

	c.JSON(http.StatusOK, gin.H{"instruments": analysis.FilterInstruments(c.Query("q"))})
}

func analysisStatus(err error) (int, string) {
	switch {
	case errors.Is(err, analysis.ErrNoImages),
		errors.Is(err, analysis.ErrTooManyImages),
		errors.Is(err, analysis.ErrNoInstrument):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, analysis.ErrAnalysisUnavailable):
		return http.StatusServiceUnavailable, SeveredMessage
	case errors.Is(err, repository.ErrAnalysisNotFound):
		return http.StatusNotFound, err.Error()
	}
	return http.StatusInternalServerError, err.Error()
}

func readImages(c *gin.Context) ([][]byte, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("expected multipart form: %w", err)
	}
	files := form.File["images"]
	images := make([][]byte, 0, len(files))
	for _, fh := range files {
		if fh.Size > maxImageBytes {
			return nil, fmt.Errorf("%s exceeds %d bytes", fh.Filename, maxImageBytes)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(io.LimitReader(f, maxImageBytes))
		f.Close()
		if err != nil {
			return nil, err
		}
		images = append(images, data)
	}
	return images, nil
}

// CreateAnalysis godoc
// @Summary      Analyze chart screenshots
// @Description  Sends one or two chart images and the instrument to the model and returns the structured signal
// @Tags         analyses
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        images      formData  file    true   "Chart screenshot (one or two)"
// @Param        instrument  formData  string  true   "Instrument name, e.g. XAU/USD"
// @Param        style       formData  string  false  "Scalp or Swing"
// @Success      200  {object}  domain.TradeAnalysisResult
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/analyses [post]
func (h *Handler) CreateAnalysis(c *gin.Context) {
	if h.analyses == nil {
		unavailable(c, "analysis")
		return
	}
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.create-analysis")
	defer span.End()

	images, err := readImages(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	instrument := strings.TrimSpace(c.PostForm("instrument"))
	if instrument != "" {
		if _, ok := analysis.LookupInstrument(instrument); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown instrument: " + instrument})
			return
		}
	}
	style, err := analysis.ParseStyle(c.PostForm("style"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	span.SetAttributes(attribute.String("instrument", instrument), attribute.Int("images", len(images)))

	result, err := h.analyses.Analyze(ctx, userID(c), analysis.Request{
		Images:     images,
		Instrument: instrument,
		Style:      style,
	})
	if err != nil {
		status, msg := analysisStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListAnalyses godoc
// @Summary      Recent analyses
// @Tags         analyses
// @Security     BearerAuth
// @Produce      json
// @Param        limit  query  int  false  "Number of analyses (default 20, max 100)"  default(20)
// @Success      200  {object}  map[string]interface{}
// @Router       /api/analyses [get]
func (h *Handler) ListAnalyses(c *gin.Context) {
	if h.analyses == nil {
		unavailable(c, "analysis")
		return
	}
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.list-analyses")
	defer span.End()

	limit := 20
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
			return
		}
		limit = n
	}

	results, err := h.analyses.Recent(ctx, userID(c), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if results == nil {
		results = []domain.TradeAnalysisResult{}
	}
	c.JSON(http.StatusOK, gin.H{"analyses": results})
}

func (h *Handler) findAnalysis(c *gin.Context) (*domain.TradeAnalysisResult, bool) {
	if h.analyses == nil {
		unavailable(c, "analysis")
		return nil, false
	}
	result, err := h.analyses.Find(c.Request.Context(), userID(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		status, msg := analysisStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return nil, false
	}
	return result, true
}

// GetAnalysis godoc
// @Summary      One analysis
// @Tags         analyses
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Analysis ID"
// @Success      200  {object}  domain.TradeAnalysisResult
// @Failure      404  {object}  map[string]string
// @Router       /api/analyses/{id} [get]
func (h *Handler) GetAnalysis(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.get-analysis")
	defer span.End()

	result, ok := h.findAnalysis(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetAnalysisCard godoc
// @Summary      Signal card image
// @Description  Returns the rendered PNG signal card as a download
// @Tags         analyses
// @Security     BearerAuth
// @Produce      png
// @Param        id  path  string  true  "Analysis ID"
// @Success      200  {file}  binary
// @Failure      404  {object}  map[string]string
// @Router       /api/analyses/{id}/card [get]
func (h *Handler) GetAnalysisCard(c *gin.Context) {
	if h.cards == nil {
		unavailable(c, "card renderer")
		return
	}
	_, span := h.tracer.Start(c.Request.Context(), "handler.get-analysis-card")
	defer span.End()

	result, ok := h.findAnalysis(c)
	if !ok {
		return
	}
	card, err := h.cards.RenderSignalCard(result)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, chart.FileName(result.Pair)))
	c.Data(http.StatusOK, card.MimeType, card.Bytes)
}

// CreateBriefing godoc
// @Summary      Guru briefing for an analysis
// @Tags         analyses
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Analysis ID"
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/analyses/{id}/briefing [post]
func (h *Handler) CreateBriefing(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.create-briefing")
	defer span.End()

	result, ok := h.findAnalysis(c)
	if !ok {
		return
	}
	text, err := h.analyses.Briefing(ctx, result)
	if err != nil {
		status, msg := analysisStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"briefing": text})
}

// ShareAnalysis godoc
// @Summary      Share the signal card
// @Description  Sends the card to the linked Telegram chat, or saves it to the downloads directory
// @Tags         analyses
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Analysis ID"
// @Success      200  {object}  share.Result
// @Router       /api/analyses/{id}/share [post]
func (h *Handler) ShareAnalysis(c *gin.Context) {
	if h.cards == nil || h.share == nil {
		unavailable(c, "share")
		return
	}
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.share-analysis")
	defer span.End()

	result, ok := h.findAnalysis(c)
	if !ok {
		return
	}
	card, err := h.cards.RenderSignalCard(result)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	outcome, err := h.share.Share(ctx, userID(c), share.Artifact{
		FileName: chart.FileName(result.Pair),
		Caption:  share.Caption(*result),
		Image:    card,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, outcome)
}
