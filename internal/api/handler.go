// Package api exposes the prediction pipeline, model snapshot and submission history
// over HTTP with gin.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Skufu/heartrisk/internal/domain"
	"github.com/Skufu/heartrisk/internal/health"
	"github.com/Skufu/heartrisk/internal/logger"
	"github.com/Skufu/heartrisk/internal/model"
	"github.com/Skufu/heartrisk/internal/service"
	"github.com/Skufu/heartrisk/internal/submission"
)

// Handler serves the /api routes.
type Handler struct {
	predictions *service.PredictionService
	history     *service.HistoryService
	snapshot    *model.Snapshot
	health      *health.Service
	now         func() time.Time
}

// NewHandler wires the handlers to their use cases. snapshot is read-only and shared.
func NewHandler(predictions *service.PredictionService, history *service.HistoryService, snapshot *model.Snapshot, hs *health.Service) *Handler {
	return &Handler{
		predictions: predictions,
		history:     history,
		snapshot:    snapshot,
		health:      hs,
		now:         time.Now,
	}
}

// RegisterRoutes mounts the API on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/predict", h.Predict)
	r.GET("/metrics", h.Metrics)
	r.GET("/distributions", h.Distributions)
	r.GET("/features", h.Features)
	r.GET("/health", h.Health)

	subs := r.Group("/submissions")
	subs.GET("", h.ListSubmissions)
	subs.GET("/stats", h.SubmissionStats)
	subs.GET("/export", h.ExportSubmissions)
}

// Predict validates the clinical input, scores it and records a submission.
func (h *Handler) Predict(c *gin.Context) {
	var raw domain.RawInput
	if err := c.ShouldBindJSON(&raw); err != nil {
		respondError(c, bindError(err), http.StatusUnprocessableEntity)
		return
	}

	res, err := h.predictions.Predict(c.Request.Context(), raw, service.RequestMeta{
		UserAgent: c.Request.UserAgent(),
		IP:        c.ClientIP(),
	})
	if err != nil {
		respondError(c, err, http.StatusUnprocessableEntity)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Metrics returns the held-out evaluation computed at startup.
func (h *Handler) Metrics(c *gin.Context) {
	if !h.snapshot.Ready() {
		respondError(c, domain.ErrModelUnavailable, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, h.snapshot.Metrics)
}

// Distributions returns the per-feature histograms of the training data.
func (h *Handler) Distributions(c *gin.Context) {
	if !h.snapshot.Ready() {
		respondError(c, domain.ErrModelUnavailable, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, h.snapshot.Distributions)
}

// Features returns the constraint table that drives the input form.
func (h *Handler) Features(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"features": domain.Schema})
}

// Health reports model and database status. It always answers 200 so the UI can render
// a degraded state.
func (h *Handler) Health(c *gin.Context) {
	report := h.health.Check(c.Request.Context())
	if report.DatabaseError != "" {
		logger.FromContext(c.Request.Context()).Warn("database health check failed", zap.String("error", report.DatabaseError))
	}
	c.JSON(http.StatusOK, report)
}

func queryFilter(c *gin.Context) (submission.Filter, error) {
	return submission.ParseFilter(c.Query("date_from"), c.Query("date_to"))
}

// ListSubmissions pages through the history, newest first.
func (h *Handler) ListSubmissions(c *gin.Context) {
	f, err := queryFilter(c)
	if err != nil {
		respondError(c, err, http.StatusBadRequest)
		return
	}
	p, err := submission.ParsePage(c.Query("page"), c.Query("per_page"))
	if err != nil {
		respondError(c, err, http.StatusBadRequest)
		return
	}

	res, err := h.history.List(c.Request.Context(), f, p)
	if err != nil {
		respondError(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, res)
}

// SubmissionStats aggregates the history by risk bucket.
func (h *Handler) SubmissionStats(c *gin.Context) {
	f, err := queryFilter(c)
	if err != nil {
		respondError(c, err, http.StatusBadRequest)
		return
	}

	st, err := h.history.Stats(c.Request.Context(), f)
	if err != nil {
		respondError(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, st)
}

// ExportSubmissions writes the matching history as a CSV attachment.
func (h *Handler) ExportSubmissions(c *gin.Context) {
	f, err := queryFilter(c)
	if err != nil {
		respondError(c, err, http.StatusBadRequest)
		return
	}

	filename := fmt.Sprintf("submissions_%s.csv", h.now().Format("20060102_150405"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	rows, err := h.history.Export(c.Request.Context(), f, c.Writer)
	if err != nil {
		if !c.Writer.Written() {
			c.Writer.Header().Del("Content-Disposition")
			c.Writer.Header().Del("Content-Type")
			respondError(c, err, http.StatusBadRequest)
			return
		}
		// Headers are gone; the client sees a truncated file.
		logger.FromContext(c.Request.Context()).Error("export aborted mid-stream", zap.Int("rows", rows), zap.Error(err))
		return
	}
	if !c.Writer.Written() {
		c.Status(http.StatusOK)
	}
}
