// Package api exposes the HTTP surface: on-demand analysis, alert reads,
// subscription management and the externally-triggered cron endpoints.
package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/terraguard/climate-alerts/internal/analysis"
	"github.com/terraguard/climate-alerts/internal/detector"
	"github.com/terraguard/climate-alerts/internal/geocode"
	"github.com/terraguard/climate-alerts/internal/models"
	"github.com/terraguard/climate-alerts/internal/repository"
	"github.com/terraguard/climate-alerts/internal/weather"
)

type Handler struct {
	analyzer   *analysis.Service
	alerts     repository.AlertRepository
	subs       repository.SubscriberRepository
	scheduler  *detector.Scheduler
	cronSecret string
	gatherer   prometheus.Gatherer
}

func NewHandler(
	analyzer *analysis.Service,
	alerts repository.AlertRepository,
	subs repository.SubscriberRepository,
	scheduler *detector.Scheduler,
	cronSecret string,
	gatherer prometheus.Gatherer,
) *Handler {
	return &Handler{
		analyzer:   analyzer,
		alerts:     alerts,
		subs:       subs,
		scheduler:  scheduler,
		cronSecret: cronSecret,
		gatherer:   gatherer,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/api/land-data/analyze", h.analyzeLocation)
	r.GET("/api/alerts", h.listAlerts)
	r.GET("/api/alerts/:id", h.getAlert)
	r.POST("/api/subscriptions", h.upsertSubscription)
	r.DELETE("/api/subscriptions/:id", h.unsubscribe)

	cron := r.Group("/api/cron", h.requireCronSecret)
	cron.POST("/check-alerts", h.cronCheckAlerts)
	cron.POST("/expire-alerts", h.cronExpireAlerts)

	r.GET("/health", h.health)
	if h.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}
}

type analyzeRequest struct {
	Location string `json:"location" binding:"required"`
}

func (h *Handler) analyzeLocation(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "location is required"})
		return
	}

	result, err := h.analyzer.AnalyzeLocation(c.Request.Context(), req.Location)
	if err != nil {
		switch {
		case errors.Is(err, geocode.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "location not found"})
		case isUpstreamError(err):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "weather data temporarily unavailable"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis failed"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) listAlerts(c *gin.Context) {
	filter := repository.AlertFilter{
		Limit: 50, // Default page size when limit param not supplied
	}
	if region := c.Query("region"); region != "" {
		filter.Region = region
	}
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= 500 {
			filter.Limit = lim
		}
	}

	alerts, err := h.alerts.ListActive(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch alerts"})
		return
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}

	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

func (h *Handler) getAlert(c *gin.Context) {
	alert, err := h.alerts.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch alert"})
		return
	}

	c.JSON(http.StatusOK, alert)
}

type subscriptionRequest struct {
	TelegramID  int64    `json:"telegram_id"`
	PhoneNumber string   `json:"phone_number"`
	Region      string   `json:"region" binding:"required"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Subscribed  *bool    `json:"subscribed"`
}

func (h *Handler) upsertSubscription(c *gin.Context) {
	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "region is required"})
		return
	}

	hasTelegram := req.TelegramID != 0
	hasPhone := strings.TrimSpace(req.PhoneNumber) != ""
	if hasTelegram == hasPhone {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "exactly one of telegram_id or phone_number is required",
		})
		return
	}

	subscribed := true
	if req.Subscribed != nil {
		subscribed = *req.Subscribed
	}

	sub, err := h.subs.Upsert(c.Request.Context(), &models.Subscriber{
		TelegramID:  req.TelegramID,
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
		Region:      strings.TrimSpace(req.Region),
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Subscribed:  subscribed,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save subscription"})
		return
	}

	c.JSON(http.StatusOK, sub)
}

// unsubscribe is a soft opt-out: the row stays so dispatch history remains
// attributable, the user just stops receiving alerts.
func (h *Handler) unsubscribe(c *gin.Context) {
	err := h.subs.SetSubscribed(c.Request.Context(), c.Param("id"), false)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "subscriber not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unsubscribe"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"subscribed": false})
}

// requireCronSecret guards the cron group. The secret travels as a bearer
// token, compared in constant time.
func (h *Handler) requireCronSecret(c *gin.Context) {
	auth := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.cronSecret)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

func (h *Handler) cronCheckAlerts(c *gin.Context) {
	report, err := h.scheduler.RunDetectionNow(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "detection cycle failed"})
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *Handler) cronExpireAlerts(c *gin.Context) {
	expired, err := h.scheduler.RunExpirySweepNow(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "expiry sweep failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"expired": expired})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func isUpstreamError(err error) bool {
	var ue *weather.UpstreamError
	return errors.As(err, &ue)
}
