// Package handler exposes the attendance service over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"rfidattend/internal/attendance"
	"rfidattend/internal/auth"
	"rfidattend/internal/errclass"
	"rfidattend/internal/httpmiddleware"
	"rfidattend/internal/jalali"
)

// Banner is served on GET /.
const Banner = "RFID Telegram Integration is running."

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) bool

// Options configures the HTTP surface.
type Options struct {
	Admin           auth.Admin
	TokenTTL        time.Duration
	RateLimitPerMin int
	Health          map[string]HealthCheck
	Logger          *zap.Logger
}

// Handler serves the attendance routes.
type Handler struct {
	svc    *attendance.Service
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

// New builds a Handler over svc.
func New(svc *attendance.Service, opts Options) *Handler {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 15 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, opts: opts, logger: logger, now: time.Now}
}

// Router builds the gin engine with middleware and every route mounted.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(httpmiddleware.CORS())
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(h.opts.RateLimitPerMin, h.opts.RateLimitPerMin, "/healthz", "/metrics").GinMiddleware())

	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, Banner) })
	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/check-rfid", h.CheckRFID)
	r.POST("/add-rfid", h.opts.Admin.RequireAPIKey(), h.AddRFID)

	r.POST("/v1/auth/token", h.IssueToken)
	v1 := r.Group("/v1", h.opts.Admin.RequireAdmin())
	{
		v1.GET("/tags", h.ListTags)
		v1.POST("/tags", h.AddRFID)
		v1.GET("/events", h.ListEvents)
		v1.GET("/reports", h.RangeReport)
		v1.GET("/reports/weekly", h.WeeklyReport)
		v1.GET("/reports/monthly", h.MonthlyReport)
	}
	return r
}

// Healthz reports the state of every configured dependency.
func (h *Handler) Healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.opts.Health {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

type checkRequest struct {
	RFID string `json:"rfid"`
}

// CheckRFID records a scan.
func (h *Handler) CheckRFID(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil || attendance.NormalizeTag(req.RFID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "RFID tag is required."})
		return
	}

	rec, err := h.svc.CheckIn(c.Request.Context(), req.RFID)
	switch {
	case errors.Is(err, errclass.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "RFID tag not recognized."})
		return
	case errors.Is(err, errclass.ErrPersistence):
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "attendance recorded but could not be saved",
			"action":  rec.Action,
			"time":    rec.Time,
		})
		return
	case err != nil:
		h.logger.Error("check rfid", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "name": rec.Name, "action": rec.Action, "time": rec.Time})
}

type addRequest struct {
	RFID string `json:"rfid"`
	Name string `json:"name"`
}

// AddRFID registers a new tag.
func (h *Handler) AddRFID(c *gin.Context) {
	var req addRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Both RFID tag and name are required."})
		return
	}
	err := h.svc.RegisterTag(c.Request.Context(), req.RFID, req.Name)
	switch {
	case errors.Is(err, errclass.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Both RFID tag and name are required."})
	case errors.Is(err, errclass.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "RFID tag already exists."})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error."})
	default:
		c.JSON(http.StatusCreated, gin.H{"success": true, "message": "RFID tag added successfully."})
	}
}

// IssueToken exchanges the admin key for a short-lived bearer token.
func (h *Handler) IssueToken(c *gin.Context) {
	if !h.opts.Admin.Enabled() {
		c.JSON(http.StatusNotFound, gin.H{"error": "admin API is not configured"})
		return
	}
	var req struct {
		APIKey  string `json:"apiKey"`
		Subject string `json:"subject"`
	}
	_ = c.ShouldBindJSON(&req)
	key := c.GetHeader(auth.HeaderAPIKey)
	if key == "" {
		key = req.APIKey
	}
	if !h.opts.Admin.CheckKey(key) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key."})
		return
	}
	if req.Subject == "" {
		req.Subject = "admin"
	}
	tok, err := auth.Issue(req.Subject, h.opts.Admin.Issuer, h.opts.Admin.SigningKey, h.opts.TokenTTL, h.now())
	if err != nil {
		h.logger.Error("issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusCreated, tok)
}

// ListTags lists the registry.
func (h *Handler) ListTags(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tags": h.svc.Registry().Tags()})
}

// ListEvents lists the newest ledger records.
func (h *Handler) ListEvents(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
			return
		}
		limit = parsed
	}
	c.JSON(http.StatusOK, gin.H{"events": h.svc.Events(c.Query("rfid"), limit)})
}

// RangeReport reports over ?from=YYYY-MM-DD&to=YYYY-MM-DD, optionally for one ?rfid=.
func (h *Handler) RangeReport(c *gin.Context) {
	from, err := jalali.ParseDate(c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from: " + err.Error()})
		return
	}
	to, err := jalali.ParseDate(c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to: " + err.Error()})
		return
	}
	r := jalali.Range{From: from, To: to}

	if tag := c.Query("rfid"); tag != "" {
		sum, err := h.svc.TagReport(tag, r)
		if err != nil {
			h.reportError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"startDate":     r.From.String(),
			"endDate":       r.To.String(),
			"rfid":          attendance.NormalizeTag(tag),
			"totalWorkTime": sum.WorkedTime(),
			"totalDays":     sum.Days,
		})
		return
	}
	rows, err := h.svc.ReportRange(r)
	if err != nil {
		h.reportError(c, err)
		return
	}
	h.writeReport(c, r, rows)
}

// WeeklyReport reports the previous Saturday..Friday week, or the week in progress with ?current=true.
func (h *Handler) WeeklyReport(c *gin.Context) {
	h.periodReport(c, h.svc.LastWeekReport, h.svc.CurrentWeekReport)
}

// MonthlyReport reports the previous Jalali month, or the month in progress with ?current=true.
func (h *Handler) MonthlyReport(c *gin.Context) {
	h.periodReport(c, h.svc.LastMonthReport, h.svc.CurrentMonthReport)
}

func (h *Handler) periodReport(c *gin.Context, previous, current func() (jalali.Range, []attendance.ReportRow, error)) {
	build := previous
	if v := c.Query("current"); v != "" {
		inProgress, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "current must be a boolean"})
			return
		}
		if inProgress {
			build = current
		}
	}
	r, rows, err := build()
	if err != nil {
		h.reportError(c, err)
		return
	}
	h.writeReport(c, r, rows)
}

func (h *Handler) writeReport(c *gin.Context, r jalali.Range, rows []attendance.ReportRow) {
	if rows == nil {
		rows = []attendance.ReportRow{}
	}
	c.JSON(http.StatusOK, gin.H{"startDate": r.From.String(), "endDate": r.To.String(), "reports": rows})
}

func (h *Handler) reportError(c *gin.Context, err error) {
	if errors.Is(err, errclass.ErrInvalidRange) || errors.Is(err, errclass.ErrInvalidDate) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.logger.Error("build report", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error."})
}
