package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JustJay7/judicial-case-sync/internal/cache"
	"github.com/JustJay7/judicial-case-sync/internal/consult"
	"github.com/JustJay7/judicial-case-sync/internal/database"
	"github.com/JustJay7/judicial-case-sync/pkg/logger"
	"github.com/gin-gonic/gin"
)

// RequesterHeader identifies the caller for monitoring and audit purposes.
const RequesterHeader = "X-Requester-ID"

// Service is what the handlers need from the consultation layer.
type Service interface {
	Consult(ctx context.Context, req consult.Request) (*consult.Result, error)
	ConsultMany(ctx context.Context, reqs []consult.Request) []consult.BulkItem
	Search(ctx context.Context, f database.SearchFilter) (*consult.SearchPage, error)
	Activities(ctx context.Context, caseNumber string) ([]database.Activity, error)
	Subjects(ctx context.Context, caseNumber string) ([]database.Subject, error)
	Documents(ctx context.Context, caseNumber string) ([]database.Document, error)
	Monitor(ctx context.Context, req consult.MonitorRequest) (*database.MonitoredCase, error)
	Unmonitor(ctx context.Context, requesterID, caseNumber string) error
	Monitored(ctx context.Context, requesterID string) ([]database.MonitoredCase, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds all HTTP handlers
type Handlers struct {
	service Service
	db      Pinger
	cache   cache.Cache
	logger  *logger.Logger
}

func NewHandlers(service Service, db Pinger, cache cache.Cache, logger *logger.Logger) *Handlers {
	return &Handlers{
		service: service,
		db:      db,
		cache:   cache,
		logger:  logger,
	}
}

type consultRequest struct {
	NumeroRadicacion string `json:"numeroRadicacion"`
	CaseNumber       string `json:"case_number"`
	Refresh          bool   `json:"refresh"`
}

func (r consultRequest) number() string {
	if n := strings.TrimSpace(r.NumeroRadicacion); n != "" {
		return n
	}
	return strings.TrimSpace(r.CaseNumber)
}

// ConsultCase returns a case, scraping the portal when it is unknown or a
// refresh is requested.
func (h *Handlers) ConsultCase(c *gin.Context) {
	var req consultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body",
		})
		return
	}

	caseNumber := req.number()
	if caseNumber == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "numeroRadicacion is required",
		})
		return
	}

	res, err := h.service.Consult(c.Request.Context(), consult.Request{
		CaseNumber:   caseNumber,
		ForceRefresh: req.Refresh || queryBool(c, "refresh") || queryBool(c, "fresh"),
		RequesterID:  c.GetHeader(RequesterHeader),
		ClientIP:     c.ClientIP(),
		UserAgent:    c.Request.UserAgent(),
	})
	if err != nil {
		h.respondError(c, err, caseNumber)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"data":          res.Case,
		"source":        res.Source,
		"fromCache":     res.Source == consult.SourceCache,
		"degraded":      res.Degraded,
		"partial":       res.Partial,
		"warnings":      res.Warnings,
		"sync_failures": res.SyncFailures,
	})
}

// BulkConsult handles several case numbers in one request.
func (h *Handlers) BulkConsult(c *gin.Context) {
	var req struct {
		Cases   []string `json:"cases" binding:"required,min=1,max=10"`
		Refresh bool     `json:"refresh"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	reqs := make([]consult.Request, 0, len(req.Cases))
	for _, n := range req.Cases {
		reqs = append(reqs, consult.Request{
			CaseNumber:   n,
			ForceRefresh: req.Refresh,
			RequesterID:  c.GetHeader(RequesterHeader),
			ClientIP:     c.ClientIP(),
			UserAgent:    c.Request.UserAgent(),
		})
	}

	items := h.service.ConsultMany(c.Request.Context(), reqs)

	results := make([]gin.H, 0, len(items))
	for _, item := range items {
		data := gin.H{"case_number": item.CaseNumber}
		if item.Err != nil {
			_, msg := errorStatus(item.Err)
			data["success"] = false
			data["error"] = msg
		} else {
			data["success"] = true
			data["source"] = item.Result.Source
			data["data"] = item.Result.Case
		}
		results = append(results, data)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"results": results,
	})
}

// SearchCases lists stored cases matching the query string filters
func (h *Handlers) SearchCases(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	result, err := h.service.Search(c.Request.Context(), database.SearchFilter{
		Query:       c.Query("q"),
		Court:       c.Query("court"),
		Plaintiff:   c.Query("plaintiff"),
		Defendant:   c.Query("defendant"),
		ProcessType: c.Query("type"),
		Status:      c.Query("status"),
		Page:        page,
		Limit:       limit,
	})
	if err != nil {
		h.respondError(c, err, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result.Cases,
		"pagination": gin.H{
			"page":  result.Page,
			"limit": result.Limit,
			"total": result.Total,
		},
	})
}

func (h *Handlers) CaseActivities(c *gin.Context) {
	caseNumber := c.Param("caseNumber")
	activities, err := h.service.Activities(c.Request.Context(), caseNumber)
	if err != nil {
		h.respondError(c, err, caseNumber)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": activities, "total": len(activities)})
}

func (h *Handlers) CaseSubjects(c *gin.Context) {
	caseNumber := c.Param("caseNumber")
	subjects, err := h.service.Subjects(c.Request.Context(), caseNumber)
	if err != nil {
		h.respondError(c, err, caseNumber)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": subjects, "total": len(subjects)})
}

func (h *Handlers) CaseDocuments(c *gin.Context) {
	caseNumber := c.Param("caseNumber")
	documents, err := h.service.Documents(c.Request.Context(), caseNumber)
	if err != nil {
		h.respondError(c, err, caseNumber)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": documents, "total": len(documents)})
}

// MonitoredCases lists the cases the requester follows
func (h *Handlers) MonitoredCases(c *gin.Context) {
	monitors, err := h.service.Monitored(c.Request.Context(), c.GetHeader(RequesterHeader))
	if err != nil {
		h.respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": monitors, "total": len(monitors)})
}

func (h *Handlers) MonitorCase(c *gin.Context) {
	var req struct {
		consultRequest
		Role  string `json:"role"`
		Alias string `json:"alias"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body",
		})
		return
	}

	caseNumber := req.number()
	m, err := h.service.Monitor(c.Request.Context(), consult.MonitorRequest{
		RequesterID: c.GetHeader(RequesterHeader),
		CaseNumber:  caseNumber,
		Role:        req.Role,
		Alias:       req.Alias,
		ClientIP:    c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
	})
	if err != nil {
		h.respondError(c, err, caseNumber)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": m})
}

func (h *Handlers) UnmonitorCase(c *gin.Context) {
	caseNumber := c.Param("caseNumber")
	if err := h.service.Unmonitor(c.Request.Context(), c.GetHeader(RequesterHeader), caseNumber); err != nil {
		h.respondError(c, err, caseNumber)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Case no longer monitored"})
}

// HealthCheck returns the health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	dbHealthy := h.db.Ping(ctx) == nil
	status, code := "healthy", http.StatusOK
	if !dbHealthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":   status,
		"database": dbHealthy,
		"cache":    h.cache.Stats(),
		"time":     time.Now().Unix(),
	})
}

// CacheStats returns cache statistics
func (h *Handlers) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   h.cache.Stats(),
	})
}

// respondError maps service errors to the two user-facing messages plus the
// request validation cases. Internal detail is only logged.
func (h *Handlers) respondError(c *gin.Context, err error, caseNumber string) {
	code, msg := errorStatus(err)
	if code == http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.FullPath(), "case_number", caseNumber, "error", err)
	}
	c.JSON(code, gin.H{
		"success": false,
		"error":   msg,
	})
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, consult.ErrInvalidCaseNumber):
		return http.StatusBadRequest, "numeroRadicacion is required"
	case errors.Is(err, consult.ErrMissingRequester):
		return http.StatusBadRequest, RequesterHeader + " header is required"
	case errors.Is(err, consult.ErrAlreadyMonitored):
		return http.StatusConflict, "case already monitored"
	case errors.Is(err, consult.ErrNotFound):
		return http.StatusNotFound, "case not found"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func queryBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	return err == nil && v
}
