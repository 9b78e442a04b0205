package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all application routes
func SetupRoutes(router *gin.Engine, h *Handlers, gatherer prometheus.Gatherer) {
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	{
		api.GET("/health", h.HealthCheck)
		api.GET("/cache/stats", h.CacheStats)

		judicial := api.Group("/judicial")
		judicial.POST("/consult", h.ConsultCase)
		judicial.POST("/consult/bulk", h.BulkConsult)
		judicial.GET("/search", h.SearchCases)

		judicial.GET("/cases/:caseNumber/activities", h.CaseActivities)
		judicial.GET("/cases/:caseNumber/subjects", h.CaseSubjects)
		judicial.GET("/cases/:caseNumber/documents", h.CaseDocuments)

		judicial.GET("/monitored", h.MonitoredCases)
		judicial.POST("/monitor", h.MonitorCase)
		judicial.DELETE("/monitor/:caseNumber", h.UnmonitorCase)
	}
}
