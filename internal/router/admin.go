package router

import (
	"net/http"

	"genmart/internal/service"

	"github.com/gin-gonic/gin"
)

func getStats(stats *service.StatsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := stats.Compute(c.Request.Context())
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusOK, s)
	}
}

func listAuditLogs(audit *service.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			pageQuery
			Entity string `form:"entity"`
		}
		if !bindQuery(c, &req) {
			return
		}
		page, err := audit.List(c.Request.Context(), req.Entity, req.page())
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusOK, page)
	}
}
