package router

import (
	"net/http"
	"time"

	"genmart/internal/model"
	"genmart/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func createServiceRequest(services *service.ServiceRequestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			ServiceType   model.ServiceType `json:"service_type" binding:"required,oneof=REPAIR MAINTENANCE INSTALLATION INSPECTION"`
			Brand         string            `json:"brand" binding:"max=80"`
			Model         string            `json:"model" binding:"max=80"`
			Description   string            `json:"description" binding:"required,max=2000"`
			PreferredDate *time.Time        `json:"preferred_date"`
			Address       string            `json:"address" binding:"required,max=255"`
			City          string            `json:"city" binding:"required,max=80"`
			Phone         string            `json:"phone" binding:"required,pkphone"`
			Priority      model.Priority    `json:"priority" binding:"omitempty,oneof=LOW NORMAL HIGH URGENT"`
		}
		if !bindJSON(c, &req) {
			return
		}
		sr, err := services.Create(c.Request.Context(), actor(c), service.ServiceRequestInput{
			ServiceType:   req.ServiceType,
			Brand:         req.Brand,
			Model:         req.Model,
			Description:   req.Description,
			PreferredDate: req.PreferredDate,
			Address:       req.Address,
			City:          req.City,
			Phone:         normalizePhone(req.Phone),
			Priority:      req.Priority,
		})
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusCreated, sr)
	}
}

func listMyServiceRequests(services *service.ServiceRequestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req pageQuery
		if !bindQuery(c, &req) {
			return
		}
		page, err := services.ListMine(c.Request.Context(), actor(c), req.page())
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusOK, page)
	}
}

func getServiceRequest(services *service.ServiceRequestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, good := idParam(c, "id")
		if !good {
			return
		}
		sr, err := services.Get(c.Request.Context(), actor(c), id)
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusOK, sr)
	}
}

func cancelServiceRequest(services *service.ServiceRequestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, good := idParam(c, "id")
		if !good {
			return
		}
		var req struct {
			Action string `json:"action" binding:"required,oneof=cancel"`
		}
		if !bindJSON(c, &req) {
			return
		}
		sr, err := services.Cancel(c.Request.Context(), actor(c), id)
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusOK, sr)
	}
}

func listAllServiceRequests(services *service.ServiceRequestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			pageQuery
			Status string `form:"status"`
		}
		if !bindQuery(c, &req) {
			return
		}
		page, err := services.ListAll(c.Request.Context(), req.Status, req.page())
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusOK, page)
	}
}

func transitionServiceRequest(services *service.ServiceRequestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, good := idParam(c, "id")
		if !good {
			return
		}
		var req struct {
			Status       string              `json:"status" binding:"required"`
			QuotedAmount decimal.NullDecimal `json:"quoted_amount"`
			Note         string              `json:"note" binding:"max=1000"`
		}
		if !bindJSON(c, &req) {
			return
		}
		sr, err := services.Transition(c.Request.Context(), actor(c), id, service.ServiceTransition{
			Status:       req.Status,
			QuotedAmount: req.QuotedAmount,
			Note:         req.Note,
		})
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusOK, sr)
	}
}
