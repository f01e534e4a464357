package router

import (
	"net/http"

	"genmart/internal/model"
	"genmart/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func createListing(listings *service.ListingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Title        string          `json:"title" binding:"required,max=160"`
			Brand        string          `json:"brand" binding:"required,max=80"`
			Model        string          `json:"model" binding:"max=80"`
			PowerKVA     decimal.Decimal `json:"power_kva"`
			FuelType     string          `json:"fuel_type" binding:"max=20"`
			Condition    string          `json:"condition" binding:"max=40"`
			RunningHours int64           `json:"running_hours" binding:"min=0"`
			AskingPrice  decimal.Decimal `json:"asking_price"`
			City         string          `json:"city" binding:"required,max=80"`
			Phone        string          `json:"phone" binding:"required,pkphone"`
			Description  string          `json:"description" binding:"max=4000"`
			Images       []model.Image   `json:"images" binding:"max=10"`
		}
		if !bindJSON(c, &req) {
			return
		}
		l, err := listings.Create(c.Request.Context(), actor(c), service.ListingInput{
			Title:        req.Title,
			Brand:        req.Brand,
			Model:        req.Model,
			PowerKVA:     req.PowerKVA,
			FuelType:     req.FuelType,
			Condition:    req.Condition,
			RunningHours: req.RunningHours,
			AskingPrice:  req.AskingPrice,
			City:         req.City,
			Phone:        normalizePhone(req.Phone),
			Description:  req.Description,
			Images:       req.Images,
		})
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusCreated, l)
	}
}

func listListings(listings *service.ListingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			pageQuery
			Brand string `form:"brand"`
			City  string `form:"city"`
		}
		if !bindQuery(c, &req) {
			return
		}
		page, err := listings.ListPublic(c.Request.Context(), service.ListingFilter{
			Brand: req.Brand,
			City:  req.City,
			Page:  req.page(),
		})
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusOK, page)
	}
}

func getListing(listings *service.ListingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, good := idParam(c, "id")
		if !good {
			return
		}
		l, err := listings.Get(c.Request.Context(), actor(c), id)
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusOK, l)
	}
}

func listMyListings(listings *service.ListingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req pageQuery
		if !bindQuery(c, &req) {
			return
		}
		page, err := listings.ListMine(c.Request.Context(), actor(c), req.page())
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusOK, page)
	}
}

func listAllListings(listings *service.ListingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			pageQuery
			Status string `form:"status"`
		}
		if !bindQuery(c, &req) {
			return
		}
		page, err := listings.ListAll(c.Request.Context(), req.Status, req.page())
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusOK, page)
	}
}

func moderateListing(listings *service.ListingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, good := idParam(c, "id")
		if !good {
			return
		}
		var req struct {
			Action    string              `json:"action" binding:"required"`
			Reason    string              `json:"reason" binding:"max=255"`
			SoldPrice decimal.NullDecimal `json:"sold_price"`
		}
		if !bindJSON(c, &req) {
			return
		}
		l, err := listings.Moderate(c.Request.Context(), actor(c), id, service.ListingModeration{
			Action:    req.Action,
			Reason:    req.Reason,
			SoldPrice: req.SoldPrice,
		})
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusOK, l)
	}
}
