package router

import (
	"net/http"

	"genmart/internal/model"
	"genmart/internal/service"

	"github.com/gin-gonic/gin"
)

func createReview(reviews *service.ReviewService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Type      model.ProductKind `json:"type" binding:"required,oneof=GENERATOR PART"`
			ProductID uint              `json:"product_id" binding:"required"`
			Rating    int               `json:"rating" binding:"required,min=1,max=5"`
			Title     string            `json:"title" binding:"max=120"`
			Comment   string            `json:"comment" binding:"max=2000"`
		}
		if !bindJSON(c, &req) {
			return
		}
		r, err := reviews.Create(c.Request.Context(), actor(c), service.ReviewInput{
			Type:      req.Type,
			ProductID: req.ProductID,
			Rating:    req.Rating,
			Title:     req.Title,
			Comment:   req.Comment,
		})
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusCreated, r)
	}
}

func listReviews(reviews *service.ReviewService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Type      string `form:"type" binding:"required"`
			ProductID uint   `form:"product_id" binding:"required"`
		}
		if !bindQuery(c, &req) {
			return
		}
		kind, known := model.ParseProductKind(req.Type)
		if !known {
			fail(c, http.StatusBadRequest, "type must be GENERATOR or PART")
			return
		}
		summary, err := reviews.ForProduct(c.Request.Context(), kind, req.ProductID)
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusOK, summary)
	}
}

func getWishlist(reviews *service.ReviewService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := reviews.Wishlist(c.Request.Context(), actor(c))
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusOK, list)
	}
}

func addToWishlist(reviews *service.ReviewService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Type      model.ProductKind `json:"type" binding:"required,oneof=GENERATOR PART"`
			ProductID uint              `json:"product_id" binding:"required"`
		}
		if !bindJSON(c, &req) {
			return
		}
		item, err := reviews.AddToWishlist(c.Request.Context(), actor(c), req.Type, req.ProductID)
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusOK, item)
	}
}

func removeFromWishlist(reviews *service.ReviewService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, good := idParam(c, "id")
		if !good {
			return
		}
		if err := reviews.RemoveFromWishlist(c.Request.Context(), actor(c), id); err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusOK, gin.H{"removed": id})
	}
}
