package gateway

import (
	"net/http"

	"github.com/example/icecreamshop/pkg/apperr"
	"github.com/gin-gonic/gin"
)

type createReviewRequest struct {
	Rating  *int    `json:"rating"`
	Comment *string `json:"comment"`
}

// productIDParams lists the accepted names of the product query parameter.
var productIDParams = []string{"product_id", "produto_id"}

func (g *Gateway) createReview(c *gin.Context) {
	productID, err := queryID(c, productIDParams...)
	if err != nil {
		g.respondError(c, err)
		return
	}
	var req createReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.respondError(c, bindingError(err))
		return
	}
	if req.Rating == nil {
		g.respondError(c, apperr.ErrInvalidRating)
		return
	}

	review, err := g.services.Reviews.Create(c.Request.Context(), currentUserID(c), productID, *req.Rating, req.Comment)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newReviewView(review))
}

func (g *Gateway) listReviews(c *gin.Context) {
	productID, err := queryID(c, productIDParams...)
	if err != nil {
		g.respondError(c, err)
		return
	}
	page, limit, err := queryPage(c)
	if err != nil {
		g.respondError(c, err)
		return
	}

	result, err := g.services.Reviews.List(c.Request.Context(), productID, page, limit)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newReviewPageView(result))
}
