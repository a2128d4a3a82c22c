package gateway

import (
	"net/http"

	"github.com/example/icecreamshop/pkg/apperr"
	"github.com/gin-gonic/gin"
)

type addCartItemRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  *int `json:"quantity"`
}

type updateCartItemRequest struct {
	Quantity *int `json:"quantity"`
}

func (g *Gateway) getCart(c *gin.Context) {
	cart, err := g.services.Cart.Get(c.Request.Context(), currentUserID(c))
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartView(cart))
}

func (g *Gateway) addCartItem(c *gin.Context) {
	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.respondError(c, bindingError(err))
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	cart, err := g.services.Cart.AddItem(c.Request.Context(), currentUserID(c), req.ProductID, quantity)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartView(cart))
}

func (g *Gateway) updateCartItem(c *gin.Context) {
	itemID, err := pathID(c, "item_id")
	if err != nil {
		g.respondError(c, err)
		return
	}
	var req updateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.respondError(c, bindingError(err))
		return
	}
	if req.Quantity == nil {
		g.respondError(c, apperr.Validation("quantity is required"))
		return
	}

	cart, err := g.services.Cart.UpdateItem(c.Request.Context(), currentUserID(c), itemID, *req.Quantity)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartView(cart))
}

func (g *Gateway) removeCartItem(c *gin.Context) {
	itemID, err := pathID(c, "item_id")
	if err != nil {
		g.respondError(c, err)
		return
	}

	cart, err := g.services.Cart.RemoveItem(c.Request.Context(), currentUserID(c), itemID)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartView(cart))
}

func (g *Gateway) clearCart(c *gin.Context) {
	cart, err := g.services.Cart.Clear(c.Request.Context(), currentUserID(c))
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartView(cart))
}
