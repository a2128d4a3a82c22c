package gateway

import (
	"net/http"

	"github.com/example/icecreamshop/pkg/models"
	"github.com/example/icecreamshop/pkg/service"
	"github.com/gin-gonic/gin"
)

type placeOrderRequest struct {
	DeliveryAddress *models.Address `json:"delivery_address"`
}

type orderStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

func (g *Gateway) placeOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.respondError(c, bindingError(err))
		return
	}
	// Field level validation happens in the service so the error names
	// every missing field.
	var address models.Address
	if req.DeliveryAddress != nil {
		address = *req.DeliveryAddress
	}

	order, err := g.services.Orders.PlaceOrder(c.Request.Context(), currentUserID(c), address)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newOrderView(order))
}

func (g *Gateway) listOrders(c *gin.Context) {
	page, limit, err := queryPage(c)
	if err != nil {
		g.respondError(c, err)
		return
	}

	result, err := g.services.Orders.ListForUser(c.Request.Context(), currentUserID(c), page, limit)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderPageView(result))
}

func (g *Gateway) getOrder(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		g.respondError(c, err)
		return
	}

	order, err := g.services.Orders.Get(c.Request.Context(), id, service.Requester{
		UserID: currentUserID(c),
		Role:   currentRole(c),
	})
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderView(order))
}

func (g *Gateway) updateOrderStatus(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		g.respondError(c, err)
		return
	}
	var req orderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.respondError(c, bindingError(err))
		return
	}

	order, err := g.services.Orders.SetStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderView(order))
}

func (g *Gateway) orderHistory(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		g.respondError(c, err)
		return
	}

	logs, err := g.services.Orders.History(c.Request.Context(), id)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": id, "events": logs})
}
