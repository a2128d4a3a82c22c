package gateway

import (
	"net/http"

	"github.com/example/icecreamshop/pkg/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type productRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Category    *string          `json:"category"`
	ImageURL    *string          `json:"image_url"`
	Stock       *int             `json:"stock"`
}

func (r productRequest) input() service.ProductInput {
	return service.ProductInput{
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Category:    r.Category,
		ImageURL:    r.ImageURL,
		Stock:       r.Stock,
	}
}

func (g *Gateway) listProducts(c *gin.Context) {
	page, limit, err := queryPage(c)
	if err != nil {
		g.respondError(c, err)
		return
	}
	minPrice, err := queryDecimal(c, "precoMin", "min_price")
	if err != nil {
		g.respondError(c, err)
		return
	}
	maxPrice, err := queryDecimal(c, "precoMax", "max_price")
	if err != nil {
		g.respondError(c, err)
		return
	}

	result, err := g.services.Catalog.List(c.Request.Context(), service.ProductFilter{
		Category: c.Query("category"),
		Name:     c.Query("name"),
		MinPrice: minPrice,
		MaxPrice: maxPrice,
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProductPageView(result))
}

func (g *Gateway) getProduct(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		g.respondError(c, err)
		return
	}

	product, err := g.services.Catalog.Get(c.Request.Context(), id)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProductDetailView(product))
}

func (g *Gateway) createProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.respondError(c, bindingError(err))
		return
	}

	product, err := g.services.Catalog.Create(c.Request.Context(), req.input())
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newProductView(product))
}

func (g *Gateway) updateProduct(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		g.respondError(c, err)
		return
	}
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.respondError(c, bindingError(err))
		return
	}

	product, err := g.services.Catalog.Update(c.Request.Context(), id, req.input())
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProductView(product))
}

func (g *Gateway) deleteProduct(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		g.respondError(c, err)
		return
	}

	if err := g.services.Catalog.Delete(c.Request.Context(), id); err != nil {
		g.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
