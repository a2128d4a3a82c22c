package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type googleLoginRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

func (g *Gateway) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.respondError(c, bindingError(err))
		return
	}

	res, err := g.services.Auth.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, authResponse{Token: res.Token, User: newUserView(res.User)})
}

func (g *Gateway) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.respondError(c, bindingError(err))
		return
	}

	res, err := g.services.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, authResponse{Token: res.Token, User: newUserView(res.User)})
}

func (g *Gateway) googleLogin(c *gin.Context) {
	var req googleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.respondError(c, bindingError(err))
		return
	}

	res, err := g.services.Auth.GoogleLogin(c.Request.Context(), req.IDToken)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, authResponse{Token: res.Token, User: newUserView(res.User)})
}

func (g *Gateway) me(c *gin.Context) {
	user, err := g.services.Auth.Me(c.Request.Context(), currentUserID(c))
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserView(user))
}
