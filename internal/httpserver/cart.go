package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	cartsvc "storefront/internal/service/cart"
)

type addToCartRequest struct {
	ProductKey string `json:"productKey" binding:"required"`
}

func (h *handlers) viewCart(c *gin.Context) {
	view, err := h.deps.CartSvc.ViewCart(c.Request.Context(), currentUser(c).Username)
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) addToCart(c *gin.Context) {
	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("validation", err.Error()))
		return
	}
	line, err := h.deps.CartSvc.AddToCart(c.Request.Context(), currentUser(c).Username, req.ProductKey)
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, line)
}

func (h *handlers) removeFromCart(c *gin.Context) {
	res, err := h.deps.CartSvc.RemoveFromCart(c.Request.Context(), currentUser(c).Username, c.Param("productKey"))
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, res)
}

// updateQuantities applies pairs in order; on rejection the body also
// carries what was applied before it.
func (h *handlers) updateQuantities(c *gin.Context) {
	var req []cartsvc.QuantityUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("validation", err.Error()))
		return
	}
	res, err := h.deps.CartSvc.UpdateQuantities(c.Request.Context(), currentUser(c).Username, req)
	if err != nil {
		h.writeError(c, err, gin.H{"applied": res})
		return
	}
	c.JSON(http.StatusOK, res)
}
