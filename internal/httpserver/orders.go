package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
)

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type createOrderRequest struct {
	CustomerKey string `json:"customerKey"`
	ProductKey  string `json:"productKey" binding:"required"`
	Quantity    int    `json:"quantity" binding:"required"`
}

type checkoutResponse struct {
	Orders []domain.OrderConfirmation `json:"orders"`
	Total  int64                      `json:"totalCents"`
}

func (h *handlers) checkout(c *gin.Context) {
	confs, err := h.deps.CheckoutSvc.Checkout(c.Request.Context(), currentUser(c).Username)
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	resp := checkoutResponse{Orders: confs}
	for _, conf := range confs {
		resp.Total += conf.TotalCents
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *handlers) myOrders(c *gin.Context) {
	orders, err := h.deps.OrderSvc.ListForUser(c.Request.Context(), currentUser(c).Username)
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(orders), "results": orders})
}

func (h *handlers) listOrders(c *gin.Context) {
	orders, err := h.deps.OrderSvc.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(orders), "results": orders})
}

func (h *handlers) getOrder(c *gin.Context) {
	o, err := h.deps.OrderSvc.Get(c.Request.Context(), c.Param("orderKey"))
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	if o.Version != "" {
		c.Header("ETag", o.Version)
	}
	c.JSON(http.StatusOK, o)
}

// updateOrderStatus honours an optional If-Match header as the expected version.
func (h *handlers) updateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("validation", err.Error()))
		return
	}
	o, err := h.deps.OrderSvc.UpdateStatus(c.Request.Context(), c.Param("orderKey"), req.Status, c.GetHeader("If-Match"))
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	if o.Version != "" {
		c.Header("ETag", o.Version)
	}
	c.JSON(http.StatusOK, o)
}

func (h *handlers) deleteOrder(c *gin.Context) {
	if err := h.deps.OrderSvc.DeleteOrder(c.Request.Context(), c.Param("orderKey")); err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.Status(http.StatusNoContent)
}

// createOrder places one order directly. Customers may omit customerKey.
func (h *handlers) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("validation", err.Error()))
		return
	}
	u := currentUser(c)
	o, err := h.deps.OrderSvc.Create(c.Request.Context(), u.Username, u.Role, req.CustomerKey, req.ProductKey, req.Quantity)
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	if o.Version != "" {
		c.Header("ETag", o.Version)
	}
	c.JSON(http.StatusCreated, o)
}

func (h *handlers) customerByUsername(c *gin.Context) {
	customer, err := h.deps.OrderSvc.CustomerByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customerKey": customer.Key, "customer": customer})
}
