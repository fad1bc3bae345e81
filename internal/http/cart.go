package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"shopflow/internal/cart"
	"shopflow/internal/domain"
	"shopflow/internal/notify"
	"shopflow/internal/service"
)

// cartView состояние корзины и уведомления, поднятые запросом
type cartView struct {
	Items     []domain.CartLineItem `json:"items"`
	Total     decimal.Decimal       `json:"total"`
	ItemCount int                   `json:"itemCount"`
	IsOpen    bool                  `json:"isOpen"`
	Messages  []notify.Message      `json:"messages"`
}

type cartItemReq struct {
	ProductID int64  `json:"productId" form:"productId" binding:"required"`
	Size      string `json:"size" form:"size"`
	Color     string `json:"color" form:"color"`
	Quantity  *int   `json:"quantity"`
}

type cartOpenReq struct {
	Open bool `json:"open"`
}

type checkoutResp struct {
	Order    *domain.Order    `json:"order,omitempty"`
	Error    string           `json:"error,omitempty"`
	Messages []notify.Message `json:"messages"`
}

// cartScope корзина сессии на время одного запроса
type cartScope struct {
	st      *cart.Store
	ctx     context.Context
	rec     *notify.Recorder
	release func()
}

// withCart выдаёт корзину сессии и контекст с записью уведомлений.
// Если корзину не удалось получить, ответ уже записан и ok == false.
// Вызывающий обязан вызвать release.
func (s *Server) withCart(c *gin.Context) (sc cartScope, ok bool) {
	rec := &notify.Recorder{}
	ctx := notify.NewContext(c.Request.Context(), rec)
	st, release, err := s.carts.Acquire(ctx, c.GetString(ctxSessionID))
	if err != nil {
		writeError(c, err)
		return cartScope{}, false
	}
	return cartScope{st: st, ctx: ctx, rec: rec, release: release}, true
}

func (sc cartScope) view() cartView {
	snap := sc.st.Snapshot()
	return cartView{
		Items:     snap.Items,
		Total:     snap.Total,
		ItemCount: snap.ItemCount,
		IsOpen:    snap.IsOpen,
		Messages:  sc.rec.Drain(),
	}
}

func (s *Server) cartError(c *gin.Context, sc cartScope, err error) {
	status := mapErrorToStatus(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	sc.rec.Notify(notify.LevelError, errorMessage(err))
	c.JSON(status, gin.H{"error": errorMessage(err), "cart": sc.view()})
}

// @Summary Get the session cart
// @Tags cart
// @Produce json
// @Success 200 {object} cartView
// @Failure 503 {object} map[string]string
// @Router /cart [get]
func (s *Server) getCart(c *gin.Context) {
	sc, ok := s.withCart(c)
	if !ok {
		return
	}
	defer sc.release()
	c.JSON(http.StatusOK, sc.view())
}

// @Summary Add a product to the cart
// @Description Lines with the same product, size and color are merged.
// @Tags cart
// @Accept json
// @Produce json
// @Param input body cartItemReq true "Line"
// @Success 200 {object} cartView
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /cart/items [post]
func (s *Server) addCartItem(c *gin.Context) {
	var req cartItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	sc, ok := s.withCart(c)
	if !ok {
		return
	}
	defer sc.release()
	p, err := s.products.GetByID(sc.ctx, req.ProductID)
	if err != nil {
		s.cartError(c, sc, err)
		return
	}
	if err := sc.st.Add(sc.ctx, *p, req.Size, req.Color, qty); err != nil {
		s.cartError(c, sc, err)
		return
	}
	c.JSON(http.StatusOK, sc.view())
}

// @Summary Set the quantity of a cart line
// @Description A quantity of zero or less removes the line.
// @Tags cart
// @Accept json
// @Produce json
// @Param input body cartItemReq true "Line and quantity"
// @Success 200 {object} cartView
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /cart/items [put]
func (s *Server) updateCartItem(c *gin.Context) {
	var req cartItemReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Quantity == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	sc, ok := s.withCart(c)
	if !ok {
		return
	}
	defer sc.release()
	if err := sc.st.UpdateQuantity(sc.ctx, req.ProductID, req.Size, req.Color, *req.Quantity); err != nil {
		s.cartError(c, sc, err)
		return
	}
	c.JSON(http.StatusOK, sc.view())
}

// @Summary Remove a cart line
// @Tags cart
// @Produce json
// @Param productId query int true "Product ID"
// @Param size query string false "Selected size"
// @Param color query string false "Selected color"
// @Success 200 {object} cartView
// @Failure 400 {object} map[string]string
// @Router /cart/items [delete]
func (s *Server) removeCartItem(c *gin.Context) {
	var req cartItemReq
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	sc, ok := s.withCart(c)
	if !ok {
		return
	}
	defer sc.release()
	if err := sc.st.Remove(sc.ctx, req.ProductID, req.Size, req.Color); err != nil {
		s.cartError(c, sc, err)
		return
	}
	c.JSON(http.StatusOK, sc.view())
}

// @Summary Empty the cart
// @Tags cart
// @Produce json
// @Success 200 {object} cartView
// @Router /cart [delete]
func (s *Server) clearCart(c *gin.Context) {
	sc, ok := s.withCart(c)
	if !ok {
		return
	}
	defer sc.release()
	if err := sc.st.Clear(sc.ctx); err != nil {
		s.cartError(c, sc, err)
		return
	}
	c.JSON(http.StatusOK, sc.view())
}

// @Summary Open or close the cart panel
// @Tags cart
// @Accept json
// @Produce json
// @Param input body cartOpenReq true "Panel state"
// @Success 200 {object} cartView
// @Router /cart/open [put]
func (s *Server) setCartOpen(c *gin.Context) {
	var req cartOpenReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	sc, ok := s.withCart(c)
	if !ok {
		return
	}
	defer sc.release()
	sc.st.SetOpen(req.Open)
	c.JSON(http.StatusOK, sc.view())
}

// @Summary Price the session cart
// @Tags checkout
// @Produce json
// @Success 200 {object} service.Quote
// @Router /checkout/quote [post]
func (s *Server) quote(c *gin.Context) {
	sc, ok := s.withCart(c)
	if !ok {
		return
	}
	defer sc.release()
	c.JSON(http.StatusOK, s.checkout.Quote(sc.st.Items()))
}

// @Summary Place an order from the session cart
// @Description Payment details are never accepted. The cart is emptied only when the order is stored.
// @Tags checkout
// @Accept json
// @Produce json
// @Param input body service.ShippingInfo true "Shipping information"
// @Success 201 {object} checkoutResp
// @Failure 400 {object} checkoutResp
// @Failure 404 {object} checkoutResp
// @Failure 409 {object} checkoutResp
// @Failure 500 {object} checkoutResp
// @Failure 503 {object} map[string]string
// @Router /checkout [post]
func (s *Server) placeOrder(c *gin.Context) {
	var req service.ShippingInfo
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, checkoutResp{Error: "invalid json", Messages: []notify.Message{}})
		return
	}
	sc, ok := s.withCart(c)
	if !ok {
		return
	}
	defer sc.release()
	o, err := s.checkout.PlaceOrder(sc.ctx, sc.st, req)
	if err != nil {
		status := mapErrorToStatus(err)
		if status >= http.StatusInternalServerError {
			_ = c.Error(err)
		}
		c.JSON(status, checkoutResp{Error: errorMessage(err), Messages: sc.rec.Drain()})
		return
	}
	c.JSON(http.StatusCreated, checkoutResp{Order: o, Messages: sc.rec.Drain()})
}
