package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/olyamironova/spot-exchange/internal/api/dto"
	"github.com/olyamironova/spot-exchange/internal/core"
	"github.com/olyamironova/spot-exchange/internal/domain"
	"github.com/olyamironova/spot-exchange/internal/middleware"
)

const feedBuffer = 32

type HTTPServer struct {
	Eng      *core.Engine
	feed     *TradeFeed
	log      *zap.Logger
	limiter  *middleware.RateLimiter
	upgrader websocket.Upgrader
}

type Option func(*HTTPServer)

// WithRateLimit admits one request per caller every d. Zero disables it.
func WithRateLimit(d time.Duration) Option {
	return func(s *HTTPServer) {
		if d > 0 {
			s.limiter = middleware.NewRateLimiter(d)
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(s *HTTPServer) { s.log = log }
}

// NewHTTPServer serves eng over HTTP. feed is the publisher the engine
// broadcasts trades to; it backs the WebSocket trade stream.
func NewHTTPServer(eng *core.Engine, feed *TradeFeed, opts ...Option) *HTTPServer {
	s := &HTTPServer{
		Eng:      eng,
		feed:     feed,
		log:      zap.NewNop(),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPServer) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger(s.log))
	if s.limiter != nil {
		r.Use(s.limiter.Middleware())
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/markets", s.markets)

	trading := r.Group("/trading/:market")
	trading.GET("/order_book", s.orderBook)
	trading.GET("/ws", s.streamTrades)
	orders := trading.Group("/orders", middleware.RequireUser())
	orders.POST("", s.placeOrder)
	orders.DELETE("/:id", s.cancelOrder)
	orders.GET("/:id/trades", s.orderTrades)

	wallets := r.Group("/wallets/balances/:currency", middleware.RequireUser())
	wallets.GET("", s.balance)
	wallets.POST("/deposit", s.deposit)

	admin := r.Group("/admin")
	admin.POST("/reset", s.reset)
	admin.GET("/reconciliations", s.reconciliations)

	return r
}

func (s *HTTPServer) placeOrder(c *gin.Context) {
	var req dto.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	side, err := domain.ParseSide(req.Side)
	if err != nil {
		s.writeError(c, err, "")
		return
	}

	res, err := s.Eng.PlaceOrder(c.Request.Context(), core.PlaceOrderRequest{
		Market: c.Param("market"),
		Side:   side,
		Price:  req.Price,
		Volume: req.Volume,
		UserID: middleware.UserID(c),
	})
	if err != nil {
		orderID := ""
		if res != nil {
			orderID = res.OrderID
		}
		s.writeError(c, err, orderID)
		return
	}

	c.JSON(http.StatusAccepted, dto.PlaceOrderResponse{
		OrderID:   res.OrderID,
		Trades:    dto.FromTrades(res.Trades),
		Remaining: res.Remaining,
	})
}

func (s *HTTPServer) cancelOrder(c *gin.Context) {
	id := c.Param("id")
	refund, err := s.Eng.CancelOrder(c.Request.Context(), c.Param("market"), id, middleware.UserID(c))
	if err != nil {
		s.writeError(c, err, id)
		return
	}
	c.JSON(http.StatusAccepted, dto.CancelOrderResponse{
		OrderID: id,
		Refund:  dto.FromRefund(refund),
	})
}

func (s *HTTPServer) orderTrades(c *gin.Context) {
	if _, err := s.Eng.ParseMarket(c.Param("market")); err != nil {
		s.writeError(c, err, "")
		return
	}
	trades, err := s.Eng.TradesForOrder(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		s.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, dto.TradesResponse{Trades: dto.FromTrades(trades)})
}

func (s *HTTPServer) orderBook(c *gin.Context) {
	ob, err := s.Eng.OrderBook(c.Request.Context(), c.Param("market"))
	if err != nil {
		s.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, dto.FromSnapshot(ob))
}

func (s *HTTPServer) markets(c *gin.Context) {
	c.JSON(http.StatusOK, dto.MarketsResponse{Markets: s.Eng.Markets()})
}

type outboundMessage struct {
	Type string    `json:"type"`
	Data dto.Trade `json:"data"`
}

func (s *HTTPServer) streamTrades(c *gin.Context) {
	m, err := s.Eng.ParseMarket(c.Param("market"))
	if err != nil {
		s.writeError(c, err, "")
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.feed.Subscribe(m.String(), feedBuffer)
	defer s.feed.Unsubscribe(m.String(), sub)

	// the reader only notices the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case trade := <-sub.ch:
			if err := conn.WriteJSON(outboundMessage{Type: "trade", Data: trade}); err != nil {
				return
			}
		}
	}
}

func (s *HTTPServer) balance(c *gin.Context) {
	currency := c.Param("currency")
	bal, err := s.Eng.Balance(c.Request.Context(), middleware.UserID(c), currency)
	if err != nil {
		s.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, dto.BalanceResponse{Currency: currency, Balance: bal})
}

func (s *HTTPServer) deposit(c *gin.Context) {
	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	currency := c.Param("currency")
	userID := middleware.UserID(c)
	if err := s.Eng.Deposit(c.Request.Context(), userID, currency, req.Amount); err != nil {
		s.writeError(c, err, "")
		return
	}
	bal, err := s.Eng.Balance(c.Request.Context(), userID, currency)
	if err != nil {
		s.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusAccepted, dto.BalanceResponse{Currency: currency, Balance: bal})
}

func (s *HTTPServer) reset(c *gin.Context) {
	if err := s.Eng.Reset(c.Request.Context()); err != nil {
		s.writeError(c, err, "")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *HTTPServer) reconciliations(c *gin.Context) {
	recs, err := s.Eng.Reconciliations(c.Request.Context())
	if err != nil {
		s.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, dto.ReconciliationsResponse{Reconciliations: dto.FromReconciliations(recs)})
}

func (s *HTTPServer) writeError(c *gin.Context, err error, orderID string) {
	code := StatusFor(err)
	resp := dto.ErrorResponse{Error: err.Error()}
	if errors.Is(err, domain.ErrSettlementIncomplete) {
		resp.OrderID = orderID
	}
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("order_id", orderID),
			zap.Error(err),
		)
	}
	c.JSON(code, resp)
}

// StatusFor maps engine errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSettlementIncomplete):
		return http.StatusInternalServerError
	case errors.Is(err, domain.ErrInvalidMarketOrCurrency),
		errors.Is(err, domain.ErrInvalidOrder),
		errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNoSuchOrder):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
