// REST CLIENT FOR KITE CONNECT v3
// RESTY + RATE LIMIT, RETRIES ONLY ON READS
package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// -----------------------------
// CONFIG
// -----------------------------
const (
	defaultRetryAttempts   = 3
	defaultRetryBaseDelay  = 300 * time.Millisecond
	defaultRetryMaxBackoff = 3 * time.Second

	defaultKiteBaseURL = "https://api.kite.trade"
	kiteAPIVersion     = "3"

	kiteStatusComplete  = "COMPLETE"
	kiteStatusRejected  = "REJECTED"
	kiteStatusCancelled = "CANCELLED"
)

// -----------------------------
// API RESPONSE WRAPPER
// -----------------------------
type kiteEnvelope struct {
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	ErrorType string          `json:"error_type"`
	Data      json.RawMessage `json:"data"`
}

type kiteOrderID struct {
	OrderID string `json:"order_id"`
}

// KiteOrder is one entry of the order book or of an order's history.
type KiteOrder struct {
	OrderID         string          `json:"order_id"`
	Status          string          `json:"status"`
	StatusMessage   string          `json:"status_message"`
	Tag             string          `json:"tag"`
	TradingSymbol   string          `json:"tradingsymbol"`
	Exchange        string          `json:"exchange"`
	TransactionType string          `json:"transaction_type"`
	Quantity        int64           `json:"quantity"`
	FilledQuantity  int64           `json:"filled_quantity"`
	AveragePrice    decimal.Decimal `json:"average_price"`
}

// KitePosition is one row of /portfolio/positions.
type KitePosition struct {
	TradingSymbol string          `json:"tradingsymbol"`
	Exchange      string          `json:"exchange"`
	Product       string          `json:"product"`
	Quantity      int64           `json:"quantity"`
	AveragePrice  decimal.Decimal `json:"average_price"`
	LastPrice     decimal.Decimal `json:"last_price"`
	Pnl           decimal.Decimal `json:"pnl"`
}

type kitePositions struct {
	Net []KitePosition `json:"net"`
	Day []KitePosition `json:"day"`
}

// -----------------------------
// CLIENT
// -----------------------------
type KiteConnector struct {
	apiKey      string
	accessToken string
	baseURL     string

	http    *resty.Client // reads, retried
	orders  *resty.Client // order placement, never retried at transport level
	limiter *rate.Limiter

	pollInterval time.Duration
	pollAttempts int
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}

	code := r.StatusCode()
	if code >= 500 && code <= 599 {
		return true
	}
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}

func NewKiteConnector(apiKey, accessToken string, config Config) *KiteConnector {
	baseURL := strings.TrimRight(strings.TrimSpace(config.KiteBaseURL), "/")
	if baseURL == "" {
		baseURL = defaultKiteBaseURL
		logger.Warnf("No base URL provided, using default: %s", baseURL)
	}

	timeout := config.KiteHTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	reads := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(defaultRetryAttempts - 1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	orders := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)

	perSecond := config.KiteRatePerSecond
	if perSecond <= 0 {
		perSecond = 10
	}
	burst := config.KiteRateBurst
	if burst <= 0 {
		burst = 1
	}

	return &KiteConnector{
		apiKey:       apiKey,
		accessToken:  accessToken,
		baseURL:      baseURL,
		http:         reads,
		orders:       orders,
		limiter:      rate.NewLimiter(rate.Limit(perSecond), burst),
		pollInterval: config.KitePollInterval,
		pollAttempts: config.KitePollAttempts,
	}
}

// -----------------------------
// LOW-LEVEL REQUESTS
// -----------------------------
func (c *KiteConnector) doRequest(ctx context.Context, client *resty.Client, method, path string, form url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &TransientError{Code: "RATE_LIMIT_WAIT", Message: err.Error(), Err: err}
	}

	req := client.R().
		SetContext(ctx).
		SetHeader("X-Kite-Version", kiteAPIVersion).
		SetHeader("Authorization", "token "+c.apiKey+":"+c.accessToken)
	if form != nil {
		req = req.SetFormDataFromValues(form)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return &TransientError{Code: "NETWORK", Message: err.Error(), Err: err}
	}

	var env kiteEnvelope
	if jsonErr := json.Unmarshal(resp.Body(), &env); jsonErr != nil {
		if resp.StatusCode() != http.StatusOK {
			return kiteError(resp.StatusCode(), "", strings.TrimSpace(string(resp.Body())))
		}
		return &TransientError{Code: "DECODE", Message: jsonErr.Error(), Err: jsonErr}
	}

	if resp.StatusCode() != http.StatusOK || env.Status == "error" {
		return kiteError(resp.StatusCode(), env.ErrorType, env.Message)
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &TransientError{Code: "DECODE", Message: err.Error(), Err: err}
	}
	return nil
}

// -----------------------------
// BrokerGateway
// -----------------------------

// SubmitOrder places a regular order and waits for it to reach a final state.
func (c *KiteConnector) SubmitOrder(ctx context.Context, req OrderRequest) (*OrderAck, error) {
	orderID, err := c.PlaceOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.awaitFill(ctx, orderID)
}

// PlaceOrder places a regular order and returns its broker order id.
func (c *KiteConnector) PlaceOrder(ctx context.Context, req OrderRequest) (string, error) {
	if req.Quantity <= 0 {
		return "", &PermanentError{Code: "InputException", Message: "quantity must be positive"}
	}

	orderType := req.OrderType
	if orderType == "" {
		orderType = OrderTypeMarket
	}

	form := url.Values{}
	form.Set("tradingsymbol", req.Symbol)
	form.Set("exchange", req.Exchange)
	form.Set("transaction_type", req.Side)
	form.Set("order_type", orderType)
	form.Set("quantity", strconv.FormatInt(req.Quantity, 10))
	form.Set("product", req.Product)
	form.Set("validity", "DAY")
	if req.Tag != "" {
		form.Set("tag", req.Tag)
	}
	if orderType == OrderTypeLimit {
		form.Set("price", req.Price.String())
	}

	var placed kiteOrderID
	if err := c.doRequest(ctx, c.orders, http.MethodPost, "/orders/regular", form, &placed); err != nil {
		return "", err
	}
	if placed.OrderID == "" {
		return "", &TransientError{Code: "DECODE", Message: "order id missing from response"}
	}

	logger.WithFields(map[string]interface{}{
		"broker":   "kite",
		"order_id": placed.OrderID,
		"tag":      req.Tag,
		"symbol":   req.Symbol,
	}).Info("kite order placed")

	return placed.OrderID, nil
}

// AwaitOrder polls a placed order until it is final.
func (c *KiteConnector) AwaitOrder(ctx context.Context, brokerOrderID string) (*OrderAck, error) {
	return c.awaitFill(ctx, brokerOrderID)
}

// awaitFill polls the order history until the latest state is final.
func (c *KiteConnector) awaitFill(ctx context.Context, orderID string) (*OrderAck, error) {
	attempts := c.pollAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var last KiteOrder
	for i := 0; i < attempts; i++ {
		var history []KiteOrder
		if err := c.doRequest(ctx, c.http, http.MethodGet, "/orders/"+url.PathEscape(orderID), nil, &history); err != nil {
			return nil, err
		}
		if len(history) > 0 {
			last = history[len(history)-1]
		}

		switch last.Status {
		case kiteStatusComplete:
			return orderAck(last), nil
		case kiteStatusRejected, kiteStatusCancelled:
			return nil, &RejectedError{Code: last.Status, Message: last.StatusMessage}
		}

		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, &TransientError{Code: "ORDER_PENDING", Message: "order " + orderID + " not final before deadline", Err: ctx.Err()}
		case <-time.After(c.pollInterval):
		}
	}

	return nil, &TransientError{Code: "ORDER_PENDING", Message: fmt.Sprintf("order %s still %s", orderID, last.Status)}
}

func orderAck(o KiteOrder) *OrderAck {
	return &OrderAck{
		BrokerOrderID:  o.OrderID,
		Status:         o.Status,
		AveragePrice:   o.AveragePrice,
		FilledQuantity: o.FilledQuantity,
	}
}

// GetPosition returns the net position for an instrument or ErrPositionNotFound.
func (c *KiteConnector) GetPosition(ctx context.Context, symbol, exchange string) (*LivePosition, error) {
	var positions kitePositions
	if err := c.doRequest(ctx, c.http, http.MethodGet, "/portfolio/positions", nil, &positions); err != nil {
		return nil, err
	}

	for _, p := range positions.Net {
		if !strings.EqualFold(p.TradingSymbol, symbol) || !strings.EqualFold(p.Exchange, exchange) {
			continue
		}
		if p.Quantity == 0 {
			continue
		}
		return &LivePosition{
			Symbol:       p.TradingSymbol,
			Exchange:     p.Exchange,
			Quantity:     p.Quantity,
			AveragePrice: p.AveragePrice,
			LastPrice:    p.LastPrice,
			Pnl:          p.Pnl,
		}, nil
	}
	return nil, ErrPositionNotFound
}

func (c *KiteConnector) CancelOrder(ctx context.Context, brokerOrderID string) error {
	if brokerOrderID == "" {
		return &PermanentError{Code: "InputException", Message: "broker order id is required"}
	}
	return c.doRequest(ctx, c.orders, http.MethodDelete, "/orders/regular/"+url.PathEscape(brokerOrderID), nil, nil)
}

// CheckConnection validates the session by fetching the user profile.
func (c *KiteConnector) CheckConnection(ctx context.Context) error {
	var profile struct {
		UserID string `json:"user_id"`
	}
	if err := c.doRequest(ctx, c.http, http.MethodGet, "/user/profile", nil, &profile); err != nil {
		return err
	}
	if profile.UserID == "" {
		return &PermanentError{Code: "TokenException", Message: "empty profile"}
	}
	return nil
}

// FindOrderByTag looks for an order submitted with tag in today's order book.
// Orders still in flight are awaited; rejected ones surface as *RejectedError.
func (c *KiteConnector) FindOrderByTag(ctx context.Context, tag string) (*OrderAck, error) {
	if tag == "" {
		return nil, nil
	}

	var book []KiteOrder
	if err := c.doRequest(ctx, c.http, http.MethodGet, "/orders", nil, &book); err != nil {
		return nil, err
	}

	for i := len(book) - 1; i >= 0; i-- {
		o := book[i]
		if o.Tag != tag {
			continue
		}
		switch o.Status {
		case kiteStatusComplete:
			return orderAck(o), nil
		case kiteStatusRejected, kiteStatusCancelled:
			return nil, &RejectedError{Code: o.Status, Message: o.StatusMessage}
		default:
			return c.awaitFill(ctx, o.OrderID)
		}
	}
	return nil, nil
}

var (
	_ BrokerGateway = (*KiteConnector)(nil)
	_ OrderLookup   = (*KiteConnector)(nil)
	_ OrderPlacer   = (*KiteConnector)(nil)
)
