package ibgw

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/stockbot/gostock/internal/domain"
	"github.com/stockbot/gostock/pkg/cache"
	"github.com/stockbot/gostock/pkg/ratelimit"
)

var log = logrus.WithField("component", "ibgw")

// Client talks to a locally running IB Client Portal gateway.
// The gateway terminates the actual broker session; this client only does
// thin REST plumbing (account summary, positions, order submit, tickle).
type Client struct {
	http      *resty.Client
	accountID string

	// the gateway drops sessions that exceed ~10 req/s
	limiter *ratelimit.TokenBucket

	// contract id lookups are immutable per symbol, cache them
	conids *cache.InMemoryCache[string, int64]
}

// NewClient creates a gateway client. The gateway serves a self-signed
// certificate on localhost, so TLS verification is disabled here.
func NewClient(gatewayURL, accountID string) *Client {
	base := strings.TrimSuffix(gatewayURL, "/")
	http := resty.New().
		SetBaseURL(base).
		SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}).
		SetTimeout(15 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second)

	return &Client{
		http:      http,
		accountID: accountID,
		limiter:   ratelimit.NewTokenBucket(10, 10),
		conids:    cache.NewInMemoryCache[string, int64](24 * time.Hour),
	}
}

// Tickle keeps the gateway session alive. Call it periodically; the session
// expires after a few minutes of silence.
func (c *Client) Tickle(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	resp, err := c.http.R().SetContext(ctx).Post("/v1/api/tickle")
	if err != nil {
		return errors.Wrap(err, "tickle request failed")
	}
	if resp.IsError() {
		return errors.Errorf("tickle returned %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

type accountSummaryResponse struct {
	AvailableFunds struct {
		Amount float64 `json:"amount"`
	} `json:"availablefunds"`
	NetLiquidation struct {
		Amount float64 `json:"amount"`
	} `json:"netliquidation"`
}

// GetAccountBalance returns a balance snapshot from the portfolio summary.
// Net liquidation value is the balance the risk engine tracks.
func (c *Client) GetAccountBalance(ctx context.Context) (domain.AccountSnapshot, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.AccountSnapshot{}, err
	}
	var out accountSummaryResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("/v1/api/portfolio/%s/summary", c.accountID))
	if err != nil {
		return domain.AccountSnapshot{}, errors.Wrap(err, "account summary request failed")
	}
	if resp.IsError() {
		return domain.AccountSnapshot{}, errors.Errorf("account summary returned %d: %s", resp.StatusCode(), resp.String())
	}
	return domain.AccountSnapshot{
		Balance:   decimal.NewFromFloat(out.NetLiquidation.Amount),
		Timestamp: time.Now(),
	}, nil
}

type gatewayPosition struct {
	Conid       int64   `json:"conid"`
	ContractDesc string `json:"contractDesc"`
	Ticker      string  `json:"ticker"`
	Position    float64 `json:"position"`
	AvgCost     float64 `json:"avgCost"`
	MktPrice    float64 `json:"mktPrice"`
}

// GetOpenPositions returns all non-flat positions for the account.
func (c *Client) GetOpenPositions(ctx context.Context) (map[string]domain.Position, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var rows []gatewayPosition
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&rows).
		Get(fmt.Sprintf("/v1/api/portfolio/%s/positions/0", c.accountID))
	if err != nil {
		return nil, errors.Wrap(err, "positions request failed")
	}
	if resp.IsError() {
		return nil, errors.Errorf("positions returned %d: %s", resp.StatusCode(), resp.String())
	}

	out := make(map[string]domain.Position, len(rows))
	for _, row := range rows {
		if row.Position == 0 {
			continue
		}
		symbol := row.Ticker
		if symbol == "" {
			symbol = row.ContractDesc
		}
		out[symbol] = domain.Position{
			Symbol:       symbol,
			Quantity:     decimal.NewFromFloat(row.Position),
			EntryPrice:   decimal.NewFromFloat(row.AvgCost),
			CurrentPrice: decimal.NewFromFloat(row.MktPrice),
		}
	}
	return out, nil
}

type secdefSearchRow struct {
	Conid       int64  `json:"conid"`
	Symbol      string `json:"symbol"`
	SecType     string `json:"secType"`
}

// resolveConid maps a ticker symbol to the gateway's contract id.
// Results never change for a listed stock, so they are cached.
func (c *Client) resolveConid(ctx context.Context, symbol string) (int64, error) {
	if conid, ok := c.conids.Get(symbol); ok {
		return conid, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	var rows []secdefSearchRow
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		SetResult(&rows).
		Get("/v1/api/iserver/secdef/search")
	if err != nil {
		return 0, errors.Wrapf(err, "secdef search failed for %s", symbol)
	}
	if resp.IsError() {
		return 0, errors.Errorf("secdef search returned %d for %s", resp.StatusCode(), symbol)
	}
	for _, row := range rows {
		if row.Symbol == symbol && (row.SecType == "" || row.SecType == "STK") {
			c.conids.Set(symbol, row.Conid, 0)
			return row.Conid, nil
		}
	}
	return 0, errors.Errorf("no contract found for symbol %s", symbol)
}

type marketSnapshotRow struct {
	Conid     int64  `json:"conid"`
	LastPrice string `json:"31"` // field 31 = last price
}

// GetLastPrice fetches a market data snapshot for the symbol.
func (c *Client) GetLastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	conid, err := c.resolveConid(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return decimal.Zero, err
	}
	var rows []marketSnapshotRow
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("conids", fmt.Sprintf("%d", conid)).
		SetQueryParam("fields", "31").
		SetResult(&rows).
		Get("/v1/api/iserver/marketdata/snapshot")
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "market snapshot failed for %s", symbol)
	}
	if resp.IsError() {
		return decimal.Zero, errors.Errorf("market snapshot returned %d for %s", resp.StatusCode(), symbol)
	}
	for _, row := range rows {
		if row.Conid != conid || row.LastPrice == "" {
			continue
		}
		// the gateway prefixes halted/closing prices with C/H
		raw := strings.TrimLeft(row.LastPrice, "CH")
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "bad last price %q for %s", row.LastPrice, symbol)
		}
		return price, nil
	}
	return decimal.Zero, errors.Errorf("no market data for symbol %s", symbol)
}

type orderRequest struct {
	Conid    int64   `json:"conid"`
	OrderType string `json:"orderType"`
	Side     string  `json:"side"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price,omitempty"`
	Tif      string  `json:"tif"`
	COID     string  `json:"cOID"`
}

type orderResponse struct {
	OrderID string `json:"order_id"`
	// the gateway may instead reply with a confirmation prompt; treated as
	// a rejection here since the bot never answers prompts
	ID      string `json:"id"`
	Message []string `json:"message"`
}

// PlaceOrder submits a limit order through the gateway.
// Confirmation prompts are not auto-acknowledged: an order that requires one
// comes back rejected and must be placed manually.
func (c *Client) PlaceOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	conid, err := c.resolveConid(ctx, order.Symbol)
	if err != nil {
		order.Status = domain.OrderStatusRejected
		return order, err
	}

	if order.ClientOrderID == "" {
		order.ClientOrderID = uuid.NewString()
	}
	order.CreatedAt = time.Now()

	if err := c.limiter.Wait(ctx); err != nil {
		order.Status = domain.OrderStatusRejected
		return order, err
	}
	req := orderRequest{
		Conid:     conid,
		OrderType: "LMT",
		Side:      string(order.Side),
		Quantity:  order.Quantity.InexactFloat64(),
		Price:     order.LimitPrice.InexactFloat64(),
		Tif:       "DAY",
		COID:      order.ClientOrderID,
	}

	var out []orderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{"orders": []orderRequest{req}}).
		SetResult(&out).
		Post(fmt.Sprintf("/v1/api/iserver/account/%s/orders", c.accountID))
	if err != nil {
		order.Status = domain.OrderStatusRejected
		return order, errors.Wrap(err, "order submit failed")
	}
	if resp.IsError() {
		order.Status = domain.OrderStatusRejected
		return order, errors.Errorf("order submit returned %d: %s", resp.StatusCode(), resp.String())
	}

	for _, row := range out {
		if row.OrderID != "" {
			order.Status = domain.OrderStatusPending
			log.Infof("order submitted: symbol=%s side=%s qty=%s orderID=%s",
				order.Symbol, order.Side, order.Quantity, row.OrderID)
			return order, nil
		}
		if len(row.Message) > 0 {
			order.Status = domain.OrderStatusRejected
			return order, errors.Errorf("order requires confirmation: %s", strings.Join(row.Message, "; "))
		}
	}
	order.Status = domain.OrderStatusRejected
	return order, errors.New("empty order response from gateway")
}
