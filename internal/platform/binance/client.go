// Package binance wraps the Binance spot REST API and market-data stream:
// the instrument catalog, the account balance, order submission, and the
// all-market ticker WebSocket feed.
package binance

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"github.com/arbeng/triarb/internal/config"
	"github.com/arbeng/triarb/internal/domain"
)

// statusTrading is the catalog status of an instrument that is currently
// tradable; everything else is filtered out.
const statusTrading = "TRADING"

// Service interfaces abstract the go-binance request builders so the client
// can be exercised against mocks in tests.

// ExchangeInfoService fetches the venue's instrument catalog.
type ExchangeInfoService interface {
	Do(ctx context.Context) (*binance.ExchangeInfo, error)
}

// GetAccountService fetches the account snapshot including balances.
type GetAccountService interface {
	Do(ctx context.Context) (*binance.Account, error)
}

// CreateOrderService submits one order.
type CreateOrderService interface {
	Symbol(symbol string) CreateOrderService
	Side(side binance.SideType) CreateOrderService
	Type(orderType binance.OrderType) CreateOrderService
	TimeInForce(tif binance.TimeInForceType) CreateOrderService
	Quantity(quantity string) CreateOrderService
	Price(price string) CreateOrderService
	Do(ctx context.Context) (*binance.CreateOrderResponse, error)
}

// API abstracts the go-binance client for testing.
type API interface {
	NewExchangeInfoService() ExchangeInfoService
	NewGetAccountService() GetAccountService
	NewCreateOrderService() CreateOrderService
}

// realAPI wraps the actual binance.Client.
type realAPI struct {
	client *binance.Client
}

var _ API = (*realAPI)(nil)

func (r *realAPI) NewExchangeInfoService() ExchangeInfoService {
	return &realExchangeInfoService{service: r.client.NewExchangeInfoService()}
}

func (r *realAPI) NewGetAccountService() GetAccountService {
	return &realGetAccountService{service: r.client.NewGetAccountService()}
}

func (r *realAPI) NewCreateOrderService() CreateOrderService {
	return &realCreateOrderService{service: r.client.NewCreateOrderService()}
}

// realExchangeInfoService adapts the go-binance exchange info builder, whose
// Do takes variadic request options, to the ExchangeInfoService interface.
type realExchangeInfoService struct {
	service *binance.ExchangeInfoService
}

func (s *realExchangeInfoService) Do(ctx context.Context) (*binance.ExchangeInfo, error) {
	return s.service.Do(ctx)
}

// realGetAccountService adapts the go-binance account builder to the
// GetAccountService interface.
type realGetAccountService struct {
	service *binance.GetAccountService
}

func (s *realGetAccountService) Do(ctx context.Context) (*binance.Account, error) {
	return s.service.Do(ctx)
}

// realCreateOrderService adapts the fluent go-binance builder to the
// CreateOrderService interface.
type realCreateOrderService struct {
	service *binance.CreateOrderService
}

func (s *realCreateOrderService) Symbol(symbol string) CreateOrderService {
	s.service = s.service.Symbol(symbol)
	return s
}

func (s *realCreateOrderService) Side(side binance.SideType) CreateOrderService {
	s.service = s.service.Side(side)
	return s
}

func (s *realCreateOrderService) Type(orderType binance.OrderType) CreateOrderService {
	s.service = s.service.Type(orderType)
	return s
}

func (s *realCreateOrderService) TimeInForce(tif binance.TimeInForceType) CreateOrderService {
	s.service = s.service.TimeInForce(tif)
	return s
}

func (s *realCreateOrderService) Quantity(quantity string) CreateOrderService {
	s.service = s.service.Quantity(quantity)
	return s
}

func (s *realCreateOrderService) Price(price string) CreateOrderService {
	s.service = s.service.Price(price)
	return s
}

func (s *realCreateOrderService) Do(ctx context.Context) (*binance.CreateOrderResponse, error) {
	return s.service.Do(ctx)
}

// Client is the REST-side venue client. Every leg order it submits is a
// LIMIT order with good-till-cancelled time-in-force; quantities are
// truncated toward zero at the configured decimal precision before
// submission.
type Client struct {
	api           API
	sizePrecision int32
	logger        *slog.Logger
}

// New creates a Client from configuration, connecting to the real Binance
// REST API.
func New(cfg config.BinanceConfig, sizePrecision int32, logger *slog.Logger) *Client {
	bc := binance.NewClient(cfg.ApiKey, cfg.SecretKey)
	if cfg.BaseURL != "" {
		bc.BaseURL = cfg.BaseURL
	}
	return NewWithAPI(&realAPI{client: bc}, sizePrecision, logger)
}

// NewWithAPI creates a Client over an arbitrary API implementation. Tests use
// this to inject mocks.
func NewWithAPI(api API, sizePrecision int32, logger *slog.Logger) *Client {
	return &Client{
		api:           api,
		sizePrecision: sizePrecision,
		logger:        logger.With(slog.String("component", "binance")),
	}
}

// Instruments fetches the exchange catalog and returns every instrument that
// is currently tradable. The returned order is the catalog order, which the
// cycle generator relies on for deterministic output.
func (c *Client) Instruments(ctx context.Context) ([]domain.Instrument, error) {
	info, err := c.api.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance: exchange info: %w", err)
	}

	instruments := make([]domain.Instrument, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status != statusTrading {
			continue
		}
		instruments = append(instruments, domain.Instrument{
			Symbol: s.Symbol,
			Base:   s.BaseAsset,
			Quote:  s.QuoteAsset,
		})
	}
	return instruments, nil
}

// FreeBalance returns the account's free balance of the given asset, or 0
// when the asset does not appear in the account snapshot.
func (c *Client) FreeBalance(ctx context.Context, asset string) (float64, error) {
	account, err := c.api.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("binance: account: %w", err)
	}
	for _, b := range account.Balances {
		if b.Asset != asset {
			continue
		}
		free, err := strconv.ParseFloat(b.Free, 64)
		if err != nil {
			return 0, fmt.Errorf("binance: parse balance %s=%q: %w", asset, b.Free, err)
		}
		return free, nil
	}
	return 0, nil
}

// SubmitOrder submits one leg order and maps the venue response. The frozen
// decision price is sent verbatim; the quantity is truncated to the
// configured precision.
func (c *Client) SubmitOrder(ctx context.Context, leg domain.LegRequest) (domain.OrderResult, error) {
	side := binance.SideTypeBuy
	if leg.Side == domain.OrderSideSell {
		side = binance.SideTypeSell
	}

	quantity := decimal.NewFromFloat(leg.Quantity).Truncate(c.sizePrecision).String()
	price := decimal.NewFromFloat(leg.Price).String()

	res, err := c.api.NewCreateOrderService().
		Symbol(leg.Symbol).
		Side(side).
		Type(binance.OrderTypeLimit).
		TimeInForce(binance.TimeInForceTypeGTC).
		Quantity(quantity).
		Price(price).
		Do(ctx)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("binance: create order %s %s: %w", leg.Side, leg.Symbol, err)
	}

	return domain.OrderResult{
		OrderID:       res.OrderID,
		ClientOrderID: res.ClientOrderID,
		Symbol:        res.Symbol,
		Side:          leg.Side,
		Status:        string(res.Status),
		Price:         parseFloat(res.Price),
		OrigQuantity:  parseFloat(res.OrigQuantity),
		ExecutedQty:   parseFloat(res.ExecutedQuantity),
		TransactTime:  time.UnixMilli(res.TransactTime),
	}, nil
}

// parseFloat converts a venue decimal string, returning 0 on empty or
// malformed input rather than failing the whole order mapping.
func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
