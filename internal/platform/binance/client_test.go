package binance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/adshao/go-binance/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbeng/triarb/internal/domain"
)

// Mock implementations of the service interfaces.

type mockExchangeInfoService struct {
	info *binance.ExchangeInfo
	err  error
}

func (m *mockExchangeInfoService) Do(ctx context.Context) (*binance.ExchangeInfo, error) {
	return m.info, m.err
}

type mockGetAccountService struct {
	account *binance.Account
	err     error
}

func (m *mockGetAccountService) Do(ctx context.Context) (*binance.Account, error) {
	return m.account, m.err
}

type mockCreateOrderService struct {
	symbol      string
	side        binance.SideType
	orderType   binance.OrderType
	timeInForce binance.TimeInForceType
	quantity    string
	price       string

	response *binance.CreateOrderResponse
	err      error
}

func (m *mockCreateOrderService) Symbol(symbol string) CreateOrderService {
	m.symbol = symbol
	return m
}

func (m *mockCreateOrderService) Side(side binance.SideType) CreateOrderService {
	m.side = side
	return m
}

func (m *mockCreateOrderService) Type(orderType binance.OrderType) CreateOrderService {
	m.orderType = orderType
	return m
}

func (m *mockCreateOrderService) TimeInForce(tif binance.TimeInForceType) CreateOrderService {
	m.timeInForce = tif
	return m
}

func (m *mockCreateOrderService) Quantity(quantity string) CreateOrderService {
	m.quantity = quantity
	return m
}

func (m *mockCreateOrderService) Price(price string) CreateOrderService {
	m.price = price
	return m
}

func (m *mockCreateOrderService) Do(ctx context.Context) (*binance.CreateOrderResponse, error) {
	return m.response, m.err
}

type mockAPI struct {
	exchangeInfo *mockExchangeInfoService
	account      *mockGetAccountService
	createOrder  *mockCreateOrderService
}

func (m *mockAPI) NewExchangeInfoService() ExchangeInfoService { return m.exchangeInfo }
func (m *mockAPI) NewGetAccountService() GetAccountService     { return m.account }
func (m *mockAPI) NewCreateOrderService() CreateOrderService   { return m.createOrder }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRealAPIBuildsAdaptedServices(t *testing.T) {
	api := &realAPI{client: binance.NewClient("key", "secret")}

	assert.IsType(t, &realExchangeInfoService{}, api.NewExchangeInfoService())
	assert.IsType(t, &realGetAccountService{}, api.NewGetAccountService())
	assert.IsType(t, &realCreateOrderService{}, api.NewCreateOrderService())
}

func TestInstrumentsFiltersNonTradable(t *testing.T) {
	api := &mockAPI{
		exchangeInfo: &mockExchangeInfoService{
			info: &binance.ExchangeInfo{
				Symbols: []binance.Symbol{
					{Symbol: "BTCUSDT", Status: "TRADING", BaseAsset: "BTC", QuoteAsset: "USDT"},
					{Symbol: "OLDBTC", Status: "BREAK", BaseAsset: "OLD", QuoteAsset: "BTC"},
					{Symbol: "ETHBTC", Status: "TRADING", BaseAsset: "ETH", QuoteAsset: "BTC"},
				},
			},
		},
	}
	c := NewWithAPI(api, 0, testLogger())

	instruments, err := c.Instruments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Instrument{
		{Symbol: "BTCUSDT", Base: "BTC", Quote: "USDT"},
		{Symbol: "ETHBTC", Base: "ETH", Quote: "BTC"},
	}, instruments)
}

func TestInstrumentsFetchErrorIsFatal(t *testing.T) {
	api := &mockAPI{
		exchangeInfo: &mockExchangeInfoService{err: errors.New("503 service unavailable")},
	}
	c := NewWithAPI(api, 0, testLogger())

	_, err := c.Instruments(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exchange info")
}

func TestFreeBalance(t *testing.T) {
	api := &mockAPI{
		account: &mockGetAccountService{
			account: &binance.Account{
				Balances: []binance.Balance{
					{Asset: "BTC", Free: "0.5", Locked: "0"},
					{Asset: "USDT", Free: "1234.56", Locked: "10"},
				},
			},
		},
	}
	c := NewWithAPI(api, 0, testLogger())

	free, err := c.FreeBalance(context.Background(), "USDT")
	require.NoError(t, err)
	assert.Equal(t, 1234.56, free)

	free, err = c.FreeBalance(context.Background(), "DOGE")
	require.NoError(t, err)
	assert.Zero(t, free)
}

func TestSubmitOrderBuildsLimitGTC(t *testing.T) {
	cos := &mockCreateOrderService{
		response: &binance.CreateOrderResponse{
			Symbol:           "BTCUSDT",
			OrderID:          42,
			ClientOrderID:    "abc",
			TransactTime:     1700000000000,
			Price:            "20000",
			OrigQuantity:     "100",
			ExecutedQuantity: "0",
			Status:           binance.OrderStatusTypeNew,
		},
	}
	c := NewWithAPI(&mockAPI{createOrder: cos}, 0, testLogger())

	res, err := c.SubmitOrder(context.Background(), domain.LegRequest{
		Symbol:   "BTCUSDT",
		Side:     domain.OrderSideBuy,
		Price:    20000,
		Quantity: 100.7,
	})
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", cos.symbol)
	assert.Equal(t, binance.SideTypeBuy, cos.side)
	assert.Equal(t, binance.OrderTypeLimit, cos.orderType)
	assert.Equal(t, binance.TimeInForceTypeGTC, cos.timeInForce)
	assert.Equal(t, "100", cos.quantity, "quantity must be truncated to the configured precision")
	assert.Equal(t, "20000", cos.price)

	assert.Equal(t, int64(42), res.OrderID)
	assert.Equal(t, "NEW", res.Status)
	assert.Equal(t, domain.OrderSideBuy, res.Side)
	assert.Equal(t, 20000.0, res.Price)
	assert.Equal(t, int64(1700000000), res.TransactTime.Unix())
}

func TestSubmitOrderSellSideAndPrecision(t *testing.T) {
	cos := &mockCreateOrderService{
		response: &binance.CreateOrderResponse{Symbol: "ETHUSDT", OrderID: 7, Status: binance.OrderStatusTypeNew},
	}
	c := NewWithAPI(&mockAPI{createOrder: cos}, 3, testLogger())

	_, err := c.SubmitOrder(context.Background(), domain.LegRequest{
		Symbol:   "ETHUSDT",
		Side:     domain.OrderSideSell,
		Price:    1000.5,
		Quantity: 0.123456,
	})
	require.NoError(t, err)
	assert.Equal(t, binance.SideTypeSell, cos.side)
	assert.Equal(t, "0.123", cos.quantity)
	assert.Equal(t, "1000.5", cos.price)
}

func TestSubmitOrderError(t *testing.T) {
	cos := &mockCreateOrderService{err: errors.New("insufficient balance")}
	c := NewWithAPI(&mockAPI{createOrder: cos}, 0, testLogger())

	_, err := c.SubmitOrder(context.Background(), domain.LegRequest{
		Symbol:   "BTCUSDT",
		Side:     domain.OrderSideBuy,
		Price:    20000,
		Quantity: 1,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient balance")
}
