package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed between messages before the connection
	// is considered dead. The all-market stream emits every second, so a
	// quiet minute means the feed is gone.
	pongWait = 60 * time.Second

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second

	// allMiniTickerPath is the all-market mini-ticker stream, delivering the
	// latest price of every symbol that traded in the last second.
	allMiniTickerPath = "/ws/!miniTicker@arr"
)

// TickHandler is called for every price tick received on the stream.
type TickHandler func(symbol string, price float64)

// WSClient is a WebSocket client for the Binance all-market ticker stream.
// It reconnects with exponential backoff and keeps delivering ticks until
// closed.
type WSClient struct {
	baseURL string
	conn    *websocket.Conn

	// backoff is the base reconnect delay, reconnectDelay unless overridden
	// in tests.
	backoff time.Duration

	mu     sync.RWMutex
	closed bool

	tickHandlers []TickHandler
	handlerMu    sync.RWMutex

	// done is closed when the client shuts down.
	done chan struct{}
}

// NewWSClient creates a new stream client.
//
// baseURL is the WebSocket endpoint, e.g. "wss://stream.binance.com:9443".
func NewWSClient(baseURL string) *WSClient {
	return &WSClient{
		baseURL: baseURL,
		backoff: reconnectDelay,
		done:    make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the read loop.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("binance/ws: client is closed")
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.baseURL+allMiniTickerPath, nil)
	if err != nil {
		return fmt.Errorf("binance/ws: connect: %w", err)
	}

	w.conn = conn

	// Binance pings every few minutes and expects a timely pong; gorilla's
	// default ping handler replies for us, we only refresh the deadline.
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.PongMessage, []byte(appData))
	})

	go w.readLoop(conn)

	return nil
}

// OnTick registers a handler that is called for every price tick.
func (w *WSClient) OnTick(handler TickHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.tickHandlers = append(w.tickHandlers, handler)
}

// Close shuts down the WebSocket connection.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	close(w.done)

	if w.conn != nil {
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return w.conn.Close()
	}

	return nil
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// readLoop continuously reads stream frames from conn and dispatches ticks
// to the registered handlers. On disconnect it attempts to reconnect with
// exponential backoff; the loop is restarted by reconnect -> Connect.
//
// The loop closes only the connection it was started with. By the time it
// runs the deferred close, reconnect may already have installed a successor
// under w.conn, which must stay open.
func (w *WSClient) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		select {
		case <-w.done:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			// Check if we've been shut down.
			select {
			case <-w.done:
				return
			default:
			}

			w.reconnect()
			return
		}

		conn.SetReadDeadline(time.Now().Add(pongWait))
		w.handleMessage(message)
	}
}

// handleMessage parses one stream frame. The all-market stream delivers an
// array of mini tickers; unparseable frames and unparseable prices are
// silently dropped.
func (w *WSClient) handleMessage(raw []byte) {
	var ticks []miniTicker
	if err := json.Unmarshal(raw, &ticks); err != nil {
		return
	}

	w.handlerMu.RLock()
	handlers := w.tickHandlers
	w.handlerMu.RUnlock()

	for _, tick := range ticks {
		price, err := strconv.ParseFloat(tick.Close, 64)
		if err != nil || price <= 0 {
			continue
		}
		for _, h := range handlers {
			h(tick.Symbol, price)
		}
	}
}

// reconnect attempts to re-establish the WebSocket connection with
// exponential backoff. It blocks until successful or the client is closed.
func (w *WSClient) reconnect() {
	delay := w.backoff

	for {
		select {
		case <-w.done:
			return
		default:
		}

		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := w.Connect(ctx)
		cancel()

		if err == nil {
			return
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}
