package ibgw

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// PriceHandler receives streamed last-price updates.
type PriceHandler func(symbol string, price decimal.Decimal, at time.Time)

// Stream is a market data stream over the gateway websocket endpoint.
// It subscribes to last-price updates for a fixed symbol set and pushes
// them to a handler; the handler must not block.
type Stream struct {
	client  *Client
	wsURL   string
	symbols []string
	handler PriceHandler

	mu            sync.Mutex
	conn          *websocket.Conn
	connected     bool
	reconnectWait time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStream creates a market data stream. gatewayURL uses the same host as
// the REST client; ws(s) scheme is derived from it.
func NewStream(client *Client, gatewayURL string, symbols []string, handler PriceHandler) *Stream {
	wsURL := strings.TrimSuffix(gatewayURL, "/")
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	return &Stream{
		client:        client,
		wsURL:         wsURL + "/v1/api/ws",
		symbols:       symbols,
		handler:       handler,
		reconnectWait: 5 * time.Second,
	}
}

// Start connects and runs the read loop until ctx is done, reconnecting
// on failures.
func (s *Stream) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			if loopCtx.Err() != nil {
				return
			}
			if err := s.runOnce(loopCtx); err != nil && loopCtx.Err() == nil {
				log.Warnf("market stream disconnected: %v (reconnecting in %v)", err, s.reconnectWait)
			}
			select {
			case <-loopCtx.Done():
				return
			case <-time.After(s.reconnectWait):
			}
		}
	}()
}

// Stop closes the stream and waits for the read loop to exit.
func (s *Stream) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Stream) runOnce(ctx context.Context) error {
	dialer := websocket.Dialer{
		TLSClientConfig:  &tls.Config{InsecureSkipVerify: true},
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return errors.Wrap(err, "dial failed")
	}
	defer conn.Close()

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()
	}()

	// subscribe: smd+<conid>+{"fields":["31"]}
	for _, symbol := range s.symbols {
		conid, err := s.client.resolveConid(ctx, symbol)
		if err != nil {
			log.Warnf("skip subscribe, conid lookup failed: symbol=%s err=%v", symbol, err)
			continue
		}
		msg := fmt.Sprintf(`smd+%d+{"fields":["31"]}`, conid)
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			return errors.Wrap(err, "subscribe failed")
		}
	}

	// the gateway drops silent sessions; tickle over REST keeps auth alive
	// while "tic" keeps the socket alive
	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ping.C:
				s.mu.Lock()
				c := s.conn
				s.mu.Unlock()
				if c == nil {
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, []byte("tic")); err != nil {
					return
				}
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "read failed")
		}
		s.dispatch(raw)
	}
}

type streamMessage struct {
	Topic     string `json:"topic"`
	Conid     int64  `json:"conid"`
	LastPrice string `json:"31"`
}

func (s *Stream) dispatch(raw []byte) {
	var msg streamMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return // non-JSON heartbeats are expected
	}
	if !strings.HasPrefix(msg.Topic, "smd+") || msg.LastPrice == "" {
		return
	}

	symbol := s.symbolForConid(msg.Conid)
	if symbol == "" {
		return
	}
	price, err := decimal.NewFromString(strings.TrimLeft(msg.LastPrice, "CH"))
	if err != nil {
		return
	}
	if s.handler != nil {
		s.handler(symbol, price, time.Now())
	}
}

// symbolForConid reverse-maps a conid through the client's cache.
func (s *Stream) symbolForConid(conid int64) string {
	for _, symbol := range s.symbols {
		if cached, ok := s.client.conids.Get(symbol); ok && cached == conid {
			return symbol
		}
	}
	return ""
}
