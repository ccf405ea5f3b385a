package session

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/opentrade/tradefleet/pkg/log"
	"github.com/opentrade/tradefleet/pkg/metrics"
)

const (
	sendBuffer   = 32
	writeTimeout = 5 * time.Second

	// Inbound frame budget per connection: sustained 20/s, bursts of 40.
	// Heartbeats plus quality reports sit well under this; a runaway client
	// gets error frames instead of starving the reader.
	inboundRate  = rate.Limit(20)
	inboundBurst = 40
)

// closeDirective asks the writer goroutine to flush the given frames, send
// the close control frame, and tear the socket down.
type closeDirective struct {
	code   int
	reason string
	frames [][]byte
}

// deviceConn is one registered WebSocket device connection. All socket
// writes happen on the single writer goroutine, which keeps outbound
// ordering per device strict and avoids concurrent-writer hazards.
type deviceConn struct {
	deviceID string
	clientID string
	ws       *websocket.Conn

	send     chan []byte
	closeReq chan closeDirective
	limiter  *rate.Limiter

	// nil = all symbols; guarded by mu
	symbols map[string]bool
	muted   bool

	mu           sync.Mutex
	lastActivity time.Time

	closeOnce sync.Once
	done      chan struct{}
}

func newDeviceConn(deviceID, clientID string, ws *websocket.Conn) *deviceConn {
	return &deviceConn{
		deviceID:     deviceID,
		clientID:     clientID,
		ws:           ws,
		send:         make(chan []byte, sendBuffer),
		closeReq:     make(chan closeDirective, 1),
		limiter:      rate.NewLimiter(inboundRate, inboundBurst),
		lastActivity: time.Now().UTC(),
		done:         make(chan struct{}),
	}
}

// writeLoop drains the send channel onto the socket until the connection
// fails or a close directive arrives.
func (c *deviceConn) writeLoop() {
	for {
		select {
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.WithDeviceID(c.deviceID).Debug().Err(err).Msg("websocket write failed")
				c.abort()
				return
			}
		case d := <-c.closeReq:
			deadline := time.Now().Add(writeTimeout)
			for _, f := range d.frames {
				c.ws.SetWriteDeadline(deadline)
				_ = c.ws.WriteMessage(websocket.TextMessage, f)
			}
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(d.code, d.reason), deadline)
			c.abort()
			return
		case <-c.done:
			return
		}
	}
}

// enqueue queues a frame for the writer. Returns false when the buffer is
// full or the connection is closing; callers treat false as a dead
// connection.
func (c *deviceConn) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// sendFrame marshals and queues an outbound frame, recording the metric
func (c *deviceConn) sendFrame(frameType string, v interface{}) bool {
	ok := c.enqueue(marshalFrame(v))
	if ok {
		metrics.WSMessagesTotal.WithLabelValues("out", frameType).Inc()
	}
	return ok
}

func (c *deviceConn) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now().UTC()
	c.mu.Unlock()
}

// setSymbols replaces the connection's symbol filter (nil = all symbols)
func (c *deviceConn) setSymbols(symbols []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.muted = false
	if len(symbols) == 0 {
		c.symbols = nil
		return
	}
	c.symbols = make(map[string]bool, len(symbols))
	for _, s := range symbols {
		c.symbols[s] = true
	}
}

// mute stops exchange-data delivery until the next subscribe
func (c *deviceConn) mute() {
	c.mu.Lock()
	c.muted = true
	c.mu.Unlock()
}

func (c *deviceConn) wantsData() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.muted
}

func (c *deviceConn) wantsSymbol(symbol string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.muted {
		return false
	}
	return c.symbols == nil || c.symbols[symbol]
}

// closeWith asks the writer to flush the given frames, then close the
// socket with code and reason. Safe to call more than once; later calls are
// no-ops.
func (c *deviceConn) closeWith(code int, reason string, frames ...[]byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.closeReq <- closeDirective{code: code, reason: reason, frames: frames}:
	default:
		// A close is already queued.
	}
}

// abort tears the connection down without a close handshake
func (c *deviceConn) abort() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}
