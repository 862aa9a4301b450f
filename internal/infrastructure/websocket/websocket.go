package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pot-code/go-elearning/internal/infrastructure/logging"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	HandshakeTimeout: 3 * time.Second,
}

// HeartbeatOption heartbeat timings. Lifetime bounds every connection, it is usually the
// server context so shutdown ends hijacked connections too.
type HeartbeatOption struct {
	WriteWait    time.Duration
	PongWait     time.Duration
	PingInterval time.Duration
	Lifetime     context.Context
}

func defaultHeartbeat() *HeartbeatOption {
	pongWait := 30 * time.Second
	return &HeartbeatOption{
		WriteWait:    10 * time.Second,
		PongWait:     pongWait,
		PingInterval: pongWait * 9 / 10,
		Lifetime:     context.Background(),
	}
}

// Conn server side connection, safe for one writer at a time through WriteJSON
type Conn struct {
	conn      *websocket.Conn
	writeWait time.Duration
	mu        sync.Mutex
}

// WriteJSON send v as a text frame
func (c *Conn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
	return c.conn.WriteJSON(v)
}

// Handler serves one connection, ctx is cancelled as soon as the peer goes away or the
// lifetime context ends
type Handler func(ctx context.Context, c echo.Context, conn *Conn) error

// WithHeartbeat wrap handler function with heartbeat probe. Inbound frames are discarded, a
// missing pong or a read error ends the connection.
func WithHeartbeat(handler Handler, options ...*HeartbeatOption) echo.HandlerFunc {
	hb := defaultHeartbeat()
	if len(options) > 0 {
		option := options[0]
		if option.WriteWait > 0 {
			hb.WriteWait = option.WriteWait
		}
		if option.PongWait > 0 {
			hb.PongWait = option.PongWait
		}
		if option.PingInterval > 0 {
			hb.PingInterval = option.PingInterval
		}
		if option.Lifetime != nil {
			hb.Lifetime = option.Lifetime
		}
	}
	return func(c echo.Context) error {
		ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			// the upgrader already replied
			return nil
		}
		defer ws.Close()

		logger := logging.ExtractLoggerFromContext(c.Request().Context())
		ctx, cancel := context.WithCancel(detach(c.Request().Context(), hb.Lifetime))
		defer cancel()

		go heartbeatRoutine(ctx, ws, hb)
		go readRoutine(ws, hb, cancel)

		conn := &Conn{conn: ws, writeWait: hb.WriteWait}
		if err := handler(ctx, c, conn); err != nil && ctx.Err() == nil {
			logger.Debug("Websocket handler stopped", zap.Error(err))
		}
		conn.mu.Lock()
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(hb.WriteWait))
		conn.mu.Unlock()
		return nil
	}
}

func heartbeatRoutine(ctx context.Context, conn *websocket.Conn, hb *HeartbeatOption) {
	ticker := time.NewTicker(hb.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(hb.WriteWait)); err != nil {
				return
			}
		}
	}
}

func readRoutine(conn *websocket.Conn, hb *HeartbeatOption, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadDeadline(time.Now().Add(hb.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(hb.PongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// detached keeps the values of the upgrade request, cancellation comes from lifetime
type detached struct {
	context.Context
	lifetime context.Context
}

func detach(ctx, lifetime context.Context) context.Context {
	return detached{Context: ctx, lifetime: lifetime}
}

func (d detached) Deadline() (time.Time, bool) { return d.lifetime.Deadline() }

func (d detached) Done() <-chan struct{} { return d.lifetime.Done() }

func (d detached) Err() error { return d.lifetime.Err() }
