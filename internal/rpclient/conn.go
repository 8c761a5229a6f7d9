package rpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// wsTransport — Transport поверх gorilla/websocket. Границы фреймов для него
// просто границы кусков текста, к границам JSON-значений они отношения не имеют.
type wsTransport struct {
	url    string
	cfg    Config
	logger *zap.Logger
	dialer websocket.Dialer

	mu       sync.Mutex
	conn     *websocket.Conn
	pingStop chan struct{} // стоп-канал ping-горутины текущего соединения
	started  bool

	wmu      sync.Mutex // сериализует запись в websocket
	closed   atomic.Bool
	done     chan struct{}
	doneOnce sync.Once
}

func newWSTransport(u *url.URL, cfg Config, logger *zap.Logger) *wsTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &wsTransport{
		url:    u.String(),
		cfg:    cfg.withDefaults(),
		logger: logger.With(zap.String("transport", "websocket"), zap.String("url", u.Redacted())),
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		done: make(chan struct{}),
	}
}

// Connect — устанавливает WebSocket и запускает readLoop. Отмена ctx
// закрывает транспорт.
func (t *wsTransport) Connect(ctx context.Context, h Handler) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return errors.New("websocket transport already started")
	}
	t.started = true
	t.mu.Unlock()

	if t.closed.Load() {
		return ErrConnectionClosed
	}
	conn, err := t.dialAndSetup(ctx)
	if err != nil {
		t.mu.Lock()
		t.started = false
		t.mu.Unlock()
		return err
	}
	go t.readLoop(ctx, h, conn)
	return nil
}

func (t *wsTransport) Send(data []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	// запись строго через один мьютекс + write-deadline
	t.wmu.Lock()
	defer t.wmu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout.Duration))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write websocket: %w", err)
	}
	return nil
}

func (t *wsTransport) Close() error {
	t.closed.Store(true)
	t.doneOnce.Do(func() { close(t.done) })
	t.closeConn()
	return nil
}

// dial с установкой read limit, pong-handler'а, дедлайнов и запуском пингов
func (t *wsTransport) dialAndSetup(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := t.dialer.DialContext(ctx, t.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}
	conn.SetReadLimit(t.cfg.ReadLimit)

	every := t.cfg.PingInterval.Duration
	if every > 0 {
		wait := 3 * every
		_ = conn.SetReadDeadline(time.Now().Add(wait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wait))
		})
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	// Close мог прийти во время dial
	if t.closed.Load() {
		t.closeConn()
		return nil, ErrConnectionClosed
	}
	if every > 0 {
		t.startPing(conn, every)
	}
	return conn, nil
}

// безопасно закрыть текущее соединение
func (t *wsTransport) closeConn() {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.stopPingLocked()
	t.mu.Unlock()
	if conn == nil {
		return
	}

	t.wmu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"),
		time.Now().Add(500*time.Millisecond))
	t.wmu.Unlock()
	_ = conn.Close()
}

func (t *wsTransport) startPing(conn *websocket.Conn, every time.Duration) {
	stop := make(chan struct{})
	t.mu.Lock()
	t.stopPingLocked()
	t.pingStop = stop
	t.mu.Unlock()

	go func() {
		tick := time.NewTicker(every)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				t.wmu.Lock()
				err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(t.cfg.WriteTimeout.Duration))
				t.wmu.Unlock()
				if err != nil {
					t.logger.Debug("ping failed", zap.Error(err))
				}
			}
		}
	}()
}

func (t *wsTransport) stopPingLocked() {
	if t.pingStop != nil {
		close(t.pingStop)
		t.pingStop = nil
	}
}
