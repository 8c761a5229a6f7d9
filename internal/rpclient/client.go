package rpclient

import (
	"context"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State — состояние соединения клиента.
type State int32

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// CallFunc — вызов удалённого метода в рамках одного соединения. Возвращает
// ошибку только если запрос не ушёл; ответ приходит в cb.
type CallFunc func(method string, params []any, cb Callback) error

type Client struct {
	id        uuid.UUID
	url       string
	cfg       Config
	logger    *zap.Logger
	transport Transport

	mu      sync.Mutex
	state   State
	engine  *Engine
	onOpen  func(CallFunc)
	onClose func()
}

type Option func(*Client)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithConfig(cfg Config) Option {
	return func(c *Client) { c.cfg = cfg }
}

// WithTransport — свой транспорт вместо выбранного по схеме адреса.
func WithTransport(t Transport) Option {
	return func(c *Client) { c.transport = t }
}

// New — создаёт клиента. Неподдерживаемая схема адреса (не ws:/wss:) даёт
// ErrUnsupportedTransport сразу, без попытки соединения.
func New(rawURL string, opts ...Option) (*Client, error) {
	c := &Client{
		id:     uuid.New(),
		url:    rawURL,
		cfg:    DefaultConfig(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("conn", c.id.String()))

	if c.transport == nil {
		t, err := NewTransport(rawURL, c.cfg, c.logger)
		if err != nil {
			return nil, err
		}
		c.transport = t
	}
	return c, nil
}

// On — регистрация обработчиков по имени: "open" с func(CallFunc) и "close"
// с func(). Другие имена и неподходящие типы молча игнорируются.
func (c *Client) On(name string, handler any) {
	switch name {
	case "open":
		switch h := handler.(type) {
		case func(CallFunc):
			c.OnOpen(h)
		case func(func(string, []any, Callback) error):
			c.OnOpen(func(call CallFunc) { h(call) })
		}
	case "close":
		if h, ok := handler.(func()); ok {
			c.OnClose(h)
		}
	}
}

// OnOpen — вызывается при каждом подключении с CallFunc этого соединения.
// Обработчик выполняется в горутине чтения: долгую работу уносить в go.
func (c *Client) OnOpen(h func(CallFunc)) {
	c.mu.Lock()
	c.onOpen = h
	c.mu.Unlock()
}

// OnClose — вызывается при потере соединения.
func (c *Client) OnClose(h func()) {
	c.mu.Lock()
	c.onClose = h
	c.mu.Unlock()
}

func (c *Client) Connect(ctx context.Context) error {
	c.logger.Info("connecting", zap.String("url", redact(c.url)))
	return c.transport.Connect(ctx, (*clientEvents)(c))
}

func (c *Client) Close() error {
	return c.transport.Close()
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Call — вызов через текущее соединение.
func (c *Client) Call(method string, params []any, cb Callback) error {
	c.mu.Lock()
	eng := c.engine
	c.mu.Unlock()
	if eng == nil {
		return ErrNotConnected
	}
	_, err := eng.Call(method, params, cb)
	return err
}

// Pending — число вызовов текущего соединения, ждущих ответа.
func (c *Client) Pending() int {
	c.mu.Lock()
	eng := c.engine
	c.mu.Unlock()
	if eng == nil {
		return 0
	}
	return eng.Pending()
}

// clientEvents — Handler для транспорта; отдельный тип, чтобы не выставлять
// OnConnected/OnChunk/OnDisconnected в API клиента.
type clientEvents Client

func (h *clientEvents) OnConnected() {
	c := (*Client)(h)
	eng := NewEngine(c.transport.Send, c.logger)

	c.mu.Lock()
	prev := c.engine
	c.engine = eng
	c.state = Connected
	open := c.onOpen
	c.mu.Unlock()

	if prev != nil {
		prev.Close(nil)
	}
	if open != nil {
		open(eng.CallFunc())
	}
}

func (h *clientEvents) OnChunk(chunk []byte) {
	c := (*Client)(h)
	c.mu.Lock()
	eng := c.engine
	c.mu.Unlock()
	if eng != nil {
		eng.Feed(chunk)
	}
}

func (h *clientEvents) OnDisconnected(err error) {
	c := (*Client)(h)
	c.mu.Lock()
	eng := c.engine
	c.engine = nil
	was := c.state
	c.state = Disconnected
	closeFn := c.onClose
	c.mu.Unlock()

	if eng != nil {
		eng.Close(err)
	}
	if was == Connected && closeFn != nil {
		closeFn()
	}
}

func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}
