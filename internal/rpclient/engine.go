package rpclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/buger/jsonparser"
	"go.uber.org/zap"

	"github.com/EgorLis/ethrpc/internal/jsonstream"
)

// Callback — получает результат вызова либо ошибку (*RPCError для поля
// "error" ответа, ErrConnectionClosed при разрыве). Вызывается ровно один раз.
type Callback func(result json.RawMessage, err error)

// SendFunc — отдаёт сериализованный запрос транспорту.
type SendFunc func(data []byte) error

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type pendingCall struct {
	method string
	cb     Callback
}

// Engine — сопоставление запросов и ответов в рамках одного соединения.
// Парсер потока и таблица ожидающих вызовов защищены одним мьютексом;
// колбэки вызываются уже после его освобождения.
type Engine struct {
	send   SendFunc
	logger *zap.Logger

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]pendingCall
	parser  *jsonstream.Parser
	closed  bool
}

func NewEngine(send SendFunc, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		send:    send,
		logger:  logger,
		pending: make(map[uint64]pendingCall),
		parser:  jsonstream.New(),
	}
}

// Call — выделяет следующий id, регистрирует ожидающий вызов и отправляет
// запрос. Если отправка не удалась, вызов снимается с учёта, колбэк не
// вызывается, ошибка возвращается. Исключение: если Close успел разрешить
// вызов раньше, чем отправка вернула ошибку, исход уже отдан колбэку и Call
// возвращает nil.
func (e *Engine) Call(method string, params []any, cb Callback) (uint64, error) {
	if params == nil {
		params = []any{}
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return 0, ErrConnectionClosed
	}
	e.nextID++
	id := e.nextID
	data, err := json.Marshal(request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		e.mu.Unlock()
		return 0, fmt.Errorf("encode %s request: %w", method, err)
	}
	e.pending[id] = pendingCall{method: method, cb: cb}
	e.mu.Unlock()

	if err := e.send(data); err != nil {
		e.mu.Lock()
		_, owned := e.pending[id]
		delete(e.pending, id)
		e.mu.Unlock()
		if !owned {
			return id, nil
		}
		return 0, fmt.Errorf("send %s: %w", method, err)
	}
	e.logger.Debug("request sent", zap.Uint64("id", id), zap.String("method", method))
	return id, nil
}

// CallFunc — Call, привязанный к этому соединению.
func (e *Engine) CallFunc() CallFunc {
	return func(method string, params []any, cb Callback) error {
		_, err := e.Call(method, params, cb)
		return err
	}
}

// Feed — пропускает кусок входящего потока через парсер и разрешает
// ожидающие вызовы по каждому полученному значению.
func (e *Engine) Feed(chunk []byte) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	values, perr := e.parser.Feed(chunk)
	fire := make([]func(), 0, len(values))
	for _, v := range values {
		if f := e.resolveLocked(v); f != nil {
			fire = append(fire, f)
		}
	}
	e.mu.Unlock()

	if perr != nil {
		e.logger.Warn("dropped malformed inbound value", zap.Error(perr))
	}
	for _, f := range fire {
		f()
	}
}

// OnValue — разрешает ожидающий вызов по одному уже разобранному значению.
// Значения без id, с неизвестным id и повторные ответы отбрасываются молча.
func (e *Engine) OnValue(v json.RawMessage) {
	e.mu.Lock()
	f := e.resolveLocked(v)
	e.mu.Unlock()
	if f != nil {
		f()
	}
}

func (e *Engine) resolveLocked(v []byte) func() {
	id, ok := responseID(v)
	if !ok {
		return nil
	}
	pc, found := e.pending[id]
	if !found {
		e.logger.Debug("unmatched response", zap.Uint64("id", id))
		return nil
	}
	delete(e.pending, id)

	result, err := decodeResponse(v)
	e.logger.Debug("response", zap.Uint64("id", id), zap.String("method", pc.method), zap.Bool("rpc_error", err != nil))
	if pc.cb == nil {
		return nil
	}
	return func() { pc.cb(result, err) }
}

// Close — таблица ожидающих вызовов сбрасывается, каждый оставшийся колбэк
// получает ErrConnectionClosed (в порядке id). Повторный Close ничего не делает.
func (e *Engine) Close(cause error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	pending := e.pending
	e.pending = make(map[uint64]pendingCall)
	e.parser.Reset()
	e.mu.Unlock()

	err := ErrConnectionClosed
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrConnectionClosed, cause)
	}
	if len(pending) > 0 {
		e.logger.Info("failing pending calls", zap.Int("count", len(pending)), zap.Error(cause))
	}
	for _, id := range slices.Sorted(maps.Keys(pending)) {
		if cb := pending[id].cb; cb != nil {
			cb(nil, err)
		}
	}
}

func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// id принимается только целым неотрицательным числом
func responseID(v []byte) (uint64, bool) {
	raw, typ, _, err := jsonparser.Get(v, "id")
	if err != nil || typ != jsonparser.Number {
		return 0, false
	}
	n, err := jsonparser.ParseInt(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return uint64(n), true
}

func decodeResponse(v []byte) (json.RawMessage, error) {
	if raw, typ, err := rawField(v, "error"); err == nil && typ != jsonparser.Null {
		return nil, decodeRPCError(raw, typ)
	}
	raw, _, err := rawField(v, "result")
	if err != nil {
		return json.RawMessage("null"), nil
	}
	return raw, nil
}

func decodeRPCError(raw []byte, typ jsonparser.ValueType) error {
	if typ == jsonparser.Object {
		var re RPCError
		if err := json.Unmarshal(raw, &re); err == nil {
			return &re
		}
	}
	if typ == jsonparser.String {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return &RPCError{Message: s}
		}
	}
	return &RPCError{Message: string(raw)}
}

// rawField — значение поля как есть, строки вместе с кавычками.
func rawField(data []byte, key string) (json.RawMessage, jsonparser.ValueType, error) {
	val, typ, end, err := jsonparser.Get(data, key)
	if err != nil {
		return nil, typ, err
	}
	if typ == jsonparser.String {
		// jsonparser снимает кавычки; end указывает за закрывающую
		val = data[end-len(val)-2 : end]
	}
	return json.RawMessage(bytes.Clone(val)), typ, nil
}
