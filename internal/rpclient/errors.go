package rpclient

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedTransport — схема адреса не ws:/wss:. Возвращается из New,
	// до любой попытки соединения.
	ErrUnsupportedTransport = errors.New("unsupported transport")
	// ErrConnectionClosed — соединение закрыто, ожидающий вызов не получит ответа.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrNotConnected — вызов или запись без активного соединения.
	ErrNotConnected = errors.New("not connected")
)

// RPCError — поле "error" ответа. Это нормальный исход вызова, а не сбой клиента.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("rpc error %d: %s (%s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}
