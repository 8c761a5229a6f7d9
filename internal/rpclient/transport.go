package rpclient

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Handler — события транспорта. Все методы вызываются из одной горутины
// чтения, по порядку; OnChunk получает куски входящего текста как есть.
type Handler interface {
	OnConnected()
	OnChunk(chunk []byte)
	OnDisconnected(err error)
}

// Transport — граница между клиентом и сетью. Знает про адреса, рукопожатия,
// фрейминг и реконнект; ничего не знает про JSON-RPC.
type Transport interface {
	// Connect устанавливает соединение и начинает доставку событий в h.
	Connect(ctx context.Context, h Handler) error
	Send(data []byte) error
	Close() error
}

// NewTransport — выбирает транспорт по схеме адреса. Поддерживаются только
// ws: и wss:, для остальных сразу ErrUnsupportedTransport.
func NewTransport(rawURL string, cfg Config, logger *zap.Logger) (Transport, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedTransport, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
		return newWSTransport(u, cfg, logger), nil
	case "http", "https":
		return nil, fmt.Errorf("%w: HTTP transport not supported yet", ErrUnsupportedTransport)
	default:
		return nil, fmt.Errorf("%w: IPC transport not supported yet (%q)", ErrUnsupportedTransport, rawURL)
	}
}
