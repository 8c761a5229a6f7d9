package rpclient

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func (t *wsTransport) readLoop(ctx context.Context, h Handler, conn *websocket.Conn) {
	// закрыть по отмене контекста
	go func() {
		select {
		case <-ctx.Done():
			_ = t.Close()
		case <-t.done:
		}
	}()

	backoff := t.cfg.MinBackoff.Duration
	for conn != nil {
		t.logger.Info("connected")
		h.OnConnected()

		err := t.pump(h, conn)
		t.closeConn()
		if t.closed.Load() {
			t.logger.Info("disconnected")
			h.OnDisconnected(nil)
			return
		}
		t.logger.Warn("connection lost", zap.Error(err))
		h.OnDisconnected(err)

		if !t.cfg.Reconnect {
			_ = t.Close()
			return
		}
		conn = t.reconnect(ctx, &backoff)
	}
}

// pump — читает фреймы до первой ошибки, text и binary одинаково идут в OnChunk
func (t *wsTransport) pump(h Handler, conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		h.OnChunk(data)
	}
}

// реконнект с backoff; nil — транспорт закрыт или ctx отменён
func (t *wsTransport) reconnect(ctx context.Context, backoff *time.Duration) *websocket.Conn {
	for !t.closed.Load() {
		select {
		case <-ctx.Done():
			return nil
		case <-t.done:
			return nil
		case <-time.After(*backoff):
		}

		conn, err := t.dialAndSetup(ctx)
		if err != nil {
			t.logger.Warn("reconnect failed", zap.Duration("wait", *backoff), zap.Error(err))
			*backoff = min(*backoff*2, t.cfg.MaxBackoff.Duration)
			continue
		}
		*backoff = t.cfg.MinBackoff.Duration
		return conn
	}
	return nil
}
