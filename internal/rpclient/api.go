package rpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ========================= high-level API  =========================

// Await — синхронная обёртка над колбэком (как промис в JS). Отмена ctx
// прекращает только ожидание: сам вызов остаётся в таблице до ответа или
// разрыва. Нельзя вызывать из обработчика OnOpen или из колбэка.
func (call CallFunc) Await(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	type reply struct {
		result json.RawMessage
		err    error
	}
	ch := make(chan reply, 1)

	err := call(method, params, func(result json.RawMessage, err error) {
		ch <- reply{result, err}
	})
	if err != nil {
		return nil, err
	}

	select {
	case r := <-ch:
		return r.result, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", method, ctx.Err())
	}
}

func (call CallFunc) BlockNumber(ctx context.Context) (uint64, error) {
	var n hexutil.Uint64
	if err := call.awaitInto(ctx, &n, "eth_blockNumber"); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

func (call CallFunc) ChainID(ctx context.Context) (*big.Int, error) {
	var id hexutil.Big
	if err := call.awaitInto(ctx, &id, "eth_chainId"); err != nil {
		return nil, err
	}
	return id.ToInt(), nil
}

// GetBalance — баланс в wei; block — "latest", "pending" или номер в hex.
func (call CallFunc) GetBalance(ctx context.Context, address, block string) (*big.Int, error) {
	if block == "" {
		block = "latest"
	}
	var bal hexutil.Big
	if err := call.awaitInto(ctx, &bal, "eth_getBalance", address, block); err != nil {
		return nil, err
	}
	return bal.ToInt(), nil
}

func (call CallFunc) awaitInto(ctx context.Context, out any, method string, params ...any) error {
	raw, err := call.Await(ctx, method, params...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}
