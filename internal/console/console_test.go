package console

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EgorLis/ethrpc/internal/rpclient"
)

// fakeNode — транспорт, который сам отвечает на запросы
type fakeNode struct {
	mu     sync.Mutex
	h      rpclient.Handler
	params map[string][]any
	raw    map[string]string // params как пришли по проводу
	head   uint64
}

func (n *fakeNode) Connect(_ context.Context, h rpclient.Handler) error {
	n.mu.Lock()
	n.h = h
	n.mu.Unlock()
	h.OnConnected()
	return nil
}

func (n *fakeNode) Send(data []byte) error {
	var req struct {
		ID     uint64 `json:"id"`
		Method string `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}
	var params []any
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return err
	}
	n.mu.Lock()
	n.params[req.Method] = params
	n.raw[req.Method] = string(req.Params)
	n.head++
	head := n.head
	h := n.h
	n.mu.Unlock()
	if h == nil {
		return rpclient.ErrNotConnected
	}

	var resp string
	switch req.Method {
	case "eth_getBalance":
		resp = `{"jsonrpc":"2.0","id":%d,"result":"0x1bc16d674ec80000"}`
	case "eth_getBlockByNumber":
		resp = `{"jsonrpc":"2.0","id":%d,"result":{"number":"0x10","transactions":[]}}`
	case "eth_blockNumber":
		resp = `{"jsonrpc":"2.0","id":%d,"result":"` + hexNum(head) + `"}`
	default:
		resp = `{"jsonrpc":"2.0","id":%d,"error":{"code":-32601,"message":"method not found"}}`
	}
	// ответ приходит двумя кусками
	msg := []byte(strings.Replace(resp, "%d", jsonNum(req.ID), 1))
	go func() {
		h.OnChunk(msg[:len(msg)/2])
		h.OnChunk(msg[len(msg)/2:])
	}()
	return nil
}

func (n *fakeNode) Close() error {
	n.mu.Lock()
	h := n.h
	n.h = nil
	n.mu.Unlock()
	if h != nil {
		h.OnDisconnected(nil)
	}
	return nil
}

func (n *fakeNode) sent(method string) []any {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.params[method]
}

func (n *fakeNode) sentRaw(method string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.raw[method]
}

func jsonNum(v uint64) string { return new(big.Int).SetUint64(v).String() }
func hexNum(v uint64) string  { return "0x" + new(big.Int).SetUint64(v).Text(16) }

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestConsole(t *testing.T) (*Console, *fakeNode, *syncBuffer, *Store) {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "conf", "ethrpc.json"))
	require.NoError(t, err)

	node := &fakeNode{params: map[string][]any{}, raw: map[string]string{}}
	client, err := rpclient.New("ws://node.test", rpclient.WithTransport(node))
	require.NoError(t, err)

	out := &syncBuffer{}
	c := New(client, store, out, nil)
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.WaitConnected(context.Background()))
	t.Cleanup(c.Stop)
	return c, node, out, store
}

func TestConsoleCallWithAlias(t *testing.T) {
	c, node, out, _ := newTestConsole(t)
	ctx := context.Background()

	require.NoError(t, c.HandleCommand(ctx, "!alias golem 0x7da82c7ab4771ff031b66538d2fb9b0b047f6cf9"))
	require.NoError(t, c.HandleCommand(ctx, "eth_getBalance @golem latest"))

	assert.Equal(t, []any{"0x7da82c7ab4771ff031b66538d2fb9b0b047f6cf9", "latest"}, node.sent("eth_getBalance"))
	assert.Contains(t, out.String(), `"0x1bc16d674ec80000"`)
	assert.Contains(t, out.String(), "(2 ETH)")
}

func TestConsoleJSONParams(t *testing.T) {
	c, node, out, _ := newTestConsole(t)

	require.NoError(t, c.HandleCommand(context.Background(), `eth_getBlockByNumber ["latest", false]`))
	assert.Equal(t, []any{"latest", false}, node.sent("eth_getBlockByNumber"))
	assert.Contains(t, out.String(), `"number"`)
	assert.Contains(t, out.String(), `"0x10"`)
}

func TestConsoleErrors(t *testing.T) {
	c, _, _, _ := newTestConsole(t)
	ctx := context.Background()

	err := c.HandleCommand(ctx, "eth_nope")
	var re *rpclient.RPCError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, -32601, re.Code)

	assert.Error(t, c.HandleCommand(ctx, "!bogus"))
	assert.Error(t, c.HandleCommand(ctx, "eth_call [1,"))
	assert.ErrorIs(t, c.HandleCommand(ctx, "!quit"), errQuit)
	assert.NoError(t, c.HandleCommand(ctx, "   # comment"))
}

func TestConsoleRun(t *testing.T) {
	c, _, out, _ := newTestConsole(t)
	in := strings.NewReader("!state\neth_nope\n!pending\n!quit\neth_getBalance 0x1 latest\n")

	require.NoError(t, c.Run(context.Background(), in))
	s := out.String()
	assert.Contains(t, s, "connected")
	assert.Contains(t, s, "err: rpc error -32601: method not found")
	assert.Contains(t, s, "pending: 0")
	assert.NotContains(t, s, "ETH") // после !quit строки не читаются
}

func TestConsoleWatch(t *testing.T) {
	c, _, out, _ := newTestConsole(t)

	require.NoError(t, c.HandleCommand(context.Background(), "!watch start 10ms"))
	assert.True(t, c.Watching())
	require.Eventually(t, func() bool {
		return strings.Count(out.String(), "block #") >= 2
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, c.HandleCommand(context.Background(), "!watch stop"))
	assert.False(t, c.Watching())
	assert.Error(t, c.StartWatch(0))
}

func TestConsoleLostConnection(t *testing.T) {
	c, node, out, _ := newTestConsole(t)
	require.NoError(t, node.Close())

	assert.ErrorIs(t, c.HandleCommand(context.Background(), "eth_blockNumber"), rpclient.ErrNotConnected)
	assert.Contains(t, out.String(), "lost connection")
}

func TestStorePersistsAliases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ethrpc.json")
	s, err := OpenStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SetAlias("golem", "0x7da8"))
	require.NoError(t, s.SetAlias("tmp", "0x1"))
	require.NoError(t, s.DeleteAlias("tmp"))

	again, err := OpenStore(path)
	require.NoError(t, err)
	v, ok := again.Alias("golem")
	assert.True(t, ok)
	assert.Equal(t, "0x7da8", v)
	_, ok = again.Alias("tmp")
	assert.False(t, ok)
	assert.Equal(t, 12*time.Second, again.Settings().WatchEvery.Duration)
}

func TestParseParams(t *testing.T) {
	p, err := parseParams(`0xabc "two words" 1 true {"to":"0x1"} latest`)
	require.NoError(t, err)
	assert.Equal(t, []any{"0xabc", "two words", json.Number("1"), true, map[string]any{"to": "0x1"}, "latest"}, p)

	p, err = parseParams("")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestParseParamsKeepsLargeIntegers(t *testing.T) {
	p, err := parseParams("9007199254740993")
	require.NoError(t, err)
	assert.Equal(t, []any{json.Number("9007199254740993")}, p)

	p, err = parseParams(`[9007199254740993, {"gas": 18446744073709551615}]`)
	require.NoError(t, err)
	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `[9007199254740993, {"gas": 18446744073709551615}]`, string(b))
	assert.Contains(t, string(b), "18446744073709551615")

	_, err = parseParams("[1] trailing")
	assert.Error(t, err)
}

func TestConsoleSendsLargeIntegerAsTyped(t *testing.T) {
	c, node, _, _ := newTestConsole(t)

	require.NoError(t, c.HandleCommand(context.Background(), "eth_getBlockByNumber 9007199254740993 true"))
	assert.Equal(t, "[9007199254740993,true]", node.sentRaw("eth_getBlockByNumber"))
}

func TestFormatResult(t *testing.T) {
	out := formatResult("eth_x", json.RawMessage(`{"n":12345678901234567890,"hash":"0xab"}`))
	assert.Contains(t, out, "12345678901234567890")
	assert.Contains(t, out, `"0xab"`)

	out = formatResult("eth_x", json.RawMessage(`[1,2.5]`))
	assert.Contains(t, out, "2.5")

	out = formatResult("eth_getBalance", json.RawMessage(`"0x1bc16d674ec80000"`))
	assert.Contains(t, out, `"0x1bc16d674ec80000"`)
	assert.True(t, strings.HasSuffix(out, " (2 ETH)"))
}

func TestFormatEther(t *testing.T) {
	wei, _ := new(big.Int).SetString("1500000000000000001", 10)
	assert.Equal(t, "1.500000000000000001", FormatEther(wei))
	assert.Equal(t, "0", FormatEther(big.NewInt(0)))
}
