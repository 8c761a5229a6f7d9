package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/EgorLis/ethrpc/internal/rpclient"
)

// errQuit — команда !quit
var errQuit = errors.New("quit")

type Console struct {
	rpc    *rpclient.Client
	store  *Store
	logger *zap.Logger

	outMu sync.Mutex
	out   io.Writer

	mu     sync.Mutex
	call   rpclient.CallFunc // CallFunc текущего соединения, nil без соединения
	prompt bool

	// watch
	wMu      sync.Mutex
	wRunning bool
	wCancel  context.CancelFunc
	wEvery   time.Duration
	wDone    chan struct{}

	ready     chan struct{} // закрывается при первом подключении
	readyOnce sync.Once
	started   bool
}

func New(client *rpclient.Client, store *Store, out io.Writer, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{
		rpc:    client,
		store:  store,
		logger: logger,
		out:    out,
		wEvery: store.Settings().WatchEvery.Duration,
		ready:  make(chan struct{}),
	}
}

// SetPrompt — печатать "> " перед вводом (только для терминала).
func (c *Console) SetPrompt(on bool) {
	c.mu.Lock()
	c.prompt = on
	c.mu.Unlock()
}

// Start — вешает обработчики open/close и подключается.
func (c *Console) Start(ctx context.Context) error {
	if c == nil || c.rpc == nil {
		return errors.New("console: rpc client is not set")
	}
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("console: already started")
	}
	c.started = true
	c.mu.Unlock()

	c.rpc.OnOpen(func(call rpclient.CallFunc) {
		c.mu.Lock()
		c.call = call
		c.mu.Unlock()
		c.readyOnce.Do(func() { close(c.ready) })
		c.println("connected")
	})
	c.rpc.OnClose(func() {
		c.mu.Lock()
		c.call = nil
		c.mu.Unlock()
		c.println("lost connection")
	})
	return c.rpc.Connect(ctx)
}

// WaitConnected — ждёт первого подключения.
func (c *Console) WaitConnected(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop — останавливает watch и закрывает соединение; повторный вызов безопасен.
func (c *Console) Stop() {
	c.StopWatch()
	if err := c.rpc.Close(); err != nil {
		c.logger.Warn("close client", zap.Error(err))
	}
}

// Run — читает команды построчно до EOF, !quit или отмены ctx. Ошибки команд
// печатаются и не прерывают цикл.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 64<<10), 1<<20)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		c.showPrompt()
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			err := c.HandleCommand(ctx, line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				c.println("err:", err)
			}
		}
	}
}

func (c *Console) current() rpclient.CallFunc {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.call
}

func (c *Console) showPrompt() {
	c.mu.Lock()
	on := c.prompt
	c.mu.Unlock()
	if on {
		c.outMu.Lock()
		fmt.Fprint(c.out, "> ")
		c.outMu.Unlock()
	}
}

func (c *Console) println(a ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintln(c.out, a...)
}
