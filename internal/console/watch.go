package console

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// StartWatch — опрос eth_blockNumber каждые every; новые блоки печатаются.
// Если уже запущен, просто меняет интервал со следующего перезапуска.
func (c *Console) StartWatch(every time.Duration) error {
	if every <= 0 {
		return errors.New("watch: interval must be positive")
	}
	c.wMu.Lock()
	defer c.wMu.Unlock()

	c.wEvery = every
	if c.wRunning {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.wCancel = cancel
	c.wRunning = true
	c.wDone = make(chan struct{})

	go c.watchLoop(ctx, every, c.wDone)
	return nil
}

func (c *Console) StopWatch() {
	c.wMu.Lock()
	if !c.wRunning {
		c.wMu.Unlock()
		return
	}
	c.wRunning = false
	c.wCancel()
	done := c.wDone
	c.wMu.Unlock()
	<-done
}

func (c *Console) Watching() bool {
	c.wMu.Lock()
	defer c.wMu.Unlock()
	return c.wRunning
}

func (c *Console) watchEvery() time.Duration {
	c.wMu.Lock()
	defer c.wMu.Unlock()
	return c.wEvery
}

// watchLoop — живёт, пока не вызовут StopWatch
func (c *Console) watchLoop(ctx context.Context, every time.Duration, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(every)
	defer t.Stop()

	var last uint64
	for {
		// первый опрос сразу, дальше по тикеру
		c.pollHead(ctx, every, &last)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (c *Console) pollHead(ctx context.Context, timeout time.Duration, last *uint64) {
	call := c.current()
	if call == nil {
		// нет соединения — ждём следующего тика
		return
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	n, err := call.BlockNumber(pctx)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("watch: eth_blockNumber failed", zap.Error(err))
		}
		return
	}
	if n != *last {
		*last = n
		c.println(fmt.Sprintf("block #%d", n))
	}
}
