package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/EgorLis/ethrpc/internal/console"
	"github.com/EgorLis/ethrpc/internal/rpclient"
)

const defaultURL = "ws://localhost:8546"

type globalFlags struct {
	URL     string
	Config  string
	Debug   bool
	Timeout time.Duration
}

var flags globalFlags

var rootCmd = &cobra.Command{
	Use:   "ethrpc",
	Short: "JSON-RPC клиент узла Ethereum по WebSocket",
	Long: `ethrpc — клиент JSON-RPC 2.0 поверх ws:// и wss://.

  ethrpc call eth_blockNumber
  ethrpc balance 0x... latest
  ethrpc console
  ethrpc watch 12s`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flags.URL, "url", "", "адрес узла (по умолчанию из конфига или "+defaultURL+")")
	rootCmd.PersistentFlags().StringVar(&flags.Config, "config", "conf/ethrpc.json", "файл настроек")
	rootCmd.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "подробные логи")
	rootCmd.PersistentFlags().DurationVar(&flags.Timeout, "timeout", 30*time.Second, "ожидание подключения и ответа (call, balance)")

	rootCmd.AddCommand(callCmd, balanceCmd, consoleCmd, watchCmd)
}

func newLogger() (*zap.Logger, error) {
	if flags.Debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// session — всё, что нужно любой подкоманде: логгер, настройки, клиент и консоль.
type session struct {
	logger  *zap.Logger
	store   *console.Store
	console *console.Console
}

func openSession() (*session, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}
	store, err := console.OpenStore(flags.Config)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg := store.Settings().RPC
	url := flags.URL
	if url == "" {
		url = cfg.URL
	}
	if url == "" {
		url = defaultURL
	}

	client, err := rpclient.New(url, rpclient.WithConfig(cfg), rpclient.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return &session{
		logger:  logger,
		store:   store,
		console: console.New(client, store, os.Stdout, logger),
	}, nil
}

func (s *session) close() {
	s.console.Stop()
	_ = s.logger.Sync()
}

// signalContext — отменяется по Ctrl+C / SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// runOnce — подключиться, выполнить одну строку консоли и выйти.
func runOnce(line string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	ctx, stop := signalContext()
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, flags.Timeout)
	defer cancel()

	if err := s.console.Start(ctx); err != nil {
		return err
	}
	if err := s.console.WaitConnected(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return s.console.HandleCommand(ctx, line)
}
