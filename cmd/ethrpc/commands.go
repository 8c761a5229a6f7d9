package main

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var callCmd = &cobra.Command{
	Use:   "call <method> [params...]",
	Short: "Один вызов метода",
	Long: `Параметры — JSON-массив целиком или аргументы через пробел;
"@name" подставляет алиас из конфига.

  ethrpc call eth_getBlockByNumber '["latest", false]'
  ethrpc call eth_getBalance @golem latest`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(strings.Join(args, " "))
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance <address> [block]",
	Short: "Баланс адреса в wei и ETH",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		block := "latest"
		if len(args) == 2 {
			block = args[1]
		}
		return runOnce("eth_getBalance " + args[0] + " " + block)
	},
}

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Интерактивная консоль (!help — список команд)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		ctx, stop := signalContext()
		defer stop()

		s.console.SetPrompt(term.IsTerminal(int(os.Stdin.Fd())))
		if err := s.console.Start(ctx); err != nil {
			return err
		}
		return s.console.Run(ctx, os.Stdin)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [interval]",
	Short: "Печатать новые блоки до Ctrl+C",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		every := s.store.Settings().WatchEvery.Duration
		if len(args) == 1 {
			if every, err = time.ParseDuration(args[0]); err != nil {
				return err
			}
		}
		if every <= 0 {
			return errors.New("watch interval must be positive")
		}

		ctx, stop := signalContext()
		defer stop()

		if err := s.console.Start(ctx); err != nil {
			return err
		}
		if err := s.console.StartWatch(every); err != nil {
			return err
		}
		s.logger.Info("watching, press Ctrl+C to stop")
		<-ctx.Done()
		return nil
	},
}
