package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tokenWatch/internal/chain"
	"tokenWatch/internal/config"
	"tokenWatch/internal/indexer"
	"tokenWatch/internal/token"
)

func runProbe(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if len(cfg.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint is required")
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	address, err := indexer.ParseAddress(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	url := cfg.Endpoints[0]
	client, err := chain.Dial(ctx, url, chain.Options{CallTimeout: cfg.CallTimeout})
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer client.Close()

	info, ok, err := token.NewClassifier(logger).Classify(ctx, client, address)
	if err != nil {
		return fmt.Errorf("probe %s: %w", address.Hex(), err)
	}
	if !ok {
		logger.Info("not a token", zap.String("contract", address.Hex()), zap.String("endpoint", url))
		return nil
	}

	logger.Info("token contract",
		zap.String("contract", address.Hex()),
		zap.String("endpoint", url),
		zap.String("name", info.Name),
		zap.String("symbol", info.Symbol),
		zap.String("total_supply", info.TotalSupply.String()),
	)
	return nil
}
