package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tokenWatch/internal/chain"
	"tokenWatch/internal/endpoint"
	"tokenWatch/internal/metrics"
	"tokenWatch/internal/model"
	"tokenWatch/internal/storage"
	"tokenWatch/internal/token"
)

// ErrSubscriptionStalled is returned by a session that saw no block within
// the stall timeout.
var ErrSubscriptionStalled = errors.New("no block announced within stall timeout")

// Client is the per-endpoint connection the runner drives.
type Client interface {
	token.FieldReader
	SubscribeBlocks(ctx context.Context) (chain.Subscription, error)
	BlockWithTransactions(ctx context.Context, number uint64) (model.Block, error)
	Close()
}

// Dialer binds a new Client to an endpoint.
type Dialer func(ctx context.Context, endpoint string) (Client, error)

// RunConfig holds runtime settings for the runner.
type RunConfig struct {
	// StallTimeout rotates away from an endpoint that announces no block for
	// this long. Zero disables the watchdog.
	StallTimeout time.Duration
	// RotatePause is slept after every endpoint failed in a row.
	RotatePause time.Duration
}

// Runner subscribes to new blocks on one endpoint at a time, probes created
// contracts and records tokens. Any failure while handling a block abandons
// the endpoint for the next one in the pool.
type Runner struct {
	cfg        RunConfig
	pool       *endpoint.Pool
	dial       Dialer
	classifier *token.Classifier
	sink       storage.Sink
	metrics    *metrics.WatcherMetrics
	logger     *zap.Logger
	now        func() time.Time
	generation uint64
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(
	cfg RunConfig,
	pool *endpoint.Pool,
	dial Dialer,
	classifier *token.Classifier,
	sink storage.Sink,
	m *metrics.WatcherMetrics,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewWatcherMetrics()
	}
	if classifier == nil {
		classifier = token.NewClassifier(logger)
	}
	return &Runner{
		cfg:        cfg,
		pool:       pool,
		dial:       dial,
		classifier: classifier,
		sink:       sink,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// Run binds to the current endpoint and watches until ctx is cancelled.
// Only a failure to establish the very first connection is returned.
func (r *Runner) Run(ctx context.Context) error {
	if r.pool == nil {
		return fmt.Errorf("endpoint pool is nil")
	}
	if r.dial == nil {
		return fmt.Errorf("dialer is nil")
	}
	if r.sink == nil {
		return fmt.Errorf("sink is nil")
	}

	current := r.pool.Current()
	client, err := r.dial(ctx, current)
	if err != nil {
		return fmt.Errorf("connect rpc %s: %w", current, err)
	}

	misses := 0
	for {
		handled, err := r.session(ctx, client, current)
		// The old generation is torn down before the next endpoint is dialed.
		client.Close()
		if ctx.Err() != nil {
			r.logger.Info("watcher stopped", zap.String("endpoint", current))
			return nil
		}

		r.metrics.Rotations.WithLabelValues(current).Inc()
		r.logger.Warn("endpoint failed", zap.String("endpoint", current), zap.Int("blocks_handled", handled), zap.Error(err))
		if handled > 0 {
			misses = 0
		}
		misses++

		for {
			if misses >= r.pool.Len() {
				misses = 0
				if err := r.pause(ctx); err != nil {
					r.logger.Info("watcher stopped", zap.String("endpoint", current))
					return nil
				}
			}

			current = r.pool.Advance()
			r.logger.Info("switching endpoint", zap.String("endpoint", current), zap.Int("index", r.pool.Index()))

			client, err = r.dial(ctx, current)
			if err == nil {
				break
			}
			if ctx.Err() != nil {
				r.logger.Info("watcher stopped", zap.String("endpoint", current))
				return nil
			}
			r.metrics.Rotations.WithLabelValues(current).Inc()
			r.logger.Warn("dial failed", zap.String("endpoint", current), zap.Error(err))
			misses++
		}
	}
}

func (r *Runner) pause(ctx context.Context) error {
	if r.cfg.RotatePause <= 0 {
		return ctx.Err()
	}
	r.logger.Warn("all endpoints failed, pausing", zap.Duration("pause", r.cfg.RotatePause))
	timer := time.NewTimer(r.cfg.RotatePause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// session runs one client generation until it fails or ctx ends. It returns
// the number of blocks handled. Blocks announced by a finished generation are
// never handled: its subscription is stopped before session returns.
func (r *Runner) session(ctx context.Context, client Client, url string) (int, error) {
	r.generation++
	gen := r.generation

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sub, err := client.SubscribeBlocks(sessCtx)
	if err != nil {
		return 0, fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	r.metrics.SetActive(r.pool.Endpoints(), url)
	r.logger.Info("listening for new blocks", zap.String("endpoint", url), zap.Uint64("generation", gen))

	var (
		timer *time.Timer
		stall <-chan time.Time
	)
	if r.cfg.StallTimeout > 0 {
		timer = time.NewTimer(r.cfg.StallTimeout)
		defer timer.Stop()
		stall = timer.C
	}

	handled := 0
	for {
		select {
		case <-sessCtx.Done():
			return handled, sessCtx.Err()
		case err := <-sub.Err():
			return handled, fmt.Errorf("block subscription: %w", err)
		case <-stall:
			return handled, ErrSubscriptionStalled
		case number := <-sub.Blocks():
			if err := r.handleBlock(sessCtx, client, gen, number); err != nil {
				r.metrics.BlockFailures.Inc()
				return handled, fmt.Errorf("handle block %d: %w", number, err)
			}
			handled++
			if timer != nil {
				resetTimer(timer, r.cfg.StallTimeout)
			}
		}
	}
}

func (r *Runner) handleBlock(ctx context.Context, client Client, gen uint64, number uint64) error {
	start := time.Now()
	r.logger.Info("new block", zap.Uint64("block", number), zap.Uint64("generation", gen))

	block, err := client.BlockWithTransactions(ctx, number)
	if err != nil {
		return err
	}

	for _, tx := range block.Creations() {
		addr := *tx.CreatedContract
		r.metrics.ContractsProbed.Inc()

		info, ok, err := r.classifier.Classify(ctx, client, addr)
		if err != nil {
			return fmt.Errorf("classify %s: %w", addr.Hex(), err)
		}
		if !ok {
			continue
		}

		rec := model.TokenRecord{
			CreatedAt:   r.now(),
			BlockNumber: number,
			Address:     addr.Hex(),
			Name:        info.Name,
			Symbol:      info.Symbol,
			TotalSupply: info.TotalSupply,
		}
		r.metrics.TokensFound.Inc()
		r.logger.Info("token contract found",
			zap.Uint64("block", number),
			zap.String("block_hash", block.Hash.Hex()),
			zap.String("tx", tx.Hash.Hex()),
			zap.String("contract", rec.Address),
			zap.String("name", rec.Name),
			zap.String("symbol", rec.Symbol),
			zap.String("total_supply", rec.TotalSupply.String()),
		)

		if err := r.sink.Record(ctx, rec); err != nil {
			r.logger.Warn("queue token record failed", zap.String("contract", rec.Address), zap.Error(err))
		}
	}

	r.metrics.BlocksHandled.Inc()
	r.metrics.BlockHandleDuration.Observe(time.Since(start).Seconds())
	return nil
}

func resetTimer(timer *time.Timer, d time.Duration) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(d)
}
