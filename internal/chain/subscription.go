package chain

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
)

// Subscription delivers announced block numbers in arrival order. Err yields
// at most one error, after which no more blocks are delivered.
type Subscription interface {
	Blocks() <-chan uint64
	Err() <-chan error
	Unsubscribe()
}

type blockSubscription struct {
	blocks chan uint64
	errc   chan error
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func newBlockSubscription(ctx context.Context) (*blockSubscription, context.Context) {
	subCtx, cancel := context.WithCancel(ctx)
	return &blockSubscription{
		blocks: make(chan uint64, 16),
		errc:   make(chan error, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}, subCtx
}

func (s *blockSubscription) Blocks() <-chan uint64 {
	return s.blocks
}

func (s *blockSubscription) Err() <-chan error {
	return s.errc
}

// Unsubscribe stops the producer and waits for it to exit. Nothing is sent on
// either channel afterwards.
func (s *blockSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

func (s *blockSubscription) deliver(ctx context.Context, number uint64) bool {
	select {
	case s.blocks <- number:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *blockSubscription) fail(err error) {
	select {
	case s.errc <- err:
	default:
	}
}

// SubscribeBlocks announces new blocks. Websocket and IPC endpoints push new
// heads; HTTP endpoints are polled every PollInterval.
func (c *Client) SubscribeBlocks(ctx context.Context) (Subscription, error) {
	if c.subscribe {
		return c.subscribeHeads(ctx)
	}
	return c.pollHeads(ctx), nil
}

func (c *Client) subscribeHeads(ctx context.Context) (Subscription, error) {
	headers := make(chan *types.Header)
	sub, err := c.ethClient.SubscribeNewHead(ctx, headers)
	if err != nil {
		return nil, &ConnectivityError{Endpoint: c.endpoint, Op: "subscribe", Err: err}
	}

	s, subCtx := newBlockSubscription(ctx)
	go func() {
		defer close(s.done)
		defer sub.Unsubscribe()
		for {
			select {
			case <-subCtx.Done():
				return
			case err := <-sub.Err():
				if err == nil {
					err = errors.New("subscription closed")
				}
				s.fail(&ConnectivityError{Endpoint: c.endpoint, Op: "subscribe", Err: err})
				return
			case header := <-headers:
				if header == nil || header.Number == nil {
					continue
				}
				if !s.deliver(subCtx, header.Number.Uint64()) {
					return
				}
			}
		}
	}()
	return s, nil
}

// pollHeads announces every number in (last, latest]. The first poll only
// announces latest.
func (c *Client) pollHeads(ctx context.Context) Subscription {
	s, subCtx := newBlockSubscription(ctx)
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(c.opts.PollInterval)
		defer ticker.Stop()

		var last uint64
		seen := false
		for {
			latest, err := c.LatestBlockNumber(subCtx)
			if err != nil {
				if subCtx.Err() == nil {
					s.fail(&ConnectivityError{Endpoint: c.endpoint, Op: "poll", Err: err})
				}
				return
			}

			from := latest
			if seen {
				from = last + 1
			}
			for n := from; n <= latest; n++ {
				if !s.deliver(subCtx, n) {
					return
				}
			}
			if !seen || latest > last {
				last = latest
				seen = true
			}

			select {
			case <-subCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return s
}
