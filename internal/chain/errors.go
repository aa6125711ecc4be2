package chain

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

// ConnectivityError reports an endpoint that could not be reached or did not
// answer in time.
type ConnectivityError struct {
	Endpoint string
	Op       string
	Err      error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// FetchError reports a block that could not be fetched or decoded.
type FetchError struct {
	Block uint64
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch block %d: %v", e.Block, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// CallError reports a read-only contract call that reverted, hit an address
// without compatible code, or returned undecodable output.
type CallError struct {
	Address common.Address
	Field   string
	Err     error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("call %s on %s: %v", e.Field, e.Address.Hex(), e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// IsCallError reports whether err carries a *CallError.
func IsCallError(err error) bool {
	var callErr *CallError
	return errors.As(err, &callErr)
}

// callFailure sorts an eth_call error. A JSON-RPC error reply means the node
// answered and the contract rejected the call; anything else is transport.
func callFailure(endpoint string, address common.Address, field string, err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return &CallError{Address: address, Field: field, Err: err}
	}
	return &ConnectivityError{Endpoint: endpoint, Op: "call " + field, Err: err}
}
