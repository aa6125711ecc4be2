package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"tokenWatch/internal/model"
)

const defaultPollInterval = 4 * time.Second

// Options tunes a Client.
type Options struct {
	// PollInterval is the eth_blockNumber polling period for endpoints
	// without subscription support.
	PollInterval time.Duration
	// CallTimeout bounds every request. Zero means no bound.
	CallTimeout time.Duration
	// UseReceipts takes created addresses from receipts instead of deriving
	// them from sender and nonce.
	UseReceipts bool
	// ForcePolling polls eth_blockNumber even on websocket and IPC endpoints.
	ForcePolling bool
}

// Client wraps go-ethereum RPC for a single endpoint.
type Client struct {
	endpoint  string
	opts      Options
	rpcClient *rpc.Client
	ethClient *ethclient.Client
	subscribe bool

	mu     sync.Mutex
	signer types.Signer
}

// Dial connects to the endpoint.
func Dial(ctx context.Context, endpoint string, opts Options) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, &ConnectivityError{Endpoint: endpoint, Op: "dial", Err: err}
	}
	return NewClient(rpcClient, endpoint, opts), nil
}

// NewClient wraps an already connected RPC client.
func NewClient(rpcClient *rpc.Client, endpoint string, opts Options) *Client {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	return &Client{
		endpoint:  endpoint,
		opts:      opts,
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		subscribe: !opts.ForcePolling && supportsSubscriptions(endpoint),
	}
}

// supportsSubscriptions reports whether the transport can push notifications.
// Anything that is not http(s) is websocket or an IPC path.
func supportsSubscriptions(endpoint string) bool {
	u, err := url.Parse(endpoint)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return false
	default:
		return true
	}
}

// Endpoint returns the address the client is bound to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.CallTimeout > 0 {
		return context.WithTimeout(ctx, c.opts.CallTimeout)
	}
	return context.WithCancel(ctx)
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()
	return c.ethClient.BlockNumber(callCtx)
}

func (c *Client) signerFor(ctx context.Context) (types.Signer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.signer != nil {
		return c.signer, nil
	}
	chainID, err := c.ethClient.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	c.signer = types.LatestSignerForChainID(chainID)
	return c.signer, nil
}

// BlockWithTransactions fetches a block with full transaction bodies and
// resolves the contracts its creation transactions deployed.
func (c *Client) BlockWithTransactions(ctx context.Context, number uint64) (model.Block, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	block, err := c.ethClient.BlockByNumber(callCtx, new(big.Int).SetUint64(number))
	if errors.Is(err, types.ErrTxTypeNotSupported) {
		return c.rawBlockWithTransactions(callCtx, number)
	}
	if err != nil {
		return model.Block{}, &FetchError{Block: number, Err: err}
	}

	var created creationFunc
	if c.opts.UseReceipts {
		created = c.receiptCreations(callCtx)
	} else {
		signer, err := c.signerFor(callCtx)
		if err != nil {
			return model.Block{}, &FetchError{Block: number, Err: err}
		}
		created = senderCreations(signer)
	}

	out, err := buildBlock(block, created)
	if err != nil {
		return model.Block{}, &FetchError{Block: number, Err: err}
	}
	return out, nil
}

func (c *Client) receiptCreations(ctx context.Context) creationFunc {
	return func(tx *types.Transaction) (*common.Address, error) {
		return c.receiptAddress(ctx, tx.Hash())
	}
}

// receiptAddress returns the deployed contract of a creation transaction, or
// nil when the deployment failed.
func (c *Client) receiptAddress(ctx context.Context, hash common.Hash) (*common.Address, error) {
	receipt, err := c.ethClient.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("receipt %s: %w", hash.Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful || receipt.ContractAddress == (common.Address{}) {
		return nil, nil
	}
	addr := receipt.ContractAddress
	return &addr, nil
}

type rawTransaction struct {
	Hash  common.Hash     `json:"hash"`
	From  *common.Address `json:"from"`
	To    *common.Address `json:"to"`
	Nonce hexutil.Uint64  `json:"nonce"`
}

type rawBlock struct {
	Number       hexutil.Uint64   `json:"number"`
	Hash         common.Hash      `json:"hash"`
	Transactions []rawTransaction `json:"transactions"`
}

// rawBlockWithTransactions reads a block whose transaction types the typed
// decoder rejects. Creations are taken from the sender the node reports.
func (c *Client) rawBlockWithTransactions(ctx context.Context, number uint64) (model.Block, error) {
	var raw *rawBlock
	if err := c.rpcClient.CallContext(ctx, &raw, "eth_getBlockByNumber", hexutil.EncodeUint64(number), true); err != nil {
		return model.Block{}, &FetchError{Block: number, Err: err}
	}
	if raw == nil {
		return model.Block{}, &FetchError{Block: number, Err: ethereum.NotFound}
	}

	out := model.Block{
		Number:       uint64(raw.Number),
		Hash:         raw.Hash,
		Transactions: make([]model.Transaction, 0, len(raw.Transactions)),
	}
	for _, tx := range raw.Transactions {
		entry := model.Transaction{Hash: tx.Hash}
		if tx.To == nil {
			switch {
			case c.opts.UseReceipts:
				addr, err := c.receiptAddress(ctx, tx.Hash)
				if err != nil {
					return model.Block{}, &FetchError{Block: number, Err: err}
				}
				entry.CreatedContract = addr
			case tx.From != nil:
				addr := crypto.CreateAddress(*tx.From, uint64(tx.Nonce))
				entry.CreatedContract = &addr
			default:
				return model.Block{}, &FetchError{Block: number, Err: fmt.Errorf("transaction %s has no sender", tx.Hash.Hex())}
			}
		}
		out.Transactions = append(out.Transactions, entry)
	}
	return out, nil
}

// ReadContractField performs a read-only ERC20 call and returns the single
// decoded output.
func (c *Client) ReadContractField(ctx context.Context, address common.Address, field string) (interface{}, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	data, err := parsed.Pack(field)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", field, err)
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.ethClient.CallContract(callCtx, ethereum.CallMsg{To: &address, Data: data}, nil)
	if err != nil {
		return nil, callFailure(c.endpoint, address, field, err)
	}
	values, err := parsed.Unpack(field, resp)
	if err != nil {
		return nil, &CallError{Address: address, Field: field, Err: fmt.Errorf("unpack: %w", err)}
	}
	if len(values) == 0 {
		return nil, &CallError{Address: address, Field: field, Err: errors.New("empty output")}
	}
	return values[0], nil
}
