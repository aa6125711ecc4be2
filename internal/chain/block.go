package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"tokenWatch/internal/model"
)

// creationFunc resolves the contract created by a transaction with no
// recipient. A nil address means the transaction created nothing.
type creationFunc func(tx *types.Transaction) (*common.Address, error)

func buildBlock(block *types.Block, created creationFunc) (model.Block, error) {
	txs := block.Transactions()
	out := model.Block{
		Number:       block.NumberU64(),
		Hash:         block.Hash(),
		Transactions: make([]model.Transaction, 0, len(txs)),
	}

	for _, tx := range txs {
		entry := model.Transaction{Hash: tx.Hash()}
		if tx.To() == nil {
			addr, err := created(tx)
			if err != nil {
				return model.Block{}, err
			}
			entry.CreatedContract = addr
		}
		out.Transactions = append(out.Transactions, entry)
	}

	return out, nil
}

// senderCreations derives the created address from the sender and nonce.
func senderCreations(signer types.Signer) creationFunc {
	return func(tx *types.Transaction) (*common.Address, error) {
		from, err := types.Sender(signer, tx)
		if err != nil {
			return nil, fmt.Errorf("sender %s: %w", tx.Hash().Hex(), err)
		}
		addr := crypto.CreateAddress(from, tx.Nonce())
		return &addr, nil
	}
}
