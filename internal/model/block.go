package model

import "github.com/ethereum/go-ethereum/common"

// Block is the slice of a chain block the watcher needs.
type Block struct {
	Number       uint64
	Hash         common.Hash
	Transactions []Transaction
}

// Transaction is a block transaction. CreatedContract is set only for
// contract-creation transactions.
type Transaction struct {
	Hash            common.Hash
	CreatedContract *common.Address
}

// Creations returns the block's contract-creation transactions, in
// transaction order.
func (b Block) Creations() []Transaction {
	out := make([]Transaction, 0)
	for _, tx := range b.Transactions {
		if tx.CreatedContract != nil {
			out = append(out, tx)
		}
	}
	return out
}
