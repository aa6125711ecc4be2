package model

import (
	"math/big"
	"time"
)

// TokenRecord is one detected token contract. Records are append-only.
type TokenRecord struct {
	CreatedAt   time.Time
	BlockNumber uint64
	Address     string
	Name        string
	Symbol      string
	TotalSupply *big.Int
}
