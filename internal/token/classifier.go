package token

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"tokenWatch/internal/chain"
)

// Fields are read in this order; the first failure stops the probe.
var Fields = []string{"name", "symbol", "totalSupply"}

// FieldReader performs a read-only token interface call.
type FieldReader interface {
	ReadContractField(ctx context.Context, address common.Address, field string) (interface{}, error)
}

// Info holds the token interface values of a contract.
type Info struct {
	Name        string
	Symbol      string
	TotalSupply *big.Int
}

// Classifier decides whether a contract looks like a fungible token.
type Classifier struct {
	logger *zap.Logger
}

func NewClassifier(logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{logger: logger}
}

// Classify reads name, symbol and totalSupply. The contract is a token only
// when all three calls succeed and return non-empty, non-zero values. A
// reverted call and a zero value both yield false. Errors other than call
// errors are returned.
func (c *Classifier) Classify(ctx context.Context, reader FieldReader, address common.Address) (Info, bool, error) {
	values := make([]interface{}, 0, len(Fields))
	for _, field := range Fields {
		value, err := reader.ReadContractField(ctx, address, field)
		if err != nil {
			if chain.IsCallError(err) {
				c.logger.Debug("token probe negative", zap.String("contract", address.Hex()), zap.String("field", field), zap.Error(err))
				return Info{}, false, nil
			}
			return Info{}, false, fmt.Errorf("read %s: %w", field, err)
		}
		values = append(values, value)
	}

	name, ok := asString(values[0])
	if !ok || name == "" {
		return Info{}, false, nil
	}
	symbol, ok := asString(values[1])
	if !ok || symbol == "" {
		return Info{}, false, nil
	}
	supply, ok := asBigInt(values[2])
	if !ok || supply.Sign() == 0 {
		return Info{}, false, nil
	}

	return Info{Name: name, Symbol: symbol, TotalSupply: supply}, true, nil
}

func asString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case *string:
		if v == nil {
			return "", false
		}
		return *v, true
	default:
		return "", false
	}
}

func asBigInt(value interface{}) (*big.Int, bool) {
	switch v := value.(type) {
	case *big.Int:
		if v == nil {
			return nil, false
		}
		return new(big.Int).Set(v), true
	case big.Int:
		return new(big.Int).Set(&v), true
	case uint64:
		return new(big.Int).SetUint64(v), true
	case int64:
		return big.NewInt(v), true
	default:
		return nil, false
	}
}
