package token

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tokenWatch/internal/chain"
)

type fakeReader struct {
	values map[string]interface{}
	errs   map[string]error
	calls  []string
}

func (f *fakeReader) ReadContractField(_ context.Context, address common.Address, field string) (interface{}, error) {
	f.calls = append(f.calls, field)
	if err, ok := f.errs[field]; ok {
		return nil, err
	}
	return f.values[field], nil
}

func tokenReader() *fakeReader {
	return &fakeReader{
		values: map[string]interface{}{
			"name":        "MyToken",
			"symbol":      "MTK",
			"totalSupply": big.NewInt(1000000),
		},
		errs: map[string]error{},
	}
}

var contract = common.HexToAddress("0x1111111111111111111111111111111111111111")

func TestClassifyToken(t *testing.T) {
	classifier := NewClassifier(zap.NewNop())
	reader := tokenReader()

	info, ok, err := classifier.Classify(context.Background(), reader, contract)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "MyToken", info.Name)
	require.Equal(t, "MTK", info.Symbol)
	require.Equal(t, 0, big.NewInt(1000000).Cmp(info.TotalSupply))
	require.Equal(t, []string{"name", "symbol", "totalSupply"}, reader.calls)
}

func TestClassifyCallErrorIsNegative(t *testing.T) {
	for _, field := range Fields {
		t.Run(field, func(t *testing.T) {
			reader := tokenReader()
			reader.errs[field] = &chain.CallError{Address: contract, Field: field, Err: errors.New("execution reverted")}

			info, ok, err := NewClassifier(nil).Classify(context.Background(), reader, contract)
			require.NoError(t, err)
			require.False(t, ok)
			require.Equal(t, Info{}, info)
			require.Equal(t, field, reader.calls[len(reader.calls)-1], "probe must stop at the failing field")
		})
	}
}

func TestClassifyFalsyValuesAreNegative(t *testing.T) {
	cases := map[string]interface{}{
		"name":        "",
		"symbol":      "",
		"totalSupply": big.NewInt(0),
	}
	for field, value := range cases {
		t.Run(field, func(t *testing.T) {
			reader := tokenReader()
			reader.values[field] = value

			info, ok, err := NewClassifier(nil).Classify(context.Background(), reader, contract)
			require.NoError(t, err)
			require.False(t, ok)
			require.Equal(t, Info{}, info)
		})
	}
}

func TestClassifyUnexpectedTypeIsNegative(t *testing.T) {
	reader := tokenReader()
	reader.values["symbol"] = [32]byte{'M'}

	_, ok, err := NewClassifier(nil).Classify(context.Background(), reader, contract)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestClassifyConnectivityErrorPropagates(t *testing.T) {
	reader := tokenReader()
	cause := &chain.ConnectivityError{Endpoint: "https://node", Op: "call symbol", Err: context.DeadlineExceeded}
	reader.errs["symbol"] = cause

	_, ok, err := NewClassifier(nil).Classify(context.Background(), reader, contract)
	require.False(t, ok)
	require.Error(t, err)

	var connErr *chain.ConnectivityError
	require.True(t, errors.As(err, &connErr))
}

func TestClassifyIdempotent(t *testing.T) {
	classifier := NewClassifier(nil)
	reader := tokenReader()

	first, ok1, err1 := classifier.Classify(context.Background(), reader, contract)
	second, ok2, err2 := classifier.Classify(context.Background(), reader, contract)
	require.NoError(t, err1)
	require.NoError(t, err2)
	require.Equal(t, ok1, ok2)
	require.Equal(t, first, second)
}

func TestClassifyDoesNotAliasSupply(t *testing.T) {
	supply := big.NewInt(5)
	reader := tokenReader()
	reader.values["totalSupply"] = supply

	info, ok, err := NewClassifier(nil).Classify(context.Background(), reader, contract)
	require.NoError(t, err)
	require.True(t, ok)
	supply.SetInt64(0)
	require.Equal(t, int64(5), info.TotalSupply.Int64())
}
