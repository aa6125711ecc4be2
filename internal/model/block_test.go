package model

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestBlockCreations(t *testing.T) {
	first := common.HexToAddress("0x1111111111111111111111111111111111111111")
	second := common.HexToAddress("0x2222222222222222222222222222222222222222")

	block := Block{
		Number: 36000000,
		Transactions: []Transaction{
			{Hash: common.HexToHash("0x01")},
			{Hash: common.HexToHash("0x02"), CreatedContract: &first},
			{Hash: common.HexToHash("0x03")},
			{Hash: common.HexToHash("0x04"), CreatedContract: &second},
		},
	}

	creations := block.Creations()
	require.Equal(t, []Transaction{block.Transactions[1], block.Transactions[3]}, creations)
	require.Equal(t, first, *creations[0].CreatedContract)
	require.Equal(t, common.HexToHash("0x04"), creations[1].Hash)
}

func TestBlockCreationsEmpty(t *testing.T) {
	require.Empty(t, Block{Number: 1}.Creations())
}
