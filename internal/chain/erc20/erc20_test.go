package erc20

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackTransfer(t *testing.T) {
	to := common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94")
	data, err := PackTransfer(to, big.NewInt(1000))
	require.NoError(t, err)

	require.Len(t, data, 4+32+32)
	assert.Equal(t, "a9059cbb", hex.EncodeToString(data[:4]))
	assert.Equal(t, "0000000000000000000000009858effd232b4033e47d90003d41ec34ecaeda94", hex.EncodeToString(data[4:36]))
	assert.Equal(t, int64(1000), new(big.Int).SetBytes(data[36:]).Int64())

	gotTo, gotAmount, err := UnpackTransfer(data)
	require.NoError(t, err)
	assert.Equal(t, to, gotTo)
	assert.Equal(t, "1000", gotAmount.String())
}

func TestPackTransfer_NilAmountIsZero(t *testing.T) {
	data, err := PackTransfer(common.Address{}, nil)
	require.NoError(t, err)
	_, amount, err := UnpackTransfer(data)
	require.NoError(t, err)
	assert.Equal(t, 0, amount.Sign())
}

func TestUnpackTransfer_NotTransfer(t *testing.T) {
	_, _, err := UnpackTransfer(nil)
	assert.ErrorIs(t, err, ErrNotTransfer)

	data, err := PackBalanceOf(common.Address{})
	require.NoError(t, err)
	_, _, err = UnpackTransfer(data)
	assert.ErrorIs(t, err, ErrNotTransfer)
}
