package chain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-custody/pkg/errno"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	eth := r.Get(ETH)
	assert.True(t, eth.UsesGasPriceFeeModel)
	assert.True(t, eth.SupportsEIP1559)
	assert.Equal(t, int64(1), eth.NetworkID)
	assert.Equal(t, "m/44'/60'/0'/0/0", eth.DerivationPath)
	assert.Equal(t, "privateKey_ETH", eth.KeyName())

	bsc := r.Get(BSC)
	assert.False(t, bsc.SupportsEIP1559, "BSC 使用 legacy gasPrice")

	tron := r.Get(TRON)
	assert.False(t, tron.UsesGasPriceFeeModel)
	assert.Equal(t, int32(6), tron.Decimals)
	assert.Equal(t, "m/44'/195'/0'/0/0", tron.DerivationPath)
	assert.Equal(t, "m/44'/195'/3'/0/0", tron.PathForAccount(3))

	assert.Len(t, r.All(), 5)
	assert.Equal(t, []ChainID{ETH, BSC, POLYGON, AVAX, TRON}, r.IDs())
}

func TestRegistry_GetUnknownPanics(t *testing.T) {
	r := DefaultRegistry()
	assert.Panics(t, func() { r.Get("DOGE") })

	_, ok := r.Lookup("DOGE")
	assert.False(t, ok)
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		NewRegistry(tronConfig(), tronConfig())
	})
}

func TestRegistry_Parse(t *testing.T) {
	r := DefaultRegistry()

	id, err := r.Parse(" polygon ")
	require.NoError(t, err)
	assert.Equal(t, POLYGON, id)

	_, err = r.Parse("solana")
	assert.ErrorIs(t, err, errno.ErrUnsupportedChain)
}

func TestConfig_IsValidAddress(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		name  string
		chain ChainID
		addr  string
		want  bool
	}{
		{"eth lowercase", ETH, "0x9858effd232b4033e47d90003d41ec34ecaeda94", true},
		{"eth checksum", ETH, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", true},
		{"eth bad checksum", ETH, "0x9858EFFD232B4033E47d90003D41EC34EcaEda94", false},
		{"eth too short", BSC, "0x9858effd", false},
		{"tron on eth", ETH, "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t", false},
		{"tron usdt", TRON, "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t", true},
		{"tron bad checksum", TRON, "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6u", false},
		{"eth on tron", TRON, "0x9858effd232b4033e47d90003d41ec34ecaeda94", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Get(tt.chain).IsValidAddress(tt.addr))
		})
	}
}

func TestToken_BaseUnits(t *testing.T) {
	usdt := Token{Symbol: "USDT", ContractAddress: "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t", Decimals: 6}
	assert.False(t, usdt.IsNative())

	v, err := usdt.ToBaseUnits(decimal.RequireFromString("12.5"))
	require.NoError(t, err)
	assert.Equal(t, "12500000", v.String())
	assert.True(t, usdt.FromBaseUnits(v).Equal(decimal.RequireFromString("12.5")))

	_, err = usdt.ToBaseUnits(decimal.RequireFromString("0.0000001"))
	assert.ErrorIs(t, err, errno.ErrInvalidAmount, "超过 6 位小数")

	_, err = usdt.ToBaseUnits(decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, errno.ErrInvalidAmount)

	eth := DefaultRegistry().Get(ETH).NativeToken()
	assert.True(t, eth.IsNative())
	v, err = eth.ToBaseUnits(decimal.RequireFromString("1.5"))
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", v.String())
}

func TestToken_Equal(t *testing.T) {
	a := Token{Symbol: "USDC", ContractAddress: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"}
	b := Token{Symbol: "usdc", ContractAddress: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(Token{}))
}
