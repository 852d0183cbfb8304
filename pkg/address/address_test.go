package address

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestETHGenerator_IsValid(t *testing.T) {
	g := NewETHGenerator()
	tests := []struct {
		name    string
		address string
		want    bool
	}{
		{"checksummed", "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", true},
		{"lowercase", "0x9858effd232b4033e47d90003d41ec34ecaeda94", true},
		{"bad checksum", "0x9858efFD232B4033E47d90003D41EC34EcaEda94", false},
		{"short", "0x9858EfFD232B4033E47d90003D41EC34EcaEda9", false},
		{"no prefix", "9858EfFD232B4033E47d90003D41EC34EcaEda94", false},
		{"tron", "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.IsValid(tt.address))
		})
	}
}

func TestTronGenerator_DecodeEncode(t *testing.T) {
	// USDT TRC20 合约地址
	account, err := DecodeTron("TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t")
	require.NoError(t, err)
	assert.Equal(t, "a614f803b6fd780986a42c78ec9c7f77e6ded13c", hex.EncodeToString(account))

	encoded, err := EncodeTron(account)
	require.NoError(t, err)
	assert.Equal(t, "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t", encoded)
}

func TestTronGenerator_IsValid(t *testing.T) {
	g := NewTronGenerator()
	assert.True(t, g.IsValid("TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"))
	assert.False(t, g.IsValid("TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6u"), "checksum must fail")
	assert.False(t, g.IsValid("0x9858EfFD232B4033E47d90003D41EC34EcaEda94"))
	assert.False(t, g.IsValid(""))
}

func TestPubKeyToAddress_InvalidLength(t *testing.T) {
	_, err := NewETHGenerator().PubKeyToAddress([]byte{0x04, 0x01})
	assert.ErrorIs(t, err, ErrInvalidPubKey)
	_, err = NewTronGenerator().PubKeyToAddress(make([]byte, 10))
	assert.ErrorIs(t, err, ErrInvalidPubKey)
}
