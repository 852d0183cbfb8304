package crypto_util

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashes(t *testing.T) {
	// keccak256("") 的已知值
	assert.Equal(t, "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470", hex.EncodeToString(Keccak256(nil)))
	// sha256(sha256("hello"))
	assert.Equal(t, "9595c9df90075148eb06860365df33584b75bff782a510c6cd4883a419833d50", hex.EncodeToString(DoubleSHA256([]byte("hello"))))

	h1 := CalculateBlake3([]byte("password"))
	h2 := CalculateBlake3([]byte("password"))
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
	assert.NotEqual(t, h1, CalculateBlake3([]byte("Password")))
}
