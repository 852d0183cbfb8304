package address

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"

	"wallet-custody/pkg/crypto_util"
)

// TronPrefix 波场主网地址前缀字节
const TronPrefix byte = 0x41

var ErrInvalidPubKey = errors.New("无效的公钥")

// TronGenerator 波场地址生成与校验 (base58check, 0x41 前缀)
type TronGenerator struct{}

func NewTronGenerator() *TronGenerator {
	return &TronGenerator{}
}

// PubKeyToAddress 非压缩公钥 -> T 开头的 base58 地址
func (g *TronGenerator) PubKeyToAddress(pubKeyBytes []byte) (string, error) {
	if len(pubKeyBytes) == 65 && pubKeyBytes[0] == 0x04 {
		pubKeyBytes = pubKeyBytes[1:]
	}
	if len(pubKeyBytes) != 64 {
		return "", ErrInvalidPubKey
	}
	hash := crypto_util.Keccak256(pubKeyBytes)
	return EncodeTron(hash[12:])
}

// EncodeTron 20 字节账户 -> base58check 地址
func EncodeTron(account []byte) (string, error) {
	if len(account) != 20 {
		return "", fmt.Errorf("账户长度必须是 20 字节, 得到 %d", len(account))
	}
	payload := append([]byte{TronPrefix}, account...)
	checksum := crypto_util.DoubleSHA256(payload)[:4]
	return base58.Encode(append(payload, checksum...)), nil
}

// DecodeTron base58check 地址 -> 20 字节账户 (去掉 0x41 前缀)
func DecodeTron(address string) ([]byte, error) {
	raw, err := base58.Decode(address)
	if err != nil {
		return nil, fmt.Errorf("base58 解码失败: %w", err)
	}
	if len(raw) != 25 {
		return nil, fmt.Errorf("地址长度无效: %d", len(raw))
	}
	payload, checksum := raw[:21], raw[21:]
	if !bytes.Equal(crypto_util.DoubleSHA256(payload)[:4], checksum) {
		return nil, errors.New("地址校验和不匹配")
	}
	if payload[0] != TronPrefix {
		return nil, fmt.Errorf("地址前缀无效: 0x%x", payload[0])
	}
	return payload[1:], nil
}

// IsValid 校验 T 开头的 base58check 地址
func (g *TronGenerator) IsValid(address string) bool {
	if len(address) != 34 || address[0] != 'T' {
		return false
	}
	_, err := DecodeTron(address)
	return err == nil
}
