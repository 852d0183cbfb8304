// Package bip32 从 BIP-39 种子按 BIP-44 路径派生 secp256k1 账户私钥
package bip32

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

var (
	ErrInvalidSeed = errors.New("无效的种子")
	ErrInvalidPath = errors.New("无效的派生路径")
)

// Wallet 只保存主扩展私钥，派生结果不缓存
type Wallet struct {
	master *hdkeychain.ExtendedKey
}

// NewMasterKeyFromSeed EVM 与波场只使用派生出的私钥本身，网络参数固定为主网
func NewMasterKeyFromSeed(seed []byte) (*Wallet, error) {
	if len(seed) < hdkeychain.MinSeedBytes || len(seed) > hdkeychain.MaxSeedBytes {
		return nil, ErrInvalidSeed
	}
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("生成主密钥失败: %w", err)
	}
	return &Wallet{master: master}, nil
}

// ParsePath m/44'/60'/0'/0/0 或 m/44h/60h/0h/0/0 -> 子索引序列
func ParsePath(path string) ([]uint32, error) {
	path = strings.TrimSpace(path)
	if path == "m" {
		return nil, nil
	}
	if !strings.HasPrefix(path, "m/") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}

	segments := strings.Split(path[2:], "/")
	indexes := make([]uint32, 0, len(segments))
	for _, seg := range segments {
		hardened := strings.HasSuffix(seg, "'") || strings.HasSuffix(seg, "h")
		if hardened {
			seg = seg[:len(seg)-1]
		}
		v, err := strconv.ParseUint(seg, 10, 31)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, seg)
		}
		idx := uint32(v)
		if hardened {
			idx += hdkeychain.HardenedKeyStart
		}
		indexes = append(indexes, idx)
	}
	return indexes, nil
}

// Derive 按路径派生扩展私钥
func (w *Wallet) Derive(path string) (*hdkeychain.ExtendedKey, error) {
	indexes, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	key := w.master
	for _, idx := range indexes {
		if key, err = key.Derive(idx); err != nil {
			return nil, fmt.Errorf("派生 %s 失败: %w", path, err)
		}
	}
	return key, nil
}

// PrivateKeyHex 32 字节私钥 hex，无 0x 前缀，即 keystore 中 privateKey_<CHAIN> 的明文格式
func (w *Wallet) PrivateKeyHex(path string) (string, error) {
	key, err := w.Derive(path)
	if err != nil {
		return "", err
	}
	priv, err := key.ECPrivKey()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(priv.Serialize()), nil
}
