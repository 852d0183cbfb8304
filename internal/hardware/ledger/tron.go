package ledger

import (
	"fmt"

	"wallet-custody/internal/hardware"
	"wallet-custody/pkg/address"
)

// Tron 应用签名分块的 P1
const (
	tronP1Single = 0x10
	tronP1First  = 0x00
	tronP1More   = 0x80
	tronP1Last   = 0x90
)

// TronApp 设备上的波场应用
type TronApp struct {
	t hardware.Transport
}

func NewTronApp(t hardware.Transport) *TronApp {
	return &TronApp{t: t}
}

// GetAddress 返回 base58check 地址
func (a *TronApp) GetAddress(path string) (string, error) {
	p, err := serializePath(path)
	if err != nil {
		return "", err
	}
	reply, err := exchange(a.t, command(insGetAddress, 0x00, 0x00, p))
	if err != nil {
		return "", err
	}
	_, rest, err := readLengthPrefixed(reply)
	if err != nil {
		return "", err
	}
	addr, _, err := readLengthPrefixed(rest)
	if err != nil {
		return "", err
	}
	if !address.NewTronGenerator().IsValid(string(addr)) {
		return "", fmt.Errorf("ledger: malformed tron address %q", addr)
	}
	return string(addr), nil
}

// SignTransaction rawData 为 protobuf 编码的 raw_data，返回 65 字节 r|s|v
func (a *TronApp) SignTransaction(path string, rawData []byte) ([]byte, error) {
	p, err := serializePath(path)
	if err != nil {
		return nil, err
	}
	parts := chunks(p, rawData)
	var reply []byte
	for i, chunk := range parts {
		reply, err = exchange(a.t, command(insSign, tronP1(i, len(parts)), 0x00, chunk))
		if err != nil {
			return nil, err
		}
	}
	if len(reply) < 65 {
		return nil, ErrShortResponse
	}
	return reply[:65], nil
}

func tronP1(i, n int) byte {
	switch {
	case n == 1:
		return tronP1Single
	case i == 0:
		return tronP1First
	case i == n-1:
		return tronP1Last
	default:
		return tronP1More
	}
}
