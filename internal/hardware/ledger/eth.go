package ledger

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"wallet-custody/internal/hardware"
)

// Resolution 设备显示交易详情所需的附加信息 (代币描述等)
type Resolution struct {
	// ERC20Tokens 已签名的代币描述，按 PROVIDE_ERC20_TOKEN_INFORMATION 逐条发送
	ERC20Tokens [][]byte
}

// Resolver resolveTransaction：为待签名交易准备 Resolution
type Resolver interface {
	Resolve(ctx context.Context, rawTx []byte) (Resolution, error)
}

// BlindResolver 不提供任何附加信息，设备需开启盲签
type BlindResolver struct{}

func (BlindResolver) Resolve(context.Context, []byte) (Resolution, error) {
	return Resolution{}, nil
}

// Signature 设备返回的 (v, r, s)
type Signature struct {
	V byte
	R [32]byte
	S [32]byte
}

// EthApp 设备上的以太坊应用，EVM 链通用
type EthApp struct {
	t hardware.Transport
}

func NewEthApp(t hardware.Transport) *EthApp {
	return &EthApp{t: t}
}

// GetAddress 返回 EIP-55 格式地址
func (a *EthApp) GetAddress(path string) (string, error) {
	p, err := serializePath(path)
	if err != nil {
		return "", err
	}
	reply, err := exchange(a.t, command(insGetAddress, 0x00, 0x00, p))
	if err != nil {
		return "", err
	}
	_, rest, err := readLengthPrefixed(reply) // 公钥
	if err != nil {
		return "", err
	}
	addr, _, err := readLengthPrefixed(rest)
	if err != nil {
		return "", err
	}
	if !common.IsHexAddress(string(addr)) {
		return "", fmt.Errorf("ledger: malformed address %q", addr)
	}
	return common.HexToAddress(string(addr)).Hex(), nil
}

// SignTransaction 发送 path + 未签名 RLP，首块 P1=0x00，后续 P1=0x80
func (a *EthApp) SignTransaction(path string, rawTx []byte, res Resolution) (*Signature, error) {
	for _, token := range res.ERC20Tokens {
		if _, err := exchange(a.t, command(insERC20Info, 0x00, 0x00, token)); err != nil {
			return nil, fmt.Errorf("ledger: provide token info: %w", err)
		}
	}

	p, err := serializePath(path)
	if err != nil {
		return nil, err
	}
	var reply []byte
	for i, chunk := range chunks(p, rawTx) {
		p1 := byte(0x80)
		if i == 0 {
			p1 = 0x00
		}
		reply, err = exchange(a.t, command(insSign, p1, 0x00, chunk))
		if err != nil {
			return nil, err
		}
	}
	if len(reply) < 65 {
		return nil, ErrShortResponse
	}
	sig := &Signature{V: reply[0]}
	copy(sig.R[:], reply[1:33])
	copy(sig.S[:], reply[33:65])
	return sig, nil
}
