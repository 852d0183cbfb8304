// Package erc20 编码 / 解码 transfer(address,uint256) 调用数据。
// EVM 链与 Tron 的 TRC20 共用同一套 ABI，估算探测交易和真实交易都从这里取 data。
package erc20

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const transferABI = `[{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},
{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"}]`

// TransferSignature Tron triggersmartcontract 使用的函数签名
const TransferSignature = "transfer(address,uint256)"

var (
	parsed abi.ABI

	ErrNotTransfer = errors.New("erc20: call data is not transfer(address,uint256)")
)

func init() {
	var err error
	parsed, err = abi.JSON(strings.NewReader(transferABI))
	if err != nil {
		panic(err)
	}
}

// TransferSelector 0xa9059cbb
func TransferSelector() []byte {
	return parsed.Methods["transfer"].ID
}

// PackTransfer 返回 selector + 参数
func PackTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	if amount == nil {
		amount = new(big.Int)
	}
	return parsed.Pack("transfer", to, amount)
}

// UnpackTransfer 从 call data 中解出真实收款人和数量
func UnpackTransfer(data []byte) (common.Address, *big.Int, error) {
	if len(data) < 4 || !bytes.Equal(data[:4], TransferSelector()) {
		return common.Address{}, nil, ErrNotTransfer
	}
	values, err := parsed.Methods["transfer"].Inputs.Unpack(data[4:])
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("erc20: unpack transfer: %w", err)
	}
	to, ok1 := values[0].(common.Address)
	amount, ok2 := values[1].(*big.Int)
	if !ok1 || !ok2 {
		return common.Address{}, nil, ErrNotTransfer
	}
	return to, amount, nil
}

// PackBalanceOf balanceOf(owner)
func PackBalanceOf(owner common.Address) ([]byte, error) {
	return parsed.Pack("balanceOf", owner)
}
