package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"wallet-custody/pkg/errno"
)

// Token ContractAddress 为空表示链的原生币
type Token struct {
	Symbol          string `json:"symbol"`
	ContractAddress string `json:"contractAddress,omitempty"`
	Decimals        int32  `json:"decimals"`
}

func (t Token) IsNative() bool {
	return t.ContractAddress == ""
}

// Equal 同一条链内以合约地址为相等键
func (t Token) Equal(other Token) bool {
	return strings.EqualFold(t.ContractAddress, other.ContractAddress)
}

// ToBaseUnits 把人类可读数量转换为最小单位，精度超出 Decimals 或为负数时报错
func (t Token) ToBaseUnits(amount decimal.Decimal) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: negative amount %s", errno.ErrInvalidAmount, amount)
	}
	scaled := amount.Shift(t.Decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("%w: %s has more than %d decimals", errno.ErrInvalidAmount, amount, t.Decimals)
	}
	return scaled.BigInt(), nil
}

// FromBaseUnits 最小单位 -> 人类可读数量
func (t Token) FromBaseUnits(v *big.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -t.Decimals)
}
