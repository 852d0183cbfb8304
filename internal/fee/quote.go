// Package fee 定义两种计费模型的报价类型以及与链无关的计算公式。
package fee

import (
	"math/big"

	"wallet-custody/internal/chain"
)

// Quote 报价的和类型，只有 GasQuote 与 CreditQuote 两个实现。
// 调用方用 type switch 区分。
type Quote interface {
	// Total 以原生币最小单位计的总费用
	Total() *big.Int
	quote()
}

// GasQuote gasPrice 模型 (EVM)
type GasQuote struct {
	GasPrice *big.Int `json:"gasPrice"`
	// GasUnits 已乘容差系数
	GasUnits uint64 `json:"gasUnits"`
	// MaxFeePerGas / MaxPriorityFeePerGas 仅 EIP-1559 链非空
	MaxFeePerGas         *big.Int `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *big.Int `json:"maxPriorityFeePerGas,omitempty"`
	// Nonce 与费率同一批读取，构建交易时直接使用
	Nonce    uint64   `json:"nonce"`
	TotalFee *big.Int `json:"totalFee"`
}

func (q *GasQuote) Total() *big.Int { return new(big.Int).Set(q.TotalFee) }
func (*GasQuote) quote()            {}

// EffectivePrice 计费使用的单价
func (q *GasQuote) EffectivePrice() *big.Int {
	if q.MaxFeePerGas != nil {
		return q.MaxFeePerGas
	}
	return q.GasPrice
}

// CreditQuote 带宽/能量模型 (Tron)，单位均为 sun
type CreditQuote struct {
	BandwidthNeeded  int64 `json:"bandwidthNeeded"`
	EnergyNeeded     int64 `json:"energyNeeded"`
	AccountBandwidth int64 `json:"accountBandwidth"`
	AccountEnergy    int64 `json:"accountEnergy"`
	BandwidthFee     int64 `json:"bandwidthFee"`
	EnergyFee        int64 `json:"energyFee"`
	ActivationFee    int64 `json:"activationFee"`
	TotalFee         int64 `json:"totalFee"`
}

func (q *CreditQuote) Total() *big.Int { return big.NewInt(q.TotalFee) }
func (*CreditQuote) quote()            {}

// EstimateRequest estimateFees 的输入，Amount 为 nil 表示只预估费用
type EstimateRequest struct {
	Chain  chain.ChainID
	From   string
	To     string
	Token  chain.Token
	Amount *big.Int
}

// Tolerance 合约调用的 gas 估算乘 2，原生转账乘 1
func Tolerance(token chain.Token) uint64 {
	if token.IsNative() {
		return 1
	}
	return 2
}

// GasTotal totalFee = gasUnits × tolerance × price
func GasTotal(rawGasUnits, tolerance uint64, price *big.Int) (units uint64, total *big.Int) {
	units = rawGasUnits * tolerance
	total = new(big.Int).Mul(new(big.Int).SetUint64(units), price)
	return units, total
}
