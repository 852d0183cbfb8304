package fee

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"wallet-custody/internal/chain"
)

func TestGasTotal_Scenarios(t *testing.T) {
	native := chain.Token{Symbol: "ETH", Decimals: 18}
	usdc := chain.Token{Symbol: "USDC", ContractAddress: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6}

	// 原生转账: 21000 × 1 × 50
	units, total := GasTotal(21000, Tolerance(native), big.NewInt(50))
	assert.Equal(t, uint64(21000), units)
	assert.Equal(t, "1050000", total.String())

	// 代币转账: 65000 × 2 × 80
	units, total = GasTotal(65000, Tolerance(usdc), big.NewInt(80))
	assert.Equal(t, uint64(130000), units)
	assert.Equal(t, "10400000", total.String())
}

func TestGasQuote_EffectivePrice(t *testing.T) {
	legacy := &GasQuote{GasPrice: big.NewInt(5), TotalFee: big.NewInt(1)}
	assert.Equal(t, int64(5), legacy.EffectivePrice().Int64())

	dynamic := &GasQuote{GasPrice: big.NewInt(5), MaxFeePerGas: big.NewInt(9), TotalFee: big.NewInt(1)}
	assert.Equal(t, int64(9), dynamic.EffectivePrice().Int64())

	// Total 返回副本
	dynamic.Total().SetInt64(100)
	assert.Equal(t, int64(1), dynamic.TotalFee.Int64())
}

func TestBandwidthNeeded(t *testing.T) {
	// 偶数长度 L: ceil((L+131)/2) + 68
	for _, l := range []int{0, 2, 200, 530, 1000, 4096} {
		want := int64((l+131+1)/2 + 68)
		assert.Equal(t, want, BandwidthNeeded(l), "L=%d", l)
	}
	assert.Equal(t, int64(334), BandwidthNeeded(400)) // (531)/2 向上取整 = 266
}

func TestCreditUsage_Price(t *testing.T) {
	tests := []struct {
		name  string
		usage CreditUsage
		want  int64
	}{
		{
			name:  "bandwidth shortfall only",
			usage: CreditUsage{BandwidthNeeded: 600, AccountBandwidth: 500},
			want:  100_000,
		},
		{
			name:  "free allowance covers everything",
			usage: CreditUsage{BandwidthNeeded: 268, AccountBandwidth: 1500},
			want:  0,
		},
		{
			name:  "inactive receiver",
			usage: CreditUsage{BandwidthNeeded: 268, AccountBandwidth: 1500, NeedsActivation: true},
			want:  1_100_000,
		},
		{
			name:  "token transfer energy",
			usage: CreditUsage{BandwidthNeeded: 345, AccountBandwidth: 0, EnergyNeeded: 31895, AccountEnergy: 0},
			want:  345*1000 + 31895*420,
		},
		{
			name:  "negative allowance treated as zero",
			usage: CreditUsage{BandwidthNeeded: 10, AccountBandwidth: -5},
			want:  10_000,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.usage.Price(DefaultCreditPrices)
			assert.Equal(t, tt.want, q.TotalFee)
			assert.Equal(t, q.BandwidthFee+q.EnergyFee+q.ActivationFee, q.TotalFee)
			assert.Equal(t, tt.want, q.Total().Int64())
		})
	}
}

func TestQuote_SumType(t *testing.T) {
	quotes := []Quote{
		&GasQuote{TotalFee: big.NewInt(1)},
		&CreditQuote{TotalFee: 2},
	}
	var gas, credit int
	for _, q := range quotes {
		switch q.(type) {
		case *GasQuote:
			gas++
		case *CreditQuote:
			credit++
		}
	}
	assert.Equal(t, 1, gas)
	assert.Equal(t, 1, credit)
}
