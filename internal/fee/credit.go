package fee

const (
	// SignatureAllowance 签名占用的十六进制字符数
	SignatureAllowance = 131
	// BandwidthOverhead 交易结构的固定开销
	BandwidthOverhead = 68
)

// CreditPrices 资源单价，单位 sun
type CreditPrices struct {
	Bandwidth  int64
	Energy     int64
	Activation int64
}

// DefaultCreditPrices 主网默认价格
var DefaultCreditPrices = CreditPrices{
	Bandwidth:  1000,
	Energy:     420,
	Activation: 1_100_000,
}

// BandwidthNeeded ceil((L + 131) / 2) + 68，L 为未签名交易的十六进制长度
func BandwidthNeeded(rawTxHexLen int) int64 {
	n := int64(rawTxHexLen + SignatureAllowance)
	return (n+1)/2 + BandwidthOverhead
}

// CreditUsage 一笔交易对账户资源的需求
type CreditUsage struct {
	BandwidthNeeded  int64
	EnergyNeeded     int64
	AccountBandwidth int64
	AccountEnergy    int64
	// NeedsActivation 收款账户尚未上链
	NeedsActivation bool
}

// Price 超出账户剩余额度的部分按单价计费
func (u CreditUsage) Price(p CreditPrices) *CreditQuote {
	q := &CreditQuote{
		BandwidthNeeded:  u.BandwidthNeeded,
		EnergyNeeded:     u.EnergyNeeded,
		AccountBandwidth: u.AccountBandwidth,
		AccountEnergy:    u.AccountEnergy,
		BandwidthFee:     missing(u.BandwidthNeeded, u.AccountBandwidth) * p.Bandwidth,
		EnergyFee:        missing(u.EnergyNeeded, u.AccountEnergy) * p.Energy,
	}
	if u.NeedsActivation {
		q.ActivationFee = p.Activation
	}
	q.TotalFee = q.BandwidthFee + q.EnergyFee + q.ActivationFee
	return q
}

func missing(needed, available int64) int64 {
	if available < 0 {
		available = 0
	}
	if needed <= available {
		return 0
	}
	return needed - available
}
