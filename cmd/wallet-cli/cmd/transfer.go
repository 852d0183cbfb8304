package cmd

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"wallet-custody/internal/chain"
	"wallet-custody/internal/fee"
	"wallet-custody/pkg/errno"
)

// addTransferFlags estimate 与 send 共用的参数
func addTransferFlags(c *cobra.Command) {
	c.Flags().StringP("chain", "c", "ETH", "链 (ETH, BSC, POLYGON, AVAX, TRON)")
	c.Flags().String("from", "", "发送地址")
	c.Flags().String("to", "", "收款地址")
	c.Flags().StringP("amount", "a", "", "数量 (例如 1.5)")
	c.Flags().String("token", "", "代币合约地址，留空为原生币")
	c.Flags().String("symbol", "", "代币符号")
	c.Flags().Int32("decimals", 18, "代币精度")
	_ = c.MarkFlagRequired("from")
	_ = c.MarkFlagRequired("to")
}

type transferArgs struct {
	cfg    chain.Config
	from   string
	to     string
	token  chain.Token
	amount *big.Int
}

func parseTransferFlags(c *cobra.Command) (*transferArgs, error) {
	reg := application.Registry
	name, _ := c.Flags().GetString("chain")
	id, err := reg.Parse(name)
	if err != nil {
		return nil, err
	}
	t := &transferArgs{cfg: reg.Get(id)}
	t.from, _ = c.Flags().GetString("from")
	t.to, _ = c.Flags().GetString("to")

	t.token = t.cfg.NativeToken()
	if contract, _ := c.Flags().GetString("token"); contract != "" {
		symbol, _ := c.Flags().GetString("symbol")
		decimals, _ := c.Flags().GetInt32("decimals")
		t.token = chain.Token{Symbol: symbol, ContractAddress: contract, Decimals: decimals}
	}

	if raw, _ := c.Flags().GetString("amount"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errno.ErrInvalidAmount, err)
		}
		if t.amount, err = t.token.ToBaseUnits(d); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *transferArgs) estimateRequest() fee.EstimateRequest {
	return fee.EstimateRequest{Chain: t.cfg.ID, From: t.from, To: t.to, Token: t.token, Amount: t.amount}
}

// printQuote 同时输出最小单位与原生币数量
func printQuote(cfg chain.Config, q fee.Quote) {
	native := cfg.NativeToken()
	fmt.Println("================ 费用预估 ================")
	switch v := q.(type) {
	case *fee.GasQuote:
		fmt.Printf("GasUnits:     %d\n", v.GasUnits)
		fmt.Printf("GasPrice:     %s\n", v.GasPrice)
		if v.MaxFeePerGas != nil {
			fmt.Printf("MaxFee:       %s\n", v.MaxFeePerGas)
			fmt.Printf("PriorityFee:  %s\n", v.MaxPriorityFeePerGas)
		}
	case *fee.CreditQuote:
		fmt.Printf("Bandwidth:    %d needed / %d available\n", v.BandwidthNeeded, v.AccountBandwidth)
		fmt.Printf("Energy:       %d needed / %d available\n", v.EnergyNeeded, v.AccountEnergy)
		fmt.Printf("Activation:   %d\n", v.ActivationFee)
	}
	fmt.Printf("Total:        %s (%s %s)\n", q.Total(), native.FromBaseUnits(q.Total()), native.Symbol)
	fmt.Println("==========================================")
}
