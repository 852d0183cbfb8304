package handler

import (
	"fmt"
	"math/big"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"wallet-custody/internal/chain"
	"wallet-custody/internal/fee"
	"wallet-custody/internal/handler/request"
	"wallet-custody/pkg/errno"
)

// transfer 把请求中的链、代币与人类可读金额转换为领域类型
type transfer struct {
	cfg    chain.Config
	token  chain.Token
	amount *big.Int
}

func parseTransfer(reg *chain.Registry, req request.TransferRequest, amount string) (*transfer, error) {
	id, err := reg.Parse(req.Chain)
	if err != nil {
		return nil, err
	}
	cfg := reg.Get(id)
	token := cfg.NativeToken()
	if req.Token != nil {
		token = chain.Token{
			Symbol:          req.Token.Symbol,
			ContractAddress: req.Token.ContractAddress,
			Decimals:        req.Token.Decimals,
		}
	}
	t := &transfer{cfg: cfg, token: token}
	if amount == "" {
		return t, nil
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errno.ErrInvalidAmount, err)
	}
	if t.amount, err = token.ToBaseUnits(d); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *transfer) estimateRequest(req request.TransferRequest) fee.EstimateRequest {
	return fee.EstimateRequest{
		Chain:  t.cfg.ID,
		From:   req.From,
		To:     req.To,
		Token:  t.token,
		Amount: t.amount,
	}
}

// feeView 报价加上以原生币计的可读总额
func feeView(cfg chain.Config, q fee.Quote) gin.H {
	if q == nil {
		return gin.H{}
	}
	model := "gas"
	if _, ok := q.(*fee.CreditQuote); ok {
		model = "credit"
	}
	native := cfg.NativeToken()
	return gin.H{
		"model":         model,
		"quote":         q,
		"total":         q.Total().String(),
		"total_display": native.FromBaseUnits(q.Total()).String() + " " + native.Symbol,
	}
}
