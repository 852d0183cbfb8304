package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"wallet-custody/internal/chain"
	"wallet-custody/internal/chain/erc20"
	"wallet-custody/internal/fee"
	"wallet-custody/pkg/errno"
)

// Estimator gasPrice 模型，无状态
type Estimator struct {
	cfg    chain.Config
	client Client
}

func NewEstimator(cfg chain.Config, client Client) *Estimator {
	return &Estimator{cfg: cfg, client: client}
}

// callFor 代币转账把 to 换成合约地址并编码 transfer 调用，原生转账直接携带 value。
// 估算探测和真实构建都经过这里，保证两者形状一致
func callFor(token chain.Token, recipient common.Address, amount *big.Int) (to common.Address, value *big.Int, data []byte, err error) {
	if amount == nil {
		amount = new(big.Int)
	}
	if token.IsNative() {
		return recipient, new(big.Int).Set(amount), nil, nil
	}
	data, err = erc20.PackTransfer(recipient, amount)
	if err != nil {
		return common.Address{}, nil, nil, err
	}
	return common.HexToAddress(token.ContractAddress), new(big.Int), data, nil
}

type feeData struct {
	gasPrice *big.Int
	tipCap   *big.Int
	head     *types.Header
	nonce    uint64
}

// fetchFeeData 费率与 pending nonce 互不依赖，并发读取
func (e *Estimator) fetchFeeData(ctx context.Context, from common.Address) (*feeData, error) {
	var fd feeData
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fd.gasPrice, err = e.client.SuggestGasPrice(gctx)
		return err
	})
	if e.cfg.SupportsEIP1559 {
		g.Go(func() error {
			var err error
			fd.tipCap, err = e.client.SuggestGasTipCap(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			fd.head, err = e.client.HeaderByNumber(gctx, nil)
			return err
		})
	}
	g.Go(func() error {
		var err error
		fd.nonce, err = e.client.PendingNonceAt(gctx, from)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &fd, nil
}

// EstimateFees 零值探测交易估算 gas；代币转账的探测为 transfer(from, 0)
func (e *Estimator) EstimateFees(ctx context.Context, req fee.EstimateRequest) (fee.Quote, error) {
	if !e.cfg.IsValidAddress(req.From) {
		return nil, fmt.Errorf("%w: from %q", errno.ErrInvalidAddress, req.From)
	}
	if !req.Token.IsNative() && !e.cfg.IsValidAddress(req.Token.ContractAddress) {
		return nil, fmt.Errorf("%w: token contract %q", errno.ErrInvalidAddress, req.Token.ContractAddress)
	}
	from := common.HexToAddress(req.From)

	fd, err := e.fetchFeeData(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("%w: fee data: %w", errno.ErrEstimationFailure, err)
	}

	probeTo := from
	if req.Token.IsNative() && e.cfg.IsValidAddress(req.To) {
		probeTo = common.HexToAddress(req.To)
	}
	to, value, data, err := callFor(req.Token, probeTo, big.NewInt(0))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errno.ErrEstimationFailure, err)
	}
	rawGas, err := e.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: estimate gas: %w", errno.ErrEstimationFailure, err)
	}
	if fd.gasPrice == nil {
		return nil, fmt.Errorf("%w: node returned no gas price", errno.ErrEstimationFailure)
	}

	q := &fee.GasQuote{
		GasPrice: fd.gasPrice,
		Nonce:    fd.nonce,
	}
	if e.cfg.SupportsEIP1559 {
		q.MaxPriorityFeePerGas = fd.tipCap
		q.MaxFeePerGas = maxFeePerGas(fd)
	}
	q.GasUnits, q.TotalFee = fee.GasTotal(rawGas, fee.Tolerance(req.Token), q.EffectivePrice())
	return q, nil
}

// maxFeePerGas = 2 × baseFee + tip；节点不返回 baseFee 时退回 gasPrice
func maxFeePerGas(fd *feeData) *big.Int {
	tip := fd.tipCap
	if tip == nil {
		tip = new(big.Int)
	}
	if fd.head == nil || fd.head.BaseFee == nil {
		return new(big.Int).Add(fd.gasPrice, tip)
	}
	out := new(big.Int).Mul(fd.head.BaseFee, big.NewInt(2))
	return out.Add(out, tip)
}
