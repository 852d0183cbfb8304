package tron

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"wallet-custody/internal/chain"
	"wallet-custody/internal/chain/erc20"
	"wallet-custody/internal/fee"
	"wallet-custody/pkg/address"
	"wallet-custody/pkg/errno"
)

// Node 估算与构建用到的节点能力，*Client 实现
type Node interface {
	GetAccountResource(ctx context.Context, address string) (*AccountResource, error)
	CreateTransaction(ctx context.Context, from, to string, amount int64) (*Transaction, error)
	TriggerSmartContract(ctx context.Context, call ContractCall) (*Transaction, error)
	TriggerConstantContract(ctx context.Context, call ContractCall) (int64, error)
	BroadcastTransaction(ctx context.Context, tx *Transaction) error
	GetTransactionInfoByID(ctx context.Context, id string) (*TransactionInfo, error)
	GetNowBlock(ctx context.Context) (uint64, error)
}

var _ Node = (*Client)(nil)

// probeAmount 未给出数量时的探测金额 (节点拒绝 0 金额转账)
const probeAmount = 1

// Estimator 带宽/能量模型
type Estimator struct {
	cfg      chain.Config
	node     Node
	prices   fee.CreditPrices
	feeLimit int64
}

func NewEstimator(cfg chain.Config, node Node, prices fee.CreditPrices, feeLimit int64) *Estimator {
	return &Estimator{cfg: cfg, node: node, prices: prices, feeLimit: feeLimit}
}

// unsigned 构建未签名交易。估算与真实发送都经过这里
func (e *Estimator) unsigned(ctx context.Context, from, to string, token chain.Token, amount int64) (*Transaction, []byte, error) {
	if token.IsNative() {
		tx, err := e.node.CreateTransaction(ctx, from, to, amount)
		return tx, nil, err
	}
	call, data, err := e.transferCall(from, to, token, amount)
	if err != nil {
		return nil, nil, err
	}
	tx, err := e.node.TriggerSmartContract(ctx, call)
	return tx, data, err
}

// transferCall TRC20 transfer(to, amount)，参数中的地址为去掉 0x41 前缀的 20 字节
func (e *Estimator) transferCall(from, to string, token chain.Token, amount int64) (ContractCall, []byte, error) {
	account, err := address.DecodeTron(to)
	if err != nil {
		return ContractCall{}, nil, fmt.Errorf("%w: %w", errno.ErrInvalidAddress, err)
	}
	data, err := erc20.PackTransfer(common.BytesToAddress(account), big.NewInt(amount))
	if err != nil {
		return ContractCall{}, nil, err
	}
	return ContractCall{
		Owner:            from,
		Contract:         token.ContractAddress,
		FunctionSelector: erc20.TransferSignature,
		Parameter:        hex.EncodeToString(data[4:]),
		FeeLimit:         e.feeLimit,
	}, data, nil
}

// EstimateFees 原生转账额外探测收款账户是否存在；代币转账模拟执行得到能量消耗
func (e *Estimator) EstimateFees(ctx context.Context, req fee.EstimateRequest) (fee.Quote, error) {
	if !e.cfg.IsValidAddress(req.From) {
		return nil, fmt.Errorf("%w: from %q", errno.ErrInvalidAddress, req.From)
	}
	if !e.cfg.IsValidAddress(req.To) {
		return nil, fmt.Errorf("%w: to %q", errno.ErrInvalidAddress, req.To)
	}
	if !req.Token.IsNative() && !e.cfg.IsValidAddress(req.Token.ContractAddress) {
		return nil, fmt.Errorf("%w: token contract %q", errno.ErrInvalidAddress, req.Token.ContractAddress)
	}
	amount, err := estimateAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	sender, err := e.node.GetAccountResource(ctx, req.From)
	if err != nil {
		return nil, fmt.Errorf("%w: account resource: %w", errno.ErrEstimationFailure, err)
	}
	usage := fee.CreditUsage{
		AccountBandwidth: sender.AvailableBandwidth(),
		AccountEnergy:    sender.AvailableEnergy(),
	}

	if req.Token.IsNative() {
		receiver, err := e.node.GetAccountResource(ctx, req.To)
		if err != nil {
			return nil, fmt.Errorf("%w: receiver resource: %w", errno.ErrEstimationFailure, err)
		}
		usage.NeedsActivation = receiver.Empty()
	} else {
		call, _, err := e.transferCall(req.From, req.To, req.Token, amount)
		if err != nil {
			return nil, err
		}
		usage.EnergyNeeded, err = e.node.TriggerConstantContract(ctx, call)
		if err != nil {
			return nil, fmt.Errorf("%w: simulate transfer: %w", errno.ErrEstimationFailure, err)
		}
	}

	tx, _, err := e.unsigned(ctx, req.From, req.To, req.Token, amount)
	if err != nil {
		return nil, fmt.Errorf("%w: build probe: %w", errno.ErrEstimationFailure, err)
	}
	usage.BandwidthNeeded = fee.BandwidthNeeded(len(tx.RawDataHex))
	return usage.Price(e.prices), nil
}

func estimateAmount(v *big.Int) (int64, error) {
	if v == nil || v.Sign() == 0 {
		return probeAmount, nil
	}
	return toInt64(v)
}

func toInt64(v *big.Int) (int64, error) {
	if v == nil || v.Sign() <= 0 || !v.IsInt64() {
		return 0, fmt.Errorf("%w: %v", errno.ErrInvalidAmount, v)
	}
	return v.Int64(), nil
}
