package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"go.uber.org/zap"

	"wallet-custody/internal/chain"
	"wallet-custody/internal/chain/erc20"
	"wallet-custody/internal/fee"
	"wallet-custody/internal/hardware/ledger"
	"wallet-custody/internal/model"
	"wallet-custody/internal/txn"
	"wallet-custody/pkg/errno"
	"wallet-custody/pkg/logger"
)

// Builder EVM 链交易构建器，实现 txn.Stages
type Builder struct {
	cfg       chain.Config
	client    Client
	estimator *Estimator
	keys      txn.KeyProvider
	devices   txn.TransportOpener
	resolver  ledger.Resolver
	signer    types.Signer
	log       *zap.Logger
}

func NewBuilder(cfg chain.Config, client Client, estimator *Estimator, keys txn.KeyProvider, devices txn.TransportOpener, resolver ledger.Resolver) *Builder {
	if resolver == nil {
		resolver = ledger.BlindResolver{}
	}
	return &Builder{
		cfg:       cfg,
		client:    client,
		estimator: estimator,
		keys:      keys,
		devices:   devices,
		resolver:  resolver,
		signer:    types.LatestSignerForChainID(big.NewInt(cfg.NetworkID)),
		log:       logger.Named("evm").With(zap.String("chain", string(cfg.ID))),
	}
}

var _ txn.Stages[*types.Transaction, *types.Transaction] = (*Builder)(nil)

// BuildAndSend ESTIMATE → BUILD_UNSIGNED → SIGN → BROADCAST
func (b *Builder) BuildAndSend(ctx context.Context, req *txn.SignRequest) (*txn.Broadcast, error) {
	return txn.Execute[*types.Transaction, *types.Transaction](ctx, b, req)
}

// Estimate 与 estimateFees 使用同一个估算器和同一份输入
func (b *Builder) Estimate(ctx context.Context, req *txn.SignRequest) (fee.Quote, error) {
	return b.estimator.EstimateFees(ctx, req.EstimateRequest())
}

func (b *Builder) BuildUnsigned(_ context.Context, req *txn.SignRequest, q fee.Quote) (*types.Transaction, error) {
	gq, ok := q.(*fee.GasQuote)
	if !ok {
		return nil, fmt.Errorf("evm: unexpected quote type %T", q)
	}
	if !b.cfg.IsValidAddress(req.To) {
		return nil, fmt.Errorf("%w: to %q", errno.ErrInvalidAddress, req.To)
	}
	if req.Amount == nil || req.Amount.Sign() < 0 {
		return nil, errno.ErrInvalidAmount
	}
	to, value, data, err := callFor(req.Token, common.HexToAddress(req.To), req.Amount)
	if err != nil {
		return nil, err
	}

	if b.cfg.SupportsEIP1559 {
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   big.NewInt(b.cfg.NetworkID),
			Nonce:     gq.Nonce,
			GasTipCap: gq.MaxPriorityFeePerGas,
			GasFeeCap: gq.MaxFeePerGas,
			Gas:       gq.GasUnits,
			To:        &to,
			Value:     value,
			Data:      data,
		}), nil
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    gq.Nonce,
		GasPrice: gq.GasPrice,
		Gas:      gq.GasUnits,
		To:       &to,
		Value:    value,
		Data:     data,
	}), nil
}

func (b *Builder) Sign(ctx context.Context, req *txn.SignRequest, tx *types.Transaction) (*types.Transaction, error) {
	if req.Method.Software != nil {
		return b.signSoftware(ctx, req, tx)
	}
	return b.signHardware(ctx, req, tx)
}

func (b *Builder) signSoftware(ctx context.Context, req *txn.SignRequest, tx *types.Transaction) (*types.Transaction, error) {
	keyHex, err := b.keys.GetKey(ctx, b.cfg.ID, req.Method.Software.Password)
	if err != nil {
		return nil, err
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("evm: malformed private key: %w", err)
	}
	if addr := crypto.PubkeyToAddress(key.PublicKey); !strings.EqualFold(addr.Hex(), req.From) {
		return nil, fmt.Errorf("%w: stored key belongs to %s, not %s", errno.ErrInvalidSignInformation, addr.Hex(), req.From)
	}
	return types.SignTx(tx, b.signer, key)
}

// signHardware 打开传输 -> 校验地址 -> 发送未签名 RLP -> 拼回签名，任何路径都会关闭传输
func (b *Builder) signHardware(ctx context.Context, req *txn.SignRequest, tx *types.Transaction) (*types.Transaction, error) {
	hw := req.Method.Hardware
	if b.devices == nil {
		return nil, errno.ErrNoDeviceConnected
	}
	t, err := b.devices.Connect(ctx, hw.Transport)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errno.ErrNoDeviceConnected
	}
	defer func() {
		if cerr := t.Close(); cerr != nil {
			b.log.Warn("close transport", zap.Error(cerr))
		}
	}()

	app := ledger.NewEthApp(t)
	path := b.cfg.PathForAccount(hw.DeviceIndex)
	addr, err := app.GetAddress(path)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(addr, req.From) {
		return nil, fmt.Errorf("%w: device account %d is %s, not %s", errno.ErrInvalidSignInformation, hw.DeviceIndex, addr, req.From)
	}

	payload, err := UnsignedPayload(tx, b.cfg.NetworkID)
	if err != nil {
		return nil, err
	}
	resolution, err := b.resolver.Resolve(ctx, payload)
	if err != nil {
		return nil, err
	}
	sig, err := app.SignTransaction(path, payload, resolution)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, 0, crypto.SignatureLength)
	raw = append(raw, sig.R[:]...)
	raw = append(raw, sig.S[:]...)
	raw = append(raw, recoveryID(tx, sig.V))
	return tx.WithSignature(b.signer, raw)
}

// UnsignedPayload 设备期望的未签名序列化：
// legacy 为 EIP-155 的 9 字段 RLP，typed 为 type || rlp(fields)
func UnsignedPayload(tx *types.Transaction, chainID int64) ([]byte, error) {
	id := big.NewInt(chainID)
	switch tx.Type() {
	case types.LegacyTxType:
		return rlp.EncodeToBytes([]interface{}{
			tx.Nonce(), tx.GasPrice(), tx.Gas(), tx.To(), tx.Value(), tx.Data(),
			id, uint(0), uint(0),
		})
	case types.DynamicFeeTxType:
		enc, err := rlp.EncodeToBytes([]interface{}{
			id, tx.Nonce(), tx.GasTipCap(), tx.GasFeeCap(), tx.Gas(), tx.To(), tx.Value(), tx.Data(),
			types.AccessList{},
		})
		if err != nil {
			return nil, err
		}
		return append([]byte{types.DynamicFeeTxType}, enc...), nil
	default:
		return nil, fmt.Errorf("evm: unsupported tx type %d", tx.Type())
	}
}

// recoveryID 设备返回的 v 转换为 0/1。
// legacy 的 v = chainId*2+35+recid (只保留低字节，奇偶不变)；typed 为 0/1 或 27/28
func recoveryID(tx *types.Transaction, v byte) byte {
	if tx.Type() == types.LegacyTxType {
		return 1 - (v & 1)
	}
	return v % 27
}

func (b *Builder) Broadcast(ctx context.Context, req *txn.SignRequest, signed *types.Transaction) (*txn.Broadcast, error) {
	if err := b.client.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("%w: %w", errno.ErrBroadcastFailure, err)
	}
	return &txn.Broadcast{
		Chain:     b.cfg.ID,
		Hash:      signed.Hash().Hex(),
		From:      common.HexToAddress(req.From).Hex(),
		To:        signed.To().Hex(),
		Value:     signed.Value(),
		Data:      signed.Data(),
		Timestamp: time.Now().Unix(),
	}, nil
}

// NormalizeForStorage 代币转账从 call data 还原真实收款人和数量
func (b *Builder) NormalizeForStorage(_ context.Context, bc *txn.Broadcast) (*model.TxRecord, error) {
	rec := &model.TxRecord{
		Hash:      bc.Hash,
		ChainID:   string(b.cfg.ID),
		From:      bc.From,
		To:        bc.To,
		Value:     bigString(bc.Value),
		Timestamp: bc.Timestamp,
	}
	if len(bc.Data) == 0 {
		return rec, nil
	}
	to, amount, err := erc20.UnpackTransfer(bc.Data)
	if err != nil {
		if errors.Is(err, erc20.ErrNotTransfer) {
			rec.ContractAddress = bc.To
			return rec, nil
		}
		return nil, err
	}
	rec.ContractAddress = bc.To
	rec.To = to.Hex()
	rec.Value = amount.String()
	return rec, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
