package tron

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"wallet-custody/internal/chain"
	"wallet-custody/internal/chain/erc20"
	"wallet-custody/internal/fee"
	"wallet-custody/internal/hardware/ledger"
	"wallet-custody/internal/model"
	"wallet-custody/internal/txn"
	"wallet-custody/pkg/address"
	"wallet-custody/pkg/errno"
	"wallet-custody/pkg/logger"
)

// unsignedTx 未签名交易以及 TRC20 调用数据 (原生转账为空)
type unsignedTx struct {
	tx   *Transaction
	data []byte
}

// Builder 波场交易构建器，实现 txn.Stages
type Builder struct {
	cfg       chain.Config
	node      Node
	estimator *Estimator
	keys      txn.KeyProvider
	devices   txn.TransportOpener
	log       *zap.Logger
}

func NewBuilder(cfg chain.Config, node Node, estimator *Estimator, keys txn.KeyProvider, devices txn.TransportOpener) *Builder {
	return &Builder{
		cfg:       cfg,
		node:      node,
		estimator: estimator,
		keys:      keys,
		devices:   devices,
		log:       logger.Named("tron"),
	}
}

var _ txn.Stages[*unsignedTx, *unsignedTx] = (*Builder)(nil)

func (b *Builder) BuildAndSend(ctx context.Context, req *txn.SignRequest) (*txn.Broadcast, error) {
	return txn.Execute[*unsignedTx, *unsignedTx](ctx, b, req)
}

func (b *Builder) Estimate(ctx context.Context, req *txn.SignRequest) (fee.Quote, error) {
	return b.estimator.EstimateFees(ctx, req.EstimateRequest())
}

func (b *Builder) BuildUnsigned(ctx context.Context, req *txn.SignRequest, _ fee.Quote) (*unsignedTx, error) {
	amount, err := toInt64(req.Amount)
	if err != nil {
		return nil, err
	}
	tx, data, err := b.estimator.unsigned(ctx, req.From, req.To, req.Token, amount)
	if err != nil {
		return nil, err
	}
	if err := tx.VerifyID(); err != nil {
		return nil, err
	}
	return &unsignedTx{tx: tx, data: data}, nil
}

func (b *Builder) Sign(ctx context.Context, req *txn.SignRequest, u *unsignedTx) (*unsignedTx, error) {
	var sig []byte
	var err error
	if req.Method.Software != nil {
		sig, err = b.signSoftware(ctx, req, u.tx)
	} else {
		sig, err = b.signHardware(ctx, req, u.tx)
	}
	if err != nil {
		return nil, err
	}
	// 签名格式 r|s|v，v 为 27/28
	if sig[64] < 27 {
		sig[64] += 27
	}
	u.tx.Signature = append(u.tx.Signature, hex.EncodeToString(sig))
	return u, nil
}

// signSoftware 对 txID (sha256(raw_data)) 做 secp256k1 签名
func (b *Builder) signSoftware(ctx context.Context, req *txn.SignRequest, tx *Transaction) ([]byte, error) {
	keyHex, err := b.keys.GetKey(ctx, b.cfg.ID, req.Method.Software.Password)
	if err != nil {
		return nil, err
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("tron: malformed private key: %w", err)
	}
	owner, err := address.NewTronGenerator().PubKeyToAddress(crypto.FromECDSAPub(&key.PublicKey))
	if err != nil {
		return nil, err
	}
	if owner != req.From {
		return nil, fmt.Errorf("%w: stored key belongs to %s, not %s", errno.ErrInvalidSignInformation, owner, req.From)
	}
	digest, err := hex.DecodeString(tx.TxID)
	if err != nil {
		return nil, err
	}
	return crypto.Sign(digest, key)
}

func (b *Builder) signHardware(ctx context.Context, req *txn.SignRequest, tx *Transaction) ([]byte, error) {
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

	app := ledger.NewTronApp(t)
	path := b.cfg.PathForAccount(hw.DeviceIndex)
	addr, err := app.GetAddress(path)
	if err != nil {
		return nil, err
	}
	if addr != req.From {
		return nil, fmt.Errorf("%w: device account %d is %s, not %s", errno.ErrInvalidSignInformation, hw.DeviceIndex, addr, req.From)
	}
	raw, err := hex.DecodeString(tx.RawDataHex)
	if err != nil {
		return nil, err
	}
	return app.SignTransaction(path, raw)
}

func (b *Builder) Broadcast(ctx context.Context, req *txn.SignRequest, u *unsignedTx) (*txn.Broadcast, error) {
	if err := b.node.BroadcastTransaction(ctx, u.tx); err != nil {
		return nil, fmt.Errorf("%w: %w", errno.ErrBroadcastFailure, err)
	}
	bc := &txn.Broadcast{
		Chain:     b.cfg.ID,
		Hash:      u.tx.TxID,
		From:      req.From,
		To:        req.To,
		Value:     req.Amount,
		Data:      u.data,
		Timestamp: time.Now().Unix(),
	}
	if !req.Token.IsNative() {
		bc.To = req.Token.ContractAddress
	}
	return bc, nil
}

// NormalizeForStorage TRC20 转账从调用数据还原真实收款人
func (b *Builder) NormalizeForStorage(_ context.Context, bc *txn.Broadcast) (*model.TxRecord, error) {
	rec := &model.TxRecord{
		Hash:      bc.Hash,
		ChainID:   string(b.cfg.ID),
		From:      bc.From,
		To:        bc.To,
		Value:     "0",
		Timestamp: bc.Timestamp,
	}
	if bc.Value != nil {
		rec.Value = bc.Value.String()
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
	recipient, err := address.EncodeTron(to.Bytes())
	if err != nil {
		return nil, err
	}
	rec.ContractAddress = bc.To
	rec.To = recipient
	rec.Value = amount.String()
	return rec, nil
}
