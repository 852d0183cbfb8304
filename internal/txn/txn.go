// Package txn 描述一次发送的输入、签名方式以及 ESTIMATE → BUILD_UNSIGNED → SIGN → BROADCAST → NORMALIZE 流水线。
package txn

import (
	"context"
	"fmt"
	"math/big"

	"wallet-custody/internal/chain"
	"wallet-custody/internal/fee"
	"wallet-custody/internal/hardware"
	"wallet-custody/internal/model"
	"wallet-custody/pkg/errno"
)

// Stage 流水线阶段
type Stage string

const (
	StageEstimate      Stage = "ESTIMATE"
	StageBuildUnsigned Stage = "BUILD_UNSIGNED"
	StageSign          Stage = "SIGN"
	StageBroadcast     Stage = "BROADCAST"
	StageNormalize     Stage = "NORMALIZE"
)

// StageError 标记失败发生在哪个阶段，不做自动重试
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// SoftwareSigner 使用本地存储的私钥。Password 仅在开启双重加密时需要
type SoftwareSigner struct {
	Password string
}

// HardwareSigner 使用外部签名设备，DeviceIndex 对应 BIP44 account
type HardwareSigner struct {
	DeviceIndex int
	Transport   hardware.Kind
}

// SigningMethod 二选一
type SigningMethod struct {
	Software *SoftwareSigner
	Hardware *HardwareSigner
}

// Validate 两种方式都没给或都给了都视为无效
func (m SigningMethod) Validate() error {
	if (m.Software == nil) == (m.Hardware == nil) {
		return errno.ErrInvalidSignInformation
	}
	if m.Hardware != nil && !m.Hardware.Transport.Valid() {
		return fmt.Errorf("%w: unknown transport %q", errno.ErrInvalidSignInformation, m.Hardware.Transport)
	}
	return nil
}

// SignRequest 每次发送构造一次，用完即弃，不落库
type SignRequest struct {
	Chain  chain.ChainID
	From   string
	To     string
	Token  chain.Token
	Amount *big.Int
	// FeeQuote 调用方预览时得到的报价，仅用于对比；流水线总是重新估算
	FeeQuote fee.Quote
	Method   SigningMethod
}

// EstimateRequest 估算阶段使用与预览完全相同的输入
func (r *SignRequest) EstimateRequest() fee.EstimateRequest {
	return fee.EstimateRequest{
		Chain:  r.Chain,
		From:   r.From,
		To:     r.To,
		Token:  r.Token,
		Amount: r.Amount,
	}
}

// Broadcast 节点接受后的结果，NORMALIZE 的输入
type Broadcast struct {
	Chain     chain.ChainID
	Hash      string
	From      string
	To        string
	Value     *big.Int
	Data      []byte
	Timestamp int64
	Quote     fee.Quote
}

// KeyProvider 取出指定链的明文私钥 (hex)
type KeyProvider interface {
	GetKey(ctx context.Context, id chain.ChainID, password string) (string, error)
}

// TransportOpener 打开一个硬件传输；无设备时可能返回 (nil, nil)
type TransportOpener interface {
	Connect(ctx context.Context, kind hardware.Kind) (hardware.Transport, error)
}

// FeeEstimator 每种计费模型一个实现
type FeeEstimator interface {
	EstimateFees(ctx context.Context, req fee.EstimateRequest) (fee.Quote, error)
}

// Builder 每个链族一个实现
type Builder interface {
	// BuildAndSend 执行 ESTIMATE 到 BROADCAST，失败时返回 *StageError
	BuildAndSend(ctx context.Context, req *SignRequest) (*Broadcast, error)
	// NormalizeForStorage 把广播结果转换为待对账记录
	NormalizeForStorage(ctx context.Context, b *Broadcast) (*model.TxRecord, error)
}

// Tracker 查询链上确认数，供对账使用
type Tracker interface {
	// Confirmations 返回确认数；found=false 表示节点尚未看到该交易
	Confirmations(ctx context.Context, hash string) (confirmations uint64, failed bool, found bool, err error)
}
