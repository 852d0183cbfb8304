// Package dispatcher 是与链无关的门面：按 ChainID 找到对应的估算器、构建器与地址校验，
// 并负责发送后的落库与事件投递。
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"wallet-custody/internal/chain"
	"wallet-custody/internal/event"
	"wallet-custody/internal/fee"
	"wallet-custody/internal/hardware"
	"wallet-custody/internal/hardware/ledger"
	"wallet-custody/internal/model"
	"wallet-custody/internal/repository"
	"wallet-custody/internal/txn"
	"wallet-custody/pkg/errno"
	"wallet-custody/pkg/logger"
	"wallet-custody/pkg/monitor"
)

// Strategy 一条链的全部策略，启动时注册，缺一不可
type Strategy struct {
	Estimator txn.FeeEstimator
	Builder   txn.Builder
	Tracker   txn.Tracker
}

func (s Strategy) complete() bool {
	return s.Estimator != nil && s.Builder != nil && s.Tracker != nil
}

// SendResult 一次成功发送的结果
type SendResult struct {
	Hash   string          `json:"hash"`
	Record *model.TxRecord `json:"record,omitempty"`
	Fee    fee.Quote       `json:"fee"`
}

type Dispatcher struct {
	registry   *chain.Registry
	strategies map[chain.ChainID]Strategy
	repo       repository.TxRecordRepository
	events     *event.Publisher
	devices    txn.TransportOpener
	log        *zap.Logger
}

// New 校验注册表中每条链都有完整策略，否则返回错误 (启动期错误，调用方应直接退出)
func New(registry *chain.Registry, strategies map[chain.ChainID]Strategy, repo repository.TxRecordRepository, events *event.Publisher, devices txn.TransportOpener) (*Dispatcher, error) {
	var missing []string
	for _, id := range registry.IDs() {
		if s, ok := strategies[id]; !ok || !s.complete() {
			missing = append(missing, string(id))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("dispatcher: incomplete strategy for %v", missing)
	}
	if events == nil {
		events = event.NewPublisher(nil, "")
	}
	return &Dispatcher{
		registry:   registry,
		strategies: strategies,
		repo:       repo,
		events:     events,
		devices:    devices,
		log:        logger.Named("dispatcher"),
	}, nil
}

func (d *Dispatcher) Registry() *chain.Registry {
	return d.registry
}

// Trackers 供对账使用
func (d *Dispatcher) Trackers() map[chain.ChainID]txn.Tracker {
	out := make(map[chain.ChainID]txn.Tracker, len(d.strategies))
	for id, s := range d.strategies {
		out[id] = s.Tracker
	}
	return out
}

func (d *Dispatcher) strategy(id chain.ChainID) (chain.Config, Strategy, error) {
	cfg, ok := d.registry.Lookup(id)
	if !ok {
		return chain.Config{}, Strategy{}, fmt.Errorf("%w: %q", errno.ErrUnsupportedChain, id)
	}
	return cfg, d.strategies[id], nil
}

// EstimateFees 预览费用
func (d *Dispatcher) EstimateFees(ctx context.Context, req fee.EstimateRequest) (q fee.Quote, err error) {
	_, s, err := d.strategy(req.Chain)
	if err != nil {
		return nil, err
	}
	defer func() {
		monitor.FeeEstimateTotal.WithLabelValues(string(req.Chain), monitor.Result(err)).Inc()
	}()
	return s.Estimator.EstimateFees(ctx, req)
}

// Send 执行完整流水线并把结果落库。
// NORMALIZE 失败时交易已经上链，返回带 hash 的结果以及 NORMALIZE 阶段错误。
func (d *Dispatcher) Send(ctx context.Context, req *txn.SignRequest) (*SendResult, error) {
	_, s, err := d.strategy(req.Chain)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	log := d.log.With(zap.String("chain", string(req.Chain)), zap.String("from", req.From))

	b, err := s.Builder.BuildAndSend(ctx, req)
	if err != nil {
		d.observeSend(req.Chain, err)
		log.Warn("send failed", zap.Error(err))
		return nil, err
	}
	res := &SendResult{Hash: b.Hash, Fee: b.Quote}

	rec, err := s.Builder.NormalizeForStorage(ctx, b)
	if err == nil {
		err = d.repo.Save(ctx, rec)
	}
	if err != nil {
		err = &txn.StageError{Stage: txn.StageNormalize, Err: err}
		d.observeSend(req.Chain, err)
		log.Error("transaction sent but not recorded", zap.String("hash", b.Hash), zap.Error(err))
		return res, err
	}
	res.Record = rec

	if err := d.events.TxSent(ctx, event.NewTxSentEvent(rec, quoteTotal(b.Quote))); err != nil {
		log.Warn("publish tx sent event", zap.String("hash", b.Hash), zap.Error(err))
	}

	d.observeSend(req.Chain, nil)
	monitor.SendDuration.WithLabelValues(string(req.Chain)).Observe(time.Since(start).Seconds())
	log.Info("transaction sent", zap.String("hash", b.Hash))
	return res, nil
}

func (d *Dispatcher) observeSend(id chain.ChainID, err error) {
	stage := string(txn.StageNormalize)
	var se *txn.StageError
	if errors.As(err, &se) {
		stage = string(se.Stage)
	}
	monitor.SendTotal.WithLabelValues(string(id), stage, monitor.Result(err)).Inc()
}

func quoteTotal(q fee.Quote) string {
	if q == nil {
		return "0"
	}
	return q.Total().String()
}

// IsValidAddress 未注册的链一律返回 false
func (d *Dispatcher) IsValidAddress(id chain.ChainID, address string) bool {
	cfg, ok := d.registry.Lookup(id)
	if !ok {
		return false
	}
	return cfg.IsValidAddress(address)
}

// ConnectHardwareDevice 连接设备并读取 deviceIndex 对应账户的地址，读取后立即关闭传输。
// 没有发现设备时返回空地址。
func (d *Dispatcher) ConnectHardwareDevice(ctx context.Context, id chain.ChainID, kind hardware.Kind, deviceIndex int) (string, error) {
	cfg, _, err := d.strategy(id)
	if err != nil {
		return "", err
	}
	if !kind.Valid() {
		return "", fmt.Errorf("%w: unknown transport %q", errno.ErrInvalidSignInformation, kind)
	}
	if d.devices == nil {
		return "", errno.ErrNoDeviceConnected
	}

	t, err := d.devices.Connect(ctx, kind)
	if err != nil {
		return "", err
	}
	if t == nil {
		return "", nil
	}
	defer func() {
		if cerr := t.Close(); cerr != nil {
			d.log.Warn("close transport", zap.Error(cerr))
		}
	}()

	path := cfg.PathForAccount(deviceIndex)
	if cfg.UsesGasPriceFeeModel {
		return ledger.NewEthApp(t).GetAddress(path)
	}
	return ledger.NewTronApp(t).GetAddress(path)
}
