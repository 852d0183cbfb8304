// Package reconcile 定期刷新已广播交易的确认数，达到阈值后删除记录
package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"wallet-custody/internal/chain"
	"wallet-custody/internal/model"
	"wallet-custody/internal/repository"
	"wallet-custody/internal/txn"
	"wallet-custody/pkg/logger"
	"wallet-custody/pkg/monitor"
	"wallet-custody/pkg/utils/lock"
)

const (
	defaultBatch       = 200
	defaultConcurrency = 4
	lockKey            = "cron:reconcile"
)

// Result 一次刷新的统计
type Result struct {
	Checked   int `json:"checked"`
	Confirmed int `json:"confirmed"`
	Failed    int `json:"failed"`
	Pending   int `json:"pending"`
}

type Reconciler struct {
	repo     repository.TxRecordRepository
	trackers map[chain.ChainID]txn.Tracker
	depth    uint64
	interval time.Duration
	locker   lock.DistributedLock
	log      *zap.Logger

	// 防止定时任务与手动触发的 Refresh 并发执行
	mu sync.Mutex
}

type Option func(*Reconciler)

// WithLocker 定时任务执行前先获取该锁，拿不到则跳过本轮
func WithLocker(l lock.DistributedLock) Option {
	return func(r *Reconciler) { r.locker = l }
}

func NewReconciler(repo repository.TxRecordRepository, trackers map[chain.ChainID]txn.Tracker, depth uint64, interval time.Duration, opts ...Option) *Reconciler {
	if depth == 0 {
		depth = 1
	}
	r := &Reconciler{
		repo:     repo,
		trackers: trackers,
		depth:    depth,
		interval: interval,
		log:      logger.Named("reconcile"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Refresh 查询每条记录的确认数。单条查询失败只记录日志，不影响其它记录
func (r *Reconciler) Refresh(ctx context.Context) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	recs, err := r.repo.ListPending(ctx, defaultBatch)
	if err != nil {
		return Result{}, err
	}

	var (
		res     Result
		resMu   sync.Mutex
		pending = map[string]int{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultConcurrency)
	for _, rec := range recs {
		g.Go(func() error {
			outcome := r.refreshOne(gctx, rec)
			resMu.Lock()
			defer resMu.Unlock()
			res.Checked++
			switch outcome {
			case outcomeConfirmed:
				res.Confirmed++
			case outcomeFailed:
				res.Failed++
				pending[rec.ChainID]++
			default:
				res.Pending++
				pending[rec.ChainID]++
			}
			return nil
		})
	}
	_ = g.Wait()

	for id := range r.trackers {
		monitor.PendingRecords.WithLabelValues(string(id)).Set(float64(pending[string(id)]))
	}
	return res, ctx.Err()
}

type outcome int

const (
	outcomePending outcome = iota
	outcomeConfirmed
	outcomeFailed
)

func (r *Reconciler) refreshOne(ctx context.Context, rec *model.TxRecord) outcome {
	log := r.log.With(zap.String("chain", rec.ChainID), zap.String("hash", rec.Hash))

	tracker, ok := r.trackers[chain.ChainID(rec.ChainID)]
	if !ok {
		log.Warn("no tracker for chain")
		return outcomePending
	}
	confirmations, failed, found, err := tracker.Confirmations(ctx, rec.Hash)
	if err != nil {
		log.Warn("lookup confirmations", zap.Error(err))
		return outcomePending
	}
	if !found {
		return outcomePending
	}

	if confirmations >= r.depth {
		if err := r.repo.Delete(ctx, rec.ID); err != nil {
			log.Error("delete confirmed record", zap.Error(err))
			return outcomePending
		}
		log.Info("transaction confirmed", zap.Uint64("confirmations", confirmations), zap.Bool("failed", failed))
		return outcomeConfirmed
	}

	if confirmations != rec.Confirmations || failed != rec.IsError {
		if err := r.repo.UpdateStatus(ctx, rec.ID, confirmations, failed); err != nil {
			log.Error("update record", zap.Error(err))
		}
	}
	if failed {
		return outcomeFailed
	}
	return outcomePending
}

// Start 以 "@every interval" 调度 Refresh，直到 ctx 结束。
// cron 的最小粒度是 1 秒；上一轮未结束时跳过本轮
func (r *Reconciler) Start(ctx context.Context) error {
	if r.interval <= 0 {
		return nil
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc("@every "+r.interval.String(), func() { r.runScheduled(ctx) }); err != nil {
		return fmt.Errorf("schedule reconcile: %w", err)
	}
	c.Start()
	r.log.Info("reconciler started", zap.Duration("interval", r.interval), zap.Uint64("depth", r.depth))

	<-ctx.Done()
	<-c.Stop().Done()
	r.log.Info("reconciler stopped")
	return nil
}

// runScheduled 多实例共用 Redis 时只有拿到锁的实例执行
func (r *Reconciler) runScheduled(ctx context.Context) {
	if r.locker != nil {
		ok, err := r.locker.Acquire(ctx, lockKey, r.interval)
		if err != nil || !ok {
			r.log.Debug("reconcile skipped, lock held elsewhere", zap.Error(err))
			return
		}
		defer func() { _ = r.locker.Release(context.Background(), lockKey) }()
	}

	res, err := r.Refresh(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.log.Error("refresh", zap.Error(err))
		}
		return
	}
	if res.Checked > 0 {
		r.log.Debug("refresh done",
			zap.Int("checked", res.Checked),
			zap.Int("confirmed", res.Confirmed),
			zap.Int("failed", res.Failed))
	}
}
