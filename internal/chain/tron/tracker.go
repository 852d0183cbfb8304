package tron

import (
	"context"
	"time"

	"wallet-custody/pkg/cache"
)

// Tracker 通过 gettransactioninfobyid 与最新块高计算确认数。
// 块高缓存一个出块间隔，对账一轮内所有记录共用
type Tracker struct {
	node  Node
	heads *cache.Cache
}

func NewTracker(node Node) *Tracker {
	return &Tracker{node: node, heads: cache.New(3 * time.Second)}
}

func (t *Tracker) Confirmations(ctx context.Context, hash string) (uint64, bool, bool, error) {
	info, err := t.node.GetTransactionInfoByID(ctx, hash)
	if err != nil {
		return 0, false, false, err
	}
	if info == nil || info.BlockNumber == 0 {
		return 0, false, false, nil
	}
	head, err := t.heads.Uint64(ctx, "head", t.node.GetNowBlock)
	if err != nil {
		return 0, false, false, err
	}
	var confirmations uint64
	if head >= info.BlockNumber {
		confirmations = head - info.BlockNumber + 1
	}
	return confirmations, info.Failed(), true, nil
}
