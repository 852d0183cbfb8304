package evm

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"wallet-custody/pkg/cache"
)

// Tracker 通过 receipt 计算确认数，块高缓存 2 秒
type Tracker struct {
	client Client
	heads  *cache.Cache
}

func NewTracker(client Client) *Tracker {
	return &Tracker{client: client, heads: cache.New(2 * time.Second)}
}

func (t *Tracker) Confirmations(ctx context.Context, hash string) (uint64, bool, bool, error) {
	receipt, err := t.client.TransactionReceipt(ctx, common.HexToHash(hash))
	if errors.Is(err, ethereum.NotFound) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, err
	}
	head, err := t.heads.Uint64(ctx, "head", t.client.BlockNumber)
	if err != nil {
		return 0, false, false, err
	}
	var confirmations uint64
	if receipt.BlockNumber != nil && head >= receipt.BlockNumber.Uint64() {
		confirmations = head - receipt.BlockNumber.Uint64() + 1
	}
	return confirmations, receipt.Status == types.ReceiptStatusFailed, true, nil
}
