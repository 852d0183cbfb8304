// Package repository 持久化已广播的交易记录 (SignedTxRecord)
package repository

import (
	"context"
	"errors"

	"wallet-custody/internal/model"
)

var ErrRecordNotFound = errors.New("record not found")

// TxRecordRepository 待对账交易记录的存取
type TxRecordRepository interface {
	// Save 同一链上重复的 hash 视为幂等写入
	Save(ctx context.Context, rec *model.TxRecord) error
	Get(ctx context.Context, chainID, hash string) (*model.TxRecord, error)
	// ListPending 按创建顺序返回尚未删除的记录
	ListPending(ctx context.Context, limit int) ([]*model.TxRecord, error)
	UpdateStatus(ctx context.Context, id uint64, confirmations uint64, isError bool) error
	Delete(ctx context.Context, id uint64) error
	// DeleteByAddress 钱包销毁时删除其发出的所有记录
	DeleteByAddress(ctx context.Context, address string) (int64, error)
}
