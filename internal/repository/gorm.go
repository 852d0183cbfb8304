package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wallet-custody/internal/model"
)

// GormRepository postgres 实现
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Save(ctx context.Context, rec *model.TxRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rec).Error
}

func (r *GormRepository) Get(ctx context.Context, chainID, hash string) (*model.TxRecord, error) {
	var rec model.TxRecord
	err := r.db.WithContext(ctx).
		Where("chain_id = ? AND hash = ?", chainID, hash).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *GormRepository) ListPending(ctx context.Context, limit int) ([]*model.TxRecord, error) {
	var recs []*model.TxRecord
	q := r.db.WithContext(ctx).Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *GormRepository) UpdateStatus(ctx context.Context, id uint64, confirmations uint64, isError bool) error {
	res := r.db.WithContext(ctx).Model(&model.TxRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"confirmations": confirmations,
			"is_error":      isError,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *GormRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Delete(&model.TxRecord{}, id).Error
}

// DeleteByAddress EVM 地址大小写不敏感
func (r *GormRepository) DeleteByAddress(ctx context.Context, address string) (int64, error) {
	q := r.db.WithContext(ctx)
	if strings.HasPrefix(address, "0x") {
		q = q.Where("LOWER(\"from\") = ?", strings.ToLower(address))
	} else {
		q = q.Where("\"from\" = ?", address)
	}
	res := q.Delete(&model.TxRecord{})
	return res.RowsAffected, res.Error
}
