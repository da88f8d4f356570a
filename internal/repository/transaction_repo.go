package repository

import (
	"context"

	"bankledger/internal/model"

	"gorm.io/gorm"
)

// TransactionLogRepository 账户流水的 MySQL 实现
// 只追加：没有任何更新或删除方法
type TransactionLogRepository struct {
	db *gorm.DB
}

func NewTransactionLogRepository(db *gorm.DB) *TransactionLogRepository {
	return &TransactionLogRepository{db: db}
}

// Append 追加一条流水，ID 与时间戳由存储层分配
func (r *TransactionLogRepository) Append(ctx context.Context, record *model.TransactionRecord) (*model.TransactionRecord, error) {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// RecentByAccountNo 按时间倒序返回最近的流水
func (r *TransactionLogRepository) RecentByAccountNo(ctx context.Context, accountNo int64, limit int) ([]*model.TransactionRecord, error) {
	var records []*model.TransactionRecord
	err := r.db.WithContext(ctx).
		Where("account_no = ?", accountNo).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// AllByAccountNo 按时间升序返回账户的全部流水
func (r *TransactionLogRepository) AllByAccountNo(ctx context.Context, accountNo int64) ([]*model.TransactionRecord, error) {
	var records []*model.TransactionRecord
	err := r.db.WithContext(ctx).
		Where("account_no = ?", accountNo).
		Order("created_at ASC, id ASC").
		Find(&records).Error
	return records, err
}
