package repository

import (
	"context"
	"errors"

	"bankledger/internal/model"

	"gorm.io/gorm"
)

var (
	ErrAccountNotFound = errors.New("账户不存在")
	ErrVersionConflict = errors.New("乐观锁冲突，请重试")
	ErrAccountExists   = errors.New("账号已存在")
)

// AccountRepository 账户存储的 MySQL 实现
// 唯一的余额写入原语是 CompareAndSetBalance，所有业务规则都在上层账本引擎
type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, account *model.Account) error {
	err := r.db.WithContext(ctx).Create(account).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAccountExists
	}
	return err
}

func (r *AccountRepository) Get(ctx context.Context, accountNo int64) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("account_no = ?", accountNo).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) Exists(ctx context.Context, accountNo int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("account_no = ?", accountNo).
		Count(&count).Error
	return count > 0, err
}

func (r *AccountRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*model.Account, error) {
	var accounts []*model.Account
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("account_no ASC").
		Find(&accounts).Error
	return accounts, err
}

// CompareAndSetBalance 条件写：只有版本号仍然匹配时才写入新余额
//
// 【关键点】WHERE 同时约束账号和版本号，RowsAffected == 0 有两种可能：
// 账户不存在，或者被并发写入者抢先更新。查一次当前状态区分两者，
// 由账本引擎决定是返回错误还是重读后重试。
func (r *AccountRepository) CompareAndSetBalance(ctx context.Context, accountNo int64, version int, newBalance int64) error {
	result := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("account_no = ? AND version = ?", accountNo, version).
		Updates(map[string]interface{}{
			"balance": newBalance,
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		exists, err := r.Exists(ctx, accountNo)
		if err != nil {
			return err
		}
		if !exists {
			return ErrAccountNotFound
		}
		return ErrVersionConflict
	}

	return nil
}
