package service

import (
	"context"

	"bankledger/internal/model"
)

// 存储契约
// 引擎只依赖这三个接口；MySQL 实现与内存实现都在 internal/repository，
// 多个引擎实例可以安全地共用同一份存储（引擎自身不持有可变状态）。

// AccountStore 账户存储
// CompareAndSetBalance 是唯一的余额写入原语：版本号不匹配时返回
// repository.ErrVersionConflict，由引擎重读后重试。
type AccountStore interface {
	Create(ctx context.Context, account *model.Account) error
	Get(ctx context.Context, accountNo int64) (*model.Account, error)
	Exists(ctx context.Context, accountNo int64) (bool, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*model.Account, error)
	CompareAndSetBalance(ctx context.Context, accountNo int64, version int, newBalance int64) error
}

// TransactionLog 只追加的账户流水
type TransactionLog interface {
	Append(ctx context.Context, record *model.TransactionRecord) (*model.TransactionRecord, error)
	RecentByAccountNo(ctx context.Context, accountNo int64, limit int) ([]*model.TransactionRecord, error)
	AllByAccountNo(ctx context.Context, accountNo int64) ([]*model.TransactionRecord, error)
}

// EventRecorder 接收引擎产生的事件（余额变动、待补偿流水、待补偿资金）
// 允许为 nil：无发件箱环境下引擎只写日志
type EventRecorder interface {
	RecordTransaction(ctx context.Context, record *model.TransactionRecord) error
	RecordReconciliation(ctx context.Context, record *model.TransactionRecord) error
	RecordCompensation(ctx context.Context, entry *model.CompensationEntry) error
}
