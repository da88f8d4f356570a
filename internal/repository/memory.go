package repository

import (
	"context"
	"sync"
	"time"

	"bankledger/internal/model"
)

// ============================================================================
// 内存实现
// ============================================================================
//
// 与 MySQL 实现遵守完全相同的契约（包括 CompareAndSetBalance 的冲突语义），
// 用于单元测试和无数据库环境，不依赖任何外部服务。

// MemoryAccountStore 账户存储的内存实现
type MemoryAccountStore struct {
	mu       sync.Mutex
	accounts map[int64]*model.Account
	nextID   int64
}

func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{accounts: make(map[int64]*model.Account)}
}

func (s *MemoryAccountStore) Create(ctx context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.AccountNo]; ok {
		return ErrAccountExists
	}
	s.nextID++
	account.ID = s.nextID
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now
	cp := *account
	s.accounts[account.AccountNo] = &cp
	return nil
}

// Get 返回值拷贝，避免调用方绕过 CAS 直接改写内部状态
func (s *MemoryAccountStore) Get(ctx context.Context, accountNo int64) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[accountNo]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *account
	return &cp, nil
}

func (s *MemoryAccountStore) Exists(ctx context.Context, accountNo int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.accounts[accountNo]
	return ok, nil
}

func (s *MemoryAccountStore) ListByOwner(ctx context.Context, ownerID int64) ([]*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Account
	for _, account := range s.accounts {
		if account.OwnerID == ownerID {
			cp := *account
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryAccountStore) CompareAndSetBalance(ctx context.Context, accountNo int64, version int, newBalance int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[accountNo]
	if !ok {
		return ErrAccountNotFound
	}
	if account.Version != version {
		return ErrVersionConflict
	}
	account.Balance = newBalance
	account.Version++
	account.UpdatedAt = time.Now()
	return nil
}

// MemoryTransactionLog 账户流水的内存实现
type MemoryTransactionLog struct {
	mu        sync.Mutex
	records   []*model.TransactionRecord
	nextID    int64
	lastStamp map[int64]time.Time
	appendErr error
}

func NewMemoryTransactionLog() *MemoryTransactionLog {
	return &MemoryTransactionLog{lastStamp: make(map[int64]time.Time)}
}

// FailAppends 让后续 Append 返回指定错误，用于测试流水落库失败的补偿路径
func (l *MemoryTransactionLog) FailAppends(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appendErr = err
}

func (l *MemoryTransactionLog) Append(ctx context.Context, record *model.TransactionRecord) (*model.TransactionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.appendErr != nil {
		return nil, l.appendErr
	}
	l.nextID++
	record.ID = l.nextID

	// 保证单账户内时间戳单调不减
	now := time.Now()
	if last, ok := l.lastStamp[record.AccountNo]; ok && now.Before(last) {
		now = last
	}
	l.lastStamp[record.AccountNo] = now
	record.CreatedAt = now

	cp := *record
	l.records = append(l.records, &cp)
	return record, nil
}

func (l *MemoryTransactionLog) RecentByAccountNo(ctx context.Context, accountNo int64, limit int) ([]*model.TransactionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*model.TransactionRecord
	for i := len(l.records) - 1; i >= 0 && len(out) < limit; i-- {
		if l.records[i].AccountNo == accountNo {
			cp := *l.records[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (l *MemoryTransactionLog) AllByAccountNo(ctx context.Context, accountNo int64) ([]*model.TransactionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*model.TransactionRecord
	for _, record := range l.records {
		if record.AccountNo == accountNo {
			cp := *record
			out = append(out, &cp)
		}
	}
	return out, nil
}
