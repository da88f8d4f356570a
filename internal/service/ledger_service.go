package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"bankledger/internal/config"
	"bankledger/internal/model"
	"bankledger/internal/repository"
	"bankledger/pkg/idgen"
)

const (
	defaultMaxRetryCount      = 5
	defaultRecentHistoryLimit = 5
)

// LedgerService 账本引擎
//
// 负责存款、取款、转账三种余额变更和流水查询。所有变更都通过
// AccountStore 的条件写完成：读取当前余额和版本号，计算新余额，
// 带版本号写回；被并发写入者抢先时重读重试，重试次数耗尽返回
// ErrContention。引擎本身无状态，可多实例共用同一存储。
type LedgerService struct {
	accounts AccountStore
	txlog    TransactionLog
	events   EventRecorder

	maxRetryCount      int
	recentHistoryLimit int
}

// AccountSnapshot 操作成功后的账户快照，附带最近几条流水
type AccountSnapshot struct {
	AccountNo   int64                      `json:"account_no"`
	Balance     int64                      `json:"balance"`
	AccountType string                     `json:"account_type"`
	Recent      []*model.TransactionRecord `json:"recent"`
}

// NewLedgerService 创建账本引擎；events 可为 nil，cfg 为 nil 时使用默认参数
func NewLedgerService(accounts AccountStore, txlog TransactionLog, events EventRecorder, cfg *config.LedgerConfig) *LedgerService {
	s := &LedgerService{
		accounts:           accounts,
		txlog:              txlog,
		events:             events,
		maxRetryCount:      defaultMaxRetryCount,
		recentHistoryLimit: defaultRecentHistoryLimit,
	}
	if cfg != nil {
		if cfg.MaxRetryCount > 0 {
			s.maxRetryCount = cfg.MaxRetryCount
		}
		if cfg.RecentHistoryLimit > 0 {
			s.recentHistoryLimit = cfg.RecentHistoryLimit
		}
	}
	return s
}

// Deposit 存款：余额增加 amount，追加一条 DEPOSIT 流水
func (s *LedgerService) Deposit(ctx context.Context, accountNo int64, amount int64) (*AccountSnapshot, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	for attempt := 0; attempt < s.maxRetryCount; attempt++ {
		account, err := s.accounts.Get(ctx, accountNo)
		if err != nil {
			return nil, err
		}

		if account.Balance > math.MaxInt64-amount {
			return nil, ErrBalanceOverflow
		}

		newBalance := account.Balance + amount
		err = s.accounts.CompareAndSetBalance(ctx, accountNo, account.Version, newBalance)
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		s.commitRecord(ctx, &model.TransactionRecord{
			TransactionNo: idgen.GenerateTransactionNo(),
			AccountNo:     accountNo,
			Kind:          model.TransactionKindDeposit,
			Amount:        amount,
			BalanceBefore: account.Balance,
			BalanceAfter:  newBalance,
			Description:   fmt.Sprintf("存款 %d", amount),
		})

		log.Printf("存款成功: accountNo=%d, amount=%d, balance=%d", accountNo, amount, newBalance)
		return s.snapshot(ctx, account, newBalance), nil
	}

	return nil, ErrContention
}

// Withdraw 取款：余额必须覆盖取款金额，检查与写回基于同一次读取的版本号，
// 被并发写入者抢先时整体重试，不存在「用旧余额判断、对新余额扣款」的窗口。
func (s *LedgerService) Withdraw(ctx context.Context, accountNo int64, amount int64) (*AccountSnapshot, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	for attempt := 0; attempt < s.maxRetryCount; attempt++ {
		account, err := s.accounts.Get(ctx, accountNo)
		if err != nil {
			return nil, err
		}

		if account.Balance < amount {
			return nil, ErrInsufficientBalance
		}

		newBalance := account.Balance - amount
		err = s.accounts.CompareAndSetBalance(ctx, accountNo, account.Version, newBalance)
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		s.commitRecord(ctx, &model.TransactionRecord{
			TransactionNo: idgen.GenerateTransactionNo(),
			AccountNo:     accountNo,
			Kind:          model.TransactionKindWithdraw,
			Amount:        amount,
			BalanceBefore: account.Balance,
			BalanceAfter:  newBalance,
			Description:   fmt.Sprintf("取款 %d", amount),
		})

		log.Printf("取款成功: accountNo=%d, amount=%d, balance=%d", accountNo, amount, newBalance)
		return s.snapshot(ctx, account, newBalance), nil
	}

	return nil, ErrContention
}

// ListTransactions 查询账户流水
// limit <= 0 返回全部流水（时间升序）；limit > 0 返回最近 limit 条（时间倒序）
func (s *LedgerService) ListTransactions(ctx context.Context, accountNo int64, limit int) ([]*model.TransactionRecord, error) {
	exists, err := s.accounts.Exists(ctx, accountNo)
	if err != nil {
		return nil, fmt.Errorf("查询账户失败: %w", err)
	}
	if !exists {
		return nil, repository.ErrAccountNotFound
	}

	if limit <= 0 {
		return s.txlog.AllByAccountNo(ctx, accountNo)
	}
	return s.txlog.RecentByAccountNo(ctx, accountNo, limit)
}

// commitRecord 落一条流水并记录事件
//
// 【策略】余额变更此时已经提交，流水落库失败不能回滚余额（并发下回滚
// 已可见的余额本身就不安全），也不阻塞成功响应：把完整流水写入待补偿
// 事件，由 Reconciler 补记。
func (s *LedgerService) commitRecord(ctx context.Context, record *model.TransactionRecord) {
	if _, err := s.txlog.Append(ctx, record); err != nil {
		log.Printf("流水落库失败，转入补偿队列: transactionNo=%s, accountNo=%d, err=%v",
			record.TransactionNo, record.AccountNo, err)
		if s.events != nil {
			if recErr := s.events.RecordReconciliation(ctx, record); recErr != nil {
				log.Printf("写入待补偿事件失败: transactionNo=%s, err=%v", record.TransactionNo, recErr)
			}
		}
		return
	}

	if s.events != nil {
		if err := s.events.RecordTransaction(ctx, record); err != nil {
			log.Printf("写入余额变动事件失败: transactionNo=%s, err=%v", record.TransactionNo, err)
		}
	}
}

// snapshot 组装操作结果：新余额加上最近几条流水
func (s *LedgerService) snapshot(ctx context.Context, account *model.Account, newBalance int64) *AccountSnapshot {
	recent, err := s.txlog.RecentByAccountNo(ctx, account.AccountNo, s.recentHistoryLimit)
	if err != nil {
		// 查询最近流水只影响展示，不影响已提交的余额变更
		log.Printf("查询最近流水失败: accountNo=%d, err=%v", account.AccountNo, err)
		recent = nil
	}
	return &AccountSnapshot{
		AccountNo:   account.AccountNo,
		Balance:     newBalance,
		AccountType: account.AccountType,
		Recent:      recent,
	}
}
