package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"bankledger/internal/config"
	"bankledger/internal/model"
	"bankledger/internal/repository"
	"bankledger/pkg/idgen"
)

const defaultAccountNoMaxAttempt = 10

var ErrAccountNoExhausted = errors.New("生成账号失败，请重试")

// AccountService 开户与账户查询
// 谁有权开户由调用方决定，本服务只负责账号唯一性和初始状态
type AccountService struct {
	accounts AccountStore
	txlog    TransactionLog

	accountNoMaxAttempt int
	recentHistoryLimit  int
}

func NewAccountService(accounts AccountStore, txlog TransactionLog, cfg *config.LedgerConfig) *AccountService {
	s := &AccountService{
		accounts:            accounts,
		txlog:               txlog,
		accountNoMaxAttempt: defaultAccountNoMaxAttempt,
		recentHistoryLimit:  defaultRecentHistoryLimit,
	}
	if cfg != nil {
		if cfg.AccountNoMaxAttempt > 0 {
			s.accountNoMaxAttempt = cfg.AccountNoMaxAttempt
		}
		if cfg.RecentHistoryLimit > 0 {
			s.recentHistoryLimit = cfg.RecentHistoryLimit
		}
	}
	return s
}

// Open 开户：余额为 0，账号随机生成并查重，碰撞则重新生成
func (s *AccountService) Open(ctx context.Context, ownerID int64, accountType string) (*model.Account, error) {
	if accountType == "" {
		accountType = model.AccountTypeSavings
	}

	for attempt := 0; attempt < s.accountNoMaxAttempt; attempt++ {
		accountNo := idgen.GenerateAccountNo()

		exists, err := s.accounts.Exists(ctx, accountNo)
		if err != nil {
			return nil, fmt.Errorf("查询账号失败: %w", err)
		}
		if exists {
			continue
		}

		account := &model.Account{
			AccountNo:   accountNo,
			OwnerID:     ownerID,
			Balance:     0,
			AccountType: accountType,
		}
		err = s.accounts.Create(ctx, account)
		if errors.Is(err, repository.ErrAccountExists) {
			// 查重和写入之间被并发开户撞号，换号重来
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("创建账户失败: %w", err)
		}

		log.Printf("开户成功: accountNo=%d, ownerID=%d, type=%s", accountNo, ownerID, accountType)
		return account, nil
	}

	return nil, ErrAccountNoExhausted
}

// Get 查询单个账户
func (s *AccountService) Get(ctx context.Context, accountNo int64) (*model.Account, error) {
	return s.accounts.Get(ctx, accountNo)
}

// ListByOwner 返回某个所有者的全部账户，每个账户附带最近几条流水
func (s *AccountService) ListByOwner(ctx context.Context, ownerID int64) ([]*AccountSnapshot, error) {
	accounts, err := s.accounts.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("查询账户失败: %w", err)
	}

	snapshots := make([]*AccountSnapshot, 0, len(accounts))
	for _, account := range accounts {
		recent, err := s.txlog.RecentByAccountNo(ctx, account.AccountNo, s.recentHistoryLimit)
		if err != nil {
			return nil, fmt.Errorf("查询流水失败: %w", err)
		}
		snapshots = append(snapshots, &AccountSnapshot{
			AccountNo:   account.AccountNo,
			Balance:     account.Balance,
			AccountType: account.AccountType,
			Recent:      recent,
		})
	}
	return snapshots, nil
}
