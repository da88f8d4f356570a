package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"bankledger/internal/model"
	"bankledger/internal/repository"
	"bankledger/pkg/idgen"
)

// TransferResult 转账成功的确认结果
type TransferResult struct {
	FromAccountNo int64  `json:"from_account_no"`
	ToAccountNo   int64  `json:"to_account_no"`
	Amount        int64  `json:"amount"`
	Message       string `json:"message"`
}

// Transfer 转账：从 fromAccountNo 扣款 amount，向 toAccountNo 入账 amount
//
// 【并发协议】
// 1. 每轮重试都重新读取双方账户，余额检查永远基于最新读取
// 2. 条件写不持有任何锁，不存在死锁，两条腿的顺序只受资金安全约束：
//    扣款腿必须先于入账腿提交。先入账的话，转出方冲突重试期间这笔
//    「凭空出现」的入账已经可以被并发取款花掉，冲正就会把转入方
//    减成负数
// 3. 任一条腿版本号冲突则整轮重做；入账腿失败时先冲正已提交的扣款腿
//    （把钱还给转出方，只增不减，永远不会产生负余额），保证最终状态
//    要么双方都变、要么都不变
// 4. 双方余额都提交成功后才落流水：转出方一条 TRANSFER_OUT，
//    转入方一条 TRANSFER_IN，金额相同
func (s *LedgerService) Transfer(ctx context.Context, fromAccountNo, toAccountNo int64, amount int64) (*TransferResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if fromAccountNo == toAccountNo {
		return nil, ErrSameAccount
	}

	for attempt := 0; attempt < s.maxRetryCount; attempt++ {
		from, err := s.accounts.Get(ctx, fromAccountNo)
		if err != nil {
			return nil, fmt.Errorf("转出账户 %d: %w", fromAccountNo, err)
		}
		to, err := s.accounts.Get(ctx, toAccountNo)
		if err != nil {
			return nil, fmt.Errorf("转入账户 %d: %w", toAccountNo, err)
		}

		if from.Balance < amount {
			return nil, ErrInsufficientBalance
		}
		if to.Balance > math.MaxInt64-amount {
			return nil, ErrBalanceOverflow
		}

		debitBalance := from.Balance - amount
		creditBalance := to.Balance + amount

		// 扣款腿
		err = s.accounts.CompareAndSetBalance(ctx, fromAccountNo, from.Version, debitBalance)
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("转出账户 %d: %w", fromAccountNo, err)
		}

		// 入账腿
		err = s.accounts.CompareAndSetBalance(ctx, toAccountNo, to.Version, creditBalance)
		if err != nil {
			// 扣款腿已经提交，必须把钱还给转出方后才能重试或报错
			if revertErr := s.revert(ctx, fromAccountNo, amount); revertErr != nil {
				s.recordCompensation(ctx, fromAccountNo, amount,
					fmt.Sprintf("转账 %d->%d 冲正失败", fromAccountNo, toAccountNo))
				return nil, fmt.Errorf("转账冲正失败，账户 %d 已转入补偿队列: %w", fromAccountNo, revertErr)
			}
			if errors.Is(err, repository.ErrVersionConflict) {
				continue
			}
			return nil, fmt.Errorf("转入账户 %d: %w", toAccountNo, err)
		}

		toRef, fromRef := toAccountNo, fromAccountNo
		s.commitRecord(ctx, &model.TransactionRecord{
			TransactionNo:         idgen.GenerateTransactionNo(),
			AccountNo:             fromAccountNo,
			Kind:                  model.TransactionKindTransferOut,
			Amount:                amount,
			CounterpartyAccountNo: &toRef,
			BalanceBefore:         from.Balance,
			BalanceAfter:          debitBalance,
			Description:           fmt.Sprintf("转出至账户 %d", toAccountNo),
		})
		s.commitRecord(ctx, &model.TransactionRecord{
			TransactionNo:         idgen.GenerateTransactionNo(),
			AccountNo:             toAccountNo,
			Kind:                  model.TransactionKindTransferIn,
			Amount:                amount,
			CounterpartyAccountNo: &fromRef,
			BalanceBefore:         to.Balance,
			BalanceAfter:          creditBalance,
			Description:           fmt.Sprintf("转入自账户 %d", fromAccountNo),
		})

		log.Printf("转账成功: from=%d, to=%d, amount=%d", fromAccountNo, toAccountNo, amount)
		return &TransferResult{
			FromAccountNo: fromAccountNo,
			ToAccountNo:   toAccountNo,
			Amount:        amount,
			Message:       fmt.Sprintf("转账成功：%d 从账户 %d 转入账户 %d", amount, fromAccountNo, toAccountNo),
		}, nil
	}

	return nil, ErrContention
}

// revert 冲正已提交的扣款腿：把 amount 还给转出方
// 只增不减，版本号冲突时重读再写，直到成功或上下文取消
func (s *LedgerService) revert(ctx context.Context, accountNo int64, amount int64) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		account, err := s.accounts.Get(ctx, accountNo)
		if err != nil {
			return err
		}
		err = s.accounts.CompareAndSetBalance(ctx, accountNo, account.Version, account.Balance+amount)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return err
		}
	}
}

// recordCompensation 冲正本身也失败时，把欠账写进补偿队列，由 Reconciler
// 把资金调整补上，不依赖调用方解读错误文本
func (s *LedgerService) recordCompensation(ctx context.Context, accountNo, delta int64, reason string) {
	log.Printf("转账冲正失败，转入补偿队列: accountNo=%d, delta=%d, reason=%s", accountNo, delta, reason)
	if s.events == nil {
		return
	}
	entry := &model.CompensationEntry{
		CompensationNo: idgen.GenerateTransactionNo(),
		AccountNo:      accountNo,
		Delta:          delta,
		Reason:         reason,
	}
	if err := s.events.RecordCompensation(ctx, entry); err != nil {
		log.Printf("写入补偿事件失败: accountNo=%d, delta=%d, err=%v", accountNo, delta, err)
	}
}
