package repository

import (
	"context"
	"errors"
	"testing"

	"bankledger/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// 账户存储契约
// ============================================================================

func TestMemoryAccountStoreCreateAndGet(t *testing.T) {
	store := NewMemoryAccountStore()
	ctx := context.Background()

	err := store.Create(ctx, &model.Account{AccountNo: 1001, OwnerID: 1, AccountType: model.AccountTypeSavings})
	require.NoError(t, err)

	account, err := store.Get(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, int64(0), account.Balance)
	assert.Equal(t, 0, account.Version)

	// 重复账号拒绝
	err = store.Create(ctx, &model.Account{AccountNo: 1001, OwnerID: 2})
	assert.ErrorIs(t, err, ErrAccountExists)

	_, err = store.Get(ctx, 9999)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

// Get 返回的是拷贝：改写返回值不影响存储内部状态
func TestMemoryAccountStoreGetReturnsCopy(t *testing.T) {
	store := NewMemoryAccountStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &model.Account{AccountNo: 1001}))

	account, err := store.Get(ctx, 1001)
	require.NoError(t, err)
	account.Balance = 99999

	fresh, err := store.Get(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, int64(0), fresh.Balance)
}

func TestMemoryAccountStoreCompareAndSet(t *testing.T) {
	store := NewMemoryAccountStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &model.Account{AccountNo: 1001}))

	// 版本匹配：写入成功且版本号递增
	require.NoError(t, store.CompareAndSetBalance(ctx, 1001, 0, 500))
	account, err := store.Get(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, int64(500), account.Balance)
	assert.Equal(t, 1, account.Version)

	// 旧版本号：冲突，余额不变
	err = store.CompareAndSetBalance(ctx, 1001, 0, 9999)
	assert.ErrorIs(t, err, ErrVersionConflict)
	account, err = store.Get(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, int64(500), account.Balance)

	// 账户不存在
	err = store.CompareAndSetBalance(ctx, 9999, 0, 100)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestMemoryAccountStoreListByOwner(t *testing.T) {
	store := NewMemoryAccountStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &model.Account{AccountNo: 1001, OwnerID: 1}))
	require.NoError(t, store.Create(ctx, &model.Account{AccountNo: 1002, OwnerID: 1}))
	require.NoError(t, store.Create(ctx, &model.Account{AccountNo: 1003, OwnerID: 2}))

	accounts, err := store.ListByOwner(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
}

// ============================================================================
// 流水契约
// ============================================================================

func TestMemoryTransactionLogAppendAssignsIDAndTimestamp(t *testing.T) {
	txlog := NewMemoryTransactionLog()
	ctx := context.Background()

	first, err := txlog.Append(ctx, &model.TransactionRecord{
		TransactionNo: "TXN1", AccountNo: 1001, Kind: model.TransactionKindDeposit, Amount: 100,
	})
	require.NoError(t, err)
	second, err := txlog.Append(ctx, &model.TransactionRecord{
		TransactionNo: "TXN2", AccountNo: 1001, Kind: model.TransactionKindDeposit, Amount: 200,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
	assert.False(t, second.CreatedAt.Before(first.CreatedAt), "单账户内时间戳单调不减")
}

func TestMemoryTransactionLogOrdering(t *testing.T) {
	txlog := NewMemoryTransactionLog()
	ctx := context.Background()

	for i, no := range []string{"TXN1", "TXN2", "TXN3"} {
		_, err := txlog.Append(ctx, &model.TransactionRecord{
			TransactionNo: no, AccountNo: 1001, Kind: model.TransactionKindDeposit, Amount: int64(100 * (i + 1)),
		})
		require.NoError(t, err)
	}
	// 其他账户的流水不应混入
	_, err := txlog.Append(ctx, &model.TransactionRecord{
		TransactionNo: "TXN4", AccountNo: 1002, Kind: model.TransactionKindDeposit, Amount: 999,
	})
	require.NoError(t, err)

	all, err := txlog.AllByAccountNo(ctx, 1001)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "TXN1", all[0].TransactionNo)
	assert.Equal(t, "TXN3", all[2].TransactionNo)

	recent, err := txlog.RecentByAccountNo(ctx, 1001, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "TXN3", recent[0].TransactionNo)
	assert.Equal(t, "TXN2", recent[1].TransactionNo)
}

func TestMemoryTransactionLogFailAppends(t *testing.T) {
	txlog := NewMemoryTransactionLog()
	ctx := context.Background()

	appendErr := errors.New("磁盘故障")
	txlog.FailAppends(appendErr)
	_, err := txlog.Append(ctx, &model.TransactionRecord{TransactionNo: "TXN1", AccountNo: 1001})
	assert.ErrorIs(t, err, appendErr)

	txlog.FailAppends(nil)
	_, err = txlog.Append(ctx, &model.TransactionRecord{TransactionNo: "TXN1", AccountNo: 1001})
	assert.NoError(t, err)
}
