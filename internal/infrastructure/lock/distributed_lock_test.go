package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

// 互斥：同一把锁同一时刻只有一个持有者
func TestTryLockMutualExclusion(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	l1 := NewDistributedLock(client, "ledger:lock:test", "holder-1", 30*time.Second)
	l2 := NewDistributedLock(client, "ledger:lock:test", "holder-2", 30*time.Second)

	ok, err := l1.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l2.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l1.Unlock(ctx))

	ok, err = l2.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

// 非持有者调用 Unlock 不能释放别人的锁
func TestUnlockChecksHolder(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	l1 := NewDistributedLock(client, "ledger:lock:test", "holder-1", 30*time.Second)
	l2 := NewDistributedLock(client, "ledger:lock:test", "holder-2", 30*time.Second)

	ok, err := l1.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// holder-2 的 value 不匹配，删除不生效
	require.NoError(t, l2.Unlock(ctx))

	ok, err = l2.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "锁仍由 holder-1 持有")
}

// 持有者崩溃后锁随过期时间自动释放
func TestLockExpires(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()

	l1 := NewDistributedLock(client, "ledger:lock:test", "holder-1", 30*time.Second)
	ok, err := l1.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(31 * time.Second)

	l2 := NewDistributedLock(client, "ledger:lock:test", "holder-2", 30*time.Second)
	ok, err = l2.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

// 阻塞式获取：重试耗尽返回 ErrLockFailed
func TestLockRetriesExhausted(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	l1 := NewDistributedLock(client, "ledger:lock:test", "holder-1", 30*time.Second)
	ok, err := l1.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	l2 := NewDistributedLock(client, "ledger:lock:test", "holder-2", 30*time.Second)
	err = l2.Lock(ctx, time.Millisecond, 3)
	assert.ErrorIs(t, err, ErrLockFailed)
}

// 任务锁的 key 按任务名隔离
func TestJobLock(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	reconciler := NewJobLock(client, "reconciler")
	other := NewJobLock(client, "other-job")

	ok, err := reconciler.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// 不同任务互不影响
	ok, err = other.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// 同一任务的另一实例拿不到
	ok, err = NewJobLock(client, "reconciler").TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
