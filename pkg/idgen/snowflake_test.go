package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 并发生成不重号
func TestNextIDUnique(t *testing.T) {
	const goroutines = 8
	const perGoroutine = 1000

	var mu sync.Mutex
	seen := make(map[int64]bool, goroutines*perGoroutine)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]int64, 0, perGoroutine)
			for j := 0; j < perGoroutine; j++ {
				ids = append(ids, NextID())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range ids {
				seen[id] = true
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, goroutines*perGoroutine)
}

func TestGenerateTransactionNo(t *testing.T) {
	first := GenerateTransactionNo()
	second := GenerateTransactionNo()

	assert.True(t, strings.HasPrefix(first, "TXN"))
	assert.NotEqual(t, first, second)
}

// 账号恒为 10 位数字
func TestGenerateAccountNoRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		no := GenerateAccountNo()
		assert.GreaterOrEqual(t, no, int64(1000000000))
		assert.Less(t, no, int64(10000000000))
	}
}
