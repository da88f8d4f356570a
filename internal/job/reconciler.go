package job

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"bankledger/internal/config"
	"bankledger/internal/infrastructure/lock"
	"bankledger/internal/model"
	"bankledger/internal/repository"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Reconciler 补偿任务，处理两类欠账：
//
// - reconcile 主题：余额变更已提交但流水落库失败，资金正确，缺的是
//   那条审计记录，重新落库即可
// - compensation 主题：转账冲正失败，扣款已提交而入账没有成功，
//   需要把 Delta 补回账户余额
//
// 【关键点】多个进程实例共用同一份存储，补偿必须全局单实例运行：
// 每轮处理前先抢 Redis 任务锁，抢不到就跳过本轮。
type Reconciler struct {
	db          *gorm.DB
	redisClient *redis.Client
	outboxRepo  *repository.OutboxRepository
	txlogRepo   *repository.TransactionLogRepository
	accountRepo *repository.AccountRepository
	cfg         *config.Config
	stopCh      chan struct{}
	interval    time.Duration
	batchSize   int
}

// 一次补偿内的条件写重试上限，超过后留给下一轮
const compensateMaxCASRetry = 5

func NewReconciler(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *Reconciler {
	interval := time.Duration(cfg.Reconciler.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	batchSize := cfg.Reconciler.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Reconciler{
		db:          db,
		redisClient: redisClient,
		outboxRepo:  repository.NewOutboxRepository(db),
		txlogRepo:   repository.NewTransactionLogRepository(db),
		accountRepo: repository.NewAccountRepository(db),
		cfg:         cfg,
		stopCh:      make(chan struct{}),
		interval:    interval,
		batchSize:   batchSize,
	}
}

func (r *Reconciler) Start(ctx context.Context) {
	log.Println("[Reconciler] 流水补偿任务启动")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Reconciler] 收到停止信号，任务退出")
			return
		case <-r.stopCh:
			log.Println("[Reconciler] 任务停止")
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Reconciler) Stop() {
	close(r.stopCh)
}

func (r *Reconciler) runOnce(ctx context.Context) {
	jobLock := lock.NewJobLock(r.redisClient, "reconciler")
	acquired, err := jobLock.TryLock(ctx)
	if err != nil {
		log.Printf("[Reconciler] 获取任务锁失败: %v", err)
		return
	}
	if !acquired {
		// 别的实例正在补偿
		return
	}
	defer jobLock.Unlock(ctx)

	messages, err := r.outboxRepo.GetPendingByTopic(ctx, r.cfg.Kafka.Topic.Reconcile, r.batchSize)
	if err != nil {
		log.Printf("[Reconciler] 查询待补偿流水失败: %v", err)
		return
	}
	for _, msg := range messages {
		r.reconcile(ctx, msg)
	}

	entries, err := r.outboxRepo.GetPendingByTopic(ctx, r.cfg.Kafka.Topic.Compensation, r.batchSize)
	if err != nil {
		log.Printf("[Reconciler] 查询待补偿资金失败: %v", err)
		return
	}
	for _, msg := range entries {
		r.compensate(ctx, msg)
	}
}

func (r *Reconciler) reconcile(ctx context.Context, msg *model.OutboxMessage) {
	var record model.TransactionRecord
	if err := json.Unmarshal([]byte(msg.Payload), &record); err != nil {
		// 内容损坏无法补偿，标记失败等人工处理
		log.Printf("[Reconciler] 待补偿流水解析失败: id=%d, err=%v", msg.ID, err)
		if err := r.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
			log.Printf("[Reconciler] 标记消息失败状态失败: id=%d, err=%v", msg.ID, err)
		}
		return
	}

	// 重新落库时由存储层分配新的 ID 和时间戳，流水号保持不变
	record.ID = 0
	if _, err := r.txlogRepo.Append(ctx, &record); err != nil {
		log.Printf("[Reconciler] 补偿落库失败: transactionNo=%s, err=%v", record.TransactionNo, err)
		if err := r.outboxRepo.IncrementRetryCount(ctx, msg.ID); err != nil {
			log.Printf("[Reconciler] 增加重试次数失败: id=%d, err=%v", msg.ID, err)
		}
		if msg.RetryCount+1 >= r.cfg.Reconciler.MaxRetryCount {
			if err := r.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
				log.Printf("[Reconciler] 标记消息失败状态失败: id=%d, err=%v", msg.ID, err)
			} else {
				log.Printf("[Reconciler] 流水补偿超过最大重试次数，待人工核对: transactionNo=%s", record.TransactionNo)
			}
		}
		return
	}

	if err := r.outboxRepo.UpdateStatus(ctx, msg.ID, model.OutboxStatusSent); err != nil {
		log.Printf("[Reconciler] 更新消息状态失败: id=%d, err=%v", msg.ID, err)
		return
	}
	log.Printf("[Reconciler] 流水补偿成功: transactionNo=%s, accountNo=%d", record.TransactionNo, record.AccountNo)
}

func (r *Reconciler) compensate(ctx context.Context, msg *model.OutboxMessage) {
	var entry model.CompensationEntry
	if err := json.Unmarshal([]byte(msg.Payload), &entry); err != nil {
		log.Printf("[Reconciler] 补偿条目解析失败: id=%d, err=%v", msg.ID, err)
		if err := r.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
			log.Printf("[Reconciler] 标记消息失败状态失败: id=%d, err=%v", msg.ID, err)
		}
		return
	}

	if err := r.applyDelta(ctx, entry.AccountNo, entry.Delta); err != nil {
		log.Printf("[Reconciler] 资金补偿失败: compensationNo=%s, accountNo=%d, err=%v",
			entry.CompensationNo, entry.AccountNo, err)
		if err := r.outboxRepo.IncrementRetryCount(ctx, msg.ID); err != nil {
			log.Printf("[Reconciler] 增加重试次数失败: id=%d, err=%v", msg.ID, err)
		}
		if msg.RetryCount+1 >= r.cfg.Reconciler.MaxRetryCount {
			if err := r.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
				log.Printf("[Reconciler] 标记消息失败状态失败: id=%d, err=%v", msg.ID, err)
			} else {
				log.Printf("[Reconciler] 资金补偿超过最大重试次数，待人工核对: compensationNo=%s", entry.CompensationNo)
			}
		}
		return
	}

	if err := r.outboxRepo.UpdateStatus(ctx, msg.ID, model.OutboxStatusSent); err != nil {
		log.Printf("[Reconciler] 更新消息状态失败: id=%d, err=%v", msg.ID, err)
		return
	}
	log.Printf("[Reconciler] 资金补偿成功: compensationNo=%s, accountNo=%d, delta=%d",
		entry.CompensationNo, entry.AccountNo, entry.Delta)
}

// applyDelta 把 delta 加到账户余额上，版本冲突时重读重试
func (r *Reconciler) applyDelta(ctx context.Context, accountNo, delta int64) error {
	for attempt := 0; attempt < compensateMaxCASRetry; attempt++ {
		account, err := r.accountRepo.Get(ctx, accountNo)
		if err != nil {
			return err
		}
		err = r.accountRepo.CompareAndSetBalance(ctx, accountNo, account.Version, account.Balance+delta)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return err
		}
	}
	return repository.ErrVersionConflict
}
