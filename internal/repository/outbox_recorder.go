package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bankledger/internal/model"

	"gorm.io/gorm"
)

// outboxWriter 发件箱的写入面，便于测试时替换
type outboxWriter interface {
	Create(ctx context.Context, msg *model.OutboxMessage) error
}

// OutboxRecorder 把账本引擎产生的事件写入事务性发件箱
// - 余额变动事件：由 OutboxSender 投递到 Kafka
// - 待补偿流水、待补偿资金：由 Reconciler 在进程内消费，不出 Kafka
type OutboxRecorder struct {
	outbox            outboxWriter
	transactionTopic  string
	reconcileTopic    string
	compensationTopic string
}

func NewOutboxRecorder(db *gorm.DB, transactionTopic, reconcileTopic, compensationTopic string) *OutboxRecorder {
	return &OutboxRecorder{
		outbox:            NewOutboxRepository(db),
		transactionTopic:  transactionTopic,
		reconcileTopic:    reconcileTopic,
		compensationTopic: compensationTopic,
	}
}

func (r *OutboxRecorder) RecordTransaction(ctx context.Context, record *model.TransactionRecord) error {
	payload := map[string]interface{}{
		"transaction_no": record.TransactionNo,
		"account_no":     record.AccountNo,
		"kind":           record.Kind,
		"amount":         record.Amount,
		"balance_after":  record.BalanceAfter,
		"created_at":     time.Now().Format(time.RFC3339),
	}
	if record.CounterpartyAccountNo != nil {
		payload["counterparty_account_no"] = *record.CounterpartyAccountNo
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	return r.outbox.Create(ctx, &model.OutboxMessage{
		MessageKey: record.TransactionNo,
		Topic:      r.transactionTopic,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	})
}

// RecordReconciliation 余额已提交但流水落库失败时，把完整流水内容写入发件箱，
// 供 Reconciler 补记。payload 即流水本身的 JSON。
func (r *OutboxRecorder) RecordReconciliation(ctx context.Context, record *model.TransactionRecord) error {
	payloadBytes, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化待补偿流水失败: %w", err)
	}

	return r.outbox.Create(ctx, &model.OutboxMessage{
		MessageKey: record.TransactionNo,
		Topic:      r.reconcileTopic,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	})
}

// RecordCompensation 转账冲正失败时，把待调整的资金写入发件箱，
// 供 Reconciler 把余额补回来。payload 即补偿条目本身的 JSON。
func (r *OutboxRecorder) RecordCompensation(ctx context.Context, entry *model.CompensationEntry) error {
	payloadBytes, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("序列化补偿条目失败: %w", err)
	}

	return r.outbox.Create(ctx, &model.OutboxMessage{
		MessageKey: entry.CompensationNo,
		Topic:      r.compensationTopic,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	})
}
