package repository

import (
	"context"
	"encoding/json"
	"testing"

	"bankledger/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	messages []*model.OutboxMessage
}

func (w *captureWriter) Create(ctx context.Context, msg *model.OutboxMessage) error {
	w.messages = append(w.messages, msg)
	return nil
}

func newTestRecorder() (*OutboxRecorder, *captureWriter) {
	writer := &captureWriter{}
	recorder := &OutboxRecorder{
		outbox:            writer,
		transactionTopic:  "ledger.transaction",
		reconcileTopic:    "ledger.reconcile",
		compensationTopic: "ledger.compensation",
	}
	return recorder, writer
}

func TestRecordTransaction(t *testing.T) {
	recorder, writer := newTestRecorder()

	counterparty := int64(2000000002)
	record := &model.TransactionRecord{
		TransactionNo:         "TXN20240101120000000011112222",
		AccountNo:             1000000001,
		Kind:                  model.TransactionKindTransferOut,
		Amount:                300,
		CounterpartyAccountNo: &counterparty,
		BalanceBefore:         1000,
		BalanceAfter:          700,
	}
	err := recorder.RecordTransaction(context.Background(), record)
	require.NoError(t, err)
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "ledger.transaction", msg.Topic)
	assert.Equal(t, record.TransactionNo, msg.MessageKey)
	assert.Equal(t, model.OutboxStatusPending, msg.Status)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &payload))
	assert.Equal(t, record.TransactionNo, payload["transaction_no"])
	assert.Equal(t, float64(1000000001), payload["account_no"])
	assert.Equal(t, model.TransactionKindTransferOut, payload["kind"])
	assert.Equal(t, float64(300), payload["amount"])
	assert.Equal(t, float64(700), payload["balance_after"])
	assert.Equal(t, float64(2000000002), payload["counterparty_account_no"])
}

func TestRecordTransactionWithoutCounterparty(t *testing.T) {
	recorder, writer := newTestRecorder()

	record := &model.TransactionRecord{
		TransactionNo: "TXN20240101120000000033334444",
		AccountNo:     1000000001,
		Kind:          model.TransactionKindDeposit,
		Amount:        500,
		BalanceAfter:  500,
	}
	require.NoError(t, recorder.RecordTransaction(context.Background(), record))
	require.Len(t, writer.messages, 1)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(writer.messages[0].Payload), &payload))
	_, ok := payload["counterparty_account_no"]
	assert.False(t, ok)
}

func TestRecordReconciliationRoundTrip(t *testing.T) {
	recorder, writer := newTestRecorder()

	record := &model.TransactionRecord{
		TransactionNo: "TXN20240101120000000055556666",
		AccountNo:     1000000001,
		Kind:          model.TransactionKindWithdraw,
		Amount:        200,
		BalanceBefore: 500,
		BalanceAfter:  300,
		Description:   "取款",
	}
	require.NoError(t, recorder.RecordReconciliation(context.Background(), record))
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "ledger.reconcile", msg.Topic)
	assert.Equal(t, record.TransactionNo, msg.MessageKey)

	// Reconciler 依赖 payload 可还原为完整流水
	var restored model.TransactionRecord
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &restored))
	assert.Equal(t, record.TransactionNo, restored.TransactionNo)
	assert.Equal(t, record.AccountNo, restored.AccountNo)
	assert.Equal(t, record.Kind, restored.Kind)
	assert.Equal(t, record.Amount, restored.Amount)
	assert.Equal(t, record.BalanceBefore, restored.BalanceBefore)
	assert.Equal(t, record.BalanceAfter, restored.BalanceAfter)
	assert.Equal(t, record.Description, restored.Description)
}

func TestRecordCompensationRoundTrip(t *testing.T) {
	recorder, writer := newTestRecorder()

	entry := &model.CompensationEntry{
		CompensationNo: "TXN20240101120000000077778888",
		AccountNo:      1000000001,
		Delta:          300,
		Reason:         "转账 1000000001->2000000002 冲正失败",
	}
	require.NoError(t, recorder.RecordCompensation(context.Background(), entry))
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "ledger.compensation", msg.Topic)
	assert.Equal(t, entry.CompensationNo, msg.MessageKey)
	assert.Equal(t, model.OutboxStatusPending, msg.Status)

	// Reconciler 依赖 payload 可还原为完整补偿条目
	var restored model.CompensationEntry
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &restored))
	assert.Equal(t, *entry, restored)
}
