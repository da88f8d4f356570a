package model

import (
	"time"
)

// ============================================================================
// 交易类型常量
// ============================================================================

const (
	TransactionKindDeposit     = "DEPOSIT"      // 存款
	TransactionKindWithdraw    = "WITHDRAW"     // 取款
	TransactionKindTransferOut = "TRANSFER_OUT" // 转账（转出方）
	TransactionKindTransferIn  = "TRANSFER_IN"  // 转账（转入方）
)

// ============================================================================
// 账户流水实体
// ============================================================================

// TransactionRecord 账户流水表
// 记录账户的每一笔资金变动，是对账的核心依据
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 保证审计可追溯
// 2. 每笔流水记录交易前后余额 —— 便于校验余额一致性
// 3. 转账流水记录对方账号 —— 两边各一条，金额相同
type TransactionRecord struct {
	ID                    int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo         string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"` // 流水号（全局唯一）
	AccountNo             int64     `gorm:"index;not null" json:"account_no"`                            // 本方账号
	Kind                  string    `gorm:"type:varchar(20);not null" json:"kind"`                       // 交易类型
	Amount                int64     `gorm:"not null" json:"amount"`                                      // 金额（恒为正数，方向由 Kind 表示）
	CounterpartyAccountNo *int64    `gorm:"column:counterparty_account_no" json:"counterparty_account_no,omitempty"` // 对方账号（仅转账类流水）
	BalanceBefore         int64     `gorm:"not null" json:"balance_before"`                              // 交易前余额
	BalanceAfter          int64     `gorm:"not null" json:"balance_after"`                               // 交易后余额
	Description           string    `gorm:"type:varchar(256)" json:"description"`                        // 备注
	CreatedAt             time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (TransactionRecord) TableName() string {
	return "transaction_record"
}
