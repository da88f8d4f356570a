package model

import (
	"time"
)

const (
	AccountTypeSavings = "SAVINGS"
	AccountTypeCurrent = "CURRENT"
)

// Account 账户表
// 记录每个账户的当前余额，是整个账本系统的核心数据
type Account struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountNo   int64     `gorm:"uniqueIndex;not null" json:"account_no"`        // 账号（全局唯一，创建后不可变）
	OwnerID     int64     `gorm:"index;not null" json:"owner_id"`                // 账户所有者ID（弱引用，仅用于查询）
	Balance     int64     `gorm:"not null;default:0" json:"balance"`             // 余额（最小货币单位，始终 >= 0）
	AccountType string    `gorm:"type:varchar(32);not null" json:"account_type"` // 账户类型
	Version     int       `gorm:"not null;default:0" json:"version"`             // 乐观锁版本号
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}
