package model

// CompensationEntry 资金补偿条目
// 转账冲正失败时由账本引擎写入发件箱，Reconciler 按 Delta 调整余额。
// Delta 为应补回的金额（冲正场景恒为正数，还钱给转出方）。
type CompensationEntry struct {
	CompensationNo string `json:"compensation_no"`
	AccountNo      int64  `json:"account_no"`
	Delta          int64  `json:"delta"`
	Reason         string `json:"reason"`
}
