package service

import (
	"errors"
)

// 账本引擎的业务错误
// 每条失败路径都返回确定的错误种类，调用方用 errors.Is 分发，不解析错误文本
var (
	ErrInvalidAmount       = errors.New("金额必须大于0")
	ErrSameAccount         = errors.New("不能向同一账户转账")
	ErrInsufficientBalance = errors.New("余额不足")
	ErrBalanceOverflow     = errors.New("余额超出上限")

	// ErrContention 乐观锁重试次数耗尽，属于瞬时错误，调用方可重新提交
	ErrContention = errors.New("系统繁忙，请重试")
)
