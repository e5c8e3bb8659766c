package models

import "fmt"

// MinCommissionLevel 最小佣金层级
const MinCommissionLevel = 1

// MaxCommissionLevel 最大佣金层级
const MaxCommissionLevel = 5

// CommissionLevel 佣金层级值对象（1-5）
type CommissionLevel int

// NewCommissionLevel 创建佣金层级，校验取值范围
func NewCommissionLevel(level int) (CommissionLevel, error) {
	l := CommissionLevel(level)
	if err := l.Validate(); err != nil {
		return 0, err
	}
	return l, nil
}

// Validate 校验层级取值
func (l CommissionLevel) Validate() error {
	if l < MinCommissionLevel || l > MaxCommissionLevel {
		return fmt.Errorf("invalid commission level: %d", int(l))
	}
	return nil
}

// Int 返回整型层级
func (l CommissionLevel) Int() int {
	return int(l)
}
