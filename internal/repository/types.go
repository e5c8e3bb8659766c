package repository

import "time"

// CommissionListFilter 查询佣金列表的过滤条件
type CommissionListFilter struct {
	Page           int
	PageSize       int
	EarnerID       uint
	SourceID       uint
	Level          int
	CommissionType string
	Status         string
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
}

// MemberShareListFilter 查询成员分红明细的过滤条件
type MemberShareListFilter struct {
	Page          int
	PageSize      int
	ProfitShareID uint
	MemberID      uint
	Status        string
}
