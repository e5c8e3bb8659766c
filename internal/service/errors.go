package service

import "errors"

// 业务错误定义，供 handler 层通过 errors.Is 映射为响应码
var (
	ErrMemberNotFound         = errors.New("member not found")
	ErrMemberAlreadyExists    = errors.New("member already exists")
	ErrReferrerNotFound       = errors.New("referrer not found")
	ErrCircularReference      = errors.New("circular reference in referral network")
	ErrCapacityExceeded       = errors.New("direct downline capacity exceeded")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInvalidDistribution    = errors.New("invalid distribution basis")
	ErrStaleTreeSnapshot      = errors.New("referral network changed during calculation")
	ErrNotFound               = errors.New("record not found")
	ErrDuplicateQuarter       = errors.New("profit share already exists for quarter")
	ErrInvalidAmount          = errors.New("invalid amount")
)
