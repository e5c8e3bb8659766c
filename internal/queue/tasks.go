package queue

import (
	"encoding/json"

	"github.com/fenxiao-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskPurchaseAward 业绩事件佣金计提任务
	TaskPurchaseAward = constants.TaskPurchaseAward
	// TaskTeamVolumeRecompute 团队业绩重算任务
	TaskTeamVolumeRecompute = constants.TaskTeamVolumeRecompute
	// TaskCommissionSettle 待结算佣金批量结算任务
	TaskCommissionSettle = constants.TaskCommissionSettle
)

// PurchaseAwardPayload 业绩事件佣金计提任务载荷
type PurchaseAwardPayload struct {
	EventID    string `json:"event_id"`
	SourceID   uint   `json:"source_id"`
	Amount     string `json:"amount"`
	OccurredAt int64  `json:"occurred_at"`
}

// TeamVolumeRecomputePayload 团队业绩重算任务载荷
type TeamVolumeRecomputePayload struct {
	MemberIDs   []uint `json:"member_ids"`
	PeriodStart int64  `json:"period_start"`
}

// CommissionSettlePayload 佣金批量结算任务载荷
type CommissionSettlePayload struct {
	CommissionIDs []uint `json:"commission_ids"`
}

// NewPurchaseAwardTask 创建业绩佣金计提任务
func NewPurchaseAwardTask(payload PurchaseAwardPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPurchaseAward, body), nil
}

// NewTeamVolumeRecomputeTask 创建团队业绩重算任务
func NewTeamVolumeRecomputeTask(payload TeamVolumeRecomputePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTeamVolumeRecompute, body), nil
}

// NewCommissionSettleTask 创建佣金批量结算任务
func NewCommissionSettleTask(payload CommissionSettlePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCommissionSettle, body), nil
}
