package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/logger"
	"github.com/fenxiao-next/internal/provider"
	"github.com/fenxiao-next/internal/queue"
	"github.com/fenxiao-next/internal/service"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskPurchaseAward, c.handlePurchaseAward)
	mux.HandleFunc(queue.TaskTeamVolumeRecompute, c.handleTeamVolumeRecompute)
	mux.HandleFunc(queue.TaskCommissionSettle, c.handleCommissionSettle)
}

func (c *Consumer) handlePurchaseAward(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_purchase_award_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PurchaseAwardPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_purchase_award_unmarshal_failed", "error", err)
		return err
	}
	if payload.EventID == "" || payload.SourceID == 0 {
		logger.Debugw("worker_purchase_award_skip_invalid_payload", "event_id", payload.EventID, "source_id", payload.SourceID)
		return nil
	}
	amount, err := decimal.NewFromString(payload.Amount)
	if err != nil {
		logger.Warnw("worker_purchase_award_invalid_amount", "event_id", payload.EventID, "amount", payload.Amount, "error", err)
		return nil
	}
	occurredAt := time.Unix(payload.OccurredAt, 0)
	if payload.OccurredAt <= 0 {
		occurredAt = time.Now()
	}
	_, err = c.CommissionService.HandlePurchaseEvent(payload.EventID, payload.SourceID, amount, occurredAt)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMemberNotFound):
			logger.Debugw("worker_purchase_award_skip_member_not_found", "event_id", payload.EventID, "source_id", payload.SourceID)
			return nil
		case errors.Is(err, service.ErrInvalidAmount):
			logger.Debugw("worker_purchase_award_skip_invalid_amount", "event_id", payload.EventID, "amount", payload.Amount)
			return nil
		default:
			logger.Warnw("worker_purchase_award_failed", "event_id", payload.EventID, "source_id", payload.SourceID, "error", err)
			return err
		}
	}
	return nil
}

func (c *Consumer) handleTeamVolumeRecompute(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_team_volume_recompute_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.TeamVolumeRecomputePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_team_volume_recompute_unmarshal_failed", "error", err)
		return err
	}
	if len(payload.MemberIDs) == 0 {
		logger.Debugw("worker_team_volume_recompute_skip_empty_payload")
		return nil
	}
	periodStart := periodStartFrom(payload.PeriodStart)
	if err := c.TeamVolumeService.RecomputeMany(payload.MemberIDs, periodStart); err != nil {
		logger.Warnw("worker_team_volume_recompute_failed",
			"member_count", len(payload.MemberIDs),
			"period_start", periodStart,
			"error", err,
		)
		return err
	}
	return nil
}

func (c *Consumer) handleCommissionSettle(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_commission_settle_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.CommissionSettlePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_commission_settle_unmarshal_failed", "error", err)
		return err
	}
	if len(payload.CommissionIDs) == 0 {
		logger.Debugw("worker_commission_settle_skip_empty_payload")
		return nil
	}
	err := c.CommissionService.BulkUpdateStatus(payload.CommissionIDs, constants.CommissionStatusPaid, "")
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			logger.Debugw("worker_commission_settle_skip_not_found", "commission_ids", payload.CommissionIDs)
			return nil
		case errors.Is(err, service.ErrInvalidStateTransition):
			logger.Debugw("worker_commission_settle_skip_terminal", "commission_ids", payload.CommissionIDs)
			return nil
		default:
			logger.Warnw("worker_commission_settle_failed", "commission_ids", payload.CommissionIDs, "error", err)
			return err
		}
	}
	return nil
}

// periodStartFrom 将任务负载中的周期起点归一化到月初，零值回落到当前月份
func periodStartFrom(unix int64) time.Time {
	at := time.Now().UTC()
	if unix > 0 {
		at = time.Unix(unix, 0).UTC()
	}
	periodStart, _ := service.MonthlyPeriodOf(at)
	return periodStart
}
