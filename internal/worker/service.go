package worker

import (
	"context"
	"errors"
	"time"

	"github.com/fenxiao-next/internal/cache"
	"github.com/fenxiao-next/internal/config"
	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/logger"
	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/queue"
	"github.com/fenxiao-next/internal/service"

	"github.com/hibiken/asynq"
)

const (
	teamVolumeSweepInterval = time.Hour

	commissionSettleInterval  = 10 * time.Minute
	commissionSettleHold      = 24 * time.Hour
	commissionSettleBatchSize = 100
	commissionSettleLockKey   = "worker:commission:settle:lock"
	commissionSettleLockTTL   = 5 * time.Minute
)

// Service 异步队列服务
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.TeamVolumeService != nil && s.consumer.MemberRepo != nil {
		go s.runTeamVolumeSweepLoop(ctx)
	}
	if s.consumer != nil && s.consumer.CommissionService != nil {
		go s.runCommissionSettleLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// runTeamVolumeSweepLoop 周期性重算全量活跃成员的当月团队业绩快照
func (s *Service) runTeamVolumeSweepLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.TeamVolumeService == nil || s.consumer.MemberRepo == nil {
		return
	}
	runOnce := func() {
		members, err := s.consumer.MemberRepo.ListActiveMembers()
		if err != nil {
			logger.Warnw("worker_team_volume_sweep_list_failed", "error", err)
			return
		}
		if len(members) == 0 {
			return
		}
		periodStart, _ := service.MonthlyPeriodOf(time.Now())
		for _, member := range members {
			snapshot, err := s.consumer.TeamVolumeService.Recompute(member.ID, periodStart)
			if err != nil {
				logger.Warnw("worker_team_volume_sweep_recompute_failed", "member_id", member.ID, "error", err)
				continue
			}
			if s.consumer.CommissionService == nil {
				continue
			}
			if _, err := s.consumer.CommissionService.AwardTeamVolumeBonus(member.ID, snapshot.TeamVolume.Decimal, periodStart); err != nil {
				logger.Warnw("worker_team_volume_bonus_award_failed", "member_id", member.ID, "error", err)
			}
		}
	}
	runOnce()

	ticker := time.NewTicker(teamVolumeSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

// runCommissionSettleLoop 周期性结算到期的 pending 佣金
//
// 以 Redis SetNX 锁保证多实例只跑一个批次；队列可用时按批投递结算
// 任务，不可用时直接在本进程内批量流转为 paid。
func (s *Service) runCommissionSettleLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.CommissionService == nil {
		return
	}
	runOnce := func() {
		acquired, err := cache.SetNX(ctx, commissionSettleLockKey, "1", commissionSettleLockTTL)
		if err != nil {
			logger.Warnw("worker_commission_settle_lock_failed", "error", err)
			return
		}
		if !acquired {
			return
		}
		defer func() {
			if err := cache.Del(ctx, commissionSettleLockKey); err != nil {
				logger.Warnw("worker_commission_settle_unlock_failed", "error", err)
			}
		}()

		pending, err := s.consumer.CommissionService.FindPendingCommissions()
		if err != nil {
			logger.Warnw("worker_commission_settle_list_failed", "error", err)
			return
		}
		batches := settleDueCommissionIDs(pending, time.Now().Add(-commissionSettleHold), commissionSettleBatchSize)
		for _, batch := range batches {
			if s.consumer.QueueClient.Enabled() {
				if err := s.consumer.QueueClient.EnqueueCommissionSettle(queue.CommissionSettlePayload{CommissionIDs: batch}); err != nil {
					logger.Warnw("worker_commission_settle_enqueue_failed", "commission_ids", batch, "error", err)
				}
				continue
			}
			if err := s.consumer.CommissionService.BulkUpdateStatus(batch, constants.CommissionStatusPaid, ""); err != nil {
				logger.Warnw("worker_commission_settle_failed", "commission_ids", batch, "error", err)
			}
		}
	}
	runOnce()

	ticker := time.NewTicker(commissionSettleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

// settleDueCommissionIDs 过滤出计提满持有期的 pending 佣金ID并分批
func settleDueCommissionIDs(rows []models.Commission, dueBefore time.Time, batchSize int) [][]uint {
	if batchSize <= 0 {
		batchSize = commissionSettleBatchSize
	}
	var batches [][]uint
	var current []uint
	for _, row := range rows {
		if row.Status != constants.CommissionStatusPending {
			continue
		}
		if !row.CreatedAt.Before(dueBefore) {
			continue
		}
		current = append(current, row.ID)
		if len(current) == batchSize {
			batches = append(batches, current)
			current = nil
		}
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}
