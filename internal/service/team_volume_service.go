package service

import (
	"time"

	"github.com/fenxiao-next/internal/config"
	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/logger"
	"github.com/fenxiao-next/internal/metrics"
	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ActivityPolicy 成员活跃判定策略，由调用方注入具体业务规则
type ActivityPolicy interface {
	IsActive(member *models.Member) bool
}

// ActiveFlagPolicy 默认活跃策略：以成员自身活跃标记为准
type ActiveFlagPolicy struct{}

// IsActive 判断成员是否活跃
func (ActiveFlagPolicy) IsActive(member *models.Member) bool {
	return member != nil && member.Active
}

// TeamVolumeService 团队业绩汇总服务
type TeamVolumeService struct {
	memberRepo   repository.MemberRepository
	purchaseRepo repository.PurchaseRepository
	snapshotRepo repository.TeamVolumeRepository
	policy       ActivityPolicy
	volumeDepth  int
}

// NewTeamVolumeService 创建团队业绩服务
func NewTeamVolumeService(
	memberRepo repository.MemberRepository,
	purchaseRepo repository.PurchaseRepository,
	snapshotRepo repository.TeamVolumeRepository,
	policy ActivityPolicy,
	cfg config.NetworkConfig,
) *TeamVolumeService {
	depth := cfg.VolumeDepth
	if depth <= 0 {
		depth = constants.DefaultCommissionDepth
	}
	if policy == nil {
		policy = ActiveFlagPolicy{}
	}
	return &TeamVolumeService{
		memberRepo:   memberRepo,
		purchaseRepo: purchaseRepo,
		snapshotRepo: snapshotRepo,
		policy:       policy,
		volumeDepth:  depth,
	}
}

// MonthlyPeriodOf 计算时间所在的自然月汇总周期（含起不含止，UTC）
func MonthlyPeriodOf(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// Recompute 重算成员指定周期的团队业绩快照
//
// 个人业绩 + 限定层深内全部下级业绩自底向上汇总；同成员重算在事务内
// 持有成员行锁串行执行，避免并发业绩事件互相覆盖。
func (s *TeamVolumeService) Recompute(memberID uint, periodStart time.Time) (*models.TeamVolumeSnapshot, error) {
	if periodStart.IsZero() {
		periodStart, _ = MonthlyPeriodOf(time.Now())
	}
	periodStart = time.Date(periodStart.Year(), periodStart.Month(), 1, 0, 0, 0, 0, time.UTC)
	periodEnd := periodStart.AddDate(0, 1, 0)

	var snapshot *models.TeamVolumeSnapshot
	err := s.memberRepo.Transaction(func(tx *gorm.DB) error {
		txMemberRepo := s.memberRepo.WithTx(tx)
		member, err := txMemberRepo.GetByIDForUpdate(memberID)
		if err != nil {
			return err
		}
		if member == nil {
			return ErrMemberNotFound
		}

		subtree, err := txMemberRepo.ListSubtree(member.Path)
		if err != nil {
			return err
		}

		maxNodeDepth := member.Depth + s.volumeDepth
		countedIDs := make([]uint, 0, len(subtree))
		teamDepth := 0
		activeReferrals := 0
		for i := range subtree {
			node := &subtree[i]
			if node.Depth-member.Depth > teamDepth {
				teamDepth = node.Depth - member.Depth
			}
			if node.ReferrerID != nil && *node.ReferrerID == member.ID && s.policy.IsActive(node) {
				activeReferrals++
			}
			if node.Depth <= maxNodeDepth {
				countedIDs = append(countedIDs, node.ID)
			}
		}

		volumes, err := s.purchaseRepo.WithTx(tx).SumByMembersGrouped(countedIDs, periodStart, periodEnd)
		if err != nil {
			return err
		}
		personal := volumes[member.ID]
		team := decimal.Zero
		for _, amount := range volumes {
			team = team.Add(amount)
		}

		snapshot = &models.TeamVolumeSnapshot{
			MemberID:        member.ID,
			PeriodStart:     periodStart,
			PeriodEnd:       periodEnd,
			PersonalVolume:  models.NewMoneyFromDecimal(personal),
			TeamVolume:      models.NewMoneyFromDecimal(team),
			ActiveReferrals: activeReferrals,
			TeamDepth:       teamDepth,
			ComputedAt:      time.Now(),
		}
		return s.snapshotRepo.WithTx(tx).Upsert(snapshot)
	})
	if err != nil {
		return nil, err
	}

	metrics.TeamVolumeRecomputesTotal.Inc()
	return snapshot, nil
}

// RecomputeMany 依次重算一组成员的快照，单个失败不中断其余成员
func (s *TeamVolumeService) RecomputeMany(memberIDs []uint, periodStart time.Time) error {
	var lastErr error
	for _, memberID := range memberIDs {
		if _, err := s.Recompute(memberID, periodStart); err != nil {
			logger.Warnw("team_volume_recompute_failed", "member_id", memberID, "error", err)
			lastErr = err
		}
	}
	return lastErr
}

// CheckTierUpgradeQualification 评估晋级资格，业绩与活跃直推数同时达标才通过
func (s *TeamVolumeService) CheckTierUpgradeQualification(memberID uint, requiredVolume decimal.Decimal, requiredReferrals int) (bool, error) {
	snapshot, err := s.snapshotRepo.GetLatestByMember(memberID)
	if err != nil {
		return false, err
	}
	if snapshot == nil {
		snapshot, err = s.Recompute(memberID, time.Time{})
		if err != nil {
			return false, err
		}
	}
	volumeOK := snapshot.TeamVolume.GreaterThanOrEqual(requiredVolume)
	referralsOK := snapshot.ActiveReferrals >= requiredReferrals
	return volumeOK && referralsOK, nil
}

// GetLatestSnapshot 查询成员最新快照
func (s *TeamVolumeService) GetLatestSnapshot(memberID uint) (*models.TeamVolumeSnapshot, error) {
	member, err := s.memberRepo.GetByID(memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}
	return s.snapshotRepo.GetLatestByMember(memberID)
}

// GetSnapshotForPeriod 查询成员指定周期的快照，周期起点归一化到月初
func (s *TeamVolumeService) GetSnapshotForPeriod(memberID uint, periodStart time.Time) (*models.TeamVolumeSnapshot, error) {
	member, err := s.memberRepo.GetByID(memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}
	periodStart, _ = MonthlyPeriodOf(periodStart)
	return s.snapshotRepo.GetByMemberAndPeriod(memberID, periodStart)
}

// GetSnapshotHistory 查询成员历史快照
func (s *TeamVolumeService) GetSnapshotHistory(memberID uint, limit int) ([]models.TeamVolumeSnapshot, error) {
	member, err := s.memberRepo.GetByID(memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}
	return s.snapshotRepo.ListHistory(memberID, limit)
}
