package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fenxiao-next/internal/config"
	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/logger"
	"github.com/fenxiao-next/internal/metrics"
	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/queue"
	"github.com/fenxiao-next/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const persistDraftMaxAttempts = 3

// volumeBonusTier 团队业绩奖金阶梯（含下限）
type volumeBonusTier struct {
	MinVolume   decimal.Decimal
	RatePercent decimal.Decimal
}

// CommissionService 多级佣金计算与台账服务
type CommissionService struct {
	repo            repository.CommissionRepository
	memberRepo      repository.MemberRepository
	purchaseRepo    repository.PurchaseRepository
	queueClient     *queue.Client
	levelRates      []decimal.Decimal // 下标 0 对应一级比例（百分比）
	bonusTiers      []volumeBonusTier // 按下限从高到低排序
	commissionDepth int
}

// NewCommissionService 创建佣金服务
func NewCommissionService(
	repo repository.CommissionRepository,
	memberRepo repository.MemberRepository,
	purchaseRepo repository.PurchaseRepository,
	queueClient *queue.Client,
	commissionCfg config.CommissionConfig,
	networkCfg config.NetworkConfig,
) *CommissionService {
	depth := networkCfg.CommissionDepth
	if depth <= 0 {
		depth = constants.DefaultCommissionDepth
	}
	return &CommissionService{
		repo:            repo,
		memberRepo:      memberRepo,
		purchaseRepo:    purchaseRepo,
		queueClient:     queueClient,
		levelRates:      buildLevelRates(commissionCfg.LevelRates, depth),
		bonusTiers:      buildBonusTiers(commissionCfg.BonusTiers),
		commissionDepth: depth,
	}
}

// buildLevelRates 构建各层级比例表，缺省为 12/6/4/2/1
func buildLevelRates(raw []float64, depth int) []decimal.Decimal {
	if len(raw) == 0 {
		raw = []float64{12, 6, 4, 2, 1}
	}
	rates := make([]decimal.Decimal, 0, depth)
	for i := 0; i < depth && i < len(raw); i++ {
		rates = append(rates, decimal.NewFromFloat(raw[i]))
	}
	return rates
}

// buildBonusTiers 构建团队业绩奖金阶梯，按下限从高到低排序
func buildBonusTiers(raw []config.VolumeBonusTier) []volumeBonusTier {
	if len(raw) == 0 {
		raw = []config.VolumeBonusTier{
			{MinVolume: 100000, RatePercent: 10},
			{MinVolume: 50000, RatePercent: 7},
			{MinVolume: 25000, RatePercent: 5},
			{MinVolume: 10000, RatePercent: 2},
		}
	}
	tiers := make([]volumeBonusTier, 0, len(raw))
	for _, tier := range raw {
		tiers = append(tiers, volumeBonusTier{
			MinVolume:   decimal.NewFromFloat(tier.MinVolume),
			RatePercent: decimal.NewFromFloat(tier.RatePercent),
		})
	}
	sort.Slice(tiers, func(i, j int) bool {
		return tiers[i].MinVolume.GreaterThan(tiers[j].MinVolume)
	})
	return tiers
}

// CalculateForEvent 依据业绩事件计算各层级佣金草稿（纯计算，不落库）
//
// 沿来源成员物化路径向上最多走 commissionDepth 层，每层按固定比例计提；
// 祖先不足层数属正常情况，不产生错误。停用的祖先占层级但不计提。
func (s *CommissionService) CalculateForEvent(sourceID uint, packageAmount decimal.Decimal, eventID string) ([]models.Commission, error) {
	if _, err := models.NewNonNegativeMoney(packageAmount); err != nil {
		return nil, ErrInvalidAmount
	}
	source, err := s.memberRepo.GetByID(sourceID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, ErrMemberNotFound
	}
	return s.calculateForMember(source, packageAmount, eventID)
}

// calculateForMember 基于已加载的来源成员快照计算佣金草稿
func (s *CommissionService) calculateForMember(source *models.Member, packageAmount decimal.Decimal, eventID string) ([]models.Commission, error) {
	ancestorIDs := source.AncestorIDs()
	if len(ancestorIDs) > len(s.levelRates) {
		ancestorIDs = ancestorIDs[:len(s.levelRates)]
	}
	ancestors, err := s.memberRepo.ListByIDs(ancestorIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]*models.Member, len(ancestors))
	for i := range ancestors {
		byID[ancestors[i].ID] = &ancestors[i]
	}

	drafts := make([]models.Commission, 0, len(ancestorIDs))
	for i, ancestorID := range ancestorIDs {
		level, err := models.NewCommissionLevel(i + 1)
		if err != nil {
			break
		}
		ancestor, ok := byID[ancestorID]
		if !ok || !ancestor.Active {
			continue
		}
		rate := s.levelRates[i]
		// 每层单独取整，保证各层金额可独立审计
		amount := packageAmount.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)
		drafts = append(drafts, models.Commission{
			EarnerID:       ancestorID,
			SourceID:       source.ID,
			Level:          level.Int(),
			CommissionType: constants.CommissionTypeReferral,
			BaseAmount:     models.NewMoneyFromDecimal(packageAmount),
			RatePercent:    models.NewMoneyFromDecimal(rate),
			Amount:         models.NewMoneyFromDecimal(amount),
			Status:         constants.CommissionStatusPending,
			SourcePath:     source.Path,
			EventID:        strings.TrimSpace(eventID),
		})
	}
	return drafts, nil
}

// CalculateTeamVolumeBonus 计算团队业绩奖金金额
//
// 阶梯为含下限，从高到低匹配：恰好 100000 取 10% 而非 7%。
func (s *CommissionService) CalculateTeamVolumeBonus(teamVolume decimal.Decimal) decimal.Decimal {
	rate := s.TeamVolumeBonusRate(teamVolume)
	if rate.IsZero() {
		return decimal.Zero
	}
	return teamVolume.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)
}

// TeamVolumeBonusRate 返回团队业绩对应的奖金比例（百分比）
func (s *CommissionService) TeamVolumeBonusRate(teamVolume decimal.Decimal) decimal.Decimal {
	for _, tier := range s.bonusTiers {
		if teamVolume.GreaterThanOrEqual(tier.MinVolume) {
			return tier.RatePercent
		}
	}
	return decimal.Zero
}

// AwardTeamVolumeBonus 依据周期团队业绩计提团队奖金佣金
//
// 每成员每周期一条记录，以固定事件ID幂等：未达最低阶梯不产生记录；
// 周期内业绩增长时更新 pending 记录的金额，已结算或已冲正则不再变更。
func (s *CommissionService) AwardTeamVolumeBonus(memberID uint, teamVolume decimal.Decimal, periodStart time.Time) (*models.Commission, error) {
	if memberID == 0 {
		return nil, ErrMemberNotFound
	}
	rate := s.TeamVolumeBonusRate(teamVolume)
	if rate.IsZero() {
		return nil, nil
	}
	bonus := teamVolume.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)
	eventID := fmt.Sprintf("tvb-%d-%s", memberID, periodStart.UTC().Format("200601"))

	var result *models.Commission
	created := false
	err := s.repo.Transaction(func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		rows, err := txRepo.ListByEventID(eventID)
		if err != nil {
			return err
		}
		if len(rows) > 0 {
			existing := rows[0]
			if existing.Status != constants.CommissionStatusPending {
				result = &existing
				return nil
			}
			existing.BaseAmount = models.NewMoneyFromDecimal(teamVolume)
			existing.RatePercent = models.NewMoneyFromDecimal(rate)
			existing.Amount = models.NewMoneyFromDecimal(bonus)
			if err := txRepo.Update(&existing); err != nil {
				return err
			}
			result = &existing
			return nil
		}

		commission := &models.Commission{
			EarnerID:       memberID,
			SourceID:       memberID,
			Level:          0,
			CommissionType: constants.CommissionTypeTeamVolumeBonus,
			BaseAmount:     models.NewMoneyFromDecimal(teamVolume),
			RatePercent:    models.NewMoneyFromDecimal(rate),
			Amount:         models.NewMoneyFromDecimal(bonus),
			Status:         constants.CommissionStatusPending,
			EventID:        eventID,
		}
		if err := txRepo.Create(commission); err != nil {
			return err
		}
		result = commission
		created = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if created {
		metrics.CommissionsCreatedTotal.WithLabelValues(constants.CommissionTypeTeamVolumeBonus).Inc()
		amount, _ := bonus.Float64()
		metrics.CommissionAmountTotal.WithLabelValues(constants.CommissionTypeTeamVolumeBonus).Add(amount)
	}
	return result, nil
}

// SumPurchases 汇总成员时间区间内的个人购买业绩
func (s *CommissionService) SumPurchases(memberID uint, from, to time.Time) (models.Money, error) {
	member, err := s.memberRepo.GetByID(memberID)
	if err != nil {
		return models.Money{}, err
	}
	if member == nil {
		return models.Money{}, ErrMemberNotFound
	}
	total, err := s.purchaseRepo.SumByMember(memberID, from, to)
	if err != nil {
		return models.Money{}, err
	}
	return models.NewMoneyFromDecimal(total), nil
}

// PersistAndAward 将佣金草稿以 pending 状态落库
//
// 落库前在事务内锁定来源成员并比对路径快照，期间发生过网络重组则
// 返回 ErrStaleTreeSnapshot，由调用方基于最新树重算后重试。
func (s *CommissionService) PersistAndAward(drafts []models.Commission) error {
	if len(drafts) == 0 {
		return nil
	}
	err := s.repo.Transaction(func(tx *gorm.DB) error {
		return s.persistDraftsTx(tx, drafts)
	})
	if err != nil {
		return err
	}
	s.afterAward(drafts)
	return nil
}

// persistDraftsTx 事务内校验树快照并批量写入佣金
func (s *CommissionService) persistDraftsTx(tx *gorm.DB, drafts []models.Commission) error {
	txMemberRepo := s.memberRepo.WithTx(tx)
	source, err := txMemberRepo.GetByIDForUpdate(drafts[0].SourceID)
	if err != nil {
		return err
	}
	if source == nil {
		return ErrMemberNotFound
	}
	if source.Path != drafts[0].SourcePath {
		metrics.CommissionStaleRetriesTotal.Inc()
		return ErrStaleTreeSnapshot
	}
	return s.repo.WithTx(tx).CreateBatch(drafts)
}

// HandlePurchaseEvent 处理确认后的业绩事件：幂等入账并计提各层佣金
//
// 同一 EventID 重复投递时直接返回已计提的佣金，不重复入账。
// 计提期间树被并发重组则基于最新树重算，最多重试若干次。
func (s *CommissionService) HandlePurchaseEvent(eventID string, sourceID uint, amount decimal.Decimal, occurredAt time.Time) ([]models.Commission, error) {
	normalized := strings.TrimSpace(eventID)
	if normalized == "" {
		return nil, ErrInvalidAmount
	}
	purchaseAmount, err := models.NewNonNegativeMoney(amount)
	if err != nil {
		return nil, ErrInvalidAmount
	}
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	existing, err := s.purchaseRepo.GetByEventID(normalized)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.repo.ListByEventID(normalized)
	}

	var drafts []models.Commission
	var lastErr error
	for attempt := 0; attempt < persistDraftMaxAttempts; attempt++ {
		drafts, lastErr = s.CalculateForEvent(sourceID, amount, normalized)
		if lastErr != nil {
			return nil, lastErr
		}

		lastErr = s.repo.Transaction(func(tx *gorm.DB) error {
			record := &models.PurchaseRecord{
				EventID:    normalized,
				MemberID:   sourceID,
				Amount:     purchaseAmount,
				OccurredAt: occurredAt,
			}
			if err := s.purchaseRepo.WithTx(tx).Create(record); err != nil {
				return err
			}
			if len(drafts) == 0 {
				return nil
			}
			return s.persistDraftsTx(tx, drafts)
		})
		if lastErr == nil {
			break
		}
		if !errors.Is(lastErr, ErrStaleTreeSnapshot) {
			return nil, lastErr
		}
		logger.Warnw("commission_award_stale_tree_retry",
			"event_id", normalized,
			"source_id", sourceID,
			"attempt", attempt+1,
		)
	}
	if lastErr != nil {
		return nil, lastErr
	}

	s.afterAward(drafts)
	logger.Infow("purchase_event_awarded",
		"event_id", normalized,
		"source_id", sourceID,
		"amount", amount.StringFixed(2),
		"commissions", len(drafts),
	)
	return drafts, nil
}

// afterAward 落账成功后的指标上报与异步重算触发
func (s *CommissionService) afterAward(drafts []models.Commission) {
	if len(drafts) == 0 {
		return
	}
	memberIDs := make([]uint, 0, len(drafts)+1)
	memberIDs = append(memberIDs, drafts[0].SourceID)
	for _, draft := range drafts {
		metrics.CommissionsCreatedTotal.WithLabelValues(draft.CommissionType).Inc()
		amount, _ := draft.Amount.Float64()
		metrics.CommissionAmountTotal.WithLabelValues(draft.CommissionType).Add(amount)
		memberIDs = append(memberIDs, draft.EarnerID)
	}
	if err := s.queueClient.EnqueueTeamVolumeRecompute(queue.TeamVolumeRecomputePayload{
		MemberIDs: memberIDs,
	}); err != nil {
		logger.Warnw("team_volume_recompute_enqueue_failed", "error", err, "member_ids", memberIDs)
	}
}

// FindPendingCommissions 查询全部待结算佣金
func (s *CommissionService) FindPendingCommissions() ([]models.Commission, error) {
	return s.repo.ListPending()
}

// ListCommissions 分页查询佣金台账
func (s *CommissionService) ListCommissions(filter repository.CommissionListFilter) ([]models.Commission, int64, error) {
	return s.repo.List(filter)
}

// BulkUpdateStatus 批量流转佣金状态（全部成功或全部回滚）
//
// 仅允许 pending→paid 与 pending→reversed，paid/reversed 为终态。
func (s *CommissionService) BulkUpdateStatus(ids []uint, newStatus string, reason string) error {
	if len(ids) == 0 {
		return nil
	}
	newStatus = strings.TrimSpace(newStatus)
	if newStatus != constants.CommissionStatusPaid && newStatus != constants.CommissionStatusReversed {
		return ErrInvalidStateTransition
	}

	return s.repo.Transaction(func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		rows, err := txRepo.ListByIDsForUpdate(ids)
		if err != nil {
			return err
		}
		if len(rows) != len(ids) {
			return ErrNotFound
		}
		for _, row := range rows {
			if row.Status != constants.CommissionStatusPending {
				return ErrInvalidStateTransition
			}
		}

		now := time.Now()
		updates := map[string]interface{}{
			"status":     newStatus,
			"updated_at": now,
		}
		switch newStatus {
		case constants.CommissionStatusPaid:
			updates["paid_at"] = now
		case constants.CommissionStatusReversed:
			updates["reversed_at"] = now
			updates["reverse_reason"] = strings.TrimSpace(reason)
		}
		affected, err := txRepo.BulkUpdateStatus(ids, updates)
		if err != nil {
			return err
		}
		if affected != int64(len(ids)) {
			return ErrInvalidStateTransition
		}
		return nil
	})
}

// CalculateTotalCommissions 汇总成员时间区间内的佣金总额
func (s *CommissionService) CalculateTotalCommissions(earnerID uint, from, to time.Time, statuses []string) (models.Money, error) {
	total, err := s.repo.SumByEarnerAndRange(earnerID, from, to, statuses)
	if err != nil {
		return models.Money{}, err
	}
	return models.NewMoneyFromDecimal(total), nil
}

// GetCommissionStatsByLevel 按层级统计成员佣金金额（不含已冲正）
func (s *CommissionService) GetCommissionStatsByLevel(earnerID uint) (map[int]models.Money, error) {
	stats, err := s.repo.StatsByLevel(earnerID)
	if err != nil {
		return nil, err
	}
	result := make(map[int]models.Money, len(stats))
	for level, amount := range stats {
		result[level] = models.NewMoneyFromDecimal(amount)
	}
	return result, nil
}
