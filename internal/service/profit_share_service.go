package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/fenxiao-next/internal/config"
	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/logger"
	"github.com/fenxiao-next/internal/metrics"
	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProfitShareService 季度分红服务（draft→calculated→approved→distributed 状态机）
type ProfitShareService struct {
	repo               repository.ProfitShareRepository
	memberRepo         repository.MemberRepository
	snapshotRepo       repository.TeamVolumeRepository
	memberSharePercent decimal.Decimal
	levelMultipliers   map[string]decimal.Decimal
}

// NewProfitShareService 创建季度分红服务
func NewProfitShareService(
	repo repository.ProfitShareRepository,
	memberRepo repository.MemberRepository,
	snapshotRepo repository.TeamVolumeRepository,
	cfg config.ProfitConfig,
) *ProfitShareService {
	percent := decimal.NewFromFloat(cfg.MemberSharePercent)
	if percent.LessThanOrEqual(decimal.Zero) || percent.GreaterThan(decimal.NewFromInt(100)) {
		percent = decimal.NewFromInt(60)
	}
	multipliers := make(map[string]decimal.Decimal, len(cfg.LevelMultipliers))
	for level, multiplier := range cfg.LevelMultipliers {
		multipliers[strings.ToLower(strings.TrimSpace(level))] = decimal.NewFromFloat(multiplier)
	}
	if len(multipliers) == 0 {
		multipliers = map[string]decimal.Decimal{
			constants.ProfessionalLevelAssociate:  decimal.NewFromFloat(1.0),
			constants.ProfessionalLevelConsultant: decimal.NewFromFloat(1.5),
			constants.ProfessionalLevelManager:    decimal.NewFromFloat(2.0),
			constants.ProfessionalLevelDirector:   decimal.NewFromFloat(2.5),
			constants.ProfessionalLevelExecutive:  decimal.NewFromFloat(3.0),
			constants.ProfessionalLevelAmbassador: decimal.NewFromFloat(4.0),
		}
	}
	return &ProfitShareService{
		repo:               repo,
		memberRepo:         memberRepo,
		snapshotRepo:       snapshotRepo,
		memberSharePercent: percent,
		levelMultipliers:   multipliers,
	}
}

// CreateProfitShareInput 创建分红单输入
type CreateProfitShareInput struct {
	Year               int
	Quarter            int
	TotalProfit        decimal.Decimal
	DistributionMethod string
	CreatedBy          uint
}

// Create 创建季度分红单（draft 状态），同一季度仅允许一单
func (s *ProfitShareService) Create(input CreateProfitShareInput) (*models.QuarterlyProfitShare, error) {
	quarter, err := models.NewQuarter(input.Year, input.Quarter)
	if err != nil {
		return nil, err
	}
	if input.TotalProfit.IsNegative() {
		return nil, ErrInvalidAmount
	}
	method, err := normalizeDistributionMethod(input.DistributionMethod)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByQuarter(quarter.Year, quarter.Quarter)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateQuarter
	}

	share := &models.QuarterlyProfitShare{
		BatchNo:            buildBatchNo(quarter),
		Year:               quarter.Year,
		Quarter:            quarter.Quarter,
		TotalProfit:        models.NewMoneyFromDecimal(input.TotalProfit),
		DistributionMethod: method,
		Status:             constants.ProfitShareStatusDraft,
		CreatedBy:          input.CreatedBy,
	}
	if err := s.repo.Create(share); err != nil {
		return nil, err
	}
	logger.Infow("profit_share_created",
		"id", share.ID,
		"batch_no", share.BatchNo,
		"quarter", quarter.String(),
	)
	return share, nil
}

// UpdateDraft 修改分红单的利润与分配方式，仅 draft 状态允许
func (s *ProfitShareService) UpdateDraft(id uint, totalProfit decimal.Decimal, distributionMethod string) (*models.QuarterlyProfitShare, error) {
	if totalProfit.IsNegative() {
		return nil, ErrInvalidAmount
	}
	method, err := normalizeDistributionMethod(distributionMethod)
	if err != nil {
		return nil, err
	}

	var updated *models.QuarterlyProfitShare
	err = s.repo.Transaction(func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		share, err := txRepo.GetByIDForUpdate(id)
		if err != nil {
			return err
		}
		if share == nil {
			return ErrNotFound
		}
		if share.Status != constants.ProfitShareStatusDraft {
			return ErrInvalidStateTransition
		}
		share.TotalProfit = models.NewMoneyFromDecimal(totalProfit)
		share.DistributionMethod = method
		if err := txRepo.Save(share); err != nil {
			return err
		}
		updated = share
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// MarkAsCalculated 执行分配算法并流转到 calculated
//
// 成员分红总额 = 总利润 × 配置比例（默认 60%），公司留存为差额，
// 二者相加恒等于总利润；成员间按 BP 加权或级别加权分摊，
// 取整后的尾差并入权重最大的成员，保证明细合计与总额一致。
func (s *ProfitShareService) MarkAsCalculated(id uint) (*models.QuarterlyProfitShare, error) {
	var calculated *models.QuarterlyProfitShare
	err := s.repo.Transaction(func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		share, err := txRepo.GetByIDForUpdate(id)
		if err != nil {
			return err
		}
		if share == nil {
			return ErrNotFound
		}
		if share.Status != constants.ProfitShareStatusDraft {
			return ErrInvalidStateTransition
		}

		members, err := s.memberRepo.WithTx(tx).ListActiveMembers()
		if err != nil {
			return err
		}

		totalProfit := share.TotalProfit.Decimal
		memberShare := totalProfit.Mul(s.memberSharePercent).Div(decimal.NewFromInt(100)).Round(2)
		companyShare := totalProfit.Sub(memberShare)

		rows, err := s.allocate(tx, share, members, memberShare)
		if err != nil {
			return err
		}

		// 重算前清理历史明细
		if err := txRepo.DeleteMemberShares(share.ID); err != nil {
			return err
		}
		if err := txRepo.CreateMemberShares(rows); err != nil {
			return err
		}

		share.MemberShareAmount = models.NewMoneyFromDecimal(memberShare)
		share.CompanyShareAmount = models.NewMoneyFromDecimal(companyShare)
		share.TotalActiveMembers = len(members)
		share.Status = constants.ProfitShareStatusCalculated
		if err := txRepo.Save(share); err != nil {
			return err
		}
		calculated = share
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ProfitShareTransitionsTotal.WithLabelValues(constants.ProfitShareStatusCalculated).Inc()
	logger.Infow("profit_share_calculated",
		"id", calculated.ID,
		"method", calculated.DistributionMethod,
		"members", calculated.TotalActiveMembers,
	)
	return calculated, nil
}

// allocate 按分红单的分配方式计算每个成员的分摊明细
func (s *ProfitShareService) allocate(tx *gorm.DB, share *models.QuarterlyProfitShare, members []models.Member, memberShare decimal.Decimal) ([]models.MemberProfitShare, error) {
	weights := make([]decimal.Decimal, len(members))
	basis := make([]decimal.Decimal, len(members))
	totalWeight := decimal.Zero

	switch share.DistributionMethod {
	case constants.DistributionMethodBPWeighted:
		snapshotRepo := s.snapshotRepo.WithTx(tx)
		for i := range members {
			snapshot, err := snapshotRepo.GetLatestByMember(members[i].ID)
			if err != nil {
				return nil, err
			}
			bp := decimal.Zero
			if snapshot != nil {
				bp = snapshot.TeamVolume.Decimal
			}
			weights[i] = bp
			basis[i] = bp
			totalWeight = totalWeight.Add(bp)
		}
	case constants.DistributionMethodLevelWeighted:
		for i := range members {
			multiplier := s.multiplierFor(members[i].ProfessionalLevel)
			weights[i] = multiplier
			basis[i] = multiplier
			totalWeight = totalWeight.Add(multiplier)
		}
	default:
		return nil, ErrInvalidDistribution
	}

	// 零权重无法按比例分摊
	if totalWeight.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidDistribution
	}

	rows := make([]models.MemberProfitShare, 0, len(members))
	allocated := decimal.Zero
	maxWeightIdx := 0
	for i := range members {
		if weights[i].GreaterThan(weights[maxWeightIdx]) {
			maxWeightIdx = i
		}
		amount := memberShare.Mul(weights[i]).Div(totalWeight).Round(2)
		allocated = allocated.Add(amount)
		rows = append(rows, models.MemberProfitShare{
			ProfitShareID:     share.ID,
			MemberID:          members[i].ID,
			ProfessionalLevel: members[i].ProfessionalLevel,
			LevelMultiplier:   models.NewMoneyFromDecimal(s.multiplierFor(members[i].ProfessionalLevel)),
			VolumeBasis:       models.NewMoneyFromDecimal(basis[i]),
			ShareAmount:       models.NewMoneyFromDecimal(amount),
			Status:            constants.MemberShareStatusPending,
		})
	}

	// 取整尾差并入权重最大的成员
	if remainder := memberShare.Sub(allocated); !remainder.IsZero() && len(rows) > 0 {
		adjusted := rows[maxWeightIdx].ShareAmount.Decimal.Add(remainder)
		rows[maxWeightIdx].ShareAmount = models.NewMoneyFromDecimal(adjusted)
	}
	return rows, nil
}

// multiplierFor 查询职业级别权重，未知级别回退为 1.0 并告警
func (s *ProfitShareService) multiplierFor(level string) decimal.Decimal {
	normalized := strings.ToLower(strings.TrimSpace(level))
	if multiplier, ok := s.levelMultipliers[normalized]; ok {
		return multiplier
	}
	logger.Warnw("profit_share_unknown_level", "level", level, "fallback_multiplier", "1.0")
	return decimal.NewFromInt(1)
}

// Approve 审批分红单，仅 calculated 状态允许
func (s *ProfitShareService) Approve(id uint, approvedBy uint) (*models.QuarterlyProfitShare, error) {
	var approved *models.QuarterlyProfitShare
	err := s.repo.Transaction(func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		share, err := txRepo.GetByIDForUpdate(id)
		if err != nil {
			return err
		}
		if share == nil {
			return ErrNotFound
		}
		if share.Status != constants.ProfitShareStatusCalculated {
			return ErrInvalidStateTransition
		}
		now := time.Now()
		share.Status = constants.ProfitShareStatusApproved
		share.ApprovedBy = &approvedBy
		share.ApprovedAt = &now
		if err := txRepo.Save(share); err != nil {
			return err
		}
		approved = share
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ProfitShareTransitionsTotal.WithLabelValues(constants.ProfitShareStatusApproved).Inc()
	logger.Infow("profit_share_approved", "id", approved.ID, "approved_by", approvedBy)
	return approved, nil
}

// MarkAsDistributed 标记分红发放完成，仅 approved 状态允许，distributed 为终态
func (s *ProfitShareService) MarkAsDistributed(id uint) (*models.QuarterlyProfitShare, error) {
	var distributed *models.QuarterlyProfitShare
	err := s.repo.Transaction(func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		share, err := txRepo.GetByIDForUpdate(id)
		if err != nil {
			return err
		}
		if share == nil {
			return ErrNotFound
		}
		if share.Status != constants.ProfitShareStatusApproved {
			return ErrInvalidStateTransition
		}
		now := time.Now()
		share.Status = constants.ProfitShareStatusDistributed
		share.DistributedAt = &now
		if err := txRepo.Save(share); err != nil {
			return err
		}
		distributed = share
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ProfitShareTransitionsTotal.WithLabelValues(constants.ProfitShareStatusDistributed).Inc()
	logger.Infow("profit_share_distributed", "id", distributed.ID)
	return distributed, nil
}

// MarkMemberSharePaid 单个成员分红发放完成，pending→paid
func (s *ProfitShareService) MarkMemberSharePaid(memberShareID uint) error {
	return s.repo.Transaction(func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		row, err := txRepo.GetMemberShareForUpdate(memberShareID)
		if err != nil {
			return err
		}
		if row == nil {
			return ErrNotFound
		}
		if row.Status != constants.MemberShareStatusPending {
			return ErrInvalidStateTransition
		}
		now := time.Now()
		row.Status = constants.MemberShareStatusPaid
		row.PaidAt = &now
		return txRepo.SaveMemberShare(row)
	})
}

// GetByID 查询分红单
func (s *ProfitShareService) GetByID(id uint) (*models.QuarterlyProfitShare, error) {
	share, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if share == nil {
		return nil, ErrNotFound
	}
	return share, nil
}

// GetByQuarter 按季度查询分红单
func (s *ProfitShareService) GetByQuarter(year, quarter int) (*models.QuarterlyProfitShare, error) {
	share, err := s.repo.GetByQuarter(year, quarter)
	if err != nil {
		return nil, err
	}
	if share == nil {
		return nil, ErrNotFound
	}
	return share, nil
}

// ListMemberShares 查询成员分红明细
func (s *ProfitShareService) ListMemberShares(filter repository.MemberShareListFilter) ([]models.MemberProfitShare, int64, error) {
	return s.repo.ListMemberShares(filter)
}

// normalizeDistributionMethod 规范化分配方式，缺省为 BP 加权
func normalizeDistributionMethod(raw string) (string, error) {
	method := strings.ToLower(strings.TrimSpace(raw))
	switch method {
	case "":
		return constants.DistributionMethodBPWeighted, nil
	case constants.DistributionMethodBPWeighted, constants.DistributionMethodLevelWeighted:
		return method, nil
	default:
		return "", ErrInvalidDistribution
	}
}

// buildBatchNo 生成分红批次号
func buildBatchNo(quarter models.Quarter) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("PS%s-%s", quarter.String(), suffix)
}
