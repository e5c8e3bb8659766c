package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fenxiao-next/internal/config"
	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupProfitShareServiceTest(t *testing.T) (*ProfitShareService, *NetworkService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:profit_share_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Member{},
		&models.TeamVolumeSnapshot{},
		&models.QuarterlyProfitShare{},
		&models.MemberProfitShare{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	memberRepo := repository.NewMemberRepository(db)
	svc := NewProfitShareService(
		repository.NewProfitShareRepository(db),
		memberRepo,
		repository.NewTeamVolumeRepository(db),
		config.ProfitConfig{},
	)
	networkSvc := NewNetworkService(memberRepo, config.NetworkConfig{MaxDirectDownlines: 3})
	return svc, networkSvc, db
}

func createTestSnapshot(t *testing.T, db *gorm.DB, memberID uint, teamVolume int64) {
	t.Helper()
	periodStart, periodEnd := MonthlyPeriodOf(time.Now())
	snapshot := models.TeamVolumeSnapshot{
		MemberID:       memberID,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		PersonalVolume: models.NewMoneyFromInt(teamVolume),
		TeamVolume:     models.NewMoneyFromInt(teamVolume),
		ComputedAt:     time.Now(),
	}
	if err := db.Create(&snapshot).Error; err != nil {
		t.Fatalf("create snapshot failed: %v", err)
	}
}

func assertShareTotals(t *testing.T, db *gorm.DB, share *models.QuarterlyProfitShare) {
	t.Helper()
	total := share.MemberShareAmount.Decimal.Add(share.CompanyShareAmount.Decimal)
	if !total.Equal(share.TotalProfit.Decimal) {
		t.Fatalf("member %s + company %s != total %s",
			share.MemberShareAmount, share.CompanyShareAmount, share.TotalProfit)
	}

	var rows []models.MemberProfitShare
	if err := db.Where("profit_share_id = ?", share.ID).Find(&rows).Error; err != nil {
		t.Fatalf("load member shares failed: %v", err)
	}
	allocated := decimal.Zero
	for _, row := range rows {
		allocated = allocated.Add(row.ShareAmount.Decimal)
	}
	if !allocated.Equal(share.MemberShareAmount.Decimal) {
		t.Fatalf("allocated %s != member share %s", allocated, share.MemberShareAmount)
	}
}

func TestProfitShareServiceCreate(t *testing.T) {
	svc, _, _ := setupProfitShareServiceTest(t)

	share, err := svc.Create(CreateProfitShareInput{
		Year:        2026,
		Quarter:     2,
		TotalProfit: decimal.NewFromInt(10000),
		CreatedBy:   1,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if share.Status != constants.ProfitShareStatusDraft {
		t.Fatalf("status = %s, want draft", share.Status)
	}
	if share.DistributionMethod != constants.DistributionMethodBPWeighted {
		t.Fatalf("default method = %s", share.DistributionMethod)
	}
	if share.BatchNo == "" {
		t.Fatalf("batch no is empty")
	}

	if _, err := svc.Create(CreateProfitShareInput{Year: 2026, Quarter: 2, TotalProfit: decimal.NewFromInt(1), CreatedBy: 1}); !errors.Is(err, ErrDuplicateQuarter) {
		t.Fatalf("duplicate quarter err = %v", err)
	}
	if _, err := svc.Create(CreateProfitShareInput{Year: 2026, Quarter: 5, TotalProfit: decimal.NewFromInt(1), CreatedBy: 1}); err == nil {
		t.Fatalf("invalid quarter accepted")
	}
	if _, err := svc.Create(CreateProfitShareInput{Year: 2026, Quarter: 3, TotalProfit: decimal.NewFromInt(1), DistributionMethod: "random", CreatedBy: 1}); !errors.Is(err, ErrInvalidDistribution) {
		t.Fatalf("invalid method err = %v", err)
	}
	if _, err := svc.Create(CreateProfitShareInput{Year: 2026, Quarter: 3, TotalProfit: decimal.NewFromInt(-1), CreatedBy: 1}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative profit err = %v", err)
	}
}

func TestProfitShareServiceBPWeightedAllocation(t *testing.T) {
	svc, networkSvc, db := setupProfitShareServiceTest(t)

	root := registerTestMember(t, networkSvc, 3000, nil)
	a := registerTestMember(t, networkSvc, 3001, &root.ID)
	b := registerTestMember(t, networkSvc, 3002, &root.ID)
	createTestSnapshot(t, db, root.ID, 600)
	createTestSnapshot(t, db, a.ID, 300)
	createTestSnapshot(t, db, b.ID, 100)

	share, err := svc.Create(CreateProfitShareInput{
		Year:               2026,
		Quarter:            1,
		TotalProfit:        decimal.NewFromInt(1000),
		DistributionMethod: constants.DistributionMethodBPWeighted,
		CreatedBy:          1,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	calculated, err := svc.MarkAsCalculated(share.ID)
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}
	if got := calculated.MemberShareAmount.String(); got != "600.00" {
		t.Fatalf("member share = %s, want 600.00", got)
	}
	if got := calculated.CompanyShareAmount.String(); got != "400.00" {
		t.Fatalf("company share = %s, want 400.00", got)
	}
	if calculated.TotalActiveMembers != 3 {
		t.Fatalf("active members = %d, want 3", calculated.TotalActiveMembers)
	}
	assertShareTotals(t, db, calculated)

	var rootRow models.MemberProfitShare
	if err := db.Where("profit_share_id = ? AND member_id = ?", share.ID, root.ID).First(&rootRow).Error; err != nil {
		t.Fatalf("load root share failed: %v", err)
	}
	// 600 BP / 1000 BP × 600
	if got := rootRow.ShareAmount.String(); got != "360.00" {
		t.Fatalf("root share = %s, want 360.00", got)
	}
	if rootRow.Status != constants.MemberShareStatusPending {
		t.Fatalf("member share status = %s", rootRow.Status)
	}
}

func TestProfitShareServiceBPWeightedZeroBasis(t *testing.T) {
	svc, networkSvc, _ := setupProfitShareServiceTest(t)

	registerTestMember(t, networkSvc, 3100, nil)

	share, err := svc.Create(CreateProfitShareInput{
		Year:        2026,
		Quarter:     1,
		TotalProfit: decimal.NewFromInt(1000),
		CreatedBy:   1,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.MarkAsCalculated(share.ID); !errors.Is(err, ErrInvalidDistribution) {
		t.Fatalf("zero BP calculate err = %v", err)
	}
}

func TestProfitShareServiceLevelWeightedAllocation(t *testing.T) {
	svc, networkSvc, db := setupProfitShareServiceTest(t)

	root := registerTestMember(t, networkSvc, 3200, nil)
	a := registerTestMember(t, networkSvc, 3201, &root.ID)
	b := registerTestMember(t, networkSvc, 3202, &root.ID)
	if err := db.Model(&models.Member{}).Where("id = ?", root.ID).
		Update("professional_level", constants.ProfessionalLevelAmbassador).Error; err != nil {
		t.Fatalf("update level failed: %v", err)
	}
	// 未知级别回退权重 1.0
	if err := db.Model(&models.Member{}).Where("id = ?", b.ID).
		Update("professional_level", "platinum").Error; err != nil {
		t.Fatalf("update level failed: %v", err)
	}

	share, err := svc.Create(CreateProfitShareInput{
		Year:               2026,
		Quarter:            4,
		TotalProfit:        decimal.NewFromInt(100),
		DistributionMethod: constants.DistributionMethodLevelWeighted,
		CreatedBy:          1,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	calculated, err := svc.MarkAsCalculated(share.ID)
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}
	assertShareTotals(t, db, calculated)

	// 权重 4.0 / (4+1+1) × 60
	var rootRow, aRow models.MemberProfitShare
	if err := db.Where("profit_share_id = ? AND member_id = ?", share.ID, root.ID).First(&rootRow).Error; err != nil {
		t.Fatalf("load root share failed: %v", err)
	}
	if got := rootRow.ShareAmount.String(); got != "40.00" {
		t.Fatalf("ambassador share = %s, want 40.00", got)
	}
	if err := db.Where("profit_share_id = ? AND member_id = ?", share.ID, a.ID).First(&aRow).Error; err != nil {
		t.Fatalf("load member share failed: %v", err)
	}
	if got := aRow.ShareAmount.String(); got != "10.00" {
		t.Fatalf("associate share = %s, want 10.00", got)
	}
}

func TestProfitShareServiceRoundingRemainder(t *testing.T) {
	svc, networkSvc, db := setupProfitShareServiceTest(t)

	registerTestMember(t, networkSvc, 3300, nil)
	registerTestMember(t, networkSvc, 3301, nil)
	registerTestMember(t, networkSvc, 3302, nil)

	profit, _ := decimal.NewFromString("100.01")
	share, err := svc.Create(CreateProfitShareInput{
		Year:               2026,
		Quarter:            3,
		TotalProfit:        profit,
		DistributionMethod: constants.DistributionMethodLevelWeighted,
		CreatedBy:          1,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	calculated, err := svc.MarkAsCalculated(share.ID)
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}
	// 取整不得造成分红总额与明细合计出现尾差
	assertShareTotals(t, db, calculated)
}

func TestProfitShareServiceStateMachine(t *testing.T) {
	svc, networkSvc, db := setupProfitShareServiceTest(t)

	root := registerTestMember(t, networkSvc, 3400, nil)
	createTestSnapshot(t, db, root.ID, 1000)

	share, err := svc.Create(CreateProfitShareInput{
		Year:        2026,
		Quarter:     1,
		TotalProfit: decimal.NewFromInt(500),
		CreatedBy:   7,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// draft 不允许直接审批或发放
	if _, err := svc.Approve(share.ID, 8); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("approve from draft err = %v", err)
	}
	if _, err := svc.MarkAsDistributed(share.ID); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("distribute from draft err = %v", err)
	}

	// draft 阶段允许修改输入
	if _, err := svc.UpdateDraft(share.ID, decimal.NewFromInt(800), constants.DistributionMethodBPWeighted); err != nil {
		t.Fatalf("update draft failed: %v", err)
	}

	if _, err := svc.MarkAsCalculated(share.ID); err != nil {
		t.Fatalf("calculate failed: %v", err)
	}
	// calculated 后输入冻结，重复计算被状态机拒绝
	if _, err := svc.UpdateDraft(share.ID, decimal.NewFromInt(900), ""); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("update after calculate err = %v", err)
	}
	if _, err := svc.MarkAsCalculated(share.ID); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("recalculate err = %v", err)
	}

	approved, err := svc.Approve(share.ID, 8)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if approved.ApprovedBy == nil || *approved.ApprovedBy != 8 {
		t.Fatalf("approved by = %v, want 8", approved.ApprovedBy)
	}

	if _, err := svc.MarkAsDistributed(share.ID); err != nil {
		t.Fatalf("distribute failed: %v", err)
	}
	// distributed 为终态
	if _, err := svc.MarkAsDistributed(share.ID); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("double distribute err = %v", err)
	}

	if _, err := svc.Approve(99999, 8); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing share err = %v", err)
	}
}

func TestProfitShareServiceMarkMemberSharePaid(t *testing.T) {
	svc, networkSvc, db := setupProfitShareServiceTest(t)

	root := registerTestMember(t, networkSvc, 3500, nil)
	createTestSnapshot(t, db, root.ID, 1000)

	share, err := svc.Create(CreateProfitShareInput{
		Year:        2026,
		Quarter:     1,
		TotalProfit: decimal.NewFromInt(500),
		CreatedBy:   1,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.MarkAsCalculated(share.ID); err != nil {
		t.Fatalf("calculate failed: %v", err)
	}

	var row models.MemberProfitShare
	if err := db.Where("profit_share_id = ?", share.ID).First(&row).Error; err != nil {
		t.Fatalf("load member share failed: %v", err)
	}
	if err := svc.MarkMemberSharePaid(row.ID); err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}
	if err := svc.MarkMemberSharePaid(row.ID); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("double pay err = %v", err)
	}
	if err := svc.MarkMemberSharePaid(99999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing member share err = %v", err)
	}
}
