package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fenxiao-next/internal/config"
	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/queue"
	"github.com/fenxiao-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupCommissionServiceTest(t *testing.T) (*CommissionService, *NetworkService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:commission_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Member{}, &models.PurchaseRecord{}, &models.Commission{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	networkCfg := config.NetworkConfig{MaxDirectDownlines: 3, CommissionDepth: 5, MatrixDepth: 7}
	memberRepo := repository.NewMemberRepository(db)
	queueClient, err := queue.NewClient(&config.QueueConfig{Enabled: false})
	if err != nil {
		t.Fatalf("build queue client failed: %v", err)
	}
	svc := NewCommissionService(
		repository.NewCommissionRepository(db),
		memberRepo,
		repository.NewPurchaseRepository(db),
		queueClient,
		config.CommissionConfig{},
		networkCfg,
	)
	networkSvc := NewNetworkService(memberRepo, networkCfg)
	return svc, networkSvc, db
}

// buildReferralChain 构建一条 root 在前的直推链
func buildReferralChain(t *testing.T, networkSvc *NetworkService, baseUserID uint, length int) []*models.Member {
	t.Helper()
	chain := make([]*models.Member, 0, length)
	var referrerID *uint
	for i := 0; i < length; i++ {
		member := registerTestMember(t, networkSvc, baseUserID+uint(i), referrerID)
		chain = append(chain, member)
		referrerID = &member.ID
	}
	return chain
}

func TestCommissionServiceCalculateForEvent(t *testing.T) {
	svc, networkSvc, _ := setupCommissionServiceTest(t)

	// 6 人直推链，最深成员有 5 个祖先
	chain := buildReferralChain(t, networkSvc, 1000, 6)
	source := chain[len(chain)-1]

	drafts, err := svc.CalculateForEvent(source.ID, decimal.NewFromInt(1000), "evt-calc-1")
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}
	if len(drafts) != 5 {
		t.Fatalf("drafts = %d, want 5", len(drafts))
	}
	wantAmounts := []string{"120.00", "60.00", "40.00", "20.00", "10.00"}
	for i, draft := range drafts {
		if draft.Level != i+1 {
			t.Fatalf("draft %d level = %d", i, draft.Level)
		}
		if got := draft.Amount.String(); got != wantAmounts[i] {
			t.Fatalf("level %d amount = %s, want %s", draft.Level, got, wantAmounts[i])
		}
		// 一级对应最近的祖先
		wantEarner := chain[len(chain)-2-i].ID
		if draft.EarnerID != wantEarner {
			t.Fatalf("level %d earner = %d, want %d", draft.Level, draft.EarnerID, wantEarner)
		}
		if draft.Status != constants.CommissionStatusPending {
			t.Fatalf("draft status = %s", draft.Status)
		}
		if draft.SourcePath != source.Path {
			t.Fatalf("draft source path = %q, want %q", draft.SourcePath, source.Path)
		}
	}

	// 祖先不足 5 层属正常情况
	short := buildReferralChain(t, networkSvc, 1100, 3)
	drafts, err = svc.CalculateForEvent(short[2].ID, decimal.NewFromInt(1000), "evt-calc-2")
	if err != nil {
		t.Fatalf("calculate short chain failed: %v", err)
	}
	if len(drafts) != 2 {
		t.Fatalf("short chain drafts = %d, want 2", len(drafts))
	}
	if drafts[0].Level != 1 || drafts[1].Level != 2 {
		t.Fatalf("short chain levels = %d,%d", drafts[0].Level, drafts[1].Level)
	}

	if _, err := svc.CalculateForEvent(99999, decimal.NewFromInt(100), "evt-calc-3"); !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("missing source err = %v", err)
	}
	if _, err := svc.CalculateForEvent(source.ID, decimal.NewFromInt(-1), "evt-calc-4"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative amount err = %v", err)
	}
}

func TestCommissionServiceSkipsInactiveAncestor(t *testing.T) {
	svc, networkSvc, db := setupCommissionServiceTest(t)

	chain := buildReferralChain(t, networkSvc, 1200, 4)
	// 停用二级祖先，层级占位但不计提
	inactive := chain[1]
	if err := db.Model(&models.Member{}).Where("id = ?", inactive.ID).Update("active", false).Error; err != nil {
		t.Fatalf("deactivate member failed: %v", err)
	}

	drafts, err := svc.CalculateForEvent(chain[3].ID, decimal.NewFromInt(1000), "evt-inactive")
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}
	if len(drafts) != 2 {
		t.Fatalf("drafts = %d, want 2", len(drafts))
	}
	for _, draft := range drafts {
		if draft.EarnerID == inactive.ID {
			t.Fatalf("inactive ancestor earned commission")
		}
	}
	if drafts[0].Level != 1 || drafts[1].Level != 3 {
		t.Fatalf("levels = %d,%d, want 1,3", drafts[0].Level, drafts[1].Level)
	}
}

func TestCommissionServiceTeamVolumeBonusTiers(t *testing.T) {
	svc, _, _ := setupCommissionServiceTest(t)

	cases := []struct {
		volume string
		want   string
	}{
		{"100000", "10000.00"},
		{"99999.99", "7000.00"},
		{"50000", "3500.00"},
		{"25000", "1250.00"},
		{"10000", "200.00"},
		{"9999", "0"},
	}
	for _, tc := range cases {
		volume, err := decimal.NewFromString(tc.volume)
		if err != nil {
			t.Fatalf("parse volume %s failed: %v", tc.volume, err)
		}
		got := svc.CalculateTeamVolumeBonus(volume)
		want, _ := decimal.NewFromString(tc.want)
		if !got.Equal(want) {
			t.Fatalf("bonus(%s) = %s, want %s", tc.volume, got, tc.want)
		}
	}
}

func TestCommissionServiceHandlePurchaseEventIdempotent(t *testing.T) {
	svc, networkSvc, db := setupCommissionServiceTest(t)

	chain := buildReferralChain(t, networkSvc, 1300, 3)
	source := chain[2]

	first, err := svc.HandlePurchaseEvent("evt-dup", source.ID, decimal.NewFromInt(500), time.Now())
	if err != nil {
		t.Fatalf("handle event failed: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("first award commissions = %d, want 2", len(first))
	}

	second, err := svc.HandlePurchaseEvent("evt-dup", source.ID, decimal.NewFromInt(500), time.Now())
	if err != nil {
		t.Fatalf("duplicate event failed: %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("duplicate award commissions = %d, want 2", len(second))
	}

	var purchaseCount, commissionCount int64
	db.Model(&models.PurchaseRecord{}).Count(&purchaseCount)
	db.Model(&models.Commission{}).Count(&commissionCount)
	if purchaseCount != 1 {
		t.Fatalf("purchase records = %d, want 1", purchaseCount)
	}
	if commissionCount != 2 {
		t.Fatalf("commission records = %d, want 2", commissionCount)
	}
}

func TestCommissionServicePersistAndAwardStaleSnapshot(t *testing.T) {
	svc, networkSvc, db := setupCommissionServiceTest(t)

	chain := buildReferralChain(t, networkSvc, 1400, 3)
	source := chain[2]

	drafts, err := svc.CalculateForEvent(source.ID, decimal.NewFromInt(300), "evt-stale")
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}

	// 模拟计算与落账之间的网络重组
	if err := db.Model(&models.Member{}).Where("id = ?", source.ID).
		Update("path", fmt.Sprintf("/%d/", source.ID)).Error; err != nil {
		t.Fatalf("rewrite path failed: %v", err)
	}

	if err := svc.PersistAndAward(drafts); !errors.Is(err, ErrStaleTreeSnapshot) {
		t.Fatalf("stale persist err = %v", err)
	}
	var commissionCount int64
	db.Model(&models.Commission{}).Count(&commissionCount)
	if commissionCount != 0 {
		t.Fatalf("stale persist wrote %d commissions", commissionCount)
	}
}

func TestCommissionServiceBulkUpdateStatus(t *testing.T) {
	svc, networkSvc, _ := setupCommissionServiceTest(t)

	chain := buildReferralChain(t, networkSvc, 1500, 3)
	source := chain[2]
	awarded, err := svc.HandlePurchaseEvent("evt-settle", source.ID, decimal.NewFromInt(1000), time.Now())
	if err != nil {
		t.Fatalf("handle event failed: %v", err)
	}

	pending, err := svc.FindPendingCommissions()
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != len(awarded) {
		t.Fatalf("pending = %d, want %d", len(pending), len(awarded))
	}

	ids := make([]uint, 0, len(pending))
	for _, row := range pending {
		ids = append(ids, row.ID)
	}

	if err := svc.BulkUpdateStatus(ids, "refunded", ""); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("unknown status err = %v", err)
	}
	if err := svc.BulkUpdateStatus(append(ids, 99999), constants.CommissionStatusPaid, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing id err = %v", err)
	}

	if err := svc.BulkUpdateStatus(ids, constants.CommissionStatusPaid, ""); err != nil {
		t.Fatalf("bulk pay failed: %v", err)
	}
	// paid 为终态，二次流转整批拒绝
	if err := svc.BulkUpdateStatus(ids, constants.CommissionStatusReversed, "refund"); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("terminal transition err = %v", err)
	}

	remaining, err := svc.FindPendingCommissions()
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("pending after pay = %d, want 0", len(remaining))
	}
}

func TestCommissionServiceAggregates(t *testing.T) {
	svc, networkSvc, _ := setupCommissionServiceTest(t)

	chain := buildReferralChain(t, networkSvc, 1600, 3)
	source := chain[2]
	earner := chain[1] // 一级祖先

	if _, err := svc.HandlePurchaseEvent("evt-agg-1", source.ID, decimal.NewFromInt(1000), time.Now()); err != nil {
		t.Fatalf("handle event failed: %v", err)
	}
	if _, err := svc.HandlePurchaseEvent("evt-agg-2", source.ID, decimal.NewFromInt(500), time.Now()); err != nil {
		t.Fatalf("handle event failed: %v", err)
	}

	from := time.Now().Add(-time.Hour)
	to := time.Now().Add(time.Hour)
	total, err := svc.CalculateTotalCommissions(earner.ID, from, to, nil)
	if err != nil {
		t.Fatalf("total failed: %v", err)
	}
	// 一级比例 12%：1000*12% + 500*12% = 180
	if total.String() != "180.00" {
		t.Fatalf("total = %s, want 180.00", total.String())
	}

	stats, err := svc.GetCommissionStatsByLevel(earner.ID)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if got := stats[1].String(); got != "180.00" {
		t.Fatalf("level 1 stats = %s, want 180.00", got)
	}
	if _, ok := stats[2]; ok {
		t.Fatalf("unexpected level 2 stats for top earner")
	}
}

func TestCommissionServiceAwardTeamVolumeBonus(t *testing.T) {
	svc, networkSvc, db := setupCommissionServiceTest(t)
	member := registerTestMember(t, networkSvc, 7000, nil)
	periodStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	countBonusRows := func() int64 {
		t.Helper()
		var total int64
		if err := db.Model(&models.Commission{}).
			Where("commission_type = ?", constants.CommissionTypeTeamVolumeBonus).
			Count(&total).Error; err != nil {
			t.Fatalf("count bonus rows failed: %v", err)
		}
		return total
	}

	// 未达最低阶梯不产生记录
	bonus, err := svc.AwardTeamVolumeBonus(member.ID, decimal.NewFromInt(9999), periodStart)
	if err != nil {
		t.Fatalf("award below tier failed: %v", err)
	}
	if bonus != nil {
		t.Fatalf("expected no bonus below lowest tier, got %+v", bonus)
	}
	if countBonusRows() != 0 {
		t.Fatalf("unexpected bonus row below lowest tier")
	}

	// 恰好 100000 落在 10% 阶梯
	bonus, err = svc.AwardTeamVolumeBonus(member.ID, decimal.NewFromInt(100000), periodStart)
	if err != nil {
		t.Fatalf("award at boundary failed: %v", err)
	}
	if bonus == nil {
		t.Fatal("expected bonus at 100000 boundary")
	}
	if got := bonus.Amount.String(); got != "10000.00" {
		t.Fatalf("bonus amount = %s, want 10000.00", got)
	}
	if got := bonus.RatePercent.String(); got != "10.00" {
		t.Fatalf("bonus rate = %s, want 10.00", got)
	}
	if bonus.CommissionType != constants.CommissionTypeTeamVolumeBonus {
		t.Fatalf("bonus type = %s", bonus.CommissionType)
	}
	if bonus.Status != constants.CommissionStatusPending {
		t.Fatalf("bonus status = %s, want pending", bonus.Status)
	}
	if bonus.Level != 0 || bonus.EarnerID != member.ID {
		t.Fatalf("bonus level/earner = %d/%d", bonus.Level, bonus.EarnerID)
	}

	// 同周期业绩增长：更新 pending 记录而非新增
	updated, err := svc.AwardTeamVolumeBonus(member.ID, decimal.NewFromInt(120000), periodStart)
	if err != nil {
		t.Fatalf("award after growth failed: %v", err)
	}
	if updated.ID != bonus.ID {
		t.Fatalf("expected same bonus row, got %d and %d", bonus.ID, updated.ID)
	}
	if got := updated.Amount.String(); got != "12000.00" {
		t.Fatalf("updated amount = %s, want 12000.00", got)
	}
	if countBonusRows() != 1 {
		t.Fatalf("bonus rows = %d, want 1", countBonusRows())
	}

	// 已结算后不再变更金额
	if err := svc.BulkUpdateStatus([]uint{bonus.ID}, constants.CommissionStatusPaid, ""); err != nil {
		t.Fatalf("settle bonus failed: %v", err)
	}
	settled, err := svc.AwardTeamVolumeBonus(member.ID, decimal.NewFromInt(150000), periodStart)
	if err != nil {
		t.Fatalf("award after settle failed: %v", err)
	}
	if got := settled.Amount.String(); got != "12000.00" {
		t.Fatalf("settled amount changed to %s", got)
	}
	if settled.Status != constants.CommissionStatusPaid {
		t.Fatalf("settled status = %s, want paid", settled.Status)
	}
}

func TestCommissionServiceSumPurchases(t *testing.T) {
	svc, networkSvc, _ := setupCommissionServiceTest(t)
	member := registerTestMember(t, networkSvc, 7100, nil)

	if _, err := svc.HandlePurchaseEvent("evt-sum-1", member.ID, decimal.NewFromInt(300), time.Now()); err != nil {
		t.Fatalf("handle event failed: %v", err)
	}
	if _, err := svc.HandlePurchaseEvent("evt-sum-2", member.ID, decimal.NewFromInt(450), time.Now()); err != nil {
		t.Fatalf("handle event failed: %v", err)
	}

	total, err := svc.SumPurchases(member.ID, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sum purchases failed: %v", err)
	}
	if total.String() != "750.00" {
		t.Fatalf("purchase total = %s, want 750.00", total.String())
	}

	if _, err := svc.SumPurchases(99999, time.Time{}, time.Now()); !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("expected ErrMemberNotFound, got %v", err)
	}
}
