package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fenxiao-next/internal/config"
	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupTeamVolumeServiceTest(t *testing.T, volumeDepth int) (*TeamVolumeService, *NetworkService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:team_volume_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Member{}, &models.PurchaseRecord{}, &models.TeamVolumeSnapshot{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	networkCfg := config.NetworkConfig{MaxDirectDownlines: 3, CommissionDepth: 5, MatrixDepth: 7, VolumeDepth: volumeDepth}
	memberRepo := repository.NewMemberRepository(db)
	svc := NewTeamVolumeService(
		memberRepo,
		repository.NewPurchaseRepository(db),
		repository.NewTeamVolumeRepository(db),
		ActiveFlagPolicy{},
		networkCfg,
	)
	networkSvc := NewNetworkService(memberRepo, networkCfg)
	return svc, networkSvc, db
}

func createTestPurchase(t *testing.T, db *gorm.DB, memberID uint, amount int64, occurredAt time.Time) {
	t.Helper()
	record := models.PurchaseRecord{
		EventID:    fmt.Sprintf("evt-vol-%d-%d", memberID, time.Now().UnixNano()),
		MemberID:   memberID,
		Amount:     models.NewMoneyFromInt(amount),
		OccurredAt: occurredAt,
	}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("create purchase failed: %v", err)
	}
}

func TestTeamVolumeServiceRecompute(t *testing.T) {
	svc, networkSvc, db := setupTeamVolumeServiceTest(t, 5)

	root := registerTestMember(t, networkSvc, 2000, nil)
	a := registerTestMember(t, networkSvc, 2001, &root.ID)
	b := registerTestMember(t, networkSvc, 2002, &root.ID)
	c := registerTestMember(t, networkSvc, 2003, &a.ID)

	// B 停用，不计入活跃直推
	if err := db.Model(&models.Member{}).Where("id = ?", b.ID).Update("active", false).Error; err != nil {
		t.Fatalf("deactivate member failed: %v", err)
	}

	periodStart, _ := MonthlyPeriodOf(time.Now())
	inPeriod := periodStart.Add(24 * time.Hour)
	createTestPurchase(t, db, root.ID, 100, inPeriod)
	createTestPurchase(t, db, a.ID, 200, inPeriod)
	createTestPurchase(t, db, b.ID, 50, inPeriod)
	createTestPurchase(t, db, c.ID, 300, inPeriod)
	// 周期外业绩不计入
	createTestPurchase(t, db, a.ID, 9999, periodStart.Add(-24*time.Hour))

	snapshot, err := svc.Recompute(root.ID, periodStart)
	if err != nil {
		t.Fatalf("recompute failed: %v", err)
	}
	if got := snapshot.PersonalVolume.String(); got != "100.00" {
		t.Fatalf("personal volume = %s, want 100.00", got)
	}
	if got := snapshot.TeamVolume.String(); got != "650.00" {
		t.Fatalf("team volume = %s, want 650.00", got)
	}
	if snapshot.ActiveReferrals != 1 {
		t.Fatalf("active referrals = %d, want 1", snapshot.ActiveReferrals)
	}
	if snapshot.TeamDepth != 2 {
		t.Fatalf("team depth = %d, want 2", snapshot.TeamDepth)
	}

	// 无下级成员：团队业绩等于个人业绩，层深为 0
	leaf, err := svc.Recompute(c.ID, periodStart)
	if err != nil {
		t.Fatalf("recompute leaf failed: %v", err)
	}
	if !leaf.TeamVolume.Equal(leaf.PersonalVolume.Decimal) {
		t.Fatalf("leaf team volume %s != personal %s", leaf.TeamVolume, leaf.PersonalVolume)
	}
	if leaf.TeamDepth != 0 {
		t.Fatalf("leaf team depth = %d, want 0", leaf.TeamDepth)
	}

	if _, err := svc.Recompute(99999, periodStart); !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("missing member err = %v", err)
	}
}

func TestTeamVolumeServiceDepthBound(t *testing.T) {
	svc, networkSvc, db := setupTeamVolumeServiceTest(t, 2)

	chain := buildReferralChain(t, networkSvc, 2100, 4)
	periodStart, _ := MonthlyPeriodOf(time.Now())
	inPeriod := periodStart.Add(24 * time.Hour)
	for _, member := range chain {
		createTestPurchase(t, db, member.ID, 100, inPeriod)
	}

	snapshot, err := svc.Recompute(chain[0].ID, periodStart)
	if err != nil {
		t.Fatalf("recompute failed: %v", err)
	}
	// 层深限制 2：自身 + 两层下级计入，第三层不计
	if got := snapshot.TeamVolume.String(); got != "300.00" {
		t.Fatalf("team volume = %s, want 300.00", got)
	}
	// 团队层深按实际最长链计算，不受汇总层深限制
	if snapshot.TeamDepth != 3 {
		t.Fatalf("team depth = %d, want 3", snapshot.TeamDepth)
	}
}

func TestTeamVolumeServiceSnapshotOverwrite(t *testing.T) {
	svc, networkSvc, db := setupTeamVolumeServiceTest(t, 5)

	root := registerTestMember(t, networkSvc, 2200, nil)
	periodStart, _ := MonthlyPeriodOf(time.Now())
	createTestPurchase(t, db, root.ID, 100, periodStart.Add(time.Hour))

	if _, err := svc.Recompute(root.ID, periodStart); err != nil {
		t.Fatalf("first recompute failed: %v", err)
	}
	createTestPurchase(t, db, root.ID, 150, periodStart.Add(2*time.Hour))
	snapshot, err := svc.Recompute(root.ID, periodStart)
	if err != nil {
		t.Fatalf("second recompute failed: %v", err)
	}
	if got := snapshot.TeamVolume.String(); got != "250.00" {
		t.Fatalf("team volume = %s, want 250.00", got)
	}

	// 同成员同周期只保留一条快照
	var count int64
	db.Model(&models.TeamVolumeSnapshot{}).Where("member_id = ?", root.ID).Count(&count)
	if count != 1 {
		t.Fatalf("snapshots = %d, want 1", count)
	}
}

func TestTeamVolumeServiceTierQualification(t *testing.T) {
	svc, networkSvc, db := setupTeamVolumeServiceTest(t, 5)

	root := registerTestMember(t, networkSvc, 2300, nil)
	a := registerTestMember(t, networkSvc, 2301, &root.ID)
	registerTestMember(t, networkSvc, 2302, &root.ID)

	periodStart, _ := MonthlyPeriodOf(time.Now())
	createTestPurchase(t, db, root.ID, 6000, periodStart.Add(time.Hour))
	createTestPurchase(t, db, a.ID, 4000, periodStart.Add(time.Hour))
	if _, err := svc.Recompute(root.ID, periodStart); err != nil {
		t.Fatalf("recompute failed: %v", err)
	}

	ok, err := svc.CheckTierUpgradeQualification(root.ID, decimal.NewFromInt(10000), 2)
	if err != nil {
		t.Fatalf("qualification failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected qualification to pass")
	}

	// 两个条件缺一不可
	ok, err = svc.CheckTierUpgradeQualification(root.ID, decimal.NewFromInt(10001), 2)
	if err != nil {
		t.Fatalf("qualification failed: %v", err)
	}
	if ok {
		t.Fatalf("volume shortfall should fail qualification")
	}
	ok, err = svc.CheckTierUpgradeQualification(root.ID, decimal.NewFromInt(10000), 3)
	if err != nil {
		t.Fatalf("qualification failed: %v", err)
	}
	if ok {
		t.Fatalf("referral shortfall should fail qualification")
	}
}

func TestTeamVolumeServiceGetSnapshotForPeriod(t *testing.T) {
	svc, networkSvc, db := setupTeamVolumeServiceTest(t, 5)
	member := registerTestMember(t, networkSvc, 2500, nil)

	periodStart := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	createTestPurchase(t, db, member.ID, 800, periodStart.Add(48*time.Hour))
	if _, err := svc.Recompute(member.ID, periodStart); err != nil {
		t.Fatalf("recompute failed: %v", err)
	}

	// 周期内任意时间点都归一化到月初命中同一快照
	snapshot, err := svc.GetSnapshotForPeriod(member.ID, periodStart.Add(10*24*time.Hour))
	if err != nil {
		t.Fatalf("get snapshot for period failed: %v", err)
	}
	if snapshot == nil {
		t.Fatal("expected snapshot for period")
	}
	if got := snapshot.TeamVolume.String(); got != "800.00" {
		t.Fatalf("team volume = %s, want 800.00", got)
	}

	missing, err := svc.GetSnapshotForPeriod(member.ID, periodStart.AddDate(0, 2, 0))
	if err != nil {
		t.Fatalf("get snapshot for empty period failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected no snapshot for empty period, got %+v", missing)
	}

	if _, err := svc.GetSnapshotForPeriod(99999, periodStart); !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("expected ErrMemberNotFound, got %v", err)
	}
}
