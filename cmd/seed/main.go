package main

import (
	"fmt"
	"time"

	"github.com/fenxiao-next/internal/config"
	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/logger"
	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/repository"
	"github.com/fenxiao-next/internal/service"

	"github.com/shopspring/decimal"
)

// 演示数据：一棵小型三叉网络 + 购买事件 + 当月团队业绩快照
func main() {
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()

	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	memberRepo := repository.NewMemberRepository(models.DB)
	if count, err := memberRepo.CountMembers(); err != nil {
		stdLog.Fatalf("Failed to count members: %v", err)
	} else if count > 0 {
		stdLog.Printf("数据库已有 %d 个成员，跳过演示数据初始化", count)
		return
	}

	purchaseRepo := repository.NewPurchaseRepository(models.DB)
	commissionRepo := repository.NewCommissionRepository(models.DB)
	teamVolumeRepo := repository.NewTeamVolumeRepository(models.DB)

	networkSvc := service.NewNetworkService(memberRepo, cfg.Network)
	commissionSvc := service.NewCommissionService(commissionRepo, memberRepo, purchaseRepo, nil, cfg.Commission, cfg.Network)
	teamVolumeSvc := service.NewTeamVolumeService(memberRepo, purchaseRepo, teamVolumeRepo, service.ActiveFlagPolicy{}, cfg.Network)

	joinedAt := time.Now().AddDate(0, -3, 0)

	register := func(userID uint, referrerID *uint, level string) *models.Member {
		member, err := networkSvc.RegisterMember(service.RegisterMemberInput{
			UserID:            userID,
			ReferrerID:        referrerID,
			ProfessionalLevel: level,
			JoinedAt:          joinedAt,
			AllowSpillover:    true,
		})
		if err != nil {
			stdLog.Fatalf("Failed to register member (user %d): %v", userID, err)
		}
		return member
	}

	// 三层演示网络：根节点直推满 3 人，第四个推荐溢出到下级空位
	root := register(1001, nil, constants.ProfessionalLevelAmbassador)
	a := register(1002, &root.ID, constants.ProfessionalLevelManager)
	b := register(1003, &root.ID, constants.ProfessionalLevelConsultant)
	register(1004, &root.ID, constants.ProfessionalLevelAssociate)
	spilled := register(1005, &root.ID, constants.ProfessionalLevelAssociate)
	c := register(1006, &a.ID, constants.ProfessionalLevelAssociate)
	register(1007, &b.ID, constants.ProfessionalLevelAssociate)

	spilledParent := uint(0)
	if spilled.ReferrerID != nil {
		spilledParent = *spilled.ReferrerID
	}
	stdLog.Printf("已创建 7 个成员（成员 %d 溢出安置到节点 %d 下）", spilled.ID, spilledParent)

	// 购买事件：触发各层级推荐佣金计提
	purchases := []struct {
		member *models.Member
		amount int64
	}{
		{c, 1000},
		{a, 500},
		{b, 800},
		{root, 300},
	}
	for i, p := range purchases {
		eventID := fmt.Sprintf("seed-evt-%03d", i+1)
		commissions, err := commissionSvc.HandlePurchaseEvent(eventID, p.member.ID, decimal.NewFromInt(p.amount), time.Now())
		if err != nil {
			stdLog.Fatalf("Failed to handle purchase event %s: %v", eventID, err)
		}
		stdLog.Printf("事件 %s：成员 %d 购买 %d，计提 %d 笔佣金", eventID, p.member.ID, p.amount, len(commissions))
	}

	// 重算当月团队业绩快照
	members, err := memberRepo.ListActiveMembers()
	if err != nil {
		stdLog.Fatalf("Failed to list members: %v", err)
	}
	periodStart, _ := service.MonthlyPeriodOf(time.Now())
	for _, member := range members {
		if _, err := teamVolumeSvc.Recompute(member.ID, periodStart); err != nil {
			stdLog.Fatalf("Failed to recompute team volume for member %d: %v", member.ID, err)
		}
	}
	stdLog.Printf("已生成 %d 个成员的当月团队业绩快照", len(members))

	stdLog.Printf("演示数据初始化完成")
}
