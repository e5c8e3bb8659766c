package provider

import (
	"github.com/fenxiao-next/internal/cache"
	"github.com/fenxiao-next/internal/config"
	"github.com/fenxiao-next/internal/logger"
	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/queue"
	"github.com/fenxiao-next/internal/repository"
	"github.com/fenxiao-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	MemberRepo      repository.MemberRepository
	PurchaseRepo    repository.PurchaseRepository
	CommissionRepo  repository.CommissionRepository
	TeamVolumeRepo  repository.TeamVolumeRepository
	ProfitShareRepo repository.ProfitShareRepository

	// Services
	NetworkService     *service.NetworkService
	CommissionService  *service.CommissionService
	TeamVolumeService  *service.TeamVolumeService
	ProfitShareService *service.ProfitShareService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.MemberRepo = repository.NewMemberRepository(db)
	c.PurchaseRepo = repository.NewPurchaseRepository(db)
	c.CommissionRepo = repository.NewCommissionRepository(db)
	c.TeamVolumeRepo = repository.NewTeamVolumeRepository(db)
	c.ProfitShareRepo = repository.NewProfitShareRepository(db)
}

func (c *Container) initServices() {
	c.NetworkService = service.NewNetworkService(c.MemberRepo, c.Config.Network)
	c.CommissionService = service.NewCommissionService(
		c.CommissionRepo,
		c.MemberRepo,
		c.PurchaseRepo,
		c.QueueClient,
		c.Config.Commission,
		c.Config.Network,
	)
	c.TeamVolumeService = service.NewTeamVolumeService(
		c.MemberRepo,
		c.PurchaseRepo,
		c.TeamVolumeRepo,
		service.ActiveFlagPolicy{},
		c.Config.Network,
	)
	c.ProfitShareService = service.NewProfitShareService(
		c.ProfitShareRepo,
		c.MemberRepo,
		c.TeamVolumeRepo,
		c.Config.Profit,
	)
}
