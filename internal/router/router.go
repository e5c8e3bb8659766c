package router

import (
	"github.com/fenxiao-next/internal/config"
	apihandlers "github.com/fenxiao-next/internal/http/handlers/api"
	"github.com/fenxiao-next/internal/logger"
	"github.com/fenxiao-next/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	apiHandler := apihandlers.New(c)

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 网络树
		members := apiV1.Group("/members")
		{
			members.POST("", apiHandler.RegisterMember)
			members.POST("/:id/move", apiHandler.MoveSubtree)
			members.GET("/:id/tree", apiHandler.GetDownlineTree)
			members.GET("/:id/downlines", apiHandler.ListDirectDownlines)
			members.GET("/:id/purchases/total", apiHandler.GetPurchaseTotal)

			// 佣金统计
			members.GET("/:id/commissions/total", apiHandler.GetCommissionTotal)
			members.GET("/:id/commissions/stats", apiHandler.GetCommissionStatsByLevel)

			// 团队业绩
			members.POST("/:id/team-volume/recompute", apiHandler.RecomputeTeamVolume)
			members.GET("/:id/team-volume", apiHandler.GetLatestTeamVolume)
			members.GET("/:id/team-volume/history", apiHandler.GetTeamVolumeHistory)
			members.POST("/:id/tier-qualification", apiHandler.CheckTierQualification)
		}

		// 购买事件入口
		apiV1.POST("/events/purchase", apiHandler.HandlePurchaseEvent)

		// 佣金台账
		commissions := apiV1.Group("/commissions")
		{
			commissions.GET("", apiHandler.ListCommissions)
			commissions.GET("/pending", apiHandler.ListPendingCommissions)
			commissions.POST("/status", apiHandler.BulkUpdateCommissionStatus)
			commissions.GET("/team-volume-bonus", apiHandler.PreviewTeamVolumeBonus)
		}

		// 季度分红
		profitShares := apiV1.Group("/profit-shares")
		{
			profitShares.POST("", apiHandler.CreateProfitShare)
			profitShares.GET("", apiHandler.GetProfitShareByQuarter)
			profitShares.GET("/:id", apiHandler.GetProfitShare)
			profitShares.PUT("/:id", apiHandler.UpdateProfitShareDraft)
			profitShares.POST("/:id/calculate", apiHandler.CalculateProfitShare)
			profitShares.POST("/:id/approve", apiHandler.ApproveProfitShare)
			profitShares.POST("/:id/distribute", apiHandler.DistributeProfitShare)
			profitShares.GET("/:id/member-shares", apiHandler.ListMemberShares)
		}
		apiV1.POST("/member-shares/:id/pay", apiHandler.MarkMemberSharePaid)
	}

	// 指标与健康检查
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
