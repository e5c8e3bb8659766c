package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 分销核心业务指标
var (
	// CommissionsCreatedTotal 按类型统计计提的佣金笔数
	CommissionsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fenxiao_commissions_created_total",
		Help: "Total number of commission records created, by type.",
	}, []string{"type"})

	// CommissionAmountTotal 按类型统计计提的佣金金额
	CommissionAmountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fenxiao_commission_amount_total",
		Help: "Total commission amount created, by type.",
	}, []string{"type"})

	// CommissionStaleRetriesTotal 佣金落账时树快照失效次数
	CommissionStaleRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fenxiao_commission_stale_retries_total",
		Help: "Total number of commission commits rejected by a stale tree snapshot.",
	})

	// ReorgRejectedTotal 子树重组被拒绝次数（环路/容量）
	ReorgRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fenxiao_reorg_rejected_total",
		Help: "Total number of rejected subtree reorganizations, by reason.",
	}, []string{"reason"})

	// TeamVolumeRecomputesTotal 团队业绩重算次数
	TeamVolumeRecomputesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fenxiao_team_volume_recomputes_total",
		Help: "Total number of team volume snapshot recomputations.",
	})

	// ProfitShareTransitionsTotal 分红单状态流转次数
	ProfitShareTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fenxiao_profit_share_transitions_total",
		Help: "Total number of quarterly profit share state transitions, by target state.",
	}, []string{"to"})
)
