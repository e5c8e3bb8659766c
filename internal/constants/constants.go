package constants

// 佣金状态常量
const (
	CommissionStatusPending  = "pending"
	CommissionStatusPaid     = "paid"
	CommissionStatusReversed = "reversed"
)

// 佣金类型常量
const (
	CommissionTypeReferral        = "referral"
	CommissionTypeTeamVolumeBonus = "team_volume_bonus"
	CommissionTypeMatrix          = "matrix"
)

// 季度分红单状态常量
const (
	ProfitShareStatusDraft       = "draft"
	ProfitShareStatusCalculated  = "calculated"
	ProfitShareStatusApproved    = "approved"
	ProfitShareStatusDistributed = "distributed"
)

// 成员分红状态常量
const (
	MemberShareStatusPending = "pending"
	MemberShareStatusPaid    = "paid"
)

// 分红分配方式常量
const (
	DistributionMethodBPWeighted    = "bp_weighted"
	DistributionMethodLevelWeighted = "level_weighted"
)

// 职业级别常量
const (
	ProfessionalLevelAssociate  = "associate"
	ProfessionalLevelConsultant = "consultant"
	ProfessionalLevelManager    = "manager"
	ProfessionalLevelDirector   = "director"
	ProfessionalLevelExecutive  = "executive"
	ProfessionalLevelAmbassador = "ambassador"
)

// 网络矩阵默认约束
const (
	DefaultMaxDirectDownlines = 3
	DefaultCommissionDepth    = 5
	DefaultMatrixDepth        = 7
)

// 队列与任务常量
const (
	QueueDefault = "default"

	TaskPurchaseAward       = "purchase:award"
	TaskTeamVolumeRecompute = "team_volume:recompute"
	TaskCommissionSettle    = "commission:settle"
)
