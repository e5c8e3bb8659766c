package api

import (
	"time"

	"github.com/fenxiao-next/internal/http/response"
	"github.com/fenxiao-next/internal/queue"
	"github.com/fenxiao-next/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type purchaseEventRequest struct {
	EventID    string `json:"event_id" binding:"required"`
	MemberID   uint   `json:"member_id" binding:"required"`
	Amount     string `json:"amount" binding:"required"`
	OccurredAt string `json:"occurred_at"`
	Async      bool   `json:"async"` // 队列可用时转异步计提
}

// HandlePurchaseEvent 受理购买事件并生成各层级佣金
func (h *Handler) HandlePurchaseEvent(c *gin.Context) {
	var req purchaseEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.BadRequest(c, "invalid amount")
		return
	}
	occurredAt := time.Now()
	if req.OccurredAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			response.BadRequest(c, "invalid occurred_at, expect RFC3339")
			return
		}
		occurredAt = parsed
	}

	if req.Async && h.QueueClient.Enabled() {
		err := h.QueueClient.EnqueuePurchaseAward(queue.PurchaseAwardPayload{
			EventID:    req.EventID,
			SourceID:   req.MemberID,
			Amount:     amount.String(),
			OccurredAt: occurredAt.Unix(),
		})
		if err != nil {
			respondWithMappedError(c, err, "enqueue purchase event failed")
			return
		}
		response.Success(c, gin.H{
			"event_id": req.EventID,
			"queued":   true,
		})
		return
	}

	commissions, err := h.CommissionService.HandlePurchaseEvent(req.EventID, req.MemberID, amount, occurredAt)
	if err != nil {
		respondWithMappedError(c, err, "handle purchase event failed")
		return
	}
	response.Success(c, gin.H{
		"event_id":    req.EventID,
		"commissions": commissions,
	})
}

// ListCommissions 分页查询佣金列表
func (h *Handler) ListCommissions(c *gin.Context) {
	filter := repository.CommissionListFilter{
		Page:           parseIntQuery(c, "page", 1),
		PageSize:       parseIntQuery(c, "page_size", 20),
		EarnerID:       uint(parseIntQuery(c, "earner_id", 0)),
		SourceID:       uint(parseIntQuery(c, "source_id", 0)),
		Level:          parseIntQuery(c, "level", 0),
		CommissionType: c.Query("commission_type"),
		Status:         c.Query("status"),
	}
	if raw := c.Query("created_from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(c, "invalid created_from, expect RFC3339")
			return
		}
		filter.CreatedFrom = &parsed
	}
	if raw := c.Query("created_to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(c, "invalid created_to, expect RFC3339")
			return
		}
		filter.CreatedTo = &parsed
	}

	commissions, total, err := h.CommissionService.ListCommissions(filter)
	if err != nil {
		respondWithMappedError(c, err, "list commissions failed")
		return
	}
	totalPage := int64(0)
	if filter.PageSize > 0 {
		totalPage = (total + int64(filter.PageSize) - 1) / int64(filter.PageSize)
	}
	response.SuccessWithPage(c, commissions, response.Pagination{
		Page:      filter.Page,
		PageSize:  filter.PageSize,
		Total:     total,
		TotalPage: totalPage,
	})
}

// ListPendingCommissions 查询所有待结算佣金
func (h *Handler) ListPendingCommissions(c *gin.Context) {
	commissions, err := h.CommissionService.FindPendingCommissions()
	if err != nil {
		respondWithMappedError(c, err, "list pending commissions failed")
		return
	}
	response.Success(c, commissions)
}

type bulkUpdateStatusRequest struct {
	IDs    []uint `json:"ids" binding:"required,min=1"`
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

// BulkUpdateCommissionStatus 批量结算或冲销佣金
func (h *Handler) BulkUpdateCommissionStatus(c *gin.Context) {
	var req bulkUpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	if err := h.CommissionService.BulkUpdateStatus(req.IDs, req.Status, req.Reason); err != nil {
		respondWithMappedError(c, err, "bulk update commission status failed")
		return
	}
	response.SuccessWithMsg(c, "commission status updated", gin.H{
		"count":  len(req.IDs),
		"status": req.Status,
	})
}

// GetCommissionTotal 统计成员区间内的佣金总额
func (h *Handler) GetCommissionTotal(c *gin.Context) {
	earnerID, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid member id")
		return
	}
	from := time.Time{}
	to := time.Now()
	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(c, "invalid from, expect RFC3339")
			return
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(c, "invalid to, expect RFC3339")
			return
		}
		to = parsed
	}
	var statuses []string
	if status := c.Query("status"); status != "" {
		statuses = []string{status}
	}

	total, err := h.CommissionService.CalculateTotalCommissions(earnerID, from, to, statuses)
	if err != nil {
		respondWithMappedError(c, err, "calculate total commissions failed")
		return
	}
	response.Success(c, gin.H{
		"earner_id": earnerID,
		"total":     total,
	})
}

// GetPurchaseTotal 统计成员区间内的个人购买业绩总额
func (h *Handler) GetPurchaseTotal(c *gin.Context) {
	memberID, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid member id")
		return
	}
	from := time.Time{}
	to := time.Now()
	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(c, "invalid from, expect RFC3339")
			return
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(c, "invalid to, expect RFC3339")
			return
		}
		to = parsed
	}

	total, err := h.CommissionService.SumPurchases(memberID, from, to)
	if err != nil {
		respondWithMappedError(c, err, "sum purchases failed")
		return
	}
	response.Success(c, gin.H{
		"member_id": memberID,
		"total":     total,
	})
}

// GetCommissionStatsByLevel 按层级统计成员佣金
func (h *Handler) GetCommissionStatsByLevel(c *gin.Context) {
	earnerID, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid member id")
		return
	}
	stats, err := h.CommissionService.GetCommissionStatsByLevel(earnerID)
	if err != nil {
		respondWithMappedError(c, err, "commission stats failed")
		return
	}
	response.Success(c, gin.H{
		"earner_id": earnerID,
		"by_level":  stats,
	})
}

// PreviewTeamVolumeBonus 预览团队业绩对应的奖金档位
func (h *Handler) PreviewTeamVolumeBonus(c *gin.Context) {
	raw := c.Query("team_volume")
	if raw == "" {
		response.BadRequest(c, "team_volume is required")
		return
	}
	teamVolume, err := decimal.NewFromString(raw)
	if err != nil {
		response.BadRequest(c, "invalid team_volume")
		return
	}
	response.Success(c, gin.H{
		"team_volume": teamVolume,
		"rate":        h.CommissionService.TeamVolumeBonusRate(teamVolume),
		"bonus":       h.CommissionService.CalculateTeamVolumeBonus(teamVolume),
	})
}
