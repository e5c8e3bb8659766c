package api

import (
	"github.com/fenxiao-next/internal/http/response"
	"github.com/fenxiao-next/internal/repository"
	"github.com/fenxiao-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type createProfitShareRequest struct {
	Year               int    `json:"year" binding:"required"`
	Quarter            int    `json:"quarter" binding:"required"`
	TotalProfit        string `json:"total_profit" binding:"required"`
	DistributionMethod string `json:"distribution_method"`
	CreatedBy          uint   `json:"created_by"`
}

// CreateProfitShare 创建季度分红单
func (h *Handler) CreateProfitShare(c *gin.Context) {
	var req createProfitShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	totalProfit, err := decimal.NewFromString(req.TotalProfit)
	if err != nil {
		response.BadRequest(c, "invalid total_profit")
		return
	}

	share, err := h.ProfitShareService.Create(service.CreateProfitShareInput{
		Year:               req.Year,
		Quarter:            req.Quarter,
		TotalProfit:        totalProfit,
		DistributionMethod: req.DistributionMethod,
		CreatedBy:          req.CreatedBy,
	})
	if err != nil {
		respondWithMappedError(c, err, "create profit share failed")
		return
	}
	response.Success(c, share)
}

type updateProfitShareRequest struct {
	TotalProfit        string `json:"total_profit" binding:"required"`
	DistributionMethod string `json:"distribution_method"`
}

// UpdateProfitShareDraft 修改草稿状态的分红单
func (h *Handler) UpdateProfitShareDraft(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid profit share id")
		return
	}
	var req updateProfitShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	totalProfit, err := decimal.NewFromString(req.TotalProfit)
	if err != nil {
		response.BadRequest(c, "invalid total_profit")
		return
	}

	share, err := h.ProfitShareService.UpdateDraft(id, totalProfit, req.DistributionMethod)
	if err != nil {
		respondWithMappedError(c, err, "update profit share failed")
		return
	}
	response.Success(c, share)
}

// CalculateProfitShare 执行分红计算（draft -> calculated）
func (h *Handler) CalculateProfitShare(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid profit share id")
		return
	}
	share, err := h.ProfitShareService.MarkAsCalculated(id)
	if err != nil {
		respondWithMappedError(c, err, "calculate profit share failed")
		return
	}
	response.Success(c, share)
}

type approveProfitShareRequest struct {
	ApprovedBy uint `json:"approved_by" binding:"required"`
}

// ApproveProfitShare 审批分红单（calculated -> approved）
func (h *Handler) ApproveProfitShare(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid profit share id")
		return
	}
	var req approveProfitShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	share, err := h.ProfitShareService.Approve(id, req.ApprovedBy)
	if err != nil {
		respondWithMappedError(c, err, "approve profit share failed")
		return
	}
	response.Success(c, share)
}

// DistributeProfitShare 标记分红单发放完成（approved -> distributed，终态）
func (h *Handler) DistributeProfitShare(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid profit share id")
		return
	}
	share, err := h.ProfitShareService.MarkAsDistributed(id)
	if err != nil {
		respondWithMappedError(c, err, "distribute profit share failed")
		return
	}
	response.Success(c, share)
}

// GetProfitShare 查询分红单详情
func (h *Handler) GetProfitShare(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid profit share id")
		return
	}
	share, err := h.ProfitShareService.GetByID(id)
	if err != nil {
		respondWithMappedError(c, err, "load profit share failed")
		return
	}
	response.Success(c, share)
}

// GetProfitShareByQuarter 按年度季度查询分红单
func (h *Handler) GetProfitShareByQuarter(c *gin.Context) {
	year := parseIntQuery(c, "year", 0)
	quarter := parseIntQuery(c, "quarter", 0)
	if year <= 0 || quarter <= 0 {
		response.BadRequest(c, "year and quarter are required")
		return
	}
	share, err := h.ProfitShareService.GetByQuarter(year, quarter)
	if err != nil {
		respondWithMappedError(c, err, "load profit share failed")
		return
	}
	response.Success(c, share)
}

// ListMemberShares 分页查询分红单的成员明细
func (h *Handler) ListMemberShares(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid profit share id")
		return
	}
	filter := repository.MemberShareListFilter{
		Page:          parseIntQuery(c, "page", 1),
		PageSize:      parseIntQuery(c, "page_size", 20),
		ProfitShareID: id,
		MemberID:      uint(parseIntQuery(c, "member_id", 0)),
		Status:        c.Query("status"),
	}

	shares, total, err := h.ProfitShareService.ListMemberShares(filter)
	if err != nil {
		respondWithMappedError(c, err, "list member shares failed")
		return
	}
	totalPage := int64(0)
	if filter.PageSize > 0 {
		totalPage = (total + int64(filter.PageSize) - 1) / int64(filter.PageSize)
	}
	response.SuccessWithPage(c, shares, response.Pagination{
		Page:      filter.Page,
		PageSize:  filter.PageSize,
		Total:     total,
		TotalPage: totalPage,
	})
}

// MarkMemberSharePaid 标记单条成员分红已发放
func (h *Handler) MarkMemberSharePaid(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid member share id")
		return
	}
	if err := h.ProfitShareService.MarkMemberSharePaid(id); err != nil {
		respondWithMappedError(c, err, "mark member share paid failed")
		return
	}
	response.SuccessWithMsg(c, "member share paid", gin.H{"id": id})
}
