package api

import (
	"errors"

	"github.com/fenxiao-next/internal/http/response"
	"github.com/fenxiao-next/internal/logger"
	"github.com/fenxiao-next/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 业务错误到响应码的映射项
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

var commonErrorMappings = []mappedHandlerError{
	{target: service.ErrMemberNotFound, code: response.CodeNotFound, msg: "member not found"},
	{target: service.ErrReferrerNotFound, code: response.CodeNotFound, msg: "referrer not found"},
	{target: service.ErrNotFound, code: response.CodeNotFound, msg: "record not found"},
	{target: service.ErrMemberAlreadyExists, code: response.CodeConflict, msg: "member already exists"},
	{target: service.ErrCircularReference, code: response.CodeBadRequest, msg: "circular reference"},
	{target: service.ErrCapacityExceeded, code: response.CodeConflict, msg: "downline capacity exceeded"},
	{target: service.ErrInvalidStateTransition, code: response.CodeConflict, msg: "invalid state transition"},
	{target: service.ErrInvalidDistribution, code: response.CodeBadRequest, msg: "invalid distribution"},
	{target: service.ErrStaleTreeSnapshot, code: response.CodeConflict, msg: "network tree changed, please retry"},
	{target: service.ErrDuplicateQuarter, code: response.CodeConflict, msg: "quarter already exists"},
	{target: service.ErrInvalidAmount, code: response.CodeBadRequest, msg: "invalid amount"},
}

// respondWithMappedError 按映射表返回业务错误，未命中时回落到 500
func respondWithMappedError(c *gin.Context, err error, fallbackMsg string) {
	for _, mapping := range commonErrorMappings {
		if errors.Is(err, mapping.target) {
			response.Error(c, mapping.code, mapping.msg)
			return
		}
	}
	logger.Errorw("api_unmapped_error", "path", c.FullPath(), "error", err)
	response.Error(c, response.CodeInternal, fallbackMsg)
}
