package handler

import (
	"errors"
	"net/http"

	"github.com/sshcollectorpro/arubatrace/internal/aruba"
	"github.com/sshcollectorpro/arubatrace/internal/service"
)

// SuccessResponse 成功响应
type SuccessResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// 错误码
const (
	CodeSuccess             = "SUCCESS"
	CodeInvalidParams       = "INVALID_PARAMS"
	CodePrivilegeEscalation = "PRIVILEGE_ESCALATION_FAILED"
	CodeNoActiveSession     = "NO_ACTIVE_SESSION"
	CodeSessionIO           = "SESSION_IO"
	CodeExecFailed          = "EXEC_FAILED"
)

// errorStatus 将领域错误映射为 HTTP 状态码与错误码
func errorStatus(err error) (int, ErrorResponse) {
	resp := ErrorResponse{Message: err.Error()}
	switch {
	case errors.Is(err, aruba.ErrMacFormat), errors.Is(err, service.ErrNoDevice):
		resp.Code = CodeInvalidParams
		return http.StatusBadRequest, resp
	case errors.Is(err, aruba.ErrPrivilegeEscalation):
		resp.Code = CodePrivilegeEscalation
		return http.StatusForbidden, resp
	case errors.Is(err, aruba.ErrNoActiveSession):
		resp.Code = CodeNoActiveSession
		return http.StatusBadGateway, resp
	case errors.Is(err, aruba.ErrSessionIO):
		resp.Code = CodeSessionIO
		return http.StatusBadGateway, resp
	default:
		resp.Code = CodeExecFailed
		return http.StatusInternalServerError, resp
	}
}
