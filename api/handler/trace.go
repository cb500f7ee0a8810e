package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sshcollectorpro/arubatrace/internal/aruba"
	"github.com/sshcollectorpro/arubatrace/internal/service"
	"github.com/sshcollectorpro/arubatrace/pkg/logger"
)

// TraceHandler MAC 追踪相关接口
type TraceHandler struct {
	svc *service.TraceService
}

// NewTraceHandler 创建处理器
func NewTraceHandler(svc *service.TraceService) *TraceHandler {
	return &TraceHandler{svc: svc}
}

// TraceRequest devices 非空时在多台设备上并发追踪，否则使用 device（为空时取配置中的默认设备）
type TraceRequest struct {
	Device  string   `json:"device"`
	Devices []string `json:"devices"`
	MAC     string   `json:"mac" binding:"required"`
}

// DeviceRequest 只需要设备地址的请求
type DeviceRequest struct {
	Device string `json:"device"`
}

// NeighborsRequest interface 为空时返回全部邻居
type NeighborsRequest struct {
	Device    string `json:"device"`
	Interface string `json:"interface"`
}

// NormalizeRequest MAC 规范化请求
type NormalizeRequest struct {
	MAC string `json:"mac" binding:"required"`
}

// Health 健康检查
func (h *TraceHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, SuccessResponse{
		Code:    CodeSuccess,
		Message: "ok",
		Data:    gin.H{"templates": h.svc.Templates()},
	})
}

// Trace 处理 api/v1/trace
func (h *TraceHandler) Trace(c *gin.Context) {
	var req TraceRequest
	if !bind(c, &req) {
		return
	}
	// 接口层提前拒绝非法 MAC，避免为一次必然为空的追踪打开会话
	if _, err := aruba.NormalizeMAC(req.MAC); err != nil {
		fail(c, err)
		return
	}

	ctx := c.Request.Context()
	if len(req.Devices) > 0 {
		resp, err := h.svc.TraceMany(ctx, req.Devices, req.MAC)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, resp)
		return
	}
	resp, err := h.svc.Trace(ctx, req.Device, req.MAC)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}

// Privilege 处理 api/v1/privilege
func (h *TraceHandler) Privilege(c *gin.Context) {
	var req DeviceRequest
	if !bind(c, &req) {
		return
	}
	resp, err := h.svc.Privilege(c.Request.Context(), req.Device)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}

// Neighbors 处理 api/v1/neighbors
func (h *TraceHandler) Neighbors(c *gin.Context) {
	var req NeighborsRequest
	if !bind(c, &req) {
		return
	}
	resp, err := h.svc.Neighbors(c.Request.Context(), req.Device, strings.TrimSpace(req.Interface))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}

// NormalizeMAC 处理 api/v1/mac/normalize，不访问设备
func (h *TraceHandler) NormalizeMAC(c *gin.Context) {
	var req NormalizeRequest
	if !bind(c, &req) {
		return
	}
	mac, err := aruba.NormalizeMAC(req.MAC)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"input": req.MAC, "mac": mac})
}

func bind(c *gin.Context, req interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		logger.Warnf("Invalid request parameters: %v", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    CodeInvalidParams,
			Message: "invalid request: " + err.Error(),
		})
		return false
	}
	return true
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{Code: CodeSuccess, Message: "ok", Data: data})
}

func fail(c *gin.Context, err error) {
	status, resp := errorStatus(err)
	logger.WithField("request_id", c.GetString("request_id")).Errorf("%s: %v", resp.Code, err)
	c.JSON(status, resp)
}
