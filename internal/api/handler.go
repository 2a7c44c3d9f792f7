package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/dtu-gateway/internal/protocol/ddp"
	"github.com/taoyao-code/dtu-gateway/internal/protocol/modbus"
	"github.com/taoyao-code/dtu-gateway/internal/registry"
)

// RelayController 控制面：向已注册设备下发继电器指令
type RelayController interface {
	SetRelay(ctx context.Context, id string, on bool) (modbus.Command, error)
	Device(id string) (registry.Device, error)
}

// DeviceLister 注册表只读视图
type DeviceLister interface {
	Snapshot() []registry.Device
}

// Handler 控制与查询 API
type Handler struct {
	ctrl    RelayController
	devices DeviceLister
	logger  *zap.Logger
}

// NewHandler 创建处理器
func NewHandler(ctrl RelayController, devices DeviceLister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{ctrl: ctrl, devices: devices, logger: logger}
}

// RelayRequest 继电器控制请求
type RelayRequest struct {
	DTUNo   string `json:"dtuNo"`
	Command string `json:"command"` // ON | OFF
}

// DeviceView 设备对外视图，DTU 号去除 0x00 填充
type DeviceView struct {
	DTUNo        string `json:"dtuNo"`
	Name         string `json:"name,omitempty"`
	Address      string `json:"address"`
	RegisteredAt string `json:"registeredAt"`
	LastActive   string `json:"lastActive"`
}

func toView(d registry.Device) DeviceView {
	return DeviceView{
		DTUNo:        ddp.TrimID(d.ID),
		Name:         d.Name,
		Address:      d.Addr().String(),
		RegisteredAt: d.RegisteredAt.Format("2006-01-02T15:04:05.000Z07:00"),
		LastActive:   d.LastActive.Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

// ControlRelay 继电器控制
// @Summary 继电器控制
// @Description 向已注册 DTU 下发写单寄存器指令（ON=0x0001, OFF=0x0000）
// @Tags 控制
// @Accept json
// @Produce json
// @Param request body RelayRequest true "DTU 号与指令"
// @Success 200 {object} map[string]interface{} "指令已发送"
// @Failure 400 {object} map[string]interface{} "参数错误"
// @Failure 404 {object} map[string]interface{} "设备未注册"
// @Failure 500 {object} map[string]interface{} "发送失败"
// @Router /api/control/relay [post]
func (h *Handler) ControlRelay(c *gin.Context) {
	var req RelayRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.DTUNo == "" || req.Command == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "DTU number and command are required",
		})
		return
	}

	var on bool
	switch strings.ToUpper(req.Command) {
	case "ON":
		on = true
	case "OFF":
		on = false
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid command. Must be ON or OFF",
		})
		return
	}

	cmd, err := h.ctrl.SetRelay(c.Request.Context(), req.DTUNo, on)
	if errors.Is(err, registry.ErrNotRegistered) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "DTU device not found or not registered",
		})
		return
	}
	if err != nil {
		h.logger.Error("relay control failed", zap.String("dtu", req.DTUNo), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to send relay control command: " + err.Error(),
		})
		return
	}

	state := strings.ToUpper(req.Command)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Relay " + state + " command sent successfully",
		"dtuNo":   req.DTUNo,
		"command": cmd.String(),
	})
}

// ListDevices 在线设备列表
// @Summary 在线设备列表
// @Tags 设备
// @Produce json
// @Success 200 {object} map[string]interface{} "成功"
// @Router /api/devices [get]
func (h *Handler) ListDevices(c *gin.Context) {
	snap := h.devices.Snapshot()
	out := make([]DeviceView, 0, len(snap))
	for _, d := range snap {
		out = append(out, toView(d))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(out), "devices": out})
}

// GetDevice 查询单个设备
// @Summary 查询单个在线设备
// @Tags 设备
// @Produce json
// @Param dtuNo path string true "DTU 号"
// @Success 200 {object} map[string]interface{} "成功"
// @Failure 404 {object} map[string]interface{} "设备未注册"
// @Router /api/devices/{dtuNo} [get]
func (h *Handler) GetDevice(c *gin.Context) {
	d, err := h.ctrl.Device(c.Param("dtuNo"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "DTU device not found or not registered",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "device": toView(d)})
}
