package handler

import (
	"errors"
	"net/http"

	"voltpay/internal/domain"
	"voltpay/internal/service"

	"github.com/gin-gonic/gin"
)

type ChargingHandler struct {
	charging *service.ChargingService
}

func NewChargingHandler(charging *service.ChargingService) *ChargingHandler {
	return &ChargingHandler{charging: charging}
}

func (h *ChargingHandler) Start(c *gin.Context) {
	cid := customerID(c)
	if cid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "X-Customer-ID required"})
		return
	}
	var req struct {
		DeviceID        string `json:"device_id" binding:"required"`
		ConnectorID     int    `json:"connector_id"`
		ChargingPointID string `json:"charging_point_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device_id required"})
		return
	}
	session, err := h.charging.Start(c.Request.Context(), cid, req.DeviceID, req.ConnectorID, req.ChargingPointID)
	if err != nil {
		status, msg := startErrorStatus(err)
		resp := gin.H{"error": msg}
		if session != nil {
			// Timeout: the session exists in PENDING, tell the caller.
			resp["session_id"] = session.SessionID
		}
		c.JSON(status, resp)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"session_id":      session.SessionID,
		"status":          session.Status,
		"amount_deducted": session.AmountDeducted,
	})
}

func (h *ChargingHandler) Stop(c *gin.Context) {
	var req struct {
		DeviceID string `json:"device_id" binding:"required"`
		Reason   string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device_id required"})
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = domain.StopReasonCustomer
	}
	if err := h.charging.Stop(c.Request.Context(), req.DeviceID, reason); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "no open session for device"})
		case errors.Is(err, domain.ErrDeviceTimeout):
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrDeviceUnreachable):
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "stop failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopped": true})
}

func startErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrAlreadyCharging):
		return http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrTooManyRequests):
		return http.StatusTooManyRequests, err.Error()
	case errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusPaymentRequired, err.Error()
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrDeviceTimeout):
		// Distinct from rejection: the charger may have started anyway.
		return http.StatusGatewayTimeout, err.Error()
	case errors.Is(err, domain.ErrDeviceUnreachable):
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, service.ErrStartRejected):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, "start failed"
	}
}
