package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/jussrz/SOSit/internal/models"
	"github.com/jussrz/SOSit/internal/ws"
)

// AlertService runs one notification flow per request.
type AlertService interface {
	NotifyGuardians(ctx context.Context, alert models.PanicAlert) (models.DispatchSummary, error)
	NotifyAuthorities(ctx context.Context, alertID string) (models.DispatchSummary, error)
}

// NotificationReader reads back stored fallback notifications.
type NotificationReader interface {
	GetNotificationsByRecipient(ctx context.Context, recipientID string, limit int) ([]models.FallbackNotification, error)
}

type Handler struct {
	svc      AlertService
	reader   NotificationReader
	hub      *ws.Hub
	logger   *logrus.Logger
	upgrader websocket.Upgrader
}

func NewHandler(svc AlertService, reader NotificationReader, hub *ws.Hub, logger *logrus.Logger) *Handler {
	return &Handler{
		svc:    svc,
		reader: reader,
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// SendParentAlerts notifies every guardian of the alert's subject.
func (h *Handler) SendParentAlerts(c *gin.Context) {
	var req struct {
		Alert *models.PanicAlert `json:"alert"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Invalid request body for parent alerts: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body"})
		return
	}
	if req.Alert == nil || req.Alert.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Missing alert or alert user_id"})
		return
	}
	if req.Alert.Timestamp.IsZero() {
		req.Alert.Timestamp = time.Now()
	}

	summary, err := h.svc.NotifyGuardians(c.Request.Context(), *req.Alert)
	if err != nil {
		h.logger.Errorf("Parent alert %s failed: %v", req.Alert.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"sent":    summary.Sent,
		"failed":  summary.Failed,
		"total":   summary.Total,
		"results": summary.Results,
	})
}

// SendStationAlerts notifies authority users near the alert's location.
func (h *Handler) SendStationAlerts(c *gin.Context) {
	var req struct {
		PanicAlertID string `json:"panic_alert_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.PanicAlertID == "" {
		h.logger.Errorf("Invalid request body for station alerts: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Missing panic_alert_id"})
		return
	}

	summary, err := h.svc.NotifyAuthorities(c.Request.Context(), req.PanicAlertID)
	if err != nil {
		h.logger.Errorf("Station alert %s failed: %v", req.PanicAlertID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"sent":    summary.Sent,
		"failed":  summary.Failed,
		"total":   summary.Total,
		"results": summary.Results,
	})
}

// GetNotificationsByUserID returns a user's stored notifications, newest first.
func (h *Handler) GetNotificationsByUserID(c *gin.Context) {
	userID := c.Param("user_id")
	notifications, err := h.reader.GetNotificationsByRecipient(c.Request.Context(), userID, 50)
	if err != nil {
		h.logger.Errorf("Failed to get notifications for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get notifications"})
		return
	}
	if notifications == nil {
		notifications = []models.FallbackNotification{}
	}
	c.JSON(http.StatusOK, notifications)
}

// Subscribe upgrades the request and holds the connection open so the hub can
// push fallback notifications to this user.
func (h *Handler) Subscribe(c *gin.Context) {
	userID := c.Param("user_id")
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed for user %s: %v", userID, err)
		return
	}

	h.hub.AddConnection(userID, conn)
	go func() {
		defer func() {
			h.hub.RemoveConnection(userID, conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
