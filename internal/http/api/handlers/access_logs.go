package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nexus-webapi/nexus/internal/models"
	"gorm.io/gorm"
)

// AccessLogHandler exposes the door attempt history.
type AccessLogHandler struct {
	db *gorm.DB
}

// NewAccessLogHandler constructs an AccessLogHandler.
func NewAccessLogHandler(db *gorm.DB) *AccessLogHandler {
	return &AccessLogHandler{db: db}
}

func accessLogRow(l *models.AccessLog) gin.H {
	return gin.H{
		"id":            l.ID,
		"employeeId":    l.EmployeeID,
		"roomId":        l.RoomID,
		"accessTime":    l.AccessTime,
		"accessGranted": l.AccessGranted,
		"attemptType":   l.AttemptType,
		"details":       l.Details,
	}
}

// List returns attempts newest first, optionally filtered by employeeId and roomId.
func (h *AccessLogHandler) List(c *gin.Context) {
	employeeID, hasEmployee, ok := parseIDQuery(c, "employeeId")
	if !ok {
		return
	}
	roomID, hasRoom, ok := parseIDQuery(c, "roomId")
	if !ok {
		return
	}
	q := h.db.WithContext(c.Request.Context()).Model(&models.AccessLog{})
	if hasEmployee {
		q = q.Where("employee_id = ?", employeeID)
	}
	if hasRoom {
		q = q.Where("room_id = ?", roomID)
	}
	h.respondList(c, q)
}

// ListByEmployee returns the attempts of one employee, newest first.
func (h *AccessLogHandler) ListByEmployee(c *gin.Context) {
	employeeID, ok := parseIDParam(c, "employeeId")
	if !ok {
		return
	}
	q := h.db.WithContext(c.Request.Context()).Model(&models.AccessLog{}).Where("employee_id = ?", employeeID)
	h.respondList(c, q)
}

func (h *AccessLogHandler) respondList(c *gin.Context, q *gorm.DB) {
	var rows []models.AccessLog
	if errFind := q.Order("access_time DESC").Order("id DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list access logs failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, accessLogRow(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"accessLogs": out})
}

// Get returns one attempt.
func (h *AccessLogHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var row models.AccessLog
	if errFind := h.db.WithContext(c.Request.Context()).First(&row, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "access log not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch access log failed"})
		return
	}
	c.JSON(http.StatusOK, accessLogRow(&row))
}
