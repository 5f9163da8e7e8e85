package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexus-webapi/nexus/internal/models"
	"github.com/nexus-webapi/nexus/internal/store"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// Attempt types accepted from door terminals.
const (
	AttemptPinCode     = "PinCode"
	AttemptFingerprint = "Fingerprint"
)

// Deny reasons recorded in AccessLog.Details.
const (
	reasonGranted          = "granted"
	reasonBadPIN           = "pin mismatch"
	reasonNoFingerprint    = "no fingerprint enrolled"
	reasonBadFingerprint   = "fingerprint mismatch"
	reasonNoRoomPermission = "no room access"
)

// AccessAttemptHandler evaluates door terminal attempts and records them.
type AccessAttemptHandler struct {
	credentials store.CredentialStore
	access      store.AccessStore
	now         func() time.Time
}

// NewAccessAttemptHandler constructs an AccessAttemptHandler.
func NewAccessAttemptHandler(credentials store.CredentialStore, access store.AccessStore) *AccessAttemptHandler {
	return &AccessAttemptHandler{credentials: credentials, access: access, now: time.Now}
}

type accessAttemptRequest struct {
	EmployeeID      uint64 `json:"employeeId" binding:"required,gt=0"`
	RoomID          uint64 `json:"roomId" binding:"required,gt=0"`
	AttemptType     string `json:"attemptType" binding:"required,oneof=PinCode Fingerprint"`
	PinCode         string `json:"pinCode" binding:"omitempty,pin4"`
	FingerprintData []byte `json:"fingerprintData"`
}

// Attempt decides whether the door opens and appends an access log entry.
func (h *AccessAttemptHandler) Attempt(c *gin.Context) {
	var body accessAttemptRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondBindError(c, errBind)
		return
	}
	ctx := c.Request.Context()

	employee, errEmployee := h.credentials.EmployeeByID(ctx, body.EmployeeID)
	if errEmployee != nil {
		if errors.Is(errEmployee, store.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid employee or room"})
			return
		}
		log.WithError(errEmployee).Error("access attempt: load employee failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "access attempt failed"})
		return
	}
	roomOK, errRoom := h.access.RoomExists(ctx, body.RoomID)
	if errRoom != nil {
		log.WithError(errRoom).Error("access attempt: load room failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "access attempt failed"})
		return
	}
	if !roomOK {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid employee or room"})
		return
	}

	granted, reason, errEval := h.evaluate(ctx, employee, &body)
	if errEval != nil {
		log.WithError(errEval).Error("access attempt: evaluate failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "access attempt failed"})
		return
	}

	details, _ := json.Marshal(map[string]string{"reason": reason})
	entry := &models.AccessLog{
		EmployeeID:    employee.ID,
		RoomID:        body.RoomID,
		AccessTime:    h.now().UTC(),
		AccessGranted: granted,
		AttemptType:   body.AttemptType,
		Details:       datatypes.JSON(details),
	}
	if errLog := h.access.AppendAccessLog(ctx, entry); errLog != nil {
		log.WithError(errLog).Error("access attempt: append log failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "access attempt failed"})
		return
	}
	log.WithFields(log.Fields{
		"employee_id": employee.ID,
		"room_id":     body.RoomID,
		"type":        body.AttemptType,
		"granted":     granted,
	}).Info("door access attempt")
	c.JSON(http.StatusOK, gin.H{"accessGranted": granted})
}

// evaluate checks the presented credential first and the room grant second.
func (h *AccessAttemptHandler) evaluate(ctx context.Context, employee *models.Employee, body *accessAttemptRequest) (bool, string, error) {
	switch body.AttemptType {
	case AttemptPinCode:
		if body.PinCode == "" || subtle.ConstantTimeCompare([]byte(body.PinCode), []byte(employee.PinCode)) != 1 {
			return false, reasonBadPIN, nil
		}
	case AttemptFingerprint:
		if len(employee.FingerprintData) == 0 {
			return false, reasonNoFingerprint, nil
		}
		if subtle.ConstantTimeCompare(body.FingerprintData, employee.FingerprintData) != 1 {
			return false, reasonBadFingerprint, nil
		}
	}

	allowed, errAccess := h.access.HasRoomAccess(ctx, employee.ID, body.RoomID)
	if errAccess != nil {
		return false, "", errAccess
	}
	if !allowed {
		return false, reasonNoRoomPermission, nil
	}
	return true, reasonGranted, nil
}
