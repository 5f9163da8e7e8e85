package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexus-webapi/nexus/internal/auth"
	dbutil "github.com/nexus-webapi/nexus/internal/db"
	"github.com/nexus-webapi/nexus/internal/models"
	"github.com/nexus-webapi/nexus/internal/security"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// EmployeeHandler manages employee records.
type EmployeeHandler struct {
	db *gorm.DB // Database handle for employee records.
}

// NewEmployeeHandler constructs an EmployeeHandler.
func NewEmployeeHandler(db *gorm.DB) *EmployeeHandler {
	return &EmployeeHandler{db: db}
}

// updateEmployeeRequest captures optional employee changes.
type updateEmployeeRequest struct {
	Name            *string `json:"name" binding:"omitempty,min=1,max=100"`
	Email           *string `json:"email" binding:"omitempty,email,max=100"`
	Password        *string `json:"password" binding:"omitempty,min=6,max=72"`
	PinCode         *string `json:"pinCode" binding:"omitempty,pin4"`
	FingerprintData []byte  `json:"fingerprintData"` // Base64 in JSON.
}

// IsAdmin answers true; the route is guarded by the AdminAccess claim policy.
func (h *EmployeeHandler) IsAdmin(c *gin.Context) {
	c.JSON(http.StatusOK, true)
}

// List returns all employees, optionally filtered by a name or email keyword.
func (h *EmployeeHandler) List(c *gin.Context) {
	keyword := strings.TrimSpace(c.Query("keyword"))

	q := h.db.WithContext(c.Request.Context()).Model(&models.Employee{})
	if keyword != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+keyword+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "name")+" OR "+dbutil.CaseInsensitiveLikeExpr(h.db, "email"), pattern, pattern)
	}

	var rows []models.Employee
	if errFind := q.Order("id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list employees failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, employeeRow(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"employees": out})
}

// Get returns one employee.
func (h *EmployeeHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var row models.Employee
	if errFind := h.db.WithContext(c.Request.Context()).First(&row, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "employee not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch employee failed"})
		return
	}
	c.JSON(http.StatusOK, employeeRow(&row))
}

// Update applies the supplied fields to an employee.
func (h *EmployeeHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body updateEmployeeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondBindError(c, errBind)
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": gin.H{"name": "is required"}})
			return
		}
		updates["name"] = name
	}
	if body.Email != nil {
		updates["email"] = auth.NormalizeEmail(*body.Email)
	}
	if body.PinCode != nil {
		updates["pin_code"] = *body.PinCode
	}
	if body.FingerprintData != nil {
		updates["fingerprint_data"] = body.FingerprintData
	}
	if body.Password != nil {
		hash, errHash := security.HashPassword(*body.Password)
		if errHash != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
			return
		}
		updates["password_hash"] = hash
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Employee{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		if dbutil.IsUniqueViolation(res.Error) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email or pin code already in use"})
			return
		}
		log.WithError(res.Error).Error("update employee failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update employee failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "employee not found"})
		return
	}

	var row models.Employee
	if errFind := h.db.WithContext(c.Request.Context()).First(&row, id).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch employee failed"})
		return
	}
	c.JSON(http.StatusOK, employeeRow(&row))
}

// Delete removes an employee; roles, grants, logs and tokens cascade.
func (h *EmployeeHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	res := h.db.WithContext(c.Request.Context()).Delete(&models.Employee{}, id)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete employee failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "employee not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
