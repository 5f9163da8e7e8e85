package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	dbutil "github.com/nexus-webapi/nexus/internal/db"
	"github.com/nexus-webapi/nexus/internal/models"
	"gorm.io/gorm"
)

// RoleHandler manages roles.
type RoleHandler struct {
	db *gorm.DB
}

// NewRoleHandler constructs a RoleHandler.
func NewRoleHandler(db *gorm.DB) *RoleHandler {
	return &RoleHandler{db: db}
}

type roleRequest struct {
	RoleName    string `json:"roleName" binding:"required,max=50"`
	Description string `json:"description"`
}

func roleRow(r *models.Role) gin.H {
	return gin.H{"id": r.ID, "roleName": r.RoleName, "description": r.Description}
}

// List returns all roles.
func (h *RoleHandler) List(c *gin.Context) {
	var rows []models.Role
	if errFind := h.db.WithContext(c.Request.Context()).Order("id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list roles failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, roleRow(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"roles": out})
}

// Get returns one role.
func (h *RoleHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var row models.Role
	if errFind := h.db.WithContext(c.Request.Context()).First(&row, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "role not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch role failed"})
		return
	}
	c.JSON(http.StatusOK, roleRow(&row))
}

// Create inserts a role.
func (h *RoleHandler) Create(c *gin.Context) {
	var body roleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondBindError(c, errBind)
		return
	}
	row := models.Role{RoleName: strings.TrimSpace(body.RoleName), Description: body.Description}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
		if dbutil.IsUniqueViolation(errCreate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "role name already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create role failed"})
		return
	}
	c.JSON(http.StatusCreated, roleRow(&row))
}

// Update renames or re-describes a role.
func (h *RoleHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body roleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondBindError(c, errBind)
		return
	}
	row := models.Role{ID: id, RoleName: strings.TrimSpace(body.RoleName), Description: body.Description}
	res := h.db.WithContext(c.Request.Context()).Model(&models.Role{}).Where("id = ?", id).Updates(map[string]any{
		"role_name":   row.RoleName,
		"description": row.Description,
	})
	if res.Error != nil {
		if dbutil.IsUniqueViolation(res.Error) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "role name already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update role failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "role not found"})
		return
	}
	c.JSON(http.StatusOK, roleRow(&row))
}

// Delete removes a role and its bindings.
func (h *RoleHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	res := h.db.WithContext(c.Request.Context()).Delete(&models.Role{}, id)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete role failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "role not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// PermissionHandler manages permission keys.
type PermissionHandler struct {
	db *gorm.DB
}

// NewPermissionHandler constructs a PermissionHandler.
func NewPermissionHandler(db *gorm.DB) *PermissionHandler {
	return &PermissionHandler{db: db}
}

type permissionRequest struct {
	PermissionKey string `json:"permissionKey" binding:"required,max=50"`
	Description   string `json:"description"`
}

func permissionRow(p *models.Permission) gin.H {
	return gin.H{"id": p.ID, "permissionKey": p.PermissionKey, "description": p.Description}
}

// List returns all permissions.
func (h *PermissionHandler) List(c *gin.Context) {
	var rows []models.Permission
	if errFind := h.db.WithContext(c.Request.Context()).Order("permission_key ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list permissions failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, permissionRow(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"permissions": out})
}

// Get returns one permission.
func (h *PermissionHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var row models.Permission
	if errFind := h.db.WithContext(c.Request.Context()).First(&row, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "permission not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch permission failed"})
		return
	}
	c.JSON(http.StatusOK, permissionRow(&row))
}

// Create inserts a permission.
func (h *PermissionHandler) Create(c *gin.Context) {
	var body permissionRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondBindError(c, errBind)
		return
	}
	row := models.Permission{PermissionKey: strings.TrimSpace(body.PermissionKey), Description: body.Description}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
		if dbutil.IsUniqueViolation(errCreate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "permission key already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create permission failed"})
		return
	}
	c.JSON(http.StatusCreated, permissionRow(&row))
}

// Update changes a permission key or description.
func (h *PermissionHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body permissionRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondBindError(c, errBind)
		return
	}
	row := models.Permission{ID: id, PermissionKey: strings.TrimSpace(body.PermissionKey), Description: body.Description}
	res := h.db.WithContext(c.Request.Context()).Model(&models.Permission{}).Where("id = ?", id).Updates(map[string]any{
		"permission_key": row.PermissionKey,
		"description":    row.Description,
	})
	if res.Error != nil {
		if dbutil.IsUniqueViolation(res.Error) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "permission key already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update permission failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "permission not found"})
		return
	}
	c.JSON(http.StatusOK, permissionRow(&row))
}

// Delete removes a permission and its role bindings.
func (h *PermissionHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	res := h.db.WithContext(c.Request.Context()).Delete(&models.Permission{}, id)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete permission failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "permission not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
