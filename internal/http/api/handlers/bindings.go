package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	dbutil "github.com/nexus-webapi/nexus/internal/db"
	"github.com/nexus-webapi/nexus/internal/models"
	"gorm.io/gorm"
)

// respondBindingWriteError maps constraint failures on join-table inserts.
func respondBindingWriteError(c *gin.Context, err error, what string) {
	switch {
	case dbutil.IsUniqueViolation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": what + " already exists"})
	case dbutil.IsForeignKeyViolation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": "referenced row not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create " + what + " failed"})
	}
}

// RolePermissionHandler manages role to permission bindings.
type RolePermissionHandler struct {
	db *gorm.DB
}

// NewRolePermissionHandler constructs a RolePermissionHandler.
func NewRolePermissionHandler(db *gorm.DB) *RolePermissionHandler {
	return &RolePermissionHandler{db: db}
}

type rolePermissionRequest struct {
	RoleID       uint64 `json:"roleId" binding:"required,gt=0"`
	PermissionID uint64 `json:"permissionId" binding:"required,gt=0"`
}

func rolePermissionRow(r *models.RolePermission) gin.H {
	return gin.H{"id": r.ID, "roleId": r.RoleID, "permissionId": r.PermissionID}
}

// List returns bindings, optionally filtered by roleId.
func (h *RolePermissionHandler) List(c *gin.Context) {
	roleID, hasRole, ok := parseIDQuery(c, "roleId")
	if !ok {
		return
	}
	q := h.db.WithContext(c.Request.Context()).Model(&models.RolePermission{})
	if hasRole {
		q = q.Where("role_id = ?", roleID)
	}
	var rows []models.RolePermission
	if errFind := q.Order("id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list role permissions failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, rolePermissionRow(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"rolePermissions": out})
}

// Get returns one binding.
func (h *RolePermissionHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var row models.RolePermission
	if errFind := h.db.WithContext(c.Request.Context()).First(&row, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "role permission not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch role permission failed"})
		return
	}
	c.JSON(http.StatusOK, rolePermissionRow(&row))
}

// Create grants a permission to a role.
func (h *RolePermissionHandler) Create(c *gin.Context) {
	var body rolePermissionRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondBindError(c, errBind)
		return
	}
	row := models.RolePermission{RoleID: body.RoleID, PermissionID: body.PermissionID}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
		respondBindingWriteError(c, errCreate, "role permission")
		return
	}
	c.JSON(http.StatusCreated, rolePermissionRow(&row))
}

// Delete revokes a permission from a role.
func (h *RolePermissionHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	res := h.db.WithContext(c.Request.Context()).Delete(&models.RolePermission{}, id)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete role permission failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "role permission not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// EmployeeRoleHandler manages employee to role bindings.
type EmployeeRoleHandler struct {
	db *gorm.DB
}

// NewEmployeeRoleHandler constructs an EmployeeRoleHandler.
func NewEmployeeRoleHandler(db *gorm.DB) *EmployeeRoleHandler {
	return &EmployeeRoleHandler{db: db}
}

type employeeRoleRequest struct {
	EmployeeID uint64 `json:"employeeId" binding:"required,gt=0"`
	RoleID     uint64 `json:"roleId" binding:"required,gt=0"`
}

func employeeRoleRow(r *models.EmployeeRole) gin.H {
	return gin.H{"id": r.ID, "employeeId": r.EmployeeID, "roleId": r.RoleID}
}

// List returns bindings, optionally filtered by employeeId.
func (h *EmployeeRoleHandler) List(c *gin.Context) {
	employeeID, hasEmployee, ok := parseIDQuery(c, "employeeId")
	if !ok {
		return
	}
	q := h.db.WithContext(c.Request.Context()).Model(&models.EmployeeRole{})
	if hasEmployee {
		q = q.Where("employee_id = ?", employeeID)
	}
	var rows []models.EmployeeRole
	if errFind := q.Order("id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list employee roles failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, employeeRoleRow(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"employeeRoles": out})
}

// Get returns one binding.
func (h *EmployeeRoleHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var row models.EmployeeRole
	if errFind := h.db.WithContext(c.Request.Context()).First(&row, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "employee role not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch employee role failed"})
		return
	}
	c.JSON(http.StatusOK, employeeRoleRow(&row))
}

// Create assigns a role to an employee.
func (h *EmployeeRoleHandler) Create(c *gin.Context) {
	var body employeeRoleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondBindError(c, errBind)
		return
	}
	row := models.EmployeeRole{EmployeeID: body.EmployeeID, RoleID: body.RoleID}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
		respondBindingWriteError(c, errCreate, "employee role")
		return
	}
	c.JSON(http.StatusCreated, employeeRoleRow(&row))
}

// Delete removes a role from an employee. Live policies see the change on
// the next request; claim-embedded ones only after the token is reissued.
func (h *EmployeeRoleHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	res := h.db.WithContext(c.Request.Context()).Delete(&models.EmployeeRole{}, id)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete employee role failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "employee role not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// RoomAccessHandler manages which employees may open which rooms.
type RoomAccessHandler struct {
	db *gorm.DB
}

// NewRoomAccessHandler constructs a RoomAccessHandler.
func NewRoomAccessHandler(db *gorm.DB) *RoomAccessHandler {
	return &RoomAccessHandler{db: db}
}

type roomAccessRequest struct {
	EmployeeID uint64 `json:"employeeId" binding:"required,gt=0"`
	RoomID     uint64 `json:"roomId" binding:"required,gt=0"`
}

func roomAccessRow(r *models.EmployeeRoomAccess) gin.H {
	return gin.H{"id": r.ID, "employeeId": r.EmployeeID, "roomId": r.RoomID}
}

// List returns grants, optionally filtered by employeeId and roomId.
func (h *RoomAccessHandler) List(c *gin.Context) {
	employeeID, hasEmployee, ok := parseIDQuery(c, "employeeId")
	if !ok {
		return
	}
	roomID, hasRoom, ok := parseIDQuery(c, "roomId")
	if !ok {
		return
	}
	q := h.db.WithContext(c.Request.Context()).Model(&models.EmployeeRoomAccess{})
	if hasEmployee {
		q = q.Where("employee_id = ?", employeeID)
	}
	if hasRoom {
		q = q.Where("room_id = ?", roomID)
	}
	var rows []models.EmployeeRoomAccess
	if errFind := q.Order("id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list room access failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, roomAccessRow(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"roomAccess": out})
}

// Get returns one grant.
func (h *RoomAccessHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var row models.EmployeeRoomAccess
	if errFind := h.db.WithContext(c.Request.Context()).First(&row, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room access not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch room access failed"})
		return
	}
	c.JSON(http.StatusOK, roomAccessRow(&row))
}

// Create grants an employee access to a room.
func (h *RoomAccessHandler) Create(c *gin.Context) {
	var body roomAccessRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondBindError(c, errBind)
		return
	}
	row := models.EmployeeRoomAccess{EmployeeID: body.EmployeeID, RoomID: body.RoomID}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
		respondBindingWriteError(c, errCreate, "room access")
		return
	}
	c.JSON(http.StatusCreated, roomAccessRow(&row))
}

// Delete revokes a room grant.
func (h *RoomAccessHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	res := h.db.WithContext(c.Request.Context()).Delete(&models.EmployeeRoomAccess{}, id)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete room access failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "room access not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
