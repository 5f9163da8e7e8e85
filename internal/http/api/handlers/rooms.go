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

// RoomHandler manages room records.
type RoomHandler struct {
	db *gorm.DB
}

// NewRoomHandler constructs a RoomHandler.
func NewRoomHandler(db *gorm.DB) *RoomHandler {
	return &RoomHandler{db: db}
}

// roomRequest captures the payload for creating or replacing a room.
type roomRequest struct {
	Name                 string  `json:"name" binding:"required,max=100"`
	Description          string  `json:"description"`
	Status               bool    `json:"status"`
	Image                []byte  `json:"image"` // Base64 in JSON.
	OccupiedByEmployeeID *uint64 `json:"occupiedByEmployeeId"`
}

func roomRow(r *models.Room) gin.H {
	return gin.H{
		"id":                   r.ID,
		"name":                 r.Name,
		"description":          r.Description,
		"status":               r.Status,
		"image":                r.Image,
		"occupiedByEmployeeId": r.OccupiedByEmployeeID,
	}
}

// List returns all rooms.
func (h *RoomHandler) List(c *gin.Context) {
	var rows []models.Room
	if errFind := h.db.WithContext(c.Request.Context()).Order("id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list rooms failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, roomRow(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"rooms": out})
}

// Get returns one room.
func (h *RoomHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var row models.Room
	if errFind := h.db.WithContext(c.Request.Context()).First(&row, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch room failed"})
		return
	}
	c.JSON(http.StatusOK, roomRow(&row))
}

// Create inserts a room.
func (h *RoomHandler) Create(c *gin.Context) {
	var body roomRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondBindError(c, errBind)
		return
	}
	row := models.Room{
		Name:                 strings.TrimSpace(body.Name),
		Description:          body.Description,
		Status:               body.Status,
		Image:                body.Image,
		OccupiedByEmployeeID: body.OccupiedByEmployeeID,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
		if dbutil.IsForeignKeyViolation(errCreate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "occupying employee not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create room failed"})
		return
	}
	c.JSON(http.StatusCreated, roomRow(&row))
}

// Update replaces the fields of a room.
func (h *RoomHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body roomRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondBindError(c, errBind)
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Room{}).Where("id = ?", id).Updates(map[string]any{
		"name":                    strings.TrimSpace(body.Name),
		"description":             body.Description,
		"status":                  body.Status,
		"image":                   body.Image,
		"occupied_by_employee_id": body.OccupiedByEmployeeID,
	})
	if res.Error != nil {
		if dbutil.IsForeignKeyViolation(res.Error) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "occupying employee not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update room failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	row := models.Room{
		ID:                   id,
		Name:                 strings.TrimSpace(body.Name),
		Description:          body.Description,
		Status:               body.Status,
		Image:                body.Image,
		OccupiedByEmployeeID: body.OccupiedByEmployeeID,
	}
	c.JSON(http.StatusOK, roomRow(&row))
}

// Delete removes a room; its grants and logs cascade.
func (h *RoomHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	res := h.db.WithContext(c.Request.Context()).Delete(&models.Room{}, id)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete room failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
