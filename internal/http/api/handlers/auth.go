package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nexus-webapi/nexus/internal/auth"
	"github.com/nexus-webapi/nexus/internal/security"
	"github.com/nexus-webapi/nexus/internal/store"
	log "github.com/sirupsen/logrus"
)

// AuthHandler serves login, registration, logout and the current-user lookup.
type AuthHandler struct {
	svc *auth.Service
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(svc *auth.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// loginRequest accepts either a username or an email.
type loginRequest struct {
	Username string `json:"username" binding:"required_without=Email,max=100"`
	Email    string `json:"email" binding:"required_without=Username,max=100"`
	Password string `json:"password" binding:"required"`
}

// registerRequest defines the request body for employee registration.
type registerRequest struct {
	Name     string `json:"name" binding:"required,min=1,max=100"`
	Email    string `json:"email" binding:"required,email,max=100"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// Login verifies credentials and returns a session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondBindError(c, errBind)
		return
	}

	token, errLogin := h.svc.Login(c.Request.Context(), body.Username, body.Email, body.Password)
	if errLogin != nil {
		if errors.Is(errLogin, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		log.WithError(errLogin).Error("login failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Register creates an employee and returns a session token.
func (h *AuthHandler) Register(c *gin.Context) {
	var body registerRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondBindError(c, errBind)
		return
	}

	_, token, errRegister := h.svc.Register(c.Request.Context(), auth.RegisterInput{
		Name:     body.Name,
		Email:    body.Email,
		Password: body.Password,
	})
	if errRegister != nil {
		switch {
		case errors.Is(errRegister, auth.ErrEmailTaken):
			c.JSON(http.StatusBadRequest, gin.H{"error": "email already registered"})
		case errors.Is(errRegister, auth.ErrBlankName):
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": gin.H{"name": "is required"}})
		case errors.Is(errRegister, security.ErrPINSpaceExhausted):
			log.WithError(errRegister).Error("register failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pin space exhausted"})
		default:
			log.WithError(errRegister).Error("register failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "register failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Logout deletes the caller's stored token. Unknown tokens still succeed.
func (h *AuthHandler) Logout(c *gin.Context) {
	identity := currentIdentity(c)
	if identity == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if errLogout := h.svc.Logout(c.Request.Context(), identity.Token); errLogout != nil {
		log.WithError(errLogout).Error("logout failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// User returns the authenticated employee.
func (h *AuthHandler) User(c *gin.Context) {
	identity := currentIdentity(c)
	employeeID, ok := identity.EmployeeID()
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	employee, errFind := h.svc.Employee(c.Request.Context(), employeeID)
	if errFind != nil {
		if errors.Is(errFind, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "employee not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, employeeRow(employee))
}
