package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/nexus-webapi/nexus/internal/authz"
	"github.com/nexus-webapi/nexus/internal/models"
	"github.com/nexus-webapi/nexus/internal/security"
)

var registerOnce sync.Once

// RegisterValidators installs the custom binding rules and makes validation
// errors report JSON field names. Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("pin4", func(fl validator.FieldLevel) bool {
			return security.IsValidPIN(fl.Field().String())
		})
	})
}

// respondBindError writes a 400 describing why the body was rejected.
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = validationMessage(fe)
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "pin4":
		return "must be exactly 4 digits"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	default:
		return "is invalid"
	}
}

// currentIdentity returns the identity set by the authentication middleware.
func currentIdentity(c *gin.Context) *authz.Identity {
	value, ok := c.Get(authz.ContextKey)
	if !ok {
		return nil
	}
	identity, _ := value.(*authz.Identity)
	return identity
}

// parseIDParam reads a positive numeric path parameter.
func parseIDParam(c *gin.Context, name string) (uint64, bool) {
	id, errID := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if errID != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// parseIDQuery reads an optional numeric query filter.
func parseIDQuery(c *gin.Context, name string) (uint64, bool, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, false, true
	}
	id, errID := strconv.ParseUint(raw, 10, 64)
	if errID != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false, false
	}
	return id, true, true
}

// employeeRow renders an employee without its password hash or fingerprint template.
func employeeRow(e *models.Employee) gin.H {
	return gin.H{
		"id":             e.ID,
		"name":           e.Name,
		"email":          e.Email,
		"pinCode":        e.PinCode,
		"hasFingerprint": len(e.FingerprintData) > 0,
		"createdAt":      e.CreatedAt,
		"updatedAt":      e.UpdatedAt,
	}
}
