package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexus-webapi/nexus/internal/auth"
	"github.com/nexus-webapi/nexus/internal/authz"
	"github.com/nexus-webapi/nexus/internal/http/api/handlers"
	"github.com/nexus-webapi/nexus/internal/logging"
	"github.com/nexus-webapi/nexus/internal/security"
	"github.com/nexus-webapi/nexus/internal/store"
	"gorm.io/gorm"
)

// Deps holds everything the router wires into handlers.
type Deps struct {
	DB             *gorm.DB
	Store          *store.Gorm
	Auth           *auth.Service
	Authorizer     *authz.Authorizer
	Token          security.TokenOptions
	TrustedProxies []string
	Development    bool

	// AttemptsPerMinute limits the door endpoint per client; 0 leaves it open.
	AttemptsPerMinute int
}

// NewRouter builds the gin engine with every route and guard registered.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.DB == nil || deps.Store == nil || deps.Auth == nil || deps.Authorizer == nil {
		return nil, fmt.Errorf("http: incomplete router dependencies")
	}
	handlers.RegisterValidators()

	r := gin.New()
	if errProxies := r.SetTrustedProxies(deps.TrustedProxies); errProxies != nil {
		return nil, fmt.Errorf("http: trusted proxies: %w", errProxies)
	}
	r.Use(logging.GinRecovery(), logging.GinLogger(), SecureHeaders(deps.Development))
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	health := handlers.NewHealthHandler(deps.DB)
	r.GET("/healthz", health.Check)

	api := r.Group("/api")
	api.Use(Authenticate(deps.Token))

	guard := func(p authz.Policy) gin.HandlerFunc { return RequirePolicy(deps.Authorizer, p) }

	authHandler := handlers.NewAuthHandler(deps.Auth)
	api.POST("/Auth/login", authHandler.Login)
	api.POST("/Auth/register", authHandler.Register)
	api.POST("/Auth/logout", RequireAuthenticated(), authHandler.Logout)
	api.GET("/Auth/user", RequireAuthenticated(), authHandler.User)

	attempt := handlers.NewAccessAttemptHandler(deps.Store, deps.Store)
	api.POST("/AccessAttempt/attempt", RateLimit(deps.AttemptsPerMinute, time.Minute), attempt.Attempt)

	employees := handlers.NewEmployeeHandler(deps.DB)
	api.GET("/employees/isAdmin", guard(authz.AdminAccess), employees.IsAdmin)
	api.GET("/employees", guard(authz.ViewRooms), employees.List)
	api.GET("/employees/:id", guard(authz.ManageEmployees), employees.Get)
	api.PUT("/employees/:id", guard(authz.ManageEmployees), employees.Update)
	api.DELETE("/employees/:id", guard(authz.ManageEmployees), employees.Delete)

	rooms := handlers.NewRoomHandler(deps.DB)
	api.GET("/rooms", guard(authz.ViewRooms), rooms.List)
	api.GET("/rooms/:id", guard(authz.ViewRooms), rooms.Get)
	api.POST("/rooms", guard(authz.ManageRooms), rooms.Create)
	api.PUT("/rooms/:id", guard(authz.ManageRooms), rooms.Update)
	api.DELETE("/rooms/:id", guard(authz.ManageRooms), rooms.Delete)

	manageRoles := api.Group("", guard(authz.ManageRoles))
	roles := handlers.NewRoleHandler(deps.DB)
	manageRoles.GET("/roles", roles.List)
	manageRoles.GET("/roles/:id", roles.Get)
	manageRoles.POST("/roles", roles.Create)
	manageRoles.PUT("/roles/:id", roles.Update)
	manageRoles.DELETE("/roles/:id", roles.Delete)

	permissions := handlers.NewPermissionHandler(deps.DB)
	manageRoles.GET("/permissions", permissions.List)
	manageRoles.GET("/permissions/:id", permissions.Get)
	manageRoles.POST("/permissions", permissions.Create)
	manageRoles.PUT("/permissions/:id", permissions.Update)
	manageRoles.DELETE("/permissions/:id", permissions.Delete)

	rolePermissions := handlers.NewRolePermissionHandler(deps.DB)
	manageRoles.GET("/role-permissions", rolePermissions.List)
	manageRoles.GET("/role-permissions/:id", rolePermissions.Get)
	manageRoles.POST("/role-permissions", rolePermissions.Create)
	manageRoles.DELETE("/role-permissions/:id", rolePermissions.Delete)

	employeeRoles := handlers.NewEmployeeRoleHandler(deps.DB)
	manageRoles.GET("/employee-roles", employeeRoles.List)
	manageRoles.GET("/employee-roles/:id", employeeRoles.Get)
	manageRoles.POST("/employee-roles", employeeRoles.Create)
	manageRoles.DELETE("/employee-roles/:id", employeeRoles.Delete)

	manageRooms := api.Group("", guard(authz.ManageRooms))
	roomAccess := handlers.NewRoomAccessHandler(deps.DB)
	manageRooms.GET("/room-access", roomAccess.List)
	manageRooms.GET("/room-access/:id", roomAccess.Get)
	manageRooms.POST("/room-access", roomAccess.Create)
	manageRooms.DELETE("/room-access/:id", roomAccess.Delete)

	viewLogs := api.Group("/access-logs", guard(authz.ViewAccessLogs))
	accessLogs := handlers.NewAccessLogHandler(deps.DB)
	viewLogs.GET("", accessLogs.List)
	viewLogs.GET("/:id", accessLogs.Get)
	viewLogs.GET("/employee/:employeeId", accessLogs.ListByEmployee)

	return r, nil
}
