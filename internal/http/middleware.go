package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/httprate"
	"github.com/nexus-webapi/nexus/internal/authz"
	"github.com/nexus-webapi/nexus/internal/security"
	"github.com/nexus-webapi/nexus/internal/util"
	log "github.com/sirupsen/logrus"
	"github.com/unrolled/secure"
)

// Authenticate validates a bearer token when one is present and attaches the
// resulting identity. It never rejects a request; guards downstream decide.
func Authenticate(opts security.TokenOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Next()
			return
		}
		claims, errParse := security.ParseToken(opts, token, time.Now())
		if errParse != nil {
			log.WithError(errParse).WithFields(log.Fields{
				"path":  c.Request.URL.Path,
				"token": util.HideSecret(token),
			}).Debug("authentication failed")
			c.Next()
			return
		}
		identity := authz.IdentityFromClaims(claims, token)
		log.WithField("sub", identity.Subject).Debug("token validated")
		c.Set(authz.ContextKey, identity)
		c.Next()
	}
}

// bearerToken extracts the credential from an Authorization header. The
// scheme is matched case-insensitively.
func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

func identityFromContext(c *gin.Context) *authz.Identity {
	value, ok := c.Get(authz.ContextKey)
	if !ok {
		return nil
	}
	identity, _ := value.(*authz.Identity)
	return identity
}

// RequireAuthenticated rejects anonymous requests with 401.
func RequireAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if identityFromContext(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// RequirePolicy rejects anonymous requests with 401 and identities that do
// not satisfy policy with 403.
func RequirePolicy(authorizer *authz.Authorizer, policy authz.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := identityFromContext(c)
		if identity == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		granted, errAuthorize := authorizer.Authorize(c.Request.Context(), identity, policy)
		if errAuthorize != nil {
			log.WithError(errAuthorize).WithField("policy", policy.Name).Error("authorization check failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "authorization check failed"})
			return
		}
		if !granted {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}
		c.Next()
	}
}

// SecureHeaders applies the standard response hardening headers.
func SecureHeaders(development bool) gin.HandlerFunc {
	mw := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		IsDevelopment:      development,
	})
	return func(c *gin.Context) {
		if errSecure := mw.Process(c.Writer, c.Request); errSecure != nil {
			c.Abort()
			return
		}
		c.Next()
	}
}

type clientIPKey struct{}

// RateLimit caps requests per client address within window. Addresses come
// from gin's ClientIP so trusted proxy headers are honoured. A limit of zero
// or less disables the cap.
func RateLimit(limit int, window time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := httprate.Limit(limit, window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if ip, ok := r.Context().Value(clientIPKey{}).(string); ok && ip != "" {
				return "ip:" + ip, nil
			}
			return httprate.KeyByIP(r)
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"too many requests"}`))
		}),
	)
	return func(c *gin.Context) {
		passed := false
		next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Next()
		})
		req := c.Request.WithContext(context.WithValue(c.Request.Context(), clientIPKey{}, c.ClientIP()))
		limiter(next).ServeHTTP(c.Writer, req)
		if !passed {
			log.WithField("client_ip", c.ClientIP()).Warn("request rate limited")
			c.Abort()
		}
	}
}
