package middleware

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Rubin-11/coffee-tea-shop/internal/domain"
)

const (
	HeaderUserID     = "X-User-ID"
	HeaderSessionID  = "X-Session-ID"
	HeaderAdminToken = "X-Admin-Token"
	SessionCookie    = "cart_session"

	identityKey      = "identity"
	sessionCookieTTL = 30 * 24 * 60 * 60
)

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"Status": "Fail", "Message": message})
}

// Identity resolves who is calling. The upstream gateway puts authenticated
// users into X-User-ID; everybody else is a guest keyed by a session token
// taken from X-Session-ID or the cart_session cookie, or issued here.
func Identity(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := strings.TrimSpace(c.GetHeader(HeaderUserID)); raw != "" {
			userID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || userID <= 0 {
				log.Warnf("Middleware: Invalid %s header value: %s", HeaderUserID, raw)
				abort(c, http.StatusUnauthorized, "Invalid user identification data")
				return
			}
			c.Set(identityKey, domain.Authenticated(userID))
			c.Next()
			return
		}

		token := strings.TrimSpace(c.GetHeader(HeaderSessionID))
		if token == "" {
			if cookie, err := c.Cookie(SessionCookie); err == nil {
				token = strings.TrimSpace(cookie)
			}
		}
		if token == "" {
			token = uuid.NewString()
			log.Debugf("Middleware: Issued guest session %s...", token[:8])
		}
		if len(token) > 128 {
			abort(c, http.StatusBadRequest, "Session token is too long")
			return
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(SessionCookie, token, sessionCookieTTL, "/", "", false, true)
		c.Header(HeaderSessionID, token)
		c.Set(identityKey, domain.Guest(token))
		c.Next()
	}
}

// IdentityFrom returns the identity stored by the Identity middleware.
func IdentityFrom(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return domain.Identity{}, false
	}
	id, ok := v.(domain.Identity)
	return id, ok
}

// AdminOnly lets a request through only with the configured admin token. An
// empty token disables the admin surface entirely.
func AdminOnly(token string, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		given := c.GetHeader(HeaderAdminToken)
		if token == "" || subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
			log.Warnf("Middleware: Rejected admin request to %s", c.Request.URL.Path)
			abort(c, http.StatusForbidden, "Admin access required")
			return
		}
		c.Next()
	}
}
