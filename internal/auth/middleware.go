package auth

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/collabcast/marketplace/internal/config"
)

const identityKey = "identity"

// Authenticator resolves the caller from a bearer token or a session cookie.
type Authenticator struct {
	resolver *Resolver
	rdb      *redis.Client
	secret   []byte
	cookie   string
	ttl      time.Duration
	secure   bool
	admins   map[string]struct{}
	log      *zap.Logger
}

func NewAuthenticator(resolver *Resolver, rdb *redis.Client, cfg config.AuthConfig, log *zap.Logger) *Authenticator {
	admins := make(map[string]struct{}, len(cfg.AdminFIDs))
	for _, fid := range cfg.AdminFIDs {
		admins[fid] = struct{}{}
	}
	return &Authenticator{
		resolver: resolver,
		rdb:      rdb,
		secret:   []byte(cfg.SessionSecret),
		cookie:   cfg.CookieName,
		ttl:      cfg.SessionTTL,
		secure:   cfg.CookieSecure,
		admins:   admins,
		log:      log,
	}
}

// IdentityFrom returns the identity stored by Identify, or nil.
func IdentityFrom(c *gin.Context) *Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*Identity)
	return id
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// deny writes the error envelope used across the API.
func deny(c *gin.Context, status int, msg, code string) {
	c.Header("Cache-Control", "no-store")
	c.AbortWithStatusJSON(status, gin.H{"ok": false, "error": msg, "code": code})
}

// Identify attaches the caller's identity when credentials are present.
// Requests without credentials, or with a bearer token that fails
// verification, continue with no identity; routes that need one are guarded
// by RequireVerified. A bearer token takes precedence over the session cookie
// even when it is rejected.
func (a *Authenticator) Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			id, err := a.resolver.ResolveUserID(c.Request.Context(), token)
			switch {
			case errors.Is(err, ErrIdentityUnverified):
				a.log.Debug("bearer token rejected", zap.Error(err))
			case err != nil:
				a.log.Error("resolve identity", zap.Error(err))
				deny(c, http.StatusInternalServerError, "internal error", "internal")
				return
			default:
				c.Set(identityKey, id)
			}
			c.Next()
			return
		}

		if raw, err := c.Cookie(a.cookie); err == nil && raw != "" {
			if sid, ok := VerifyCookie(raw, a.secret); ok {
				s, err := GetSession(c.Request.Context(), a.rdb, sid)
				if err != nil {
					a.log.Warn("session lookup failed", zap.Error(err))
				} else if s != nil {
					c.Set(identityKey, s.Identity())
				}
			}
		}
		c.Next()
	}
}

// RequireVerified rejects requests without a verified identity.
func (a *Authenticator) RequireVerified() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IdentityFrom(c).Verified() {
			deny(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects callers whose fid is not in ADMIN_FIDS.
func (a *Authenticator) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := IdentityFrom(c)
		if !id.Verified() {
			deny(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
			return
		}
		if !a.IsAdmin(id) {
			deny(c, http.StatusForbidden, "forbidden", "forbidden")
			return
		}
		c.Next()
	}
}

func (a *Authenticator) IsAdmin(id *Identity) bool {
	if !id.Verified() {
		return false
	}
	_, ok := a.admins[strconv.FormatInt(id.FID, 10)]
	return ok
}

// Login exchanges a bearer token for a session cookie.
func (a *Authenticator) Login(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		deny(c, http.StatusUnauthorized, "missing token", "unauthorized")
		return
	}
	id, err := a.resolver.ResolveUserID(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, ErrIdentityUnverified) {
			deny(c, http.StatusUnauthorized, "invalid token", "unauthorized")
			return
		}
		a.log.Error("resolve identity", zap.Error(err))
		deny(c, http.StatusInternalServerError, "internal error", "internal")
		return
	}

	s := Session{
		ID:        uuid.NewString(),
		UserID:    id.UserID,
		FID:       id.FID,
		Trust:     id.Trust,
		CreatedAt: time.Now().Unix(),
	}
	if err := CreateSession(c.Request.Context(), a.rdb, s, a.ttl); err != nil {
		a.log.Error("create session", zap.Error(err))
		deny(c, http.StatusInternalServerError, "internal error", "internal")
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(a.cookie, SignCookie(s.ID, a.secret), int(a.ttl.Seconds()), "/", "", a.secure, true)
	a.log.Info("session created", zap.String("user", id.UserID), zap.String("trust", string(id.Trust)))
	c.JSON(http.StatusOK, gin.H{"ok": true, "user_id": id.UserID, "trust": id.Trust})
}

// Logout deletes the session and clears the cookie. It always succeeds.
func (a *Authenticator) Logout(c *gin.Context) {
	if raw, err := c.Cookie(a.cookie); err == nil {
		if sid, ok := VerifyCookie(raw, a.secret); ok {
			if err := DeleteSession(c.Request.Context(), a.rdb, sid); err != nil {
				a.log.Warn("delete session", zap.Error(err))
			}
		}
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(a.cookie, "", -1, "/", "", a.secure, true)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
