// Package api is the HTTP surface of the marketplace.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/collabcast/marketplace/internal/auth"
	"github.com/collabcast/marketplace/internal/fees"
	"github.com/collabcast/marketplace/internal/ledger"
	"github.com/collabcast/marketplace/internal/market"
	"github.com/collabcast/marketplace/internal/posting"
)

// Handler wires up all marketplace routes onto a Gin engine.
type Handler struct {
	fees   *fees.Reader
	gate   *posting.Gate
	store  *market.Store
	ledger *ledger.Ledger
	auth   *auth.Authenticator
	log    *zap.Logger
}

func NewHandler(reader *fees.Reader, gate *posting.Gate, store *market.Store, l *ledger.Ledger, a *auth.Authenticator, log *zap.Logger) *Handler {
	return &Handler{fees: reader, gate: gate, store: store, ledger: l, auth: a, log: log}
}

// Register mounts all routes. The authenticator's Identify middleware should
// already be applied to the group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	verified := h.auth.RequireVerified()

	// ── Fees ───────────────────────────────────────────────────────────────
	rg.GET("/fees", h.handleFees)

	// ── Sessions ───────────────────────────────────────────────────────────
	rg.POST("/auth/quick", h.auth.Login)
	rg.DELETE("/auth/session", h.auth.Logout)
	rg.GET("/me", h.handleMe)

	// ── Projects ───────────────────────────────────────────────────────────
	rg.GET("/projects", h.handleListProjects)
	rg.GET("/projects/:id", h.handleGetProject)
	rg.POST("/projects", verified, h.handleCreateProject)
	rg.PATCH("/projects/:id", verified, h.handleUpdateProject)

	// ── Interests ──────────────────────────────────────────────────────────
	rg.POST("/projects/:id/interest", verified, h.handleExpressInterest)
	rg.GET("/interests/:id", verified, h.handleGetInterest)
	rg.PATCH("/interests/:id", verified, h.handleUpdateInterest)
	rg.DELETE("/interests/:id", verified, h.handleDeleteInterest)
	rg.POST("/interests/:id/accept", verified, h.handleAcceptInterest)
	rg.GET("/inbox", verified, h.handleInbox)

	// ── Profiles ───────────────────────────────────────────────────────────
	rg.GET("/profile", verified, h.handleGetProfile)
	rg.POST("/profile", verified, h.handleSaveProfile)
	rg.GET("/collaborators", h.handleListCollaborators)

	// ── Payments ───────────────────────────────────────────────────────────
	rg.GET("/payments/:tx", verified, h.handleGetPayment)
	rg.GET("/admin/payments", h.auth.RequireAdmin(), h.handleListPayments)
}

// Health answers liveness checks. It pings the database when one is given.
func Health(g *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if g != nil {
			sqlDB, err := g.DB()
			if err == nil {
				err = sqlDB.PingContext(c.Request.Context())
			}
			if err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "database unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// ── Fees ────────────────────────────────────────────────────────────────────

func (h *Handler) handleFees(c *gin.Context) {
	cfg, err := h.fees.GetFeeConfig(c.Request.Context())
	if err != nil {
		h.log.Warn("fee config unavailable", zap.Error(err))
		abort(c, http.StatusServiceUnavailable, "chain_unavailable", "fee configuration unavailable", nil)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{"ok": true, "fees": newFeesView(cfg, h.fees.Decimals())})
}

// ── Me ──────────────────────────────────────────────────────────────────────

func (h *Handler) handleMe(c *gin.Context) {
	id := auth.IdentityFrom(c)
	if id == nil {
		abort(c, http.StatusUnauthorized, "unauthorized", "unauthorized", nil)
		return
	}
	resp := gin.H{
		"ok":      true,
		"user_id": id.UserID,
		"trust":   id.Trust,
		"admin":   h.auth.IsAdmin(id),
	}
	if id.Verified() {
		if u, err := h.store.GetUser(c.Request.Context(), id.UserID); err == nil {
			resp["user"] = newUserView(u)
		}
		_, err := h.store.GetProfile(c.Request.Context(), id.UserID)
		resp["has_profile"] = err == nil
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, resp)
}
