package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/collabcast/marketplace/internal/auth"
	"github.com/collabcast/marketplace/internal/market"
)

// ── Send ────────────────────────────────────────────────────────────────────

func (h *Handler) handleExpressInterest(c *gin.Context) {
	id := auth.IdentityFrom(c)
	pid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.respondError(c, market.ErrNotFound)
		return
	}
	// The body is optional.
	var in market.InterestInput
	if err := c.ShouldBindJSON(&in); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid request body")
		return
	}
	i, err := h.store.ExpressInterest(c.Request.Context(), pid, id.UserID, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.log.Info("interest sent",
		zap.String("interest", i.ID.String()),
		zap.String("project", pid.String()),
		zap.String("from", id.UserID),
	)
	c.JSON(http.StatusCreated, gin.H{"ok": true, "interest": newInterestView(i)})
}

// ── Read / act ──────────────────────────────────────────────────────────────

func (h *Handler) handleGetInterest(c *gin.Context) {
	iid, ok := interestID(c)
	if !ok {
		h.respondError(c, market.ErrNotFound)
		return
	}
	i, err := h.store.GetInterest(c.Request.Context(), iid, auth.IdentityFrom(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "interest": newInterestView(i)})
}

func (h *Handler) handleAcceptInterest(c *gin.Context) {
	iid, ok := interestID(c)
	if !ok {
		h.respondError(c, market.ErrNotFound)
		return
	}
	i, err := h.store.AcceptInterest(c.Request.Context(), iid, auth.IdentityFrom(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "interest": newInterestView(i)})
}

func (h *Handler) handleUpdateInterest(c *gin.Context) {
	iid, ok := interestID(c)
	if !ok {
		h.respondError(c, market.ErrNotFound)
		return
	}
	var upd market.InterestStatusUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	i, err := h.store.SetInterestStatus(c.Request.Context(), iid, auth.IdentityFrom(c).UserID, upd)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "interest": newInterestView(i)})
}

func (h *Handler) handleDeleteInterest(c *gin.Context) {
	iid, ok := interestID(c)
	if !ok {
		h.respondError(c, market.ErrNotFound)
		return
	}
	if err := h.store.DeleteInterest(c.Request.Context(), iid, auth.IdentityFrom(c).UserID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ── Inbox ───────────────────────────────────────────────────────────────────

func (h *Handler) handleInbox(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.store.Inbox(c.Request.Context(), auth.IdentityFrom(c).UserID, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	out := make([]interestView, 0, len(list))
	for i := range list {
		out = append(out, newInterestView(&list[i]))
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{"ok": true, "items": out})
}

func interestID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	return id, err == nil
}
