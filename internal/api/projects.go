package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/collabcast/marketplace/internal/auth"
	"github.com/collabcast/marketplace/internal/fees"
	"github.com/collabcast/marketplace/internal/market"
	"github.com/collabcast/marketplace/internal/models"
	"github.com/collabcast/marketplace/internal/posting"
)

type createProjectRequest struct {
	market.ProjectInput
	PaymentTx string `json:"payment_tx"`
}

// ── List / get ──────────────────────────────────────────────────────────────

func (h *Handler) handleListProjects(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.store.ListProjects(c.Request.Context(), market.ProjectFilter{
		Q:      c.Query("q"),
		Type:   c.Query("type"),
		Skills: splitQuery(c.Query("skills")),
		Status: c.Query("status"),
		Limit:  limit,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	out := make([]projectView, 0, len(list))
	for i := range list {
		out = append(out, newProjectView(&list[i]))
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "projects": out})
}

func (h *Handler) handleGetProject(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.respondError(c, market.ErrNotFound)
		return
	}
	p, err := h.store.GetProject(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": newProjectView(p)})
}

// ── Create (gated) ──────────────────────────────────────────────────────────

func (h *Handler) handleCreateProject(c *gin.Context) {
	id := auth.IdentityFrom(c)

	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	// Reject bad input before any chain call.
	if err := market.ValidateProject(&req.ProjectInput); err != nil {
		h.respondError(c, err)
		return
	}

	var created *models.Project
	res, err := h.gate.Post(c.Request.Context(), posting.Request{
		Action:         fees.ActionProject,
		ExpectedAction: fees.ActionProject,
		TxHash:         req.PaymentTx,
		UserID:         id.UserID,
	}, func(ctx context.Context, vp *fees.VerifiedPayment) error {
		p, err := h.store.CreateProject(ctx, id.UserID, req.ProjectInput, paymentTxOf(vp))
		if err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := gin.H{"ok": true, "project": newProjectView(created)}
	if res.Record != nil {
		resp["payment"] = newPaymentView(res.Record, h.fees.Decimals())
	}
	c.JSON(http.StatusCreated, resp)
}

// ── Update ──────────────────────────────────────────────────────────────────

func (h *Handler) handleUpdateProject(c *gin.Context) {
	id := auth.IdentityFrom(c)
	pid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.respondError(c, market.ErrNotFound)
		return
	}
	var upd market.ProjectUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	p, err := h.store.UpdateProject(c.Request.Context(), pid, id.UserID, upd)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": newProjectView(p)})
}

// ── Helpers ─────────────────────────────────────────────────────────────────

// paymentTxOf is the lowercase hash stored on the entity, nil when no fee was paid.
func paymentTxOf(vp *fees.VerifiedPayment) *string {
	if vp == nil {
		return nil
	}
	s := strings.ToLower(vp.TxHash.Hex())
	return &s
}

func splitQuery(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
