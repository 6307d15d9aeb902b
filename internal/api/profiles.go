package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/collabcast/marketplace/internal/auth"
	"github.com/collabcast/marketplace/internal/fees"
	"github.com/collabcast/marketplace/internal/market"
	"github.com/collabcast/marketplace/internal/models"
	"github.com/collabcast/marketplace/internal/posting"
)

type saveProfileRequest struct {
	market.ProfileInput
	PaymentTx string `json:"payment_tx"`
}

func (h *Handler) handleGetProfile(c *gin.Context) {
	id := auth.IdentityFrom(c)
	p, err := h.store.GetProfile(c.Request.Context(), id.UserID)
	if errors.Is(err, market.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "profile": nil})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "profile": newProfileView(p)})
}

// handleSaveProfile creates the caller's profile behind the posting fee, or
// updates an existing one for free.
func (h *Handler) handleSaveProfile(c *gin.Context) {
	id := auth.IdentityFrom(c)
	ctx := c.Request.Context()

	var req saveProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := market.ValidateProfile(&req.ProfileInput); err != nil {
		h.respondError(c, err)
		return
	}

	// ── Update ─────────────────────────────────────────────────────────────
	_, err := h.store.GetProfile(ctx, id.UserID)
	switch {
	case err == nil:
		p, err := h.store.UpdateProfile(ctx, id.UserID, req.ProfileInput)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "profile": newProfileView(p), "created": false})
		return
	case !errors.Is(err, market.ErrNotFound):
		h.respondError(c, err)
		return
	}

	// ── Create (gated) ─────────────────────────────────────────────────────
	var created *models.CollaboratorProfile
	res, err := h.gate.Post(ctx, posting.Request{
		Action:         fees.ActionProfile,
		ExpectedAction: fees.ActionProfile,
		TxHash:         req.PaymentTx,
		UserID:         id.UserID,
	}, func(ctx context.Context, vp *fees.VerifiedPayment) error {
		p, err := h.store.CreateProfile(ctx, id.UserID, req.ProfileInput, paymentTxOf(vp))
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

	resp := gin.H{"ok": true, "profile": newProfileView(created), "created": true}
	if res.Record != nil {
		resp["payment"] = newPaymentView(res.Record, h.fees.Decimals())
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) handleListCollaborators(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.store.ListProfiles(c.Request.Context(), market.ProfileFilter{
		Q:      c.Query("q"),
		Type:   c.Query("type"),
		Skills: splitQuery(c.Query("skills")),
		Limit:  limit,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	out := make([]profileView, 0, len(list))
	for i := range list {
		out = append(out, newProfileView(&list[i]))
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "collaborators": out})
}
