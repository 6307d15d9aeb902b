package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/collabcast/marketplace/internal/auth"
	"github.com/collabcast/marketplace/internal/fees"
	"github.com/collabcast/marketplace/internal/ledger"
)

// handleGetPayment returns a consumed payment to the user it was recorded for,
// or to an admin. Anyone else gets 404.
func (h *Handler) handleGetPayment(c *gin.Context) {
	id := auth.IdentityFrom(c)
	hash, err := fees.ParseTxHash(c.Param("tx"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	rec, err := h.ledger.GetPayment(c.Request.Context(), hash.Hex())
	if err != nil {
		h.respondError(c, err)
		return
	}
	owner := rec.UserID != nil && *rec.UserID == id.UserID
	if !owner && !h.auth.IsAdmin(id) {
		h.respondError(c, ledger.ErrNotFound)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{"ok": true, "payment": newPaymentView(rec, h.fees.Decimals())})
}

// handleListPayments pages through the ledger, newest first. before is an
// RFC 3339 timestamp taken from the previous page's last created_at.
func (h *Handler) handleListPayments(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	var before time.Time
	if s := c.Query("before"); s != "" {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			badRequest(c, "before must be an RFC 3339 timestamp")
			return
		}
		before = t
	}
	recs, err := h.ledger.ListPayments(c.Request.Context(), limit, before)
	if err != nil {
		h.respondError(c, err)
		return
	}
	out := make([]paymentView, 0, len(recs))
	for i := range recs {
		out = append(out, newPaymentView(&recs[i], h.fees.Decimals()))
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{"ok": true, "payments": out})
}
