package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/collabcast/marketplace/internal/fees"
	"github.com/collabcast/marketplace/internal/ledger"
	"github.com/collabcast/marketplace/internal/market"
	"github.com/collabcast/marketplace/internal/posting"
)

// abort writes the error envelope {ok:false, error, code} plus extra fields.
func abort(c *gin.Context, status int, code, msg string, extra gin.H) {
	body := gin.H{"ok": false, "error": msg, "code": code}
	for k, v := range extra {
		body[k] = v
	}
	c.Header("Cache-Control", "no-store")
	c.AbortWithStatusJSON(status, body)
}

// respondError maps gate, store and validation errors onto HTTP responses.
func (h *Handler) respondError(c *gin.Context, err error) {
	var verr *market.ValidationError
	var perr *posting.VerificationError
	switch {
	case errors.As(err, &verr):
		abort(c, http.StatusBadRequest, "validation", "invalid input", gin.H{"fields": verr.Fields})

	case errors.Is(err, posting.ErrPaymentRequired):
		abort(c, http.StatusPaymentRequired, "payment_required", "a posting fee payment is required", nil)
	case errors.Is(err, posting.ErrConflict):
		abort(c, http.StatusConflict, "payment_used", "this payment has already been used", nil)
	case errors.As(err, &perr):
		if perr.Err.Reason == fees.ReasonChainUnavailable {
			abort(c, http.StatusServiceUnavailable, "chain_unavailable", "payment could not be verified right now, retry with the same transaction", nil)
			return
		}
		abort(c, http.StatusBadRequest, "payment_failed", perr.Err.Message, gin.H{"reason": perr.Err.Reason})

	case errors.Is(err, market.ErrProfileExists):
		abort(c, http.StatusConflict, "profile_exists", "profile already exists", nil)
	case errors.Is(err, market.ErrOwnProject):
		abort(c, http.StatusBadRequest, "own_project", "cannot express interest in your own project", nil)
	case errors.Is(err, market.ErrProjectArchived):
		abort(c, http.StatusConflict, "project_archived", "project is archived", nil)
	case errors.Is(err, market.ErrInterestExists):
		abort(c, http.StatusConflict, "interest_exists", "interest already sent", nil)
	case errors.Is(err, market.ErrNotFound), errors.Is(err, ledger.ErrNotFound):
		abort(c, http.StatusNotFound, "not_found", "not found", nil)
	case errors.Is(err, market.ErrForbidden):
		abort(c, http.StatusForbidden, "forbidden", "forbidden", nil)

	default:
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		abort(c, http.StatusInternalServerError, "internal", "internal error", nil)
	}
}

func badRequest(c *gin.Context, msg string) {
	abort(c, http.StatusBadRequest, "bad_request", msg, nil)
}
