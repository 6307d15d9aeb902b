// Package posting runs privileged writes behind the posting fee.
package posting

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/collabcast/marketplace/internal/db"
	"github.com/collabcast/marketplace/internal/fees"
	"github.com/collabcast/marketplace/internal/ledger"
	"github.com/collabcast/marketplace/internal/metrics"
	"github.com/collabcast/marketplace/internal/models"
)

var (
	ErrPaymentRequired           = errors.New("payment required")
	ErrConflict                  = errors.New("payment already used")
	ErrPaymentVerificationFailed = errors.New("payment verification failed")
	ErrWriteFailed               = errors.New("write failed")
)

// VerificationError carries the verifier's rejection. It matches
// ErrPaymentVerificationFailed and unwraps to the *fees.PaymentError.
type VerificationError struct {
	Err *fees.PaymentError
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%v: %v", ErrPaymentVerificationFailed, e.Err)
}

func (e *VerificationError) Is(target error) bool { return target == ErrPaymentVerificationFailed }
func (e *VerificationError) Unwrap() error        { return e.Err }

// WriteError wraps the caller's write error. It matches ErrWriteFailed and
// unwraps to the original so validation errors surface unchanged.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string        { return fmt.Sprintf("%v: %v", ErrWriteFailed, e.Err) }
func (e *WriteError) Is(target error) bool { return target == ErrWriteFailed }
func (e *WriteError) Unwrap() error        { return e.Err }

// FeeReader is satisfied by *fees.Reader.
type FeeReader interface {
	ReadFeeConfig(ctx context.Context) (fees.FeeConfig, error)
}

// PaymentVerifier is satisfied by *fees.Verifier.
type PaymentVerifier interface {
	VerifyPostingFeePayment(ctx context.Context, txHash string, expected fees.Action) (*fees.VerifiedPayment, error)
}

// PaymentLedger is satisfied by *ledger.Ledger.
type PaymentLedger interface {
	AssertPaymentNotUsed(ctx context.Context, txHash string) error
	RecordPayment(ctx context.Context, vp *fees.VerifiedPayment, userID string) (*models.PaymentRecord, error)
}

// WriteFunc performs the entity write. payment is nil when fees are disabled.
// It runs inside the transaction that recorded the payment; stores must use
// the context it receives.
type WriteFunc func(ctx context.Context, payment *fees.VerifiedPayment) error

type Request struct {
	Action         fees.Action
	ExpectedAction fees.Action
	TxHash         string
	UserID         string
}

type Result struct {
	// Payment and Record are nil when fees were disabled.
	Payment *fees.VerifiedPayment
	Record  *models.PaymentRecord
}

type Gate struct {
	db       *gorm.DB
	reader   FeeReader
	verifier PaymentVerifier
	ledger   PaymentLedger
	metrics  metrics.Recorder
	log      *zap.Logger
}

func NewGate(g *gorm.DB, reader FeeReader, verifier PaymentVerifier, l PaymentLedger, rec metrics.Recorder, log *zap.Logger) *Gate {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Gate{db: g, reader: reader, verifier: verifier, ledger: l, metrics: rec, log: log}
}

// Post runs write if the request carries a valid, unused fee payment, or
// directly when fees are disabled. When a payment is required the ledger
// insert and the write commit together or not at all.
func (g *Gate) Post(ctx context.Context, req Request, write WriteFunc) (*Result, error) {
	res, err := g.post(ctx, req, write)
	g.metrics.IncCounter(metrics.GateOutcome, map[string]string{
		"action":  string(req.ExpectedAction),
		"outcome": outcome(err),
	})
	return res, err
}

func (g *Gate) post(ctx context.Context, req Request, write WriteFunc) (*Result, error) {
	if req.Action != req.ExpectedAction || !req.ExpectedAction.Valid() {
		return nil, &VerificationError{Err: &fees.PaymentError{
			Reason:  fees.ReasonActionMismatch,
			Message: fmt.Sprintf("action %q does not match expected %q", req.Action, req.ExpectedAction),
		}}
	}

	// ── ReadConfig ───────────────────────────────────────────────────────
	cfg, err := g.reader.ReadFeeConfig(ctx)
	if err != nil {
		return nil, &VerificationError{Err: &fees.PaymentError{
			Reason:  fees.ReasonChainUnavailable,
			Message: "fee configuration unavailable",
			Cause:   err,
		}}
	}
	if !cfg.Enabled {
		if err := db.Transact(ctx, g.db, func(ctx context.Context) error { return write(ctx, nil) }); err != nil {
			return nil, &WriteError{Err: err}
		}
		return &Result{}, nil
	}

	// ── RequireTxHash ────────────────────────────────────────────────────
	txHash := strings.TrimSpace(req.TxHash)
	if txHash == "" {
		return nil, ErrPaymentRequired
	}
	if err := g.ledger.AssertPaymentNotUsed(ctx, txHash); err != nil {
		if errors.Is(err, ledger.ErrDuplicatePayment) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("check payment: %w", err)
	}

	// ── VerifyPayment ────────────────────────────────────────────────────
	vp, err := g.verifier.VerifyPostingFeePayment(ctx, txHash, req.ExpectedAction)
	if err != nil {
		var pe *fees.PaymentError
		if errors.As(err, &pe) {
			return nil, &VerificationError{Err: pe}
		}
		return nil, &VerificationError{Err: &fees.PaymentError{Reason: fees.ReasonChainUnavailable, Message: "verify payment", Cause: err}}
	}

	// ── RecordPayment + PerformWrite ─────────────────────────────────────
	var rec *models.PaymentRecord
	var writeErr error
	err = db.Transact(ctx, g.db, func(ctx context.Context) error {
		r, err := g.ledger.RecordPayment(ctx, vp, req.UserID)
		if err != nil {
			return err
		}
		if err := write(ctx, vp); err != nil {
			writeErr = err
			return err
		}
		rec = r
		return nil
	})
	switch {
	case err == nil:
	case writeErr != nil:
		g.log.Warn("post write failed, payment left unconsumed",
			zap.String("tx", vp.TxHash.Hex()),
			zap.String("action", string(req.ExpectedAction)),
			zap.Error(writeErr),
		)
		return nil, &WriteError{Err: writeErr}
	case errors.Is(err, ledger.ErrDuplicatePayment):
		return nil, ErrConflict
	default:
		return nil, fmt.Errorf("record payment: %w", err)
	}

	g.log.Info("paid post written",
		zap.String("tx", rec.TxHash),
		zap.String("action", rec.Action),
		zap.String("user", req.UserID),
	)
	return &Result{Payment: vp, Record: rec}, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "written"
	case errors.Is(err, ErrPaymentRequired):
		return "payment_required"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrPaymentVerificationFailed):
		return "verification_failed"
	case errors.Is(err, ErrWriteFailed):
		return "write_failed"
	}
	return "error"
}
