// Package ledger records consumed fee payments. A transaction hash can be
// recorded once; the primary key on tx_hash is the only guard.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/collabcast/marketplace/internal/db"
	"github.com/collabcast/marketplace/internal/fees"
	"github.com/collabcast/marketplace/internal/models"
)

var (
	ErrDuplicatePayment = errors.New("payment already used")
	ErrNotFound         = errors.New("payment not found")
)

const maxListLimit = 200

type Ledger struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(g *gorm.DB, log *zap.Logger) *Ledger {
	return &Ledger{db: g, log: log}
}

// RecordPayment inserts the payment or fails with ErrDuplicatePayment. The
// insert is a single statement; there is no existence check beforehand.
func (l *Ledger) RecordPayment(ctx context.Context, vp *fees.VerifiedPayment, userID string) (*models.PaymentRecord, error) {
	rec := &models.PaymentRecord{
		TxHash:       vp.TxHash.Hex(),
		Action:       string(vp.Action),
		PayerAddress: strings.ToLower(vp.Payer.Hex()),
		Amount:       vp.Amount.String(),
		BlockNumber:  vp.BlockNumber,
		BlockTime:    vp.BlockTime.UTC(),
		CreatedAt:    time.Now().UTC(),
	}
	if userID != "" {
		rec.UserID = &userID
	}

	res := db.Conn(ctx, l.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "tx_hash"}}, DoNothing: true}).
		Create(rec)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicatePayment
		}
		return nil, fmt.Errorf("record payment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrDuplicatePayment
	}

	l.log.Info("payment recorded",
		zap.String("tx", rec.TxHash),
		zap.String("action", rec.Action),
		zap.String("payer", rec.PayerAddress),
		zap.String("amount", rec.Amount),
	)
	return rec, nil
}

// AssertPaymentNotUsed is an early rejection only; RecordPayment is
// authoritative.
func (l *Ledger) AssertPaymentNotUsed(ctx context.Context, txHash string) error {
	var n int64
	err := db.Conn(ctx, l.db).Model(&models.PaymentRecord{}).
		Where("tx_hash = ?", normalizeHash(txHash)).
		Count(&n).Error
	if err != nil {
		return fmt.Errorf("check payment: %w", err)
	}
	if n > 0 {
		return ErrDuplicatePayment
	}
	return nil
}

func (l *Ledger) GetPayment(ctx context.Context, txHash string) (*models.PaymentRecord, error) {
	var rec models.PaymentRecord
	err := db.Conn(ctx, l.db).Where("tx_hash = ?", normalizeHash(txHash)).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return &rec, nil
}

// ListPayments returns payments newest first. A non-zero before restricts the
// page to rows created strictly earlier.
func (l *Ledger) ListPayments(ctx context.Context, limit int, before time.Time) ([]models.PaymentRecord, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	q := db.Conn(ctx, l.db).Order("created_at DESC").Limit(limit)
	if !before.IsZero() {
		q = q.Where("created_at < ?", before.UTC())
	}
	var recs []models.PaymentRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return recs, nil
}

func normalizeHash(txHash string) string {
	return strings.ToLower(strings.TrimSpace(txHash))
}
