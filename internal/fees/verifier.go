package fees

import (
	"context"
	"errors"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/collabcast/marketplace/internal/chain"
	"github.com/collabcast/marketplace/internal/config"
	"github.com/collabcast/marketplace/internal/metrics"
)

// Verifier checks fee payments against the configured contract.
type Verifier struct {
	client  *chain.Client // nil when no fee contract is configured
	token   *common.Address
	metrics metrics.Recorder
	log     *zap.Logger
}

func NewVerifier(client *chain.Client, cfg *config.Config, rec metrics.Recorder, log *zap.Logger) *Verifier {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Verifier{
		client:  client,
		token:   configuredToken(cfg),
		metrics: rec,
		log:     log,
	}
}

// VerifyPostingFeePayment confirms txHash paid the fee for expected. Every
// failure is a *PaymentError. There are no retries: the whole call is bounded
// by the chain RPC timeout and a timeout fails closed.
func (v *Verifier) VerifyPostingFeePayment(ctx context.Context, txHash string, expected Action) (*VerifiedPayment, error) {
	start := time.Now()
	vp, err := v.verify(ctx, txHash, expected)

	outcome := "ok"
	if err != nil {
		outcome = string(ReasonOf(err))
		v.log.Warn("payment rejected",
			zap.String("tx", txHash),
			zap.String("action", string(expected)),
			zap.String("reason", outcome),
			zap.Error(err),
		)
	} else {
		v.log.Info("payment verified",
			zap.String("tx", vp.TxHash.Hex()),
			zap.String("payer", vp.Payer.Hex()),
			zap.String("action", string(vp.Action)),
			zap.String("amount", vp.Amount.String()),
			zap.Uint64("block", vp.BlockNumber),
		)
	}
	v.metrics.IncCounter(metrics.PaymentVerify, map[string]string{"action": string(expected), "outcome": outcome})
	v.metrics.ObserveLatency(metrics.PaymentVerify, time.Since(start), map[string]string{"outcome": outcome})
	return vp, err
}

func (v *Verifier) verify(ctx context.Context, txHash string, expected Action) (*VerifiedPayment, error) {
	if v.client == nil {
		return nil, newPaymentError(ReasonNotConfigured, "fee contract not configured", nil)
	}
	hash, err := ParseTxHash(txHash)
	if err != nil {
		return nil, newPaymentError(ReasonInvalidTxHash, "malformed transaction hash", err)
	}
	if !expected.Valid() {
		return nil, newPaymentError(ReasonActionMismatch, "unknown posting action "+string(expected), nil)
	}

	ctx, cancel := context.WithTimeout(ctx, v.client.Timeout())
	defer cancel()

	receipt, err := v.client.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, newPaymentError(ReasonTransactionNotFound, "transaction not found", nil)
		}
		return nil, newPaymentError(ReasonChainUnavailable, "fetch receipt", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, newPaymentError(ReasonTransactionFailed, "transaction not successful", nil)
	}

	feeLog := v.findFeeLog(receipt.Logs)
	if feeLog == nil {
		return nil, newPaymentError(ReasonEventNotFound, "fee event not found", nil)
	}

	ev, err := v.client.ParseFeePaid(*feeLog)
	if err != nil {
		return nil, newPaymentError(ReasonInvalidEvent, "invalid fee event", err)
	}
	if Action(ev.Action) != expected {
		return nil, newPaymentError(ReasonActionMismatch, "payment action mismatch: paid for "+ev.Action+", expected "+string(expected), nil)
	}
	if ev.Amount == nil || ev.Amount.Sign() <= 0 {
		return nil, newPaymentError(ReasonInvalidAmount, "invalid payment amount", nil)
	}

	if v.token != nil {
		token, err := v.client.TokenAddress(ctx)
		if err != nil {
			return nil, newPaymentError(ReasonChainUnavailable, "read fee token", err)
		}
		if token != *v.token {
			return nil, newPaymentError(ReasonTokenMismatch, "fee contract charges "+token.Hex()+", expected "+v.token.Hex(), nil)
		}
	}

	blockNumber := receipt.BlockNumber
	if blockNumber == nil {
		return nil, newPaymentError(ReasonChainUnavailable, "receipt has no block number", nil)
	}
	blockTime, err := v.client.BlockTime(ctx, blockNumber)
	if err != nil {
		return nil, newPaymentError(ReasonChainUnavailable, "fetch block", err)
	}

	return &VerifiedPayment{
		TxHash:      hash,
		Payer:       ev.Payer,
		Action:      expected,
		Amount:      ev.Amount,
		BlockNumber: blockNumber.Uint64(),
		BlockTime:   blockTime,
	}, nil
}

// findFeeLog returns the fee contract's FeePaid log, or failing that its first
// log so a wrong-shaped event is reported as such.
func (v *Verifier) findFeeLog(logs []*types.Log) *types.Log {
	contract := v.client.ContractAddress()
	topic := chain.FeePaidTopic()
	var first *types.Log
	for _, l := range logs {
		if l == nil || l.Removed || l.Address != contract {
			continue
		}
		if len(l.Topics) > 0 && l.Topics[0] == topic {
			return l
		}
		if first == nil {
			first = l
		}
	}
	return first
}
