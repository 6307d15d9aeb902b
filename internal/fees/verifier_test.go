package fees

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/collabcast/marketplace/internal/chain"
	"github.com/collabcast/marketplace/internal/chain/chaintest"
)

func newTestVerifier(t *testing.T) (*chaintest.Backend, *Verifier) {
	t.Helper()
	node, client := newTestNode(t)
	return node, NewVerifier(client, testConfig(), nil, zap.NewNop())
}

func expectReason(t *testing.T, err error, want Reason) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil error", want)
	}
	var pe *PaymentError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PaymentError, got %T: %v", err, err)
	}
	if pe.Reason != want {
		t.Fatalf("reason: got %s want %s (%v)", pe.Reason, want, err)
	}
}

func TestVerify_ValidPayment(t *testing.T) {
	node, v := newTestVerifier(t)
	hash := node.AddFeePayment(feeContract, payer, "project", big.NewInt(1_000_000))

	vp, err := v.VerifyPostingFeePayment(context.Background(), hash.Hex(), ActionProject)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if vp.TxHash != hash {
		t.Errorf("tx hash: got %s want %s", vp.TxHash.Hex(), hash.Hex())
	}
	if vp.Payer != payer {
		t.Errorf("payer: got %s want %s", vp.Payer.Hex(), payer.Hex())
	}
	if vp.Action != ActionProject {
		t.Errorf("action: got %s", vp.Action)
	}
	if vp.Amount.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Errorf("amount: got %s", vp.Amount)
	}
	wantTime := time.Unix(int64(chaintest.BlockTimestamp(vp.BlockNumber)), 0).UTC()
	if !vp.BlockTime.Equal(wantTime) {
		t.Errorf("block time: got %v want %v", vp.BlockTime, wantTime)
	}
}

func TestVerify_UppercaseHashNormalized(t *testing.T) {
	node, v := newTestVerifier(t)
	hash := node.AddFeePayment(feeContract, payer, "profile", big.NewInt(1))

	upper := "0X" + common.Bytes2Hex(hash.Bytes())
	vp, err := v.VerifyPostingFeePayment(context.Background(), upper, ActionProfile)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if vp.TxHash.Hex() != hash.Hex() {
		t.Errorf("got %s want %s", vp.TxHash.Hex(), hash.Hex())
	}
}

func TestVerify_ActionMismatch(t *testing.T) {
	node, v := newTestVerifier(t)
	hash := node.AddFeePayment(feeContract, payer, "profile", big.NewInt(1_000_000))

	_, err := v.VerifyPostingFeePayment(context.Background(), hash.Hex(), ActionProject)
	expectReason(t, err, ReasonActionMismatch)
}

func TestVerify_UnknownExpectedAction(t *testing.T) {
	node, v := newTestVerifier(t)
	hash := node.AddFeePayment(feeContract, payer, "banner", big.NewInt(1_000_000))

	_, err := v.VerifyPostingFeePayment(context.Background(), hash.Hex(), Action("banner"))
	expectReason(t, err, ReasonActionMismatch)
}

func TestVerify_NotConfigured(t *testing.T) {
	v := NewVerifier(nil, testConfig(), nil, zap.NewNop())
	_, err := v.VerifyPostingFeePayment(context.Background(), common.Hash{1}.Hex(), ActionProject)
	expectReason(t, err, ReasonNotConfigured)
}

func TestVerify_NotConfiguredBeforeInputChecks(t *testing.T) {
	v := NewVerifier(nil, testConfig(), nil, zap.NewNop())
	_, err := v.VerifyPostingFeePayment(context.Background(), "0xnothex", ActionProject)
	expectReason(t, err, ReasonNotConfigured)
	_, err = v.VerifyPostingFeePayment(context.Background(), common.Hash{1}.Hex(), Action("banner"))
	expectReason(t, err, ReasonNotConfigured)
}

func TestVerify_InvalidHash(t *testing.T) {
	_, v := newTestVerifier(t)
	for _, h := range []string{"", "0xabc", "abc" + common.Hash{}.Hex()[2:], "0x" + string(make([]byte, 64))} {
		_, err := v.VerifyPostingFeePayment(context.Background(), h, ActionProject)
		expectReason(t, err, ReasonInvalidTxHash)
	}
}

func TestVerify_TransactionNotFound(t *testing.T) {
	_, v := newTestVerifier(t)
	_, err := v.VerifyPostingFeePayment(context.Background(), common.HexToHash("0xabc").Hex(), ActionProject)
	expectReason(t, err, ReasonTransactionNotFound)
}

func TestVerify_TransactionFailed(t *testing.T) {
	node, v := newTestVerifier(t)
	hash := node.AddReceipt(types.ReceiptStatusFailed,
		node.FeePaidLog(feeContract, payer, "project", big.NewInt(1_000_000)))

	_, err := v.VerifyPostingFeePayment(context.Background(), hash.Hex(), ActionProject)
	expectReason(t, err, ReasonTransactionFailed)
}

func TestVerify_EventFromOtherContract(t *testing.T) {
	node, v := newTestVerifier(t)
	other := common.HexToAddress("0x00000000000000000000000000000000deadbeef")
	hash := node.AddFeePayment(other, payer, "project", big.NewInt(1_000_000))

	_, err := v.VerifyPostingFeePayment(context.Background(), hash.Hex(), ActionProject)
	expectReason(t, err, ReasonEventNotFound)
}

func TestVerify_RemovedLogIgnored(t *testing.T) {
	node, v := newTestVerifier(t)
	l := node.FeePaidLog(feeContract, payer, "project", big.NewInt(1_000_000))
	l.Removed = true
	hash := node.AddReceipt(types.ReceiptStatusSuccessful, l)

	_, err := v.VerifyPostingFeePayment(context.Background(), hash.Hex(), ActionProject)
	expectReason(t, err, ReasonEventNotFound)
}

func withdrawnLog(t *testing.T) *types.Log {
	t.Helper()
	parsed, err := chain.PostingFeeMetaData.GetAbi()
	if err != nil {
		t.Fatal(err)
	}
	ev := parsed.Events["FeesWithdrawn"]
	data, err := ev.Inputs.NonIndexed().Pack(big.NewInt(5))
	if err != nil {
		t.Fatal(err)
	}
	return &types.Log{
		Address: feeContract,
		Topics:  []common.Hash{ev.ID, common.BytesToHash(payer.Bytes())},
		Data:    data,
	}
}

func TestVerify_WrongEventShape(t *testing.T) {
	node, v := newTestVerifier(t)
	hash := node.AddReceipt(types.ReceiptStatusSuccessful, withdrawnLog(t))

	_, err := v.VerifyPostingFeePayment(context.Background(), hash.Hex(), ActionProject)
	expectReason(t, err, ReasonInvalidEvent)
}

func TestVerify_PrefersFeePaidLog(t *testing.T) {
	node, v := newTestVerifier(t)
	hash := node.AddReceipt(types.ReceiptStatusSuccessful,
		withdrawnLog(t),
		node.FeePaidLog(feeContract, payer, "project", big.NewInt(7)),
	)

	vp, err := v.VerifyPostingFeePayment(context.Background(), hash.Hex(), ActionProject)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if vp.Amount.Int64() != 7 {
		t.Errorf("amount: got %s want 7", vp.Amount)
	}
}

func TestVerify_CorruptEventData(t *testing.T) {
	node, v := newTestVerifier(t)
	l := node.FeePaidLog(feeContract, payer, "project", big.NewInt(1))
	l.Data = l.Data[:10]
	hash := node.AddReceipt(types.ReceiptStatusSuccessful, l)

	_, err := v.VerifyPostingFeePayment(context.Background(), hash.Hex(), ActionProject)
	expectReason(t, err, ReasonInvalidEvent)
}

func TestVerify_ZeroAmount(t *testing.T) {
	node, v := newTestVerifier(t)
	hash := node.AddFeePayment(feeContract, payer, "project", big.NewInt(0))

	_, err := v.VerifyPostingFeePayment(context.Background(), hash.Hex(), ActionProject)
	expectReason(t, err, ReasonInvalidAmount)
}

func TestVerify_TokenMismatch(t *testing.T) {
	node, v := newTestVerifier(t)
	node.Token = common.HexToAddress("0x0000000000000000000000000000000000000bad")
	hash := node.AddFeePayment(feeContract, payer, "project", big.NewInt(1_000_000))

	_, err := v.VerifyPostingFeePayment(context.Background(), hash.Hex(), ActionProject)
	expectReason(t, err, ReasonTokenMismatch)
}

func TestVerify_TokenCheckSkippedWhenUnset(t *testing.T) {
	node, client := newTestNode(t)
	node.Token = common.HexToAddress("0x0000000000000000000000000000000000000bad")
	cfg := testConfig()
	cfg.Chain.TokenAddress = ""
	v := NewVerifier(client, cfg, nil, zap.NewNop())
	hash := node.AddFeePayment(feeContract, payer, "project", big.NewInt(1_000_000))

	if _, err := v.VerifyPostingFeePayment(context.Background(), hash.Hex(), ActionProject); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerify_ChainUnavailable(t *testing.T) {
	t.Run("receipt", func(t *testing.T) {
		node, v := newTestVerifier(t)
		hash := node.AddFeePayment(feeContract, payer, "project", big.NewInt(1))
		node.ReceiptErr = context.DeadlineExceeded
		_, err := v.VerifyPostingFeePayment(context.Background(), hash.Hex(), ActionProject)
		expectReason(t, err, ReasonChainUnavailable)
	})
	t.Run("token read", func(t *testing.T) {
		node, v := newTestVerifier(t)
		hash := node.AddFeePayment(feeContract, payer, "project", big.NewInt(1))
		node.CallErr = errors.New("connection reset")
		_, err := v.VerifyPostingFeePayment(context.Background(), hash.Hex(), ActionProject)
		expectReason(t, err, ReasonChainUnavailable)
	})
	t.Run("header", func(t *testing.T) {
		node, v := newTestVerifier(t)
		hash := node.AddFeePayment(feeContract, payer, "project", big.NewInt(1))
		node.HeaderErr = errors.New("502 bad gateway")
		_, err := v.VerifyPostingFeePayment(context.Background(), hash.Hex(), ActionProject)
		expectReason(t, err, ReasonChainUnavailable)
	})
}
