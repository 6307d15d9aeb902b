// cmd/verifytx checks that a transaction paid the posting fee for an action
// and prints the decoded payment. With --ledger it also reports whether the
// payment has already been consumed.
//
// Usage:
//
//	go run ./cmd/verifytx/ --tx 0x... --action project
//	go run ./cmd/verifytx/ --tx 0x... --action profile --ledger
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/collabcast/marketplace/internal/chain"
	"github.com/collabcast/marketplace/internal/config"
	"github.com/collabcast/marketplace/internal/db"
	"github.com/collabcast/marketplace/internal/fees"
	"github.com/collabcast/marketplace/internal/ledger"
)

func main() {
	txHash := flag.String("tx", "", "transaction hash (required)")
	action := flag.String("action", "project", "expected action: project or profile")
	checkLedger := flag.Bool("ledger", false, "also check DATABASE_URL for prior use")
	flag.Parse()

	if *txHash == "" {
		fmt.Fprintln(os.Stderr, "--tx is required")
		flag.Usage()
		os.Exit(2)
	}

	log, _ := zap.NewDevelopment()
	defer log.Sync() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		fatalf("config: %v", err)
	}

	ctx := context.Background()
	var client *chain.Client
	if cfg.Chain.FeeContractConfigured() {
		if client, err = chain.Dial(ctx, cfg, log); err != nil {
			fatalf("dial: %v", err)
		}
	}

	vp, err := fees.NewVerifier(client, cfg, nil, log).VerifyPostingFeePayment(ctx, *txHash, fees.Action(*action))
	if err != nil {
		var pe *fees.PaymentError
		if errors.As(err, &pe) {
			fatalf("REJECTED  reason=%s  %s", pe.Reason, pe.Message)
		}
		fatalf("verify: %v", err)
	}

	fmt.Printf("VALID\n")
	fmt.Printf("tx:        %s\n", strings.ToLower(vp.TxHash.Hex()))
	fmt.Printf("action:    %s\n", vp.Action)
	fmt.Printf("payer:     %s\n", strings.ToLower(vp.Payer.Hex()))
	fmt.Printf("amount:    %s (%s base units)\n", fees.FormatPrice(vp.Amount, cfg.Chain.TokenDecimals), vp.Amount)
	fmt.Printf("block:     %d at %s\n", vp.BlockNumber, vp.BlockTime.Format("2006-01-02 15:04:05 MST"))

	if !*checkLedger {
		return
	}
	gdb, err := db.Open(cfg.Database.URL)
	if err != nil {
		fatalf("database: %v", err)
	}
	rec, err := ledger.New(gdb, log).GetPayment(ctx, vp.TxHash.Hex())
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		fmt.Printf("ledger:    unused\n")
	case err != nil:
		fatalf("ledger: %v", err)
	default:
		user := "-"
		if rec.UserID != nil {
			user = *rec.UserID
		}
		fmt.Printf("ledger:    USED by %s at %s\n", user, rec.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
