// cmd/feeconfig prints the posting fee configuration read straight from the
// contract configured in the environment (POSTING_FEE_CONTRACT, CHAIN_RPC_URL).
//
// Usage:
//
//	go run ./cmd/feeconfig/
//	go run ./cmd/feeconfig/ --json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/collabcast/marketplace/internal/chain"
	"github.com/collabcast/marketplace/internal/config"
	"github.com/collabcast/marketplace/internal/fees"
)

func main() {
	asJSON := flag.Bool("json", false, "print JSON instead of text")
	flag.Parse()

	log, _ := zap.NewDevelopment()
	defer log.Sync() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		fatalf("config: %v", err)
	}
	if !cfg.Chain.FeeContractConfigured() {
		fatalf("POSTING_FEE_CONTRACT is not set; posting is free")
	}

	ctx := context.Background()
	client, err := chain.Dial(ctx, cfg, log)
	if err != nil {
		fatalf("dial: %v", err)
	}

	reader := fees.NewReader(client, cfg, nil, nil, log)
	fc, err := reader.ReadFeeConfig(ctx)
	if err != nil {
		fatalf("read fee config: %v", err)
	}

	var token string
	if t, err := client.TokenAddress(ctx); err == nil {
		token = strings.ToLower(t.Hex())
	} else {
		log.Warn("token lookup failed", zap.Error(err))
	}

	out := map[string]any{
		"contract":      strings.ToLower(client.ContractAddress().Hex()),
		"chain_id":      client.ChainID(),
		"enabled":       fc.Enabled,
		"price":         fc.Price.String(),
		"price_display": fees.FormatPrice(fc.Price, reader.Decimals()),
		"token":         token,
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(out) //nolint:errcheck
		return
	}
	fmt.Printf("contract:  %s (chain %d)\n", out["contract"], out["chain_id"])
	fmt.Printf("enabled:   %v\n", out["enabled"])
	fmt.Printf("price:     %s (%s base units)\n", out["price_display"], out["price"])
	fmt.Printf("token:     %s\n", out["token"])
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
