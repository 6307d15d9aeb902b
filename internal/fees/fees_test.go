package fees

import (
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/collabcast/marketplace/internal/chain"
	"github.com/collabcast/marketplace/internal/chain/chaintest"
	"github.com/collabcast/marketplace/internal/config"
)

var (
	feeContract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	usdc        = common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e")
	payer       = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

func testConfig() *config.Config {
	return &config.Config{
		Chain: config.ChainConfig{
			ChainID:       84532,
			FeeContract:   strings.ToLower(feeContract.Hex()),
			TokenAddress:  strings.ToLower(usdc.Hex()),
			TokenDecimals: 6,
			RPCTimeout:    2 * time.Second,
		},
		Fees: config.FeesConfig{CacheTTL: 15 * time.Second, FailOpen: true},
	}
}

// newTestNode returns a fake node with fees enabled at 1 USDC, bound to a client.
func newTestNode(t *testing.T) (*chaintest.Backend, *chain.Client) {
	t.Helper()
	node := chaintest.New()
	node.Enabled = true
	node.Price.SetInt64(1_000_000)
	node.Token = usdc
	client, err := chain.NewClient(node, feeContract, 84532, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	return node, client
}
