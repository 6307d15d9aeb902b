// Package fees reads the posting fee configuration from chain and verifies
// that a transaction paid the fee for a given action.
package fees

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Action is the kind of post a fee payment is earmarked for.
type Action string

const (
	ActionProject Action = "project"
	ActionProfile Action = "profile"
)

func (a Action) Valid() bool {
	return a == ActionProject || a == ActionProfile
}

// FeeConfig is the fee state as seen by clients. All pointer fields are nil
// when no fee contract is configured; Price is also nil when the contract
// could not be read.
type FeeConfig struct {
	Enabled  bool
	Price    *big.Int
	Contract *common.Address
	Token    *common.Address
	ChainID  *int64
}

// VerifiedPayment is a fee payment confirmed on chain.
type VerifiedPayment struct {
	TxHash      common.Hash
	Payer       common.Address
	Action      Action
	Amount      *big.Int
	BlockNumber uint64
	BlockTime   time.Time
}

// ParseTxHash accepts 0x followed by exactly 64 hex digits, in any case.
func ParseTxHash(s string) (common.Hash, error) {
	s = strings.TrimSpace(s)
	if len(s) != 66 || !(strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) {
		return common.Hash{}, fmt.Errorf("transaction hash must be 0x followed by 64 hex digits")
	}
	b, err := hex.DecodeString(s[2:])
	if err != nil {
		return common.Hash{}, fmt.Errorf("transaction hash is not hex: %w", err)
	}
	return common.BytesToHash(b), nil
}
