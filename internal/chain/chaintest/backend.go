// Package chaintest provides an in-memory node that answers the PostingFee
// view calls and serves canned receipts.
package chaintest

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/collabcast/marketplace/internal/chain"
)

// Backend implements chain.Backend. Exported fields may be changed between
// calls; they are read under the lock.
type Backend struct {
	mu sync.Mutex

	Price   *big.Int
	Enabled bool
	Token   common.Address

	// Injected failures.
	CallErr    error
	ReceiptErr error
	HeaderErr  error

	calls    int
	receipts map[common.Hash]*types.Receipt
	headers  map[uint64]*types.Header
	block    uint64
	abi      *abi.ABI
}

func New() *Backend {
	parsed, err := chain.PostingFeeMetaData.GetAbi()
	if err != nil {
		panic(err)
	}
	return &Backend{
		Price:    big.NewInt(0),
		receipts: make(map[common.Hash]*types.Receipt),
		headers:  make(map[uint64]*types.Header),
		block:    1000,
		abi:      parsed,
	}
}

// Calls returns the number of contract calls served so far.
func (b *Backend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func (b *Backend) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x60, 0x80}, nil
}

func (b *Backend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.CallErr != nil {
		return nil, b.CallErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(call.Data) < 4 {
		return nil, fmt.Errorf("short call data")
	}
	method, err := b.abi.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "postPrice":
		return method.Outputs.Pack(new(big.Int).Set(b.Price))
	case "feesEnabled":
		return method.Outputs.Pack(b.Enabled)
	case "usdc":
		return method.Outputs.Pack(b.Token)
	}
	return nil, fmt.Errorf("unexpected method %s", method.Name)
}

func (b *Backend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ReceiptErr != nil {
		return nil, b.ReceiptErr
	}
	r, ok := b.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (b *Backend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.HeaderErr != nil {
		return nil, b.HeaderErr
	}
	h, ok := b.headers[number.Uint64()]
	if !ok {
		return nil, ethereum.NotFound
	}
	return h, nil
}

// BlockTimestamp is the header time used for the block with the given number.
func BlockTimestamp(number uint64) uint64 {
	return 1_700_000_000 + number*2
}

// FeePaidLog builds a FeePaid log as the contract would emit it.
func (b *Backend) FeePaidLog(contract, payer common.Address, action string, amount *big.Int) *types.Log {
	ev := b.abi.Events["FeePaid"]
	data, err := ev.Inputs.NonIndexed().Pack(action, amount)
	if err != nil {
		panic(err)
	}
	return &types.Log{
		Address: contract,
		Topics:  []common.Hash{ev.ID, common.BytesToHash(payer.Bytes())},
		Data:    data,
	}
}

// AddFeePayment mines a successful transaction carrying a FeePaid log and
// returns its hash.
func (b *Backend) AddFeePayment(contract, payer common.Address, action string, amount *big.Int) common.Hash {
	return b.AddReceipt(types.ReceiptStatusSuccessful, b.FeePaidLog(contract, payer, action, amount))
}

// AddReceipt mines a transaction with the given status and logs.
func (b *Backend) AddReceipt(status uint64, logs ...*types.Log) common.Hash {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.block++
	var seed [8]byte
	binary.BigEndian.PutUint64(seed[:], b.block)
	hash := crypto.Keccak256Hash([]byte("tx"), seed[:])

	for i, l := range logs {
		l.TxHash = hash
		l.BlockNumber = b.block
		l.Index = uint(i)
	}
	b.receipts[hash] = &types.Receipt{
		Status:      status,
		Logs:        logs,
		TxHash:      hash,
		BlockNumber: new(big.Int).SetUint64(b.block),
	}
	b.headers[b.block] = &types.Header{
		Number: new(big.Int).SetUint64(b.block),
		Time:   BlockTimestamp(b.block),
	}
	return hash
}
