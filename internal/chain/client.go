package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/collabcast/marketplace/internal/config"
)

// Backend is the subset of the node API the fee checks need. *ethclient.Client
// satisfies it; tests substitute an in-memory node.
type Backend interface {
	bind.ContractCaller
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// Client wraps the RPC backend and the generated PostingFee binding.
type Client struct {
	backend      Backend
	contract     *PostingFee
	contractAddr common.Address
	chainID      int64
	timeout      time.Duration
}

// Dial connects to the configured RPC endpoint. It must only be called when a
// fee contract is configured.
func Dial(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	// A wrong network is logged, not fatal: fee reads degrade and
	// verification will simply not find the transactions.
	idCtx, cancel := context.WithTimeout(ctx, cfg.Chain.RPCTimeout)
	defer cancel()
	if id, err := eth.ChainID(idCtx); err != nil {
		log.Warn("chain id lookup failed", zap.Error(err))
	} else if id.Int64() != cfg.Chain.ChainID {
		log.Warn("rpc chain id differs from configured CHAIN_ID",
			zap.Int64("rpc", id.Int64()),
			zap.Int64("configured", cfg.Chain.ChainID),
		)
	}

	return NewClient(eth, common.HexToAddress(cfg.Chain.FeeContract), cfg.Chain.ChainID, cfg.Chain.RPCTimeout)
}

func NewClient(backend Backend, contractAddr common.Address, chainID int64, timeout time.Duration) (*Client, error) {
	contract, err := NewPostingFee(contractAddr, backend)
	if err != nil {
		return nil, fmt.Errorf("bind contract: %w", err)
	}
	return &Client{
		backend:      backend,
		contract:     contract,
		contractAddr: contractAddr,
		chainID:      chainID,
		timeout:      timeout,
	}, nil
}

// ContractAddress returns the posting fee contract address.
func (c *Client) ContractAddress() common.Address { return c.contractAddr }

// ChainID returns the configured chain ID.
func (c *Client) ChainID() int64 { return c.chainID }

// Timeout is the upper bound callers should put on a group of RPC calls.
func (c *Client) Timeout() time.Duration { return c.timeout }

// PostPrice returns the current posting price in token base units.
func (c *Client) PostPrice(ctx context.Context) (*big.Int, error) {
	price, err := c.contract.PostPrice(&bind.CallOpts{Context: ctx})
	if err != nil {
		return nil, fmt.Errorf("postPrice: %w", err)
	}
	return price, nil
}

// FeesEnabled reports the contract's fee switch.
func (c *Client) FeesEnabled(ctx context.Context) (bool, error) {
	enabled, err := c.contract.FeesEnabled(&bind.CallOpts{Context: ctx})
	if err != nil {
		return false, fmt.Errorf("feesEnabled: %w", err)
	}
	return enabled, nil
}

// TokenAddress returns the ERC-20 the contract charges in.
func (c *Client) TokenAddress(ctx context.Context) (common.Address, error) {
	token, err := c.contract.Usdc(&bind.CallOpts{Context: ctx})
	if err != nil {
		return common.Address{}, fmt.Errorf("usdc: %w", err)
	}
	return token, nil
}

// TransactionReceipt returns ethereum.NotFound (unwrapped) for unknown or pending hashes.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return c.backend.TransactionReceipt(ctx, hash)
}

// BlockTime returns the timestamp of the given block.
func (c *Client) BlockTime(ctx context.Context, number *big.Int) (time.Time, error) {
	header, err := c.backend.HeaderByNumber(ctx, number)
	if err != nil {
		return time.Time{}, fmt.Errorf("header %s: %w", number, err)
	}
	return time.Unix(int64(header.Time), 0).UTC(), nil
}

// ParseFeePaid decodes a FeePaid log. It fails for logs of any other shape.
func (c *Client) ParseFeePaid(log types.Log) (*PostingFeeFeePaid, error) {
	return c.contract.ParseFeePaid(log)
}

// FeePaidTopic is the topic0 of FeePaid logs.
func FeePaidTopic() common.Hash {
	parsed, err := PostingFeeMetaData.GetAbi()
	if err != nil {
		return common.Hash{}
	}
	return parsed.Events["FeePaid"].ID
}
