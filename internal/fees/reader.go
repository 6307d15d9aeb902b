package fees

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/collabcast/marketplace/internal/chain"
	"github.com/collabcast/marketplace/internal/config"
	"github.com/collabcast/marketplace/internal/metrics"
)

const feeCacheKeyPrefix = "fees:config:"

// Reader reports the current fee configuration.
type Reader struct {
	client   *chain.Client // nil when no fee contract is configured
	token    *common.Address
	decimals int32
	rdb      *redis.Client // optional cache
	cacheTTL time.Duration
	failOpen bool
	metrics  metrics.Recorder
	log      *zap.Logger
}

// NewReader builds a Reader. client and rdb may be nil.
func NewReader(client *chain.Client, cfg *config.Config, rdb *redis.Client, rec metrics.Recorder, log *zap.Logger) *Reader {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Reader{
		client:   client,
		token:    configuredToken(cfg),
		decimals: cfg.Chain.TokenDecimals,
		rdb:      rdb,
		cacheTTL: cfg.Fees.CacheTTL,
		failOpen: cfg.Fees.FailOpen,
		metrics:  rec,
		log:      log,
	}
}

func configuredToken(cfg *config.Config) *common.Address {
	if cfg.Chain.TokenAddress == "" {
		return nil
	}
	addr := common.HexToAddress(cfg.Chain.TokenAddress)
	return &addr
}

// Decimals is the number of decimals of the fee token.
func (r *Reader) Decimals() int32 { return r.decimals }

// GetFeeConfig is the display read. With fail-open enabled (the default)
// chain errors degrade to fees disabled and the error is only logged.
func (r *Reader) GetFeeConfig(ctx context.Context) (FeeConfig, error) {
	if r.client == nil {
		return FeeConfig{}, nil
	}

	if cfg, ok := r.cached(ctx); ok {
		r.metrics.IncCounter(metrics.FeeConfigReads, map[string]string{"outcome": "cache"})
		return cfg, nil
	}

	cfg, err := r.ReadFeeConfig(ctx)
	if err != nil {
		r.metrics.IncCounter(metrics.FeeConfigReads, map[string]string{"outcome": "error"})
		if !r.failOpen {
			return FeeConfig{}, err
		}
		r.log.Warn("fee config read failed, reporting fees disabled", zap.Error(err))
		return r.base(), nil
	}
	r.metrics.IncCounter(metrics.FeeConfigReads, map[string]string{"outcome": "chain"})
	r.store(ctx, cfg)
	return cfg, nil
}

// ReadFeeConfig reads price and enabled flag straight from the contract. An
// unconfigured contract is not an error; everything else is returned.
func (r *Reader) ReadFeeConfig(ctx context.Context) (FeeConfig, error) {
	if r.client == nil {
		return FeeConfig{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.client.Timeout())
	defer cancel()

	price, err := r.client.PostPrice(ctx)
	if err != nil {
		return FeeConfig{}, fmt.Errorf("read fee config: %w", err)
	}
	enabled, err := r.client.FeesEnabled(ctx)
	if err != nil {
		return FeeConfig{}, fmt.Errorf("read fee config: %w", err)
	}

	cfg := r.base()
	cfg.Enabled = enabled
	cfg.Price = price
	return cfg, nil
}

// base is the configured part of FeeConfig with fees reported disabled.
func (r *Reader) base() FeeConfig {
	contract := r.client.ContractAddress()
	chainID := r.client.ChainID()
	return FeeConfig{
		Contract: &contract,
		Token:    r.token,
		ChainID:  &chainID,
	}
}

// ── Cache ─────────────────────────────────────────────────────────────────

type cachedFeeConfig struct {
	Enabled bool   `json:"enabled"`
	Price   string `json:"price"`
}

func (r *Reader) cacheKey() string {
	return feeCacheKeyPrefix + r.client.ContractAddress().Hex()
}

func (r *Reader) cached(ctx context.Context) (FeeConfig, bool) {
	if r.rdb == nil || r.cacheTTL <= 0 {
		return FeeConfig{}, false
	}
	raw, err := r.rdb.Get(ctx, r.cacheKey()).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Debug("fee config cache get failed", zap.Error(err))
		}
		return FeeConfig{}, false
	}
	var c cachedFeeConfig
	if err := json.Unmarshal(raw, &c); err != nil {
		return FeeConfig{}, false
	}
	price, ok := new(big.Int).SetString(c.Price, 10)
	if !ok {
		return FeeConfig{}, false
	}
	cfg := r.base()
	cfg.Enabled = c.Enabled
	cfg.Price = price
	return cfg, true
}

func (r *Reader) store(ctx context.Context, cfg FeeConfig) {
	if r.rdb == nil || r.cacheTTL <= 0 || cfg.Price == nil {
		return
	}
	raw, _ := json.Marshal(cachedFeeConfig{Enabled: cfg.Enabled, Price: cfg.Price.String()})
	if err := r.rdb.Set(ctx, r.cacheKey(), raw, r.cacheTTL).Err(); err != nil {
		r.log.Debug("fee config cache set failed", zap.Error(err))
	}
}

// FormatPrice renders a base-unit amount with the token's decimals, keeping at
// least two fractional digits ("1.00", "0.015").
func FormatPrice(price *big.Int, decimals int32) string {
	if price == nil {
		return ""
	}
	d := decimal.NewFromBigInt(price, -decimals)
	if d.Equal(d.Round(2)) {
		return d.StringFixed(2)
	}
	return d.String()
}
