package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Redis    RedisConfig
	Database DatabaseConfig
	Chain    ChainConfig
	Fees     FeesConfig
	Auth     AuthConfig
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type ChainConfig struct {
	RPCURL        string        `mapstructure:"rpc_url"`
	ChainID       int64         `mapstructure:"chain_id"`
	FeeContract   string        `mapstructure:"fee_contract"`
	TokenAddress  string        `mapstructure:"token_address"`
	TokenDecimals int32         `mapstructure:"token_decimals"`
	RPCTimeout    time.Duration `mapstructure:"rpc_timeout"`
}

// FeeContractConfigured reports whether posting fees can be enforced at all.
func (c ChainConfig) FeeContractConfigured() bool {
	return strings.TrimSpace(c.FeeContract) != ""
}

type FeesConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	FailOpen bool          `mapstructure:"fail_open"`
}

type AuthConfig struct {
	Issuer         string        `mapstructure:"issuer"`
	Audience       string        `mapstructure:"audience"`
	JWKSURL        string        `mapstructure:"jwks_url"`
	JWKSRefresh    time.Duration `mapstructure:"jwks_refresh"`
	JWKSMinRefetch time.Duration `mapstructure:"jwks_min_refetch"`
	Leeway         time.Duration `mapstructure:"leeway"`
	SessionSecret  string        `mapstructure:"session_secret"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	CookieName     string        `mapstructure:"cookie_name"`
	CookieSecure   bool          `mapstructure:"cookie_secure"`
	AllowAnonymous bool          `mapstructure:"allow_anonymous"`
	AdminFIDs      []string      `mapstructure:"admin_fids"`
}

func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("redis.addr", "redis:6379")
	v.SetDefault("database.url", "file:market.db")
	v.SetDefault("chain.chain_id", 84532)
	v.SetDefault("chain.token_decimals", 6)
	v.SetDefault("chain.rpc_timeout", "15s")
	v.SetDefault("fees.cache_ttl", "15s")
	v.SetDefault("fees.fail_open", true)
	v.SetDefault("auth.issuer", "https://auth.farcaster.xyz")
	v.SetDefault("auth.jwks_url", "https://auth.farcaster.xyz/.well-known/jwks.json")
	v.SetDefault("auth.jwks_refresh", "1h")
	v.SetDefault("auth.jwks_min_refetch", "10s")
	v.SetDefault("auth.leeway", "30s")
	v.SetDefault("auth.session_ttl", "8h")
	v.SetDefault("auth.cookie_name", "cm_session")
	v.SetDefault("auth.cookie_secure", true)
	v.SetDefault("auth.allow_anonymous", false)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	_ = v.ReadInConfig()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit env bindings
	bindings := map[string]string{
		"server.port":           "PORT",
		"log.level":             "LOG_LEVEL",
		"redis.addr":            "REDIS_ADDR",
		"redis.password":        "REDIS_PASSWORD",
		"database.url":          "DATABASE_URL",
		"chain.rpc_url":         "CHAIN_RPC_URL",
		"chain.chain_id":        "CHAIN_ID",
		"chain.fee_contract":    "POSTING_FEE_CONTRACT",
		"chain.token_address":   "USDC_CONTRACT",
		"chain.token_decimals":  "USDC_DECIMALS",
		"chain.rpc_timeout":     "CHAIN_RPC_TIMEOUT",
		"fees.cache_ttl":        "FEE_CONFIG_CACHE_TTL",
		"fees.fail_open":        "FEE_CONFIG_FAIL_OPEN",
		"auth.issuer":           "QUICK_AUTH_ISSUER",
		"auth.audience":         "QUICK_AUTH_AUDIENCE",
		"auth.jwks_url":         "QUICK_AUTH_JWKS_URL",
		"auth.jwks_refresh":     "QUICK_AUTH_JWKS_REFRESH",
		"auth.jwks_min_refetch": "QUICK_AUTH_JWKS_MIN_REFETCH",
		"auth.leeway":           "QUICK_AUTH_LEEWAY",
		"auth.session_secret":   "SESSION_SECRET",
		"auth.session_ttl":      "SESSION_TTL",
		"auth.cookie_secure":    "SESSION_COOKIE_SECURE",
		"auth.allow_anonymous":  "ALLOW_ANONYMOUS_SESSIONS",
		"auth.admin_fids":       "ADMIN_FIDS",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()

	return cfg, cfg.validate()
}

// Chain RPC calls are kept inside [minRPCTimeout, maxRPCTimeout].
const (
	minRPCTimeout = time.Second
	maxRPCTimeout = 60 * time.Second
)

func (c *Config) normalize() {
	c.Chain.FeeContract = strings.ToLower(strings.TrimSpace(c.Chain.FeeContract))
	c.Chain.TokenAddress = strings.ToLower(strings.TrimSpace(c.Chain.TokenAddress))
	switch {
	case c.Chain.RPCTimeout <= 0:
		c.Chain.RPCTimeout = 15 * time.Second
	case c.Chain.RPCTimeout < minRPCTimeout:
		c.Chain.RPCTimeout = minRPCTimeout
	case c.Chain.RPCTimeout > maxRPCTimeout:
		c.Chain.RPCTimeout = maxRPCTimeout
	}
	// ADMIN_FIDS arrives as a single comma separated string from the environment.
	var fids []string
	for _, entry := range c.Auth.AdminFIDs {
		for _, part := range strings.Split(entry, ",") {
			if p := strings.TrimSpace(part); p != "" {
				fids = append(fids, p)
			}
		}
	}
	c.Auth.AdminFIDs = fids
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("required config missing: DATABASE_URL")
	}
	if c.Chain.FeeContractConfigured() {
		if c.Chain.RPCURL == "" {
			return fmt.Errorf("required config missing: CHAIN_RPC_URL (POSTING_FEE_CONTRACT is set)")
		}
		if !common.IsHexAddress(c.Chain.FeeContract) {
			return fmt.Errorf("invalid POSTING_FEE_CONTRACT: %q", c.Chain.FeeContract)
		}
	}
	if c.Chain.TokenAddress != "" && !common.IsHexAddress(c.Chain.TokenAddress) {
		return fmt.Errorf("invalid USDC_CONTRACT: %q", c.Chain.TokenAddress)
	}
	if c.Chain.TokenDecimals < 0 || c.Chain.TokenDecimals > 36 {
		return fmt.Errorf("invalid USDC_DECIMALS: %d", c.Chain.TokenDecimals)
	}
	return nil
}

// ValidateServer checks the settings only the HTTP server needs.
func (c *Config) ValidateServer() error {
	type req struct {
		val  string
		name string
	}
	for _, r := range []req{
		{c.Redis.Addr, "REDIS_ADDR"},
		{c.Auth.SessionSecret, "SESSION_SECRET"},
		{c.Auth.Issuer, "QUICK_AUTH_ISSUER"},
		{c.Auth.JWKSURL, "QUICK_AUTH_JWKS_URL"},
	} {
		if r.val == "" {
			return fmt.Errorf("required config missing: %s", r.name)
		}
	}
	if len(c.Auth.SessionSecret) < 16 {
		return fmt.Errorf("SESSION_SECRET must be at least 16 bytes")
	}
	return nil
}
