// Package config loads the process-wide immutable configuration: RPC URL,
// token contract address, database URL, and optional start_block. These are
// read once at startup (env/viper + go-playground/validator, per the
// teacher's env package) and never change for the lifetime of the process.
package config

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/mikeydub/indexing-serv/env"
	"github.com/mikeydub/indexing-serv/service/logger"
)

// Config is validated once at startup; a failure here is a configuration
// error and is fatal (spec: non-zero exit, no migration or indexing
// attempted).
type Config struct {
	DatabaseURL     string `validate:"required"`
	RPCURL          string `validate:"required,url"`
	ContractAddress string `validate:"required,len=42"`
	StartBlock      *uint64
}

var validate = validator.New()

func init() {
	viper.SetDefault("HTTP_INFURA_URL", "")
	viper.SetDefault("MAINNET_RPC_URL", "")
	viper.SetDefault("START_BLOCK", "")
}

// Load reads DATABASE_URL, HTTP_INFURA_URL (falling back to
// MAINNET_RPC_URL), USDC_CONTRACT_ADDRESS, and the optional START_BLOCK from
// the environment, and validates the result.
func Load() (*Config, error) {
	ctx := context.Background()

	rpcURL := env.GetString("HTTP_INFURA_URL")
	if rpcURL == "" {
		rpcURL = env.GetString("MAINNET_RPC_URL")
	}

	cfg := &Config{
		DatabaseURL:     env.GetString("DATABASE_URL"),
		RPCURL:          rpcURL,
		ContractAddress: env.GetString("USDC_CONTRACT_ADDRESS"),
	}

	if raw := env.GetString("START_BLOCK"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: invalid START_BLOCK %q: %w", raw, err)
		}
		cfg.StartBlock = &n
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("config: USDC_CONTRACT_ADDRESS %q is not a valid address", cfg.ContractAddress)
	}

	logger.For(ctx).Infof("configuration loaded: rpc=%s contract=%s start_block=%v", cfg.RPCURL, cfg.ContractAddress, cfg.StartBlock)
	return cfg, nil
}
