// Package rpc wraps the go-ethereum JSON-RPC client with the three calls
// the indexer needs (eth_blockNumber, eth_getLogs, eth_getBlockByNumber
// header-only). Retry/backoff is not implemented here: the spec's retry
// contract (5 s / 10 s sleeps between attempts) lives in the Indexer's scan
// loop, one call at a time, not as an internal retry wrapped around a
// single RPC call.
package rpc

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// defaultTimeout bounds every individual RPC call; the spec recommends
// 10-30s connect/read timeouts on both RPC and DB clients (§5).
const defaultTimeout = 20 * time.Second

// NewEthClient dials the configured JSON-RPC endpoint.
func NewEthClient(ctx context.Context, url string) (*ethclient.Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rpcClient, err := rpc.DialContext(dialCtx, url)
	if err != nil {
		return nil, err
	}
	return ethclient.NewClient(rpcClient), nil
}

// GetBlockNumber returns the current chain head.
func GetBlockNumber(ctx context.Context, client *ethclient.Client) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return client.BlockNumber(ctx)
}

// GetLogs returns the logs matching query.
func GetLogs(ctx context.Context, client *ethclient.Client, query ethereum.FilterQuery) ([]types.Log, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return client.FilterLogs(ctx, query)
}

// GetBlockHeaderByNumber returns the header (not the full block body,
// avoiding a transaction-list fetch) for number.
func GetBlockHeaderByNumber(ctx context.Context, client *ethclient.Client, number uint64) (*types.Header, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return client.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
}
