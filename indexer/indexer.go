// Package indexer implements the durable, resumable log-tailing state
// machine: it advances a cursor through contiguous block ranges, pulls
// Transfer logs for one configured token contract via a chain client,
// decodes them, and writes them through a persist.Repository. It runs as a
// single background task for the lifetime of the process; no parallel
// indexer instances are supported.
package indexer

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gammazero/workerpool"
	"github.com/getsentry/sentry-go"

	"github.com/mikeydub/indexing-serv/service/logger"
	"github.com/mikeydub/indexing-serv/service/persist"
	"github.com/mikeydub/indexing-serv/service/rpc"
)

// BatchSize is the number of contiguous blocks scanned per get_logs call.
// The spec allows 50-100; the source's canonical draft uses 100, but the
// default here follows the spec's stated default.
const BatchSize = 50

const (
	sleepOnProviderError = 5 * time.Second
	sleepOnHeaderError   = 5 * time.Second
	sleepCaughtUp        = 10 * time.Second
	sleepStorageFatal    = 10 * time.Second
	sleepPerIteration    = 1 * time.Second

	// insertPoolSize bounds the concurrent fan-out of per-log inserts
	// within one already-fetched batch. This does not violate the
	// single-Indexer-task constraint: the pool is internal to one
	// sequential scan step, and the loop still waits for the whole batch
	// to finish before advancing cursor.
	insertPoolSize = 5
)

// blockNumberFunc, getLogsFunc, and headerFunc mirror the teacher's
// function-typed field (its indexer's getLogsFunc) used to substitute a
// fake chain client in tests without requiring a full ethclient.Client.
type blockNumberFunc func(ctx context.Context) (uint64, error)
type getLogsFunc func(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
type headerFunc func(ctx context.Context, number uint64) (*types.Header, error)

// Indexer is the background task described above. Construct with New and
// run with Run, typically in its own goroutine.
type Indexer struct {
	client          *ethclient.Client
	repo            persist.Repository
	contractAddress common.Address
	startBlock      *uint64

	cursor uint64

	blockNumber blockNumberFunc
	getLogs     getLogsFunc
	header      headerFunc

	// sleep defaults to the real clock-based sleep; tests substitute a
	// no-op so the state-machine scenarios in §8 run without waiting out
	// the real 1s/5s/10s delays.
	sleep func(ctx context.Context, d time.Duration)
}

// New constructs an Indexer. startBlock is the configured floor (§3:
// "optional configured start_block"); pass nil when unset.
func New(client *ethclient.Client, repo persist.Repository, contractAddress common.Address, startBlock *uint64) *Indexer {
	idx := &Indexer{
		client:          client,
		repo:            repo,
		contractAddress: contractAddress,
		startBlock:      startBlock,
	}
	idx.blockNumber = func(ctx context.Context) (uint64, error) { return rpc.GetBlockNumber(ctx, idx.client) }
	idx.getLogs = func(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
		return rpc.GetLogs(ctx, idx.client, query)
	}
	idx.header = func(ctx context.Context, number uint64) (*types.Header, error) {
		return rpc.GetBlockHeaderByNumber(ctx, idx.client, number)
	}
	idx.sleep = sleep
	return idx
}

// Run establishes the resume cursor and then loops the steady-state scan
// until ctx is cancelled. A storage failure during startup terminates the
// task (per §4.2.1 step 2/4); a panic during the loop is reported to
// Sentry and the task terminates after a 10s pause, mirroring the
// teacher's recoverAndWait pattern.
func (idx *Indexer) Run(ctx context.Context) {
	defer recoverAndReport(ctx)

	if err := idx.resume(ctx); err != nil {
		logger.For(ctx).WithError(err).Error("indexer: resume failed, terminating")
		return
	}

	idx.scanLoop(ctx)
}

// resume implements §4.2.1: read the last saved block, derive cursor from
// max(db_next, start_block), and fall back to chain head on a fresh
// deployment with no configured start.
func (idx *Indexer) resume(ctx context.Context) error {
	last, err := idx.repo.GetLastSavedBlock(ctx)
	if err != nil {
		logger.For(ctx).WithError(err).Error("indexer: get_last_saved_block failed")
		idx.sleep(ctx, sleepStorageFatal)
		return err
	}

	var dbNext uint64
	if last != nil {
		dbNext = last.Uint64() + 1
	}

	cursor := dbNext
	if idx.startBlock != nil && *idx.startBlock > cursor {
		cursor = *idx.startBlock
	}

	if cursor == 0 {
		head, err := idx.blockNumber(ctx)
		if err != nil {
			logger.For(ctx).WithError(err).Error("indexer: could not fetch chain head on fresh start")
			idx.sleep(ctx, sleepStorageFatal)
			return err
		}
		cursor = head
	}

	idx.cursor = cursor
	logger.For(ctx).Infof("indexer: resuming at cursor=%d", idx.cursor)
	return nil
}

// scanLoop implements §4.2.2, one iteration per loop body. It never
// returns except via ctx cancellation.
func (idx *Indexer) scanLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		head, err := idx.blockNumber(ctx)
		if err != nil {
			logger.For(ctx).WithError(err).Warn("indexer: get chain head failed, retrying")
			idx.sleep(ctx, sleepOnProviderError)
			continue
		}

		if idx.cursor > head {
			idx.sleep(ctx, sleepCaughtUp)
			continue
		}

		toBlock := idx.cursor + BatchSize - 1
		if toBlock > head {
			toBlock = head
		}

		query := ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(idx.cursor),
			ToBlock:   new(big.Int).SetUint64(toBlock),
			Addresses: []common.Address{idx.contractAddress},
			Topics:    [][]common.Hash{{common.HexToHash(TransferEventTopic)}},
		}

		logs, err := idx.getLogs(ctx, query)
		if err != nil {
			logger.For(ctx).WithError(err).Warn("indexer: get_logs failed, retrying same range")
			idx.sleep(ctx, sleepOnProviderError)
			continue
		}

		if len(logs) == 0 {
			idx.advance(ctx, toBlock)
			continue
		}

		header, err := idx.header(ctx, toBlock)
		if err != nil || header == nil {
			logger.For(ctx).WithError(err).Warn("indexer: header fetch failed, retrying without advancing")
			idx.sleep(ctx, sleepOnHeaderError)
			continue
		}

		idx.insertBatch(ctx, logs, int64(header.Time))
		idx.advance(ctx, toBlock)
	}
}

// insertBatch decodes and persists every log in the batch, logging and
// skipping individual decode or insert failures without aborting — the
// ON CONFLICT DO NOTHING semantics make re-processing this range on a
// later restart safe. The per-log inserts within this one batch fan out
// over a small bounded worker pool; the call blocks until every log in the
// batch has been attempted, so cursor still only advances once the whole
// batch is done.
func (idx *Indexer) insertBatch(ctx context.Context, logs []types.Log, txTime int64) {
	pool := workerpool.New(insertPoolSize)
	for _, log := range logs {
		log := log
		pool.Submit(func() {
			t, err := decodeTransfer(log, txTime)
			if err != nil {
				logger.For(ctx).WithError(err).Warn("indexer: skipping malformed log")
				return
			}
			if err := idx.repo.InsertTransfer(ctx, t); err != nil {
				logger.For(ctx).WithError(err).Error("indexer: insert_transfer failed")
			}
		})
	}
	pool.StopWait()
}

func (idx *Indexer) advance(ctx context.Context, toBlock uint64) {
	idx.cursor = toBlock + 1
	idx.sleep(ctx, sleepPerIteration)
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func recoverAndReport(ctx context.Context) {
	if err := recover(); err != nil {
		sentry.CurrentHub().Recover(err)
		logger.For(ctx).Errorf("indexer: recovered panic: %v", err)
		sleep(ctx, sleepStorageFatal)
	}
}
