package indexer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeydub/indexing-serv/service/persist"
	"github.com/mikeydub/indexing-serv/service/persist/inmemory"
)

func noopSleep(ctx context.Context, d time.Duration) {}

func newTestIndexer(repo persist.Repository, startBlock *uint64) *Indexer {
	idx := &Indexer{
		repo:            repo,
		contractAddress: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		startBlock:      startBlock,
	}
	idx.sleep = noopSleep
	return idx
}

func transferLog(block, index uint64) types.Log {
	return types.Log{
		Topics: []common.Hash{
			common.HexToHash(TransferEventTopic),
			common.HexToHash("0x00000000000000000000000aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
			common.HexToHash("0x00000000000000000000000bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
		},
		Data:        []byte{0x01},
		TxHash:      common.HexToHash(fmt.Sprintf("0x%062x%02x", block, index)),
		BlockNumber: block,
		Index:       uint(index),
	}
}

// Scenario A (spec §8): fresh deployment, no saved rows, no configured
// start_block — resume falls back to chain head.
func TestResumeFreshDeploymentFallsBackToChainHead(t *testing.T) {
	repo := inmemory.New()
	idx := newTestIndexer(repo, nil)
	idx.blockNumber = func(ctx context.Context) (uint64, error) { return 1000, nil }

	err := idx.resume(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1000, idx.cursor)
}

// Scenario B: a configured start_block beyond the (empty) db floor wins.
func TestResumeConfiguredStartBlockBeyondFloor(t *testing.T) {
	repo := inmemory.New()
	start := uint64(500)
	idx := newTestIndexer(repo, &start)
	idx.blockNumber = func(ctx context.Context) (uint64, error) { return 9999, nil }

	err := idx.resume(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 500, idx.cursor)
}

// Resuming after prior progress: cursor picks up at last_saved_block+1,
// ignoring a lower configured start_block.
func TestResumePicksUpAfterLastSavedBlock(t *testing.T) {
	repo := inmemory.New()
	require.NoError(t, repo.InsertTransfer(context.Background(), persist.Transfer{
		TxHash: "0x01", LogIndex: 0, BlockNumber: 100, Sender: "0xa", TxTime: 1,
	}))

	start := uint64(10)
	idx := newTestIndexer(repo, &start)

	err := idx.resume(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 101, idx.cursor)
}

// resume is fatal when the repository itself fails (§4.2.1 step 2/4).
func TestResumeStorageFailureIsFatal(t *testing.T) {
	idx := newTestIndexer(failingRepo{}, nil)
	err := idx.resume(context.Background())
	require.Error(t, err)
}

// failingRepo implements persist.Repository with every read/write failing,
// standing in for a database that is unreachable at startup.
type failingRepo struct{}

func (failingRepo) GetLastSavedBlock(ctx context.Context) (*persist.BlockNumber, error) {
	return nil, errors.New("boom")
}

func (failingRepo) InsertTransfer(ctx context.Context, t persist.Transfer) error {
	return errors.New("boom")
}

func (failingRepo) GetTransferByHash(ctx context.Context, hash persist.Hash) (persist.Transfer, error) {
	return persist.Transfer{}, errors.New("boom")
}

func (failingRepo) ListTransfers(ctx context.Context, filter persist.TransferFilter) ([]persist.Transfer, error) {
	return nil, errors.New("boom")
}

// Scenario E/F-style: one scan iteration pulls logs for a batch, stamps them
// with the fetched header's time, and advances the cursor one block past
// the batch's upper bound.
func TestScanLoopInsertsBatchAndAdvances(t *testing.T) {
	repo := inmemory.New()
	idx := newTestIndexer(repo, nil)
	idx.cursor = 10

	headCalls := 0
	idx.blockNumber = func(ctx context.Context) (uint64, error) {
		headCalls++
		return 10 + BatchSize - 1, nil // exactly one full batch available
	}
	idx.getLogs = func(ctx context.Context, q goethereum.FilterQuery) ([]types.Log, error) {
		return []types.Log{transferLog(12, 0)}, nil
	}
	idx.header = func(ctx context.Context, number uint64) (*types.Header, error) {
		return &types.Header{Time: 777}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	idx.sleep = func(ctx context.Context, d time.Duration) { cancel() }

	idx.scanLoop(ctx)

	assert.EqualValues(t, 10+BatchSize, idx.cursor)

	transfers, err := repo.ListTransfers(context.Background(), persist.TransferFilter{})
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.EqualValues(t, 777, transfers[0].TxTime)
}

// When the cursor is past the chain head, the loop sleeps without
// advancing or touching storage.
func TestScanLoopSleepsWhenCaughtUp(t *testing.T) {
	repo := inmemory.New()
	idx := newTestIndexer(repo, nil)
	idx.cursor = 100

	idx.blockNumber = func(ctx context.Context) (uint64, error) { return 50, nil }
	idx.getLogs = func(ctx context.Context, q goethereum.FilterQuery) ([]types.Log, error) {
		t.Fatal("get_logs should not be called while caught up")
		return nil, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	idx.sleep = func(ctx context.Context, d time.Duration) {
		assert.Equal(t, sleepCaughtUp, d)
		cancel()
	}

	idx.scanLoop(ctx)
	assert.EqualValues(t, 100, idx.cursor)
}

// A get_logs failure retries the same range: the cursor does not move.
func TestScanLoopRetriesOnGetLogsError(t *testing.T) {
	repo := inmemory.New()
	idx := newTestIndexer(repo, nil)
	idx.cursor = 1

	idx.blockNumber = func(ctx context.Context) (uint64, error) { return 1000, nil }
	attempts := 0
	idx.getLogs = func(ctx context.Context, q goethereum.FilterQuery) ([]types.Log, error) {
		attempts++
		return nil, errors.New("provider unavailable")
	}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	idx.sleep = func(ctx context.Context, d time.Duration) {
		calls++
		assert.Equal(t, sleepOnProviderError, d)
		if calls == 2 {
			cancel()
		}
	}

	idx.scanLoop(ctx)
	assert.EqualValues(t, 1, idx.cursor)
	assert.GreaterOrEqual(t, attempts, 2)
}

// A malformed log is skipped without aborting the rest of the batch or
// preventing the cursor from advancing.
func TestScanLoopSkipsMalformedLogButAdvances(t *testing.T) {
	repo := inmemory.New()
	idx := newTestIndexer(repo, nil)
	idx.cursor = 1

	idx.blockNumber = func(ctx context.Context) (uint64, error) { return 1, nil }
	malformed := transferLog(1, 0)
	malformed.Topics = malformed.Topics[:1]
	idx.getLogs = func(ctx context.Context, q goethereum.FilterQuery) ([]types.Log, error) {
		return []types.Log{malformed}, nil
	}
	idx.header = func(ctx context.Context, number uint64) (*types.Header, error) {
		return &types.Header{Time: 1}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	idx.sleep = func(ctx context.Context, d time.Duration) { cancel() }

	idx.scanLoop(ctx)

	assert.EqualValues(t, 2, idx.cursor)
	transfers, err := repo.ListTransfers(context.Background(), persist.TransferFilter{})
	require.NoError(t, err)
	assert.Empty(t, transfers)
}
