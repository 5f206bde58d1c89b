// Package inmemory is a test-only Repository implementation. The spec
// recommends implementations expose one so the indexer and API can be
// tested without a live Postgres instance (spec §9: "Implementations
// SHOULD expose an in-memory variant for tests").
package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/mikeydub/indexing-serv/service/persist"
)

type key struct {
	txHash   persist.Hash
	logIndex int64
}

type Repository struct {
	mu      sync.Mutex
	byKey   map[key]persist.Transfer
	byOrder []key
}

func New() *Repository {
	return &Repository{byKey: make(map[key]persist.Transfer)}
}

var _ persist.Repository = (*Repository)(nil)

func (r *Repository) GetLastSavedBlock(ctx context.Context) (*persist.BlockNumber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.byKey) == 0 {
		return nil, nil
	}
	var max persist.BlockNumber
	for _, t := range r.byKey {
		if t.BlockNumber > max {
			max = t.BlockNumber
		}
	}
	return &max, nil
}

func (r *Repository) InsertTransfer(ctx context.Context, t persist.Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{t.TxHash, t.LogIndex}
	if _, exists := r.byKey[k]; exists {
		return nil
	}
	r.byKey[k] = t
	r.byOrder = append(r.byOrder, k)
	return nil
}

func (r *Repository) GetTransferByHash(ctx context.Context, hash persist.Hash) (persist.Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, k := range r.byOrder {
		if k.txHash == hash {
			return r.byKey[k], nil
		}
	}
	return persist.Transfer{}, persist.ErrTransferNotFound
}

func (r *Repository) ListTransfers(ctx context.Context, filter persist.TransferFilter) ([]persist.Transfer, error) {
	filter = filter.Normalize()

	r.mu.Lock()
	all := make([]persist.Transfer, 0, len(r.byOrder))
	for _, k := range r.byOrder {
		all = append(all, r.byKey[k])
	}
	r.mu.Unlock()

	matches := make([]persist.Transfer, 0, len(all))
	for _, t := range all {
		if filter.Sender != nil && t.Sender != *filter.Sender {
			continue
		}
		if filter.Receiver != nil && (!t.Receiver.Valid || t.Receiver.Address != *filter.Receiver) {
			continue
		}
		if filter.Participant != nil {
			p := *filter.Participant
			if t.Sender != p && !(t.Receiver.Valid && t.Receiver.Address == p) {
				continue
			}
		}
		if filter.StartTime != nil && t.TxTime < *filter.StartTime {
			continue
		}
		if filter.EndTime != nil && t.TxTime > *filter.EndTime {
			continue
		}
		matches = append(matches, t)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].BlockNumber != matches[j].BlockNumber {
			return matches[i].BlockNumber > matches[j].BlockNumber
		}
		return matches[i].LogIndex > matches[j].LogIndex
	})

	offset := (filter.Page - 1) * filter.PageSize
	if offset >= len(matches) {
		return []persist.Transfer{}, nil
	}
	end := offset + filter.PageSize
	if end > len(matches) {
		end = len(matches)
	}
	return matches[offset:end], nil
}
