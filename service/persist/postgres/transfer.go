package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/mikeydub/indexing-serv/db/gen/indexerdb"
	"github.com/mikeydub/indexing-serv/service/persist"
)

// TransferRepository implements persist.Repository against Postgres. It
// wraps the sqlc-generated Queries for the three static queries and builds
// ListTransfers' query by hand, since the filter algebra's five
// independently-optional predicates aren't expressible as a single static
// sqlc query.
type TransferRepository struct {
	pool    *pgxpool.Pool
	queries *indexerdb.Queries
}

func NewTransferRepository(pool *pgxpool.Pool) *TransferRepository {
	return &TransferRepository{
		pool:    pool,
		queries: indexerdb.New(pool),
	}
}

var _ persist.Repository = (*TransferRepository)(nil)

func (r *TransferRepository) GetLastSavedBlock(ctx context.Context) (*persist.BlockNumber, error) {
	max, err := r.queries.GetLastSavedBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: get last saved block: %w", err)
	}
	if max == nil {
		return nil, nil
	}
	bn := persist.BlockNumber(*max)
	return &bn, nil
}

func (r *TransferRepository) InsertTransfer(ctx context.Context, t persist.Transfer) error {
	err := r.queries.InsertTransfer(ctx, indexerdb.InsertTransferParams{
		TxHash:      t.TxHash,
		LogIndex:    t.LogIndex,
		BlockNumber: t.BlockNumber,
		Sender:      t.Sender,
		Receiver:    t.Receiver,
		ValueWei:    t.ValueWei,
		TxTime:      t.TxTime,
	})
	if err != nil {
		return fmt.Errorf("postgres: insert transfer: %w", err)
	}
	return nil
}

func (r *TransferRepository) GetTransferByHash(ctx context.Context, hash persist.Hash) (persist.Transfer, error) {
	row, err := r.queries.GetTransferByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return persist.Transfer{}, persist.ErrTransferNotFound
		}
		return persist.Transfer{}, fmt.Errorf("postgres: get transfer by hash: %w", err)
	}
	return transactionToTransfer(row), nil
}

func (r *TransferRepository) ListTransfers(ctx context.Context, filter persist.TransferFilter) ([]persist.Transfer, error) {
	filter = filter.Normalize()

	var b strings.Builder
	var args []interface{}

	b.WriteString("SELECT tx_hash, log_index, block_number, sender, receiver, value_wei, tx_time FROM transactions WHERE 1=1")

	addArg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Sender != nil {
		fmt.Fprintf(&b, " AND sender = %s", addArg(*filter.Sender))
	}
	if filter.Receiver != nil {
		fmt.Fprintf(&b, " AND receiver = %s", addArg(*filter.Receiver))
	}
	if filter.Participant != nil {
		p1 := addArg(*filter.Participant)
		p2 := addArg(*filter.Participant)
		fmt.Fprintf(&b, " AND (sender = %s OR receiver = %s)", p1, p2)
	}
	if filter.StartTime != nil {
		fmt.Fprintf(&b, " AND tx_time >= %s", addArg(*filter.StartTime))
	}
	if filter.EndTime != nil {
		fmt.Fprintf(&b, " AND tx_time <= %s", addArg(*filter.EndTime))
	}

	b.WriteString(" ORDER BY block_number DESC, log_index DESC")

	offset := (filter.Page - 1) * filter.PageSize
	fmt.Fprintf(&b, " LIMIT %s OFFSET %s", addArg(int64(filter.PageSize)), addArg(int64(offset)))

	rows, err := r.queries.ListTransfers(ctx, b.String(), args)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transfers: %w", err)
	}

	out := make([]persist.Transfer, len(rows))
	for i, row := range rows {
		out[i] = transactionToTransfer(row)
	}
	return out, nil
}

func transactionToTransfer(row indexerdb.Transaction) persist.Transfer {
	return persist.Transfer{
		TxHash:      row.TxHash,
		LogIndex:    row.LogIndex,
		BlockNumber: row.BlockNumber,
		Sender:      row.Sender,
		Receiver:    row.Receiver,
		ValueWei:    row.ValueWei,
		TxTime:      row.TxTime,
	}
}
