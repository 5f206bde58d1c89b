// Package persist defines the storage-agnostic Transfer record, the filter
// algebra used to query it, and the Repository capability set. Concrete
// storage backends (service/persist/postgres, or an in-memory variant for
// tests) implement Repository; the indexer and api packages depend only on
// this interface, never on a SQL driver.
package persist

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Address is a 20-byte Ethereum address rendered as a 0x-prefixed hex string.
type Address string

func AddressFromCommon(a common.Address) Address {
	return Address(strings.ToLower(a.Hex()))
}

func (a Address) String() string {
	return string(a)
}

func (a Address) Common() common.Address {
	return common.HexToAddress(string(a))
}

// Value implements driver.Valuer for Address.
func (a Address) Value() (driver.Value, error) {
	return string(a), nil
}

// Scan implements sql.Scanner for Address.
func (a *Address) Scan(i interface{}) error {
	if i == nil {
		*a = ""
		return nil
	}
	switch v := i.(type) {
	case string:
		*a = Address(v)
	case []byte:
		*a = Address(v)
	default:
		return fmt.Errorf("persist: cannot scan %T into Address", i)
	}
	return nil
}

func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(a))
}

func (a *Address) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*a = Address(strings.ToLower(s))
	return nil
}

// Hash is a 32-byte hash (transaction hash, topic, block hash) rendered as a
// 0x-prefixed hex string.
type Hash string

func (h Hash) String() string {
	return string(h)
}

func (h Hash) Value() (driver.Value, error) {
	return string(h), nil
}

func (h *Hash) Scan(i interface{}) error {
	if i == nil {
		*h = ""
		return nil
	}
	switch v := i.(type) {
	case string:
		*h = Hash(v)
	case []byte:
		*h = Hash(v)
	default:
		return fmt.Errorf("persist: cannot scan %T into Hash", i)
	}
	return nil
}

// BlockNumber is a non-negative chain block height.
type BlockNumber uint64

func (b BlockNumber) Uint64() uint64 {
	return uint64(b)
}

func (b BlockNumber) BigInt() *big.Int {
	return new(big.Int).SetUint64(b.Uint64())
}

func (b BlockNumber) Value() (driver.Value, error) {
	return int64(b), nil
}

func (b *BlockNumber) Scan(src interface{}) error {
	if src == nil {
		*b = 0
		return nil
	}
	i, ok := src.(int64)
	if !ok {
		return fmt.Errorf("persist: cannot scan %T into BlockNumber", src)
	}
	*b = BlockNumber(i)
	return nil
}

// ValueWei is a raw, unscaled token amount: a 256-bit unsigned integer stored
// and transmitted as a decimal string, never as a native numeric type, so it
// round-trips losslessly.
type ValueWei struct {
	inner uint256.Int
}

// ValueWeiFromBigEndian decodes value from the big-endian bytes of an EVM log
// data payload. A zero-length payload decodes to zero, matching the source's
// whole-payload interpretation.
func ValueWeiFromBigEndian(data []byte) ValueWei {
	var v ValueWei
	v.inner.SetBytes(data)
	return v
}

func ValueWeiFromDecimal(s string) (ValueWei, error) {
	i, err := uint256.FromDecimal(s)
	if err != nil {
		return ValueWei{}, fmt.Errorf("persist: invalid value_wei %q: %w", s, err)
	}
	return ValueWei{inner: *i}, nil
}

func (v ValueWei) String() string {
	return v.inner.Dec()
}

func (v ValueWei) Value() (driver.Value, error) {
	return v.String(), nil
}

func (v *ValueWei) Scan(src interface{}) error {
	var s string
	switch t := src.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	case nil:
		v.inner = uint256.Int{}
		return nil
	default:
		return fmt.Errorf("persist: cannot scan %T into ValueWei", src)
	}
	parsed, err := ValueWeiFromDecimal(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v ValueWei) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

func (v *ValueWei) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ValueWeiFromDecimal(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// NullAddress is an Address that may be absent in the database, used for the
// optional `receiver` column.
type NullAddress struct {
	Address Address
	Valid   bool
}

func (n NullAddress) Value() (driver.Value, error) {
	if !n.Valid {
		return nil, nil
	}
	return string(n.Address), nil
}

func (n *NullAddress) Scan(i interface{}) error {
	if i == nil {
		*n = NullAddress{}
		return nil
	}
	n.Valid = true
	return n.Address.Scan(i)
}

func (n NullAddress) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return json.Marshal(nil)
	}
	return json.Marshal(n.Address)
}

func (n *NullAddress) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*n = NullAddress{}
		return nil
	}
	n.Valid = true
	return json.Unmarshal(b, &n.Address)
}

// Transfer is the sole persisted entity: one decoded ERC-20 Transfer event.
type Transfer struct {
	TxHash      Hash        `json:"tx_hash"`
	LogIndex    int64       `json:"log_index"`
	BlockNumber BlockNumber `json:"block_number"`
	Sender      Address     `json:"sender"`
	Receiver    NullAddress `json:"receiver"`
	ValueWei    ValueWei    `json:"value_wei"`
	TxTime      int64       `json:"tx_time"`
}

// TransferFilter is the optional-field filter algebra for ListTransfers.
// Zero values mean "unset" except where noted.
type TransferFilter struct {
	Sender      *Address
	Receiver    *Address
	Participant *Address
	StartTime   *int64
	EndTime     *int64
	Page        int
	PageSize    int
}

// Normalize applies the default/clamp rules from the filter algebra: page
// defaults to 1 (page <= 0 is treated as 1), page_size defaults to 50 and is
// clamped to [1, 100].
func (f TransferFilter) Normalize() TransferFilter {
	out := f
	if out.Page <= 0 {
		out.Page = 1
	}
	switch {
	case out.PageSize <= 0:
		out.PageSize = 50
	case out.PageSize > 100:
		out.PageSize = 100
	}
	return out
}

// Storage error kinds. The Repository distinguishes not-found, conflict, and
// other failures; callers type-assert/errors.Is against these sentinels or
// the typed errors below rather than matching driver-specific error values.
var (
	ErrTransferNotFound = errors.New("persist: transfer not found")
)

// ErrConflict wraps a primary-key collision surfaced by a backend that
// cannot apply ON CONFLICT DO NOTHING itself (the Postgres backend never
// returns this; it's here for alternate backends implementing Repository).
type ErrConflict struct {
	TxHash   Hash
	LogIndex int64
}

func (e ErrConflict) Error() string {
	return fmt.Sprintf("persist: conflict on (%s, %d)", e.TxHash, e.LogIndex)
}

// Repository is the sole gateway to persistent storage for Transfer
// records. The indexer and the query API depend only on this capability
// set, never on a concrete SQL driver.
type Repository interface {
	// GetLastSavedBlock returns the maximum block_number present, or nil if
	// the table is empty. An empty table is not an error.
	GetLastSavedBlock(ctx context.Context) (*BlockNumber, error)

	// InsertTransfer upserts with ON CONFLICT (tx_hash, log_index) DO
	// NOTHING semantics: success means the record is either newly written
	// or was already present with an equal key.
	InsertTransfer(ctx context.Context, t Transfer) error

	// GetTransferByHash returns a single record by tx_hash. If multiple
	// logs share a tx_hash, the first the store yields is returned; callers
	// may not depend on which.
	GetTransferByHash(ctx context.Context, hash Hash) (Transfer, error)

	// ListTransfers returns records matching filter, ordered by
	// (block_number DESC, log_index DESC), paginated per filter.Page and
	// filter.PageSize.
	ListTransfers(ctx context.Context, filter TransferFilter) ([]Transfer, error)
}
