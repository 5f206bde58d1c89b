package indexer

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/mikeydub/indexing-serv/service/persist"
)

// TransferEventTopic is the canonical keccak256 hash of
// Transfer(address,address,uint256), the event signature every scanned log
// is filtered by and decoded against. One historical draft of this system
// carries a typo'd variant; this is the canonical value.
const TransferEventTopic = "0xddf252ad1e2e17e822157743b01e6a43b3b4f5144e1176b68b7320015b28de64"

// DecodeErr wraps a single malformed log; the batch continues past it.
type DecodeErr struct {
	TxHash common.Hash
	Reason string
}

func (e DecodeErr) Error() string {
	return fmt.Sprintf("indexer: cannot decode log in tx %s: %s", e.TxHash.Hex(), e.Reason)
}

// decodeTransfer turns a well-formed Transfer log into a persist.Transfer
// stamped with txTime (the batch's shared timestamp, per §4.2.2 step 6).
// A well-formed log has exactly three topics: the event signature and the
// 32-byte left-padded from/to addresses. The data payload is interpreted as
// a single big-endian unsigned integer, tolerant of a zero-length payload
// (decodes to zero) and of a payload shorter than 32 bytes; a payload
// longer than 32 bytes keeps only its last 32 bytes.
func decodeTransfer(log types.Log, txTime int64) (persist.Transfer, error) {
	if len(log.Topics) != 3 {
		return persist.Transfer{}, DecodeErr{TxHash: log.TxHash, Reason: fmt.Sprintf("expected 3 topics, got %d", len(log.Topics))}
	}

	sender := persist.AddressFromCommon(common.BytesToAddress(log.Topics[1].Bytes()))
	receiver := persist.AddressFromCommon(common.BytesToAddress(log.Topics[2].Bytes()))

	return persist.Transfer{
		TxHash:      persist.Hash(log.TxHash.Hex()),
		LogIndex:    int64(log.Index),
		BlockNumber: persist.BlockNumber(log.BlockNumber),
		Sender:      sender,
		Receiver:    persist.NullAddress{Address: receiver, Valid: true},
		ValueWei:    persist.ValueWeiFromBigEndian(log.Data),
		TxTime:      txTime,
	}, nil
}
