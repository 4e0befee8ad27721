// Package models holds the decoded, backend-agnostic domain types produced
// by the codec adapter and consumed by the storage layer. None of these
// types know how to serialize themselves to or from the raw upstream wire
// format; that is the codec adapter's job.
package models

import "time"

// InputType discriminates the sum type described in the design notes:
// inputs are either the single coinbase input of a miner transaction, or a
// key-type input spending a previous key output.
type InputType uint8

const (
	InputCoinbase InputType = iota
	InputKey
)

// OutputType discriminates transaction outputs. Only key-type outputs are
// persisted.
type OutputType uint8

const (
	OutputKey OutputType = iota
)

// Input is a single transaction input. For InputCoinbase, only BlockIndex is
// meaningful. For InputKey, Amount, KeyImage, and KeyOffsets are meaningful
// and KeyImage is the row's primary key component in transaction_inputs.
type Input struct {
	Type        InputType
	BlockIndex  uint32
	Amount      uint64
	KeyImage    string
	KeyOffsets  []uint64
}

// Output is a single transaction output. Only key-type outputs exist today
// (OutputType has one member), but the field stays explicit because the
// wire format carries a type discriminator.
type Output struct {
	Type      OutputType
	Index     uint32
	Amount    uint64
	OutputKey string
	GlobalIdx *uint64
}

// Transaction is a single decoded transaction, whether a block's coinbase
// transaction, one of its ordinary transactions, or a transaction pulled
// from the transaction pool.
type Transaction struct {
	Hash        string
	Coinbase    bool
	Fee         uint64
	Amount      uint64
	Size        uint32
	Inputs      []Input
	Outputs     []Output
	PaymentID   string
	PublicKey   string
	UnlockTime  uint64
	Data        []byte
}

// Block is a fully decoded raw block: header-independent fields plus its
// ordered transaction list, whose first element is always the coinbase
// transaction.
type Block struct {
	Hash         string
	Height       uint64
	Timestamp    time.Time
	Transactions []Transaction
	Data         []byte
}

// CoinbaseTransaction returns the block's miner transaction, always index 0.
func (b *Block) CoinbaseTransaction() *Transaction {
	if len(b.Transactions) == 0 {
		return nil
	}
	return &b.Transactions[0]
}

// UserTransactions returns every transaction after the coinbase one.
func (b *Block) UserTransactions() []Transaction {
	if len(b.Transactions) <= 1 {
		return nil
	}
	return b.Transactions[1:]
}

// BlockHeader carries the header fields that are not derivable from the raw
// block blob alone.
type BlockHeader struct {
	Hash                         string
	PrevHash                     string
	BaseReward                   uint64
	Difficulty                   uint64
	MajorVersion                 uint32
	MinorVersion                 uint32
	Nonce                        uint32
	Size                         uint32
	AlreadyGeneratedCoins        uint64
	AlreadyGeneratedTransactions uint64
	Reward                       uint64
	SizeMedian                   uint32
	TotalFeeAmount               uint64
	TransactionsCumulativeSize   uint32
	TransactionsCount            uint32
	Orphan                       bool
	Penalty                      float64
	Height                       uint64
	Timestamp                    time.Time
}

// RawBlock is the undecoded payload fetched from upstream: a block blob
// plus the blobs of every transaction it contains, in upstream order.
type RawBlock struct {
	BlockBlob        []byte
	TransactionBlobs [][]byte
}
