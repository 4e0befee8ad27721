package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TurtlePay/blockchain-database/internal/models"
)

type countingDecoder struct {
	blockDecodes int
	txDecodes    int
}

func (d *countingDecoder) DecodeBlock(blob []byte) (string, time.Time, error) {
	d.blockDecodes++
	return "hash-" + string(blob), time.Unix(1700000000, 0).UTC(), nil
}

func (d *countingDecoder) DecodeTransaction(blob []byte) (models.Transaction, error) {
	d.txDecodes++
	return models.Transaction{Hash: "tx-" + string(blob)}, nil
}

func TestDecodeBlockMarksFirstTransactionCoinbase(t *testing.T) {
	dec := &countingDecoder{}
	a := NewAdapter(dec)

	block, err := a.DecodeBlock(5, models.RawBlock{
		BlockBlob:        []byte("blob"),
		TransactionBlobs: [][]byte{[]byte("tx0"), []byte("tx1")},
	})
	require.NoError(t, err)
	require.Equal(t, uint64(5), block.Height)
	require.Equal(t, "hash-blob", block.Hash)
	require.True(t, block.Transactions[0].Coinbase)
	require.False(t, block.Transactions[1].Coinbase)
}

func TestDecodeBlockHashIsCached(t *testing.T) {
	dec := &countingDecoder{}
	a := NewAdapter(dec)

	_, err := a.DecodeBlock(1, models.RawBlock{BlockBlob: []byte("blob")})
	require.NoError(t, err)
	_, err = a.DecodeBlock(2, models.RawBlock{BlockBlob: []byte("blob")})
	require.NoError(t, err)

	require.Equal(t, 1, dec.blockDecodes, "second decode of an identical blob should hit the hash/timestamp cache")
}

func TestDecodeTransactionPassesThrough(t *testing.T) {
	dec := &countingDecoder{}
	a := NewAdapter(dec)

	tx, err := a.DecodeTransaction([]byte("blob"))
	require.NoError(t, err)
	require.Equal(t, "tx-blob", tx.Hash)
}

func TestPlaceholderDecoderPanics(t *testing.T) {
	require.Panics(t, func() {
		_, _, _ = PlaceholderDecoder{}.DecodeBlock(nil)
	})
	require.Panics(t, func() {
		_, _ = PlaceholderDecoder{}.DecodeTransaction(nil)
	})
}
