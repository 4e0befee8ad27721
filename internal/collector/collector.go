// Package collector implements the synchronization engine: the control loop
// that periodically negotiates a resume point with upstream, pulls raw
// blocks, decodes and persists them, and recovers from failure by
// rewinding and adaptively shrinking its batch size.
package collector

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/TurtlePay/blockchain-database/internal/codec"
	"github.com/TurtlePay/blockchain-database/internal/logger"
	"github.com/TurtlePay/blockchain-database/internal/models"
	"github.com/TurtlePay/blockchain-database/internal/store"
	"github.com/TurtlePay/blockchain-database/internal/upstream"
)

var log = logger.Get(logger.TagCollector)

// headerChunk is the bulk-headers page size.
const headerChunk = 30

// indexChunk is the fallback chunk size for the index-fetch subroutine.
const indexChunk = 11

// Collector is the synchronization engine. It owns the storage layer and
// the upstream client for its lifetime; neither refers back to it.
type Collector struct {
	store    *store.BlockchainDB
	upstream *upstream.Client
	codec    *codec.Adapter

	running   int32
	destroyed int32

	batchMu   sync.Mutex
	batchSize int

	infoTicker *pausableTicker
	poolTicker *pausableTicker
	syncTicker *pausableTicker
}

// New constructs a Collector over the given storage layer, upstream client,
// and codec adapter.
func New(db *store.BlockchainDB, up *upstream.Client, dec *codec.Adapter) *Collector {
	db.SetDecoder(dec)
	c := &Collector{
		store:     db,
		upstream:  up,
		codec:     dec,
		batchSize: defaultBatchSize,
	}
	c.infoTicker = newPausableTicker("info", c.infoTick)
	c.poolTicker = newPausableTicker("pool", c.poolTick)
	c.syncTicker = newPausableTicker("sync", c.syncTick)
	return c
}

// Init runs the startup sequence: schema init, consistency recovery,
// genesis bootstrap if needed, then registers the three tickers. Any failing
// step, genesis bootstrap included, is returned as an error; the caller
// treats it as fatal per the CLI exit-code contract.
func (c *Collector) Init(ctx context.Context) error {
	if atomic.LoadInt32(&c.destroyed) == 1 {
		return errors.New("collector: cannot init a destroyed collector")
	}
	if !atomic.CompareAndSwapInt32(&c.running, 0, 1) {
		return errors.New("collector: already running")
	}

	if err := c.store.Init(); err != nil {
		return errors.Wrap(err, "initializing schema")
	}

	if err := c.store.RecoverConsistency(); err != nil {
		return errors.Wrap(err, "running startup consistency recovery")
	}

	haveGenesis, err := c.store.HaveGenesis()
	if err != nil {
		return errors.Wrap(err, "checking for genesis")
	}
	if !haveGenesis {
		if err := c.bootstrapGenesis(ctx); err != nil {
			return errors.Wrap(err, "bootstrapping genesis")
		}
	}

	c.infoTicker.start()
	c.poolTicker.start()
	c.syncTicker.start()

	return nil
}

// bootstrapGenesis fetches raw block 0, its output indexes, and its header,
// and persists them in that order: raw block, then indexes, then header, so
// both the block_meta and transaction_outputs foreign keys are satisfied by
// the time each insert runs.
func (c *Collector) bootstrapGenesis(ctx context.Context) error {
	blob, txBlobs, err := c.upstream.RawBlock(ctx, 0)
	if err != nil {
		return errors.Wrap(err, "fetching genesis raw block")
	}

	block, err := c.codec.DecodeBlock(0, models.RawBlock{BlockBlob: blob, TransactionBlobs: txBlobs})
	if err != nil {
		return errors.Wrap(err, "decoding genesis block")
	}

	if _, _, err := c.store.SaveRawBlocks([]*models.Block{block}); err != nil {
		return errors.Wrap(err, "persisting genesis raw block")
	}

	wireIndexes, err := c.upstream.Indexes(ctx, 0, 0)
	if err != nil {
		return errors.Wrap(err, "fetching genesis indexes")
	}
	if err := c.store.SaveOutputGlobalIndexes(store.TransactionGlobalIndexes(wireIndexes)); err != nil {
		return errors.Wrap(err, "persisting genesis indexes")
	}

	headers, err := c.upstream.BlockHeaders(ctx, 0)
	if err != nil {
		return errors.Wrap(err, "fetching genesis header")
	}
	if err := c.store.SaveBlocksMeta(toModelHeaders(headers)); err != nil {
		return errors.Wrap(err, "persisting genesis header")
	}

	return nil
}

// Stop destroys all three tickers, waits for any in-flight tick to
// complete, marks the collector destroyed, and closes the storage layer.
// A destroyed Collector cannot be restarted.
func (c *Collector) Stop() error {
	if !atomic.CompareAndSwapInt32(&c.destroyed, 0, 1) {
		return nil
	}
	c.infoTicker.destroy()
	c.poolTicker.destroy()
	c.syncTicker.destroy()
	atomic.StoreInt32(&c.running, 0)
	return c.store.Close()
}

func toModelHeaders(headers []upstream.Header) []models.BlockHeader {
	out := make([]models.BlockHeader, len(headers))
	for i, h := range headers {
		out[i] = models.BlockHeader{
			Hash:                         h.Hash,
			PrevHash:                     h.PrevHash,
			BaseReward:                   h.BaseReward,
			Difficulty:                   h.Difficulty,
			MajorVersion:                 h.MajorVersion,
			MinorVersion:                 h.MinorVersion,
			Nonce:                        h.Nonce,
			Size:                         h.Size,
			AlreadyGeneratedCoins:        h.AlreadyGeneratedCoins,
			AlreadyGeneratedTransactions: h.AlreadyGeneratedTransactions,
			Reward:                       h.Reward,
			SizeMedian:                   h.SizeMedian,
			TotalFeeAmount:               h.TotalFeeAmount,
			TransactionsCumulativeSize:   h.TransactionsCumulativeSize,
			TransactionsCount:            h.TransactionsCount,
			Orphan:                       h.Orphan,
			Penalty:                      h.Penalty,
			Height:                       h.Height,
		}
	}
	return out
}
