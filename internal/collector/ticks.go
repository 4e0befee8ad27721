package collector

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/TurtlePay/blockchain-database/internal/models"
	"github.com/TurtlePay/blockchain-database/internal/panics"
	"github.com/TurtlePay/blockchain-database/internal/store"
	"github.com/TurtlePay/blockchain-database/internal/upstream"
)

// infoTick fetches /info and /peers and upserts them into the information
// table. Errors are logged and swallowed; the next tick retries.
func (c *Collector) infoTick() {
	ctx, cancel := context.WithTimeout(context.Background(), tickInterval)
	defer cancel()

	info, err := c.upstream.Info(ctx)
	if err != nil {
		log.Warnf("info tick: fetching /info: %s", err)
		return
	}
	if err := c.store.SaveInformation(info); err != nil {
		log.Warnf("info tick: saving info: %s", err)
		return
	}

	peers, err := c.upstream.Peers(ctx)
	if err != nil {
		log.Warnf("info tick: fetching /peers: %s", err)
		return
	}
	if err := c.store.SavePeers(peers); err != nil {
		log.Warnf("info tick: saving peers: %s", err)
		return
	}
}

// poolTick fetches the raw transaction pool and snapshot-replaces the pool
// table. Errors are swallowed.
func (c *Collector) poolTick() {
	ctx, cancel := context.WithTimeout(context.Background(), tickInterval)
	defer cancel()

	blobs, err := c.upstream.RawTransactionPool(ctx)
	if err != nil {
		log.Warnf("pool tick: fetching raw transaction pool: %s", err)
		return
	}

	txns := make([]models.Transaction, 0, len(blobs))
	for _, blob := range blobs {
		tx, err := c.codec.DecodeTransaction(blob)
		if err != nil {
			log.Warnf("pool tick: decoding pool transaction: %s", err)
			return
		}
		txns = append(txns, tx)
	}

	if err := c.store.SaveTransactionPool(txns); err != nil {
		log.Warnf("pool tick: saving transaction pool: %s", err)
	}
}

// currentBatchSize returns the batch size under the tick-owned lock. The
// field is mutated only by the sync tick, which is serial with itself, but
// reads still take the lock for safety against diagnostics callers.
func (c *Collector) currentBatchSize() int {
	c.batchMu.Lock()
	defer c.batchMu.Unlock()
	return c.batchSize
}

func (c *Collector) setBatchSize(n int) {
	c.batchMu.Lock()
	c.batchSize = n
	c.batchMu.Unlock()
}

// syncTick is the engine's heart.
func (c *Collector) syncTick() {
	ctx := context.Background()

	if err := c.store.RecoverConsistency(); err != nil {
		log.Warnf("sync tick: consistency recovery: %s", err)
		return
	}

	checkpoints, err := c.store.HashesForSync()
	if err != nil {
		log.Warnf("sync tick: computing checkpoints: %s", err)
		return
	}

	var minHeight uint64
	if len(checkpoints) > 0 {
		if h, err := c.store.HeightFromHash(checkpoints[0]); err == nil {
			minHeight = h
		}
	}

	batchSize := c.currentBatchSize()
	synced, syncBlocks, err := c.upstream.RawSync(ctx, checkpoints, 0, 0, false, batchSize)
	if err != nil {
		c.failTick(minHeight, "fetching rawSync", err)
		return
	}
	if synced || len(syncBlocks) == 0 {
		c.increase()
		return
	}

	blocks := make([]*models.Block, 0, len(syncBlocks))
	for _, sb := range syncBlocks {
		b, err := c.codec.DecodeBlock(sb.Height, models.RawBlock{BlockBlob: sb.BlockBlob, TransactionBlobs: sb.TransactionBlobs})
		if err != nil {
			c.failTick(minHeight, "decoding synced block", err)
			return
		}
		blocks = append(blocks, b)
	}

	heights, hashes, err := c.store.SaveRawBlocks(blocks)
	if err != nil {
		c.failTick(minHeight, "saving raw blocks", err)
		return
	}
	if len(heights) == 0 {
		c.increase()
		return
	}
	rangeMin, rangeMax := heights[0], heights[len(heights)-1]

	expectedTxns := countTransactions(blocks)
	indexes, err := c.fetchIndexes(ctx, rangeMin, rangeMax, expectedTxns)
	if err != nil {
		c.failTick(rangeMin, "fetching output indexes", err)
		return
	}
	if err := c.store.SaveOutputGlobalIndexes(indexes); err != nil {
		c.failTick(rangeMin, "saving output indexes", err)
		return
	}

	headers, err := c.fetchHeaders(ctx, rangeMin, rangeMax, hashSet(hashes))
	if err != nil {
		c.failTick(rangeMin, "fetching block headers", err)
		return
	}
	if err := c.store.SaveBlocksMeta(headers); err != nil {
		c.failTick(rangeMin, "saving block headers", err)
		return
	}

	c.increase()
}

func (c *Collector) increase() {
	c.setBatchSize(increaseBatchSize(c.currentBatchSize()))
}

// failTick implements step 10: rewind to minHeight, reduce the batch size,
// and never propagate the error further.
func (c *Collector) failTick(minHeight uint64, stage string, err error) {
	log.Warnf("sync tick: %s: %s; rewinding to %d and reducing batch size", stage, err, minHeight)
	if rewindErr := c.store.Rewind(minHeight); rewindErr != nil {
		log.Errorf("sync tick: rewind to %d failed: %s", minHeight, rewindErr)
	}
	c.setBatchSize(reduceBatchSize(c.currentBatchSize()))
}

func countTransactions(blocks []*models.Block) int {
	n := 0
	for _, b := range blocks {
		n += len(b.Transactions)
	}
	return n
}

func hashSet(hashes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		set[h] = struct{}{}
	}
	return set
}

// fetchIndexes is the index-fetch subroutine: a single full-range attempt,
// falling back to chunks of indexChunk with unbounded retry on failure.
func (c *Collector) fetchIndexes(ctx context.Context, start, end uint64, expected int) (store.TransactionGlobalIndexes, error) {
	wire, err := c.upstream.Indexes(ctx, start, end)
	if err == nil && len(wire) == expected {
		return store.TransactionGlobalIndexes(wire), nil
	}

	merged := make(store.TransactionGlobalIndexes)
	for i := start; i <= end; i += indexChunk {
		chunkEnd := i + indexChunk - 1
		if chunkEnd > end {
			chunkEnd = end
		}
		chunkWire := c.fetchIndexChunkWithRetry(ctx, i, chunkEnd)
		for k, v := range chunkWire {
			merged[k] = v
		}
	}

	if len(merged) != expected {
		return nil, errors.Errorf("index count mismatch after chunked fetch: got %d, expected %d", len(merged), expected)
	}
	return merged, nil
}

func (c *Collector) fetchIndexChunkWithRetry(ctx context.Context, start, end uint64) map[string][]uint64 {
	for {
		wire, err := c.upstream.Indexes(ctx, start, end)
		if err == nil {
			return wire
		}
		log.Warnf("sync tick: fetching index chunk [%d,%d]: %s, retrying", start, end, err)
		time.Sleep(time.Second)
	}
}

// fetchHeaders issues the header range's headerChunk-sized steps
// concurrently, bounded by the number of chunks, retrying each step's
// bulk call up to 5 times and falling
// back to headerChunk sequential per-height fetches (each a bulk-headers
// call at that height, with unbounded retry) if the bulk call still
// returns empty. The union is filtered to hashes
// actually persisted this tick, deduplicated, and committed in the single
// SaveBlocksMeta call made by the caller.
func (c *Collector) fetchHeaders(ctx context.Context, minHeight, maxHeight uint64, persisted map[string]struct{}) ([]models.BlockHeader, error) {
	var steps []uint64
	for h := maxHeight; ; {
		steps = append(steps, h)
		if h <= minHeight || h < headerChunk {
			break
		}
		h -= headerChunk
	}

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	seen := make(map[string]struct{})
	var out []models.BlockHeader

	for _, h := range steps {
		h := h
		g.Go(func() error {
			defer panics.HandlePanic(log, nil)
			headers, err := c.fetchHeaderStepWithRetry(gctx, h)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, hdr := range headers {
				if _, ok := persisted[hdr.Hash]; !ok {
					continue
				}
				if _, dup := seen[hdr.Hash]; dup {
					continue
				}
				seen[hdr.Hash] = struct{}{}
				out = append(out, hdr)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Collector) fetchHeaderStepWithRetry(ctx context.Context, heightDesc uint64) ([]models.BlockHeader, error) {
	var lastErr error
	for attempt := 0; attempt < 5; attempt++ {
		wire, err := c.upstream.BlockHeaders(ctx, heightDesc)
		if err == nil && len(wire) > 0 {
			return toModelHeaders(wire), nil
		}
		lastErr = err
		log.Warnf("sync tick: bulk headers at %d attempt %d: %v", heightDesc, attempt+1, err)
	}

	// Bulk call still empty: fall back to one bulk-headers call per height,
	// sequentially, each retried without bound.
	var out []models.BlockHeader
	for i := 0; i < headerChunk; i++ {
		height := heightDesc - uint64(i)
		if height > heightDesc {
			break // underflow past height 0
		}
		wire := c.fetchSingleHeaderWithRetry(ctx, height)
		out = append(out, toModelHeaders(wire)...)
		if height == 0 {
			break
		}
	}
	if out == nil && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

func (c *Collector) fetchSingleHeaderWithRetry(ctx context.Context, height uint64) []upstream.Header {
	for {
		wire, err := c.upstream.BlockHeaders(ctx, height)
		if err == nil && len(wire) > 0 {
			return wire
		}
		log.Warnf("sync tick: single header fetch at %d: %v, retrying", height, err)
		time.Sleep(time.Second)
	}
}
