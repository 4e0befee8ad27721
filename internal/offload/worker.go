// Package offload implements an optional topology of a pool of workers
// that persist individual raw blocks drawn from a durable request/reply
// queue, using the same storage layer the collector uses.
//
// The message-queue transport is an out-of-scope external collaborator;
// this package's concrete default is amqp091-go.
package offload

import (
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/pkg/errors"

	"github.com/TurtlePay/blockchain-database/internal/codec"
	"github.com/TurtlePay/blockchain-database/internal/logger"
	"github.com/TurtlePay/blockchain-database/internal/models"
	"github.com/TurtlePay/blockchain-database/internal/store"
)

var log = logger.Get(logger.TagOffload)

// QueueName is the durable request queue raw-block jobs arrive on.
const QueueName = "blockchain.raw_blocks"

// prefetchCount is the number of unacknowledged deliveries a single worker
// holds at once ("one prefetch credit at a time").
const prefetchCount = 1

// Request is the decoded shape of one request-queue message: a raw block at
// a known height.
type Request struct {
	Height    uint64   `json:"height"`
	BlockBlob []byte   `json:"block_blob"`
	TxBlobs   [][]byte `json:"tx_blobs"`
}

// Reply is the decoded shape of the success reply a worker publishes after
// persisting (or short-circuiting) a block.
type Reply struct {
	Height    uint64 `json:"height"`
	Hash      string `json:"hash"`
	TxnCount  uint32 `json:"txn_count"`
	AlreadyIn bool   `json:"already_ingested"`
}

// Worker processes raw-block requests against the shared storage layer.
type Worker struct {
	store *store.BlockchainDB
	codec *codec.Adapter
	ch    *amqp.Channel
}

// NewWorker wires a Worker to an already-open AMQP channel and the shared
// storage layer.
func NewWorker(ch *amqp.Channel, db *store.BlockchainDB, dec *codec.Adapter) (*Worker, error) {
	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		return nil, errors.Wrap(err, "setting prefetch count")
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return nil, errors.Wrap(err, "declaring request queue")
	}
	return &Worker{store: db, codec: dec, ch: ch}, nil
}

// Run consumes deliveries until the channel closes or done is signaled.
func (w *Worker) Run(done <-chan struct{}) error {
	deliveries, err := w.ch.Consume(QueueName, "", false, false, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "starting consumer")
	}

	for {
		select {
		case <-done:
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			w.handle(d)
		}
	}
}

func (w *Worker) handle(d amqp.Delivery) {
	var req Request
	if err := json.Unmarshal(d.Body, &req); err != nil {
		log.Errorf("offload: decoding request: %s", err)
		_ = d.Nack(false, false)
		return
	}

	reply, err := w.process(req)
	if err != nil {
		log.Errorf("offload: processing block at height %d: %s", req.Height, err)
		_ = d.Nack(false, true)
		return
	}

	if err := w.publishReply(d, reply); err != nil {
		log.Errorf("offload: publishing reply: %s", err)
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

// process decodes the block, short-circuits if it is already mirrored, and
// otherwise persists it through the same storage layer the collector uses.
func (w *Worker) process(req Request) (Reply, error) {
	block, err := w.codec.DecodeBlock(req.Height, models.RawBlock{BlockBlob: req.BlockBlob, TransactionBlobs: req.TxBlobs})
	if err != nil {
		return Reply{}, errors.Wrap(err, "decoding raw block")
	}

	exists, height, txnCount, err := w.store.BlockExists(block.Hash)
	if err != nil {
		return Reply{}, errors.Wrap(err, "checking block existence")
	}
	if exists {
		return Reply{Height: height, Hash: block.Hash, TxnCount: txnCount, AlreadyIn: true}, nil
	}

	if _, _, err := w.store.SaveRawBlocks([]*models.Block{block}); err != nil {
		return Reply{}, errors.Wrap(err, "persisting raw block")
	}

	nonCoinbase := uint32(0)
	for _, t := range block.Transactions {
		if !t.Coinbase {
			nonCoinbase++
		}
	}
	return Reply{Height: block.Height, Hash: block.Hash, TxnCount: nonCoinbase}, nil
}

func (w *Worker) publishReply(d amqp.Delivery, reply Reply) error {
	if d.ReplyTo == "" {
		return nil
	}
	body, err := json.Marshal(reply)
	if err != nil {
		return errors.Wrap(err, "encoding reply")
	}
	return w.ch.Publish("", d.ReplyTo, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: d.CorrelationId,
		Body:          body,
	})
}
