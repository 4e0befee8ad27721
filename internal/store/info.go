package store

import (
	"database/sql"
	"encoding/json"
	"math"

	"github.com/pkg/errors"
)

const (
	infoKey  = "info"
	peersKey = "peers"
)

// upsertInformation JSON-encodes value and replaces the single row at key
// via DELETE+INSERT.
func (s *BlockchainDB) upsertInformation(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encoding %s", key)
	}

	tx, err := s.beginTx()
	if err != nil {
		return err
	}
	defer tx.rollbackUnlessCommitted()

	if _, err := tx.tx.Exec("DELETE FROM information WHERE idx = "+s.placeholder(1), key); err != nil {
		return errors.Wrapf(err, "deleting existing %s row", key)
	}
	if _, err := tx.tx.Exec(
		"INSERT INTO information (idx, data) VALUES ("+s.placeholder(1)+", "+s.placeholder(2)+")",
		key, data); err != nil {
		return errors.Wrapf(err, "inserting %s row", key)
	}

	return tx.commit()
}

// SaveInformation upserts the live /info snapshot fetched from upstream.
func (s *BlockchainDB) SaveInformation(info interface{}) error {
	return s.upsertInformation(infoKey, info)
}

// SavePeers upserts the live /peers snapshot fetched from upstream.
func (s *BlockchainDB) SavePeers(peers interface{}) error {
	return s.upsertInformation(peersKey, peers)
}

func (s *BlockchainDB) rawInformation(key string) (map[string]interface{}, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM information WHERE idx = "+s.placeholder(1), key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s row", key)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrapf(err, "decoding %s row", key)
	}
	return out, nil
}

// Peers returns the last snapshot saved by SavePeers, unmodified.
func (s *BlockchainDB) Peers() (map[string]interface{}, error) {
	return s.rawInformation(peersKey)
}

// Info returns the mirrored /info response: the live snapshot with the
// height, version, and difficulty fields overwritten from the local top
// block, since a cache API reports its own mirrored height rather than
// relaying whatever the live node last said.
//
// networkHeight is reported as the live snapshot's value minus one, and
// synced is true when the local top height equals that reported value.
func (s *BlockchainDB) Info() (map[string]interface{}, error) {
	raw, err := s.rawInformation(infoKey)
	if err == ErrNotFound {
		raw = map[string]interface{}{}
	} else if err != nil {
		return nil, err
	}

	top, err := s.LastBlock()
	if err != nil && err != ErrNotFound {
		return nil, err
	}

	networkHeight, ok := raw["networkHeight"].(float64)
	if ok {
		networkHeight--
	}

	out := make(map[string]interface{}, len(raw)+8)
	for k, v := range raw {
		out[k] = v
	}
	out["isCacheApi"] = true

	if top != nil {
		out["height"] = top.Height
		out["lastBlockIndex"] = top.Height
		out["difficulty"] = top.Difficulty
		out["hashrate"] = math.Round(float64(top.Difficulty) / 30)
		out["majorVersion"] = top.MajorVersion
		out["minorVersion"] = top.MinorVersion
		out["synced"] = float64(top.Height) == networkHeight
	}
	out["networkHeight"] = networkHeight

	nonCoinbase, err := s.nonCoinbaseTransactionCount()
	if err != nil {
		return nil, err
	}
	out["transactionsSize"] = nonCoinbase

	return out, nil
}

func (s *BlockchainDB) nonCoinbaseTransactionCount() (int64, error) {
	var count int64
	err := s.db.QueryRow("SELECT COUNT(*) FROM transactions WHERE coinbase = 0").Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "counting non-coinbase transactions")
	}
	return count, nil
}

// Fee returns the mirrored fee() call: a static, read-only reflection of
// the FEE_ADDRESS/FEE_AMOUNT configuration.
func (s *BlockchainDB) Fee() (address string, amount uint64) {
	if s.cfg == nil {
		return "", 0
	}
	return s.cfg.FeeAddress, s.cfg.FeeAmount
}
