package store

import "github.com/pkg/errors"

// ErrMethodNotAvailable is returned by every mirrored method that would
// require mutating or authoritative-node behavior the mirror does not
// perform.
var ErrMethodNotAvailable = errors.New("method not available")

// BlockTemplate is unavailable on a read-only mirror.
func (s *BlockchainDB) BlockTemplate(_ string) (interface{}, error) {
	return nil, ErrMethodNotAvailable
}

// SubmitBlock is unavailable on a read-only mirror.
func (s *BlockchainDB) SubmitBlock(_ []byte) error {
	return ErrMethodNotAvailable
}

// SubmitTransaction is unavailable on a read-only mirror.
func (s *BlockchainDB) SubmitTransaction(_ []byte) error {
	return ErrMethodNotAvailable
}
