// Package evaluator is the key-free side of the protocol. It adds the two
// encrypted grids of an update request element-wise, either in-process as an
// actor or as a worker consuming jobs from Redis.
package evaluator

import (
	"github.com/cockroachdb/errors"

	"github.com/luxfi/fhegol/he"
	"github.com/luxfi/fhegol/life"
)

// Errors surfaced to the requesting side.
var (
	ErrResponseTimeout = errors.New("evaluator: no response within timeout")
	ErrOutOfOrder      = errors.New("evaluator: response for a later generation")
	ErrStopped         = errors.New("evaluator: stopped")
	ErrAlreadyStarted  = errors.New("evaluator: already started")
	ErrRemoteFailure   = errors.New("evaluator: remote job failed")
)

// Request carries both encrypted grids of one generation.
type Request struct {
	Generation uint64
	Old        []he.Ciphertext
	Neighbours []he.Ciphertext
}

// Response carries the encrypted sum grid, or the defect that aborted it.
type Response struct {
	Generation uint64
	Sum        []he.Ciphertext
	Err        error
}

// Evaluate returns Old[i] + Neighbours[i] for every i, in order. It never
// decrypts.
func Evaluate(ev he.Evaluator, req Request) ([]he.Ciphertext, error) {
	if len(req.Old) != len(req.Neighbours) {
		return nil, errors.Wrapf(life.ErrCountMismatch, "generation %d: %d old vs %d neighbour ciphertexts",
			req.Generation, len(req.Old), len(req.Neighbours))
	}
	sum := make([]he.Ciphertext, len(req.Old))
	for i := range req.Old {
		ct, err := ev.Add(req.Old[i], req.Neighbours[i])
		if err != nil {
			return nil, errors.Wrapf(err, "generation %d: cell %d", req.Generation, i)
		}
		sum[i] = ct
	}
	return sum, nil
}
