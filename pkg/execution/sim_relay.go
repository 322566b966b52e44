package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// SimulatedRelay confirms chain legs after a fixed latency without touching a
// network. Used in paper-trading mode when no relay endpoints are configured.
type SimulatedRelay struct {
	latency time.Duration
}

// NewSimulatedRelay creates a relay that confirms after the given latency
func NewSimulatedRelay(latency time.Duration) *SimulatedRelay {
	return &SimulatedRelay{latency: latency}
}

// SubmitPrivate accepts the transaction and assigns it a fabricated hash.
// Refuses transactions that carry a prior submission mark.
func (r *SimulatedRelay) SubmitPrivate(ctx context.Context, tx *types.ChainTx) (common.Hash, error) {
	if !tx.Submitted.IsZero() {
		return common.Hash{}, fmt.Errorf("tx on %s already submitted at %s", tx.Chain, tx.Submitted)
	}
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}

	hash := common.BytesToHash(crypto.Keccak256([]byte(uuid.New().String())))
	tx.Hash = hash
	tx.Submitted = time.Now()
	return hash, nil
}

// WaitConfirmed reports confirmation once the simulated latency passes
func (r *SimulatedRelay) WaitConfirmed(ctx context.Context, chain string, hash common.Hash) error {
	select {
	case <-time.After(r.latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
