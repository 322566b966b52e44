package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// RelayConfig maps chains to private relay endpoints
type RelayConfig struct {
	Endpoints    map[string]string // chain -> relay RPC URL
	PollInterval time.Duration     // receipt polling cadence
}

// Relay submits chain legs through private transaction endpoints so pending
// trades never sit in a public mempool. A transaction that was handed to a
// relay is never re-sent verbatim.
type Relay struct {
	config *RelayConfig

	mu        sync.Mutex
	clients   map[string]*rpc.Client
	submitted map[common.Hash]time.Time
}

// NewRelay creates a private relay submitter
func NewRelay(config *RelayConfig) *Relay {
	if config.PollInterval == 0 {
		config.PollInterval = 2 * time.Second
	}
	return &Relay{
		config:    config,
		clients:   make(map[string]*rpc.Client),
		submitted: make(map[common.Hash]time.Time),
	}
}

// SubmitPrivate sends the transaction to the chain's private relay and
// returns its hash. Refuses transactions that carry a prior submission mark.
func (r *Relay) SubmitPrivate(ctx context.Context, tx *types.ChainTx) (common.Hash, error) {
	if !tx.Submitted.IsZero() {
		return common.Hash{}, fmt.Errorf("tx on %s already submitted at %s", tx.Chain, tx.Submitted)
	}

	client, err := r.client(ctx, tx.Chain)
	if err != nil {
		return common.Hash{}, err
	}

	params := map[string]interface{}{
		"from":     tx.From,
		"to":       tx.To,
		"value":    (*hexutil.Big)(tx.Value),
		"gasPrice": (*hexutil.Big)(tx.GasPrice),
		"gas":      hexutil.Uint64(tx.GasLimit),
		"data":     hexutil.Bytes(tx.Data),
	}

	var hash common.Hash
	if err := client.CallContext(ctx, &hash, "eth_sendPrivateTransaction", params); err != nil {
		return common.Hash{}, fmt.Errorf("relay %s: %w", tx.Chain, err)
	}

	tx.Hash = hash
	tx.Submitted = time.Now()

	r.mu.Lock()
	r.submitted[hash] = tx.Submitted
	r.mu.Unlock()
	return hash, nil
}

// WaitConfirmed polls for the transaction receipt until it lands or the
// context expires
func (r *Relay) WaitConfirmed(ctx context.Context, chain string, hash common.Hash) error {
	client, err := r.client(ctx, chain)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		var receipt json.RawMessage
		if err := client.CallContext(ctx, &receipt, "eth_getTransactionReceipt", hash); err == nil {
			if len(receipt) > 0 && string(receipt) != "null" {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("confirmation of %s on %s: %w", hash.Hex(), chain, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (r *Relay) client(ctx context.Context, chain string) (*rpc.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[chain]; ok {
		return client, nil
	}

	endpoint, ok := r.config.Endpoints[chain]
	if !ok {
		return nil, fmt.Errorf("no relay endpoint for chain %s", chain)
	}
	client, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial relay %s: %w", endpoint, err)
	}
	r.clients[chain] = client
	return client, nil
}

// Close releases the underlying RPC connections
func (r *Relay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, client := range r.clients {
		client.Close()
	}
	r.clients = make(map[string]*rpc.Client)
}
