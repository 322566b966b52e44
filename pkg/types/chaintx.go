package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ChainTx is the on-chain leg of a trade, submitted through a private relay
type ChainTx struct {
	Chain     string          `json:"chain"`
	Hash      common.Hash     `json:"hash,omitempty"`
	From      common.Address  `json:"from"`
	To        *common.Address `json:"to"`
	Value     *big.Int        `json:"value"`
	GasPrice  *big.Int        `json:"gasPrice"`
	GasLimit  uint64          `json:"gasLimit"`
	Nonce     uint64          `json:"nonce"`
	Data      []byte          `json:"data"`
	ChainID   *big.Int        `json:"chainId"`
	Submitted time.Time       `json:"submitted,omitempty"`
}

// ChainTxKind classifies the on-chain operation by its calldata
type ChainTxKind string

const (
	ChainTxTransfer ChainTxKind = "transfer"
	ChainTxSwap     ChainTxKind = "swap"
	ChainTxBridge   ChainTxKind = "bridge"
	ChainTxContract ChainTxKind = "contract"
)

// Kind determines the operation type from the transaction calldata
func (t *ChainTx) Kind() ChainTxKind {
	if len(t.Data) == 0 {
		return ChainTxTransfer
	}

	if len(t.Data) >= 4 {
		switch common.Bytes2Hex(t.Data[:4]) {
		case "7ff36ab5", "18cbafe5", "38ed1739": // router swap selectors
			return ChainTxSwap
		case "9fbf10fc": // stargate swap
			return ChainTxBridge
		}
	}

	return ChainTxContract
}

// FeeCap returns the maximum wei this transaction can spend on gas
func (t *ChainTx) FeeCap() *big.Int {
	return new(big.Int).Mul(t.GasPrice, big.NewInt(int64(t.GasLimit)))
}
