package chains

import "time"

// Chain holds static metadata for a supported network
type Chain struct {
	Name           string
	ChainID        int64
	NativeToken    string
	NativePriceUSD float64 // reference price for gas-cost conversion
	SwapGasUnits   uint64
	BridgeGasUnits uint64
}

// Supported chains, including Layer 2s and independent networks
var registry = map[string]Chain{
	"ethereum": {Name: "Ethereum", ChainID: 1, NativeToken: "ETH", NativePriceUSD: 3000, SwapGasUnits: 200000, BridgeGasUnits: 350000},
	"arbitrum": {Name: "Arbitrum One", ChainID: 42161, NativeToken: "ETH", NativePriceUSD: 3000, SwapGasUnits: 200000, BridgeGasUnits: 350000},
	"optimism": {Name: "Optimism", ChainID: 10, NativeToken: "ETH", NativePriceUSD: 3000, SwapGasUnits: 200000, BridgeGasUnits: 350000},
	"base":     {Name: "Base", ChainID: 8453, NativeToken: "ETH", NativePriceUSD: 3000, SwapGasUnits: 200000, BridgeGasUnits: 350000},
	"zksync":   {Name: "zkSync Era", ChainID: 324, NativeToken: "ETH", NativePriceUSD: 3000, SwapGasUnits: 200000, BridgeGasUnits: 350000},
	"polygon":  {Name: "Polygon PoS", ChainID: 137, NativeToken: "MATIC", NativePriceUSD: 0.5, SwapGasUnits: 200000, BridgeGasUnits: 350000},
	"bsc":      {Name: "BNB Chain", ChainID: 56, NativeToken: "BNB", NativePriceUSD: 550, SwapGasUnits: 200000, BridgeGasUnits: 350000},
	"avalanche": {Name: "Avalanche C-Chain", ChainID: 43114, NativeToken: "AVAX", NativePriceUSD: 25, SwapGasUnits: 200000, BridgeGasUnits: 350000},
	"fantom":   {Name: "Fantom Opera", ChainID: 250, NativeToken: "FTM", NativePriceUSD: 0.4, SwapGasUnits: 200000, BridgeGasUnits: 350000},
}

// Get returns metadata for a chain name
func Get(name string) (Chain, bool) {
	c, ok := registry[name]
	return c, ok
}

// GasCostUSD converts a gas price in gwei into quote-currency cost for the
// given gas budget on the chain. Unknown chains fall back to Ethereum
// mainnet pricing.
func GasCostUSD(chain string, priceGwei float64, gasUnits uint64) float64 {
	c, ok := registry[chain]
	if !ok {
		c = registry["ethereum"]
	}
	return priceGwei * float64(gasUnits) * 1e-9 * c.NativePriceUSD
}

// DefaultBridgeLatency is the fallback estimate when a bridge does not
// advertise one
const DefaultBridgeLatency = 10 * time.Minute
