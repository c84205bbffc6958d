package domain

// Asset perp universe entry from the exchange meta endpoint.
type Asset struct {
	// Name coin symbol, e.g. "BTC".
	Name string `json:"name"`
	// SzDecimals size precision; also caps the price wire precision.
	SzDecimals int `json:"szDecimals"`
	// MaxLeverage maximum leverage offered for the asset.
	MaxLeverage int `json:"maxLeverage"`
}
