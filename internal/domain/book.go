package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceLevel one side's resting quantity at a price. Levels are replaced
// wholesale on every depth tick, the feed delivers full snapshots, not diffs.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// RankedLevel a price level with its cumulative size from the best price
// outward to and including this level.
type RankedLevel struct {
	PriceLevel
	Total decimal.Decimal
}

// Spread top-of-book spread. When either side of the book is empty, or the
// best bid is zero, the spread cannot be computed and Unavailable is set
// instead of publishing NaN-like garbage.
type Spread struct {
	// Absolute best ask minus best bid, wire-formatted.
	Absolute string
	// Percent spread as a percentage of the best bid, e.g. "0.010%".
	Percent string
	// Unavailable marks that no spread exists for this snapshot.
	Unavailable bool
}

// BookSnapshot display-ready order book for one symbol: ranked visible depth
// on both sides plus the top-of-book spread. Rebuilt from scratch on every
// depth tick and discarded when the selected symbol changes.
type BookSnapshot struct {
	Symbol    string
	Bids      []RankedLevel // descending by price
	Asks      []RankedLevel // ascending by price
	Spread    Spread
	UpdatedAt time.Time
}
