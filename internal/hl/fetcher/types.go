package fetcher

// clearinghouseStateResponse mirrors the subset of Hyperliquid's
// clearinghouseState payload the monitor needs. Fields the upstream API
// returns as JSON strings (sizes, prices) are decoded as strings and
// parsed by the caller to avoid float-precision surprises on the wire.
type clearinghouseStateResponse struct {
	AssetPositions []assetPosition `json:"assetPositions"`
}

type assetPosition struct {
	Position rawPosition `json:"position"`
}

type rawPosition struct {
	Coin          string       `json:"coin"`
	Szi           string       `json:"szi"`
	EntryPx       string       `json:"entryPx"`
	PositionValue string       `json:"positionValue"`
	Leverage      rawLeverage  `json:"leverage"`
	LiquidationPx string       `json:"liquidationPx"`
	MarginUsed    string       `json:"marginUsed"`
}

type rawLeverage struct {
	Type  string  `json:"type"` // "cross" or "isolated"
	Value float64 `json:"value"`
}

// allMidsResponse maps coin symbol to mark price, both as JSON strings.
type allMidsResponse map[string]string

// cohortPageResponse is the GraphQL response shape for one page of a
// leaderboard/cohort query.
type cohortPageResponse struct {
	Data struct {
		Leaderboard struct {
			Entries  []CohortEntry `json:"entries"`
			PageInfo struct {
				HasNextPage bool   `json:"hasNextPage"`
				Cursor      string `json:"cursor"`
			} `json:"pageInfo"`
		} `json:"leaderboard"`
	} `json:"data"`
}

type CohortEntry struct {
	Address     string  `json:"address"`
	Cohort      string  `json:"cohort"`
	NotionalUSD float64 `json:"notionalUsd"`

	// Leverage and ShortNotionalUSD support the discovery loop's
	// cohort-eligibility filter (spec.md §4.5 step 1): an entry with
	// leverage at or below 1 and no short notional is rejected, and
	// ShortNotionalUSD counts toward the notional compared against
	// MinAggregateValueUSD.
	Leverage         float64 `json:"leverage"`
	ShortNotionalUSD float64 `json:"shortNotionalUsd"`
}
