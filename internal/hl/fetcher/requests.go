package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"hl-liq-watch/internal/domain"
	"hl-liq-watch/internal/xerrors"
)

// GetPositions fetches every open position for address on exchange via
// clearinghouseState, pairs each with its liquidation price, and returns
// them with DistancePct and MarkPrice left unset (callers price them
// against allMids separately, since clearinghouseState doesn't echo the
// current mark).
func (f *Fetcher) GetPositions(ctx context.Context, address, exchange string) ([]domain.Position, error) {
	req := map[string]any{"type": "clearinghouseState", "user": address}
	if exchange != "" && exchange != "main" {
		req["dex"] = exchange
	}

	var resp clearinghouseStateResponse
	err := f.DoOnExchange(ctx, exchange, func(ctx context.Context) error {
		raw, err := f.rest.Info(ctx, req)
		if err != nil {
			return xerrors.Transient(err)
		}
		return decodeInto(raw, &resp)
	})
	if err != nil {
		return nil, err
	}

	positions := make([]domain.Position, 0, len(resp.AssetPositions))
	for _, ap := range resp.AssetPositions {
		p, err := parsePosition(address, exchange, ap.Position)
		if err != nil {
			return nil, xerrors.Malformed(err)
		}
		if p.SizeTokens == 0 {
			continue
		}
		positions = append(positions, p)
	}
	return positions, nil
}

func parsePosition(address, exchange string, raw rawPosition) (domain.Position, error) {
	size, err := strconv.ParseFloat(raw.Szi, 64)
	if err != nil {
		return domain.Position{}, fmt.Errorf("parsing szi %q: %w", raw.Szi, err)
	}
	entry, err := strconv.ParseFloat(raw.EntryPx, 64)
	if err != nil {
		return domain.Position{}, fmt.Errorf("parsing entryPx %q: %w", raw.EntryPx, err)
	}
	liq, err := strconv.ParseFloat(raw.LiquidationPx, 64)
	if err != nil && raw.LiquidationPx != "" {
		return domain.Position{}, fmt.Errorf("parsing liquidationPx %q: %w", raw.LiquidationPx, err)
	}
	value, _ := strconv.ParseFloat(raw.PositionValue, 64)
	margin, _ := strconv.ParseFloat(raw.MarginUsed, 64)

	side := "long"
	if size < 0 {
		side = "short"
	}

	return domain.Position{
		Key: domain.PositionKey{
			Address:  address,
			Token:    raw.Coin,
			Exchange: exchange,
			Side:     side,
		},
		SizeTokens:       size,
		EntryPrice:       entry,
		LiquidationPx:    liq,
		PositionValueUSD: value,
		MarginUsedUSD:    margin,
		Leverage:         raw.Leverage.Value,
		Isolated:         raw.Leverage.Type == "isolated",
	}, nil
}

// GetMarkPrices fetches the current mid price for every coin on
// exchange via allMids.
func (f *Fetcher) GetMarkPrices(ctx context.Context, exchange string) (map[string]float64, error) {
	req := map[string]any{"type": "allMids"}
	if exchange != "" && exchange != "main" {
		req["dex"] = exchange
	}

	var resp allMidsResponse
	err := f.DoOnExchange(ctx, exchange, func(ctx context.Context) error {
		raw, err := f.rest.Info(ctx, req)
		if err != nil {
			return xerrors.Transient(err)
		}
		return decodeInto(raw, &resp)
	})
	if err != nil {
		return nil, err
	}

	mids := make(map[string]float64, len(resp))
	for coin, s := range resp {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, xerrors.Malformed(fmt.Errorf("parsing mid for %s: %w", coin, err))
		}
		mids[coin] = v
	}
	return mids, nil
}

// CohortPage is one page of a leaderboard/cohort query result.
type CohortPage struct {
	Entries     []CohortEntry
	HasNextPage bool
	Cursor      string
}

// GetCohortPage fetches one page of the cohort-discovery GraphQL query,
// used by the discovery loop to enumerate leaderboard wallets (spec.md
// §4.5).
func (f *Fetcher) GetCohortPage(ctx context.Context, query string, variables map[string]any) (CohortPage, error) {
	req := map[string]any{"query": query, "variables": variables}

	var resp cohortPageResponse
	err := f.Do(ctx, func(ctx context.Context) error {
		raw, err := f.rest.InfoAny(ctx, req)
		if err != nil {
			return xerrors.Transient(err)
		}
		return decodeInto(raw, &resp)
	})
	if err != nil {
		return CohortPage{}, err
	}

	return CohortPage{
		Entries:     resp.Data.Leaderboard.Entries,
		HasNextPage: resp.Data.Leaderboard.PageInfo.HasNextPage,
		Cursor:      resp.Data.Leaderboard.PageInfo.Cursor,
	}, nil
}

func decodeInto(raw any, out any) error {
	b, err := json.Marshal(raw)
	if err != nil {
		return xerrors.Malformed(err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return xerrors.Malformed(err)
	}
	return nil
}
