package adapters

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
)

// DefaultDustThreshold is the smallest absolute delta, in token units, that is stored
var DefaultDustThreshold = decimal.New(1, -6)

// ParseDustThreshold parses a configured threshold, falling back to the default when empty
func ParseDustThreshold(s string) (decimal.Decimal, error) {
	if s == "" {
		return DefaultDustThreshold, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid dust threshold %q: %w", s, err)
	}
	return d.Abs(), nil
}

// IsDust reports whether the delta is too small to store
func IsDust(amount, threshold decimal.Decimal) bool {
	return amount.Abs().LessThan(threshold)
}

// DirectionOf maps a signed delta to a direction
func DirectionOf(amount decimal.Decimal) entities.Direction {
	switch amount.Sign() {
	case 1:
		return entities.DirectionReceive
	case -1:
		return entities.DirectionSend
	default:
		return entities.DirectionUnknown
	}
}

// Coalesce merges events sharing a (transaction, asset) key by netting their amounts,
// then drops dust. The first event of each key keeps its position and counterparties.
func Coalesce(events []entities.TransferEvent, threshold decimal.Decimal) []entities.TransferEvent {
	if len(events) == 0 {
		return events
	}

	type group struct {
		event  entities.TransferEvent
		amount decimal.Decimal
		valid  bool
	}

	order := make([]entities.EventKey, 0, len(events))
	groups := make(map[entities.EventKey]*group, len(events))

	for _, e := range events {
		amount, err := entities.ParseAmount(e.Amount)
		key := e.Key()
		g, ok := groups[key]
		if !ok {
			g = &group{event: e, valid: true}
			groups[key] = g
			order = append(order, key)
		}
		if err != nil {
			g.valid = false
			continue
		}
		g.amount = g.amount.Add(amount)
	}

	out := make([]entities.TransferEvent, 0, len(order))
	for _, key := range order {
		g := groups[key]
		if !g.valid || IsDust(g.amount, threshold) {
			continue
		}
		e := g.event
		e.Amount = entities.FormatAmount(g.amount)
		e.Direction = DirectionOf(g.amount)
		out = append(out, e)
	}
	return out
}

// sortedKeys returns map keys in a stable order
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
