package shrimpy

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// Allocation assigns a percentage of a portfolio to a symbol.
type Allocation struct {
	Symbol  string
	Percent decimal.Decimal
}

// MarshalJSON writes the percent as a JSON number.
func (a Allocation) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Symbol  string      `json:"symbol"`
		Percent json.Number `json:"percent"`
	}{
		Symbol:  a.Symbol,
		Percent: json.Number(a.Percent.String()),
	})
}

// StrategyKind tags the Strategy variant.
type StrategyKind int

const (
	StrategyStatic StrategyKind = iota
	StrategyDynamic
)

func (k StrategyKind) String() string {
	switch k {
	case StrategyStatic:
		return "static"
	case StrategyDynamic:
		return "dynamic"
	default:
		return fmt.Sprintf("StrategyKind(%d)", int(k))
	}
}

// Strategy is a closed variant: a static list of allocations or a dynamic top-N rule.
// Only the fields of the active Kind are serialized.
type Strategy struct {
	Kind StrategyKind

	// static
	Allocations []Allocation

	// dynamic
	ExcludedSymbols []string
	TopAssetCount   int
	MinPercent      decimal.Decimal
	MaxPercent      decimal.Decimal
	IsEqualWeight   bool
}

// StaticStrategy builds a static strategy.
func StaticStrategy(allocations ...Allocation) Strategy {
	return Strategy{Kind: StrategyStatic, Allocations: allocations}
}

// DynamicStrategy builds a dynamic strategy.
func DynamicStrategy(excluded []string, topAssetCount int, minPercent, maxPercent decimal.Decimal, equalWeight bool) Strategy {
	return Strategy{
		Kind:            StrategyDynamic,
		ExcludedSymbols: excluded,
		TopAssetCount:   topAssetCount,
		MinPercent:      minPercent,
		MaxPercent:      maxPercent,
		IsEqualWeight:   equalWeight,
	}
}

// IsDynamic reports whether the strategy is the dynamic variant.
func (s Strategy) IsDynamic() bool { return s.Kind == StrategyDynamic }

// MarshalJSON produces the API format for the active variant.
func (s Strategy) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case StrategyStatic:
		allocations := s.Allocations
		if allocations == nil {
			allocations = []Allocation{}
		}
		return json.Marshal(struct {
			IsDynamic   bool         `json:"isDynamic"`
			Allocations []Allocation `json:"allocations"`
		}{false, allocations})
	case StrategyDynamic:
		excluded := s.ExcludedSymbols
		if excluded == nil {
			excluded = []string{}
		}
		return json.Marshal(struct {
			IsDynamic       bool     `json:"isDynamic"`
			ExcludedSymbols []string `json:"excludedSymbols"`
			TopAssetCount   int      `json:"topAssetCount"`
			MinPercent      string   `json:"minPercent"`
			MaxPercent      string   `json:"maxPercent"`
			IsEqualWeight   bool     `json:"isEqualWeight"`
		}{true, excluded, s.TopAssetCount, s.MinPercent.String(), s.MaxPercent.String(), s.IsEqualWeight})
	default:
		return nil, fmt.Errorf("unknown strategy kind %s", s.Kind)
	}
}
