package shrimpy

import json "github.com/goccy/go-json"

// Rebalance triggers.
const (
	TriggerInterval  = "interval"
	TriggerThreshold = "threshold"
)

const (
	defaultMaxSpread          = 10
	defaultMaxSlippage        = 10
	intervalTriggerThreshold  = 100
	thresholdTriggerPeriodOff = 0
)

// Portfolio describes a configured portfolio. The trigger decides which of
// RebalancePeriod and RebalanceThreshold is meaningful; the other is pinned.
type Portfolio struct {
	Name               string
	RebalancePeriod    int
	Strategy           Strategy
	StrategyTrigger    string
	RebalanceThreshold int
	MaxSpread          int
	MaxSlippage        int
}

// NewPortfolio applies the trigger rules and spread/slippage defaults.
func NewPortfolio(name string, rebalancePeriod int, strategy Strategy, trigger string, rebalanceThreshold int) Portfolio {
	p := Portfolio{
		Name:               name,
		RebalancePeriod:    rebalancePeriod,
		Strategy:           strategy,
		StrategyTrigger:    trigger,
		RebalanceThreshold: rebalanceThreshold,
		MaxSpread:          defaultMaxSpread,
		MaxSlippage:        defaultMaxSlippage,
	}
	return p.normalized()
}

func (p Portfolio) normalized() Portfolio {
	switch p.StrategyTrigger {
	case TriggerThreshold:
		p.RebalancePeriod = thresholdTriggerPeriodOff
	case TriggerInterval:
		p.RebalanceThreshold = intervalTriggerThreshold
	}
	return p
}

// MarshalJSON produces the API format.
func (p Portfolio) MarshalJSON() ([]byte, error) {
	n := p.normalized()
	return json.Marshal(struct {
		Name               string   `json:"name"`
		RebalancePeriod    int      `json:"rebalancePeriod"`
		Strategy           Strategy `json:"strategy"`
		StrategyTrigger    string   `json:"strategyTrigger"`
		RebalanceThreshold int      `json:"rebalanceThreshold"`
		MaxSpread          int      `json:"maxSpread"`
		MaxSlippage        int      `json:"maxSlippage"`
	}{n.Name, n.RebalancePeriod, n.Strategy, n.StrategyTrigger, n.RebalanceThreshold, n.MaxSpread, n.MaxSlippage})
}
