package shrimpy

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageEncoding(t *testing.T) {
	b, err := json.Marshal(Subscription("binance", "btc-usdt", "orderbook"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"subscribe","exchange":"binance","pair":"btc-usdt","channel":"orderbook"}`, string(b))

	msg, err := DecodeMessage([]byte(`{"exchange":"binance","pair":"btc-usdt","channel":"trade","data":[{"price":"1"}]}`))
	require.NoError(t, err)
	assert.Empty(t, msg.Type)
	assert.Equal(t, "trade", msg.Channel)
	assert.JSONEq(t, `[{"price":"1"}]`, string(msg.Data))
	assert.Contains(t, string(msg.Raw), `"exchange":"binance"`)

	_, err = DecodeMessage([]byte(`not json`))
	assert.Error(t, err)
}

func TestNewPong(t *testing.T) {
	b, err := json.Marshal(NewPong(json.RawMessage(`"xyz"`)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong","data":"xyz"}`, string(b))

	b, err = json.Marshal(NewPong(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong","data":null}`, string(b))
}

func TestDecodeErrorFrame(t *testing.T) {
	frame, err := DecodeErrorFrame([]byte(`{"type":"error","code":2404,"message":"Invalid pair"}`))
	require.NoError(t, err)
	assert.Equal(t, 2404, frame.Code)
	assert.Equal(t, "Invalid pair", frame.Message)
}

func TestStrategyMarshal(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		want     string
	}{
		{
			name: "static",
			strategy: StaticStrategy(
				Allocation{Symbol: "BTC", Percent: decimal.RequireFromString("50")},
				Allocation{Symbol: "ETH", Percent: decimal.RequireFromString("50")},
			),
			want: `{"isDynamic":false,"allocations":[{"symbol":"BTC","percent":50},{"symbol":"ETH","percent":50}]}`,
		},
		{
			name:     "static empty",
			strategy: StaticStrategy(),
			want:     `{"isDynamic":false,"allocations":[]}`,
		},
		{
			name: "dynamic",
			strategy: DynamicStrategy([]string{"USDT"}, 10, decimal.RequireFromString("5"),
				decimal.RequireFromString("20.5"), true),
			want: `{"isDynamic":true,"excludedSymbols":["USDT"],"topAssetCount":10,"minPercent":"5","maxPercent":"20.5","isEqualWeight":true}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.strategy)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(b))
		})
	}

	_, err := json.Marshal(Strategy{Kind: StrategyKind(7)})
	assert.Error(t, err)
}

func TestPortfolioTriggerRules(t *testing.T) {
	strategy := StaticStrategy(Allocation{Symbol: "BTC", Percent: decimal.NewFromInt(100)})

	threshold := NewPortfolio("t", 86400, strategy, TriggerThreshold, 5)
	assert.Equal(t, 0, threshold.RebalancePeriod)
	assert.Equal(t, 5, threshold.RebalanceThreshold)
	assert.Equal(t, 10, threshold.MaxSpread)
	assert.Equal(t, 10, threshold.MaxSlippage)

	interval := NewPortfolio("i", 86400, strategy, TriggerInterval, 5)
	assert.Equal(t, 86400, interval.RebalancePeriod)
	assert.Equal(t, 100, interval.RebalanceThreshold)

	b, err := json.Marshal(interval)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name":"i","rebalancePeriod":86400,"strategyTrigger":"interval","rebalanceThreshold":100,
		"maxSpread":10,"maxSlippage":10,
		"strategy":{"isDynamic":false,"allocations":[{"symbol":"BTC","percent":100}]}
	}`, string(b))
}
