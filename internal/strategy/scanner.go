package strategy

import (
	"sort"
	"strings"

	"symphonybacktest/internal/marketdata"
)

// Analysis is the static footprint of one program: every ticker it can
// reference and every indicator column evaluation may look up. Collaborators
// use it to know what data to fetch and precompute before a run.
type Analysis struct {
	Tickers    map[string]struct{}
	Indicators map[marketdata.IndicatorKey]struct{}
}

func (a Analysis) SortedTickers() []string {
	out := []string{}
	for t := range a.Tickers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (a Analysis) IndicatorKeys() []marketdata.IndicatorKey {
	out := []marketdata.IndicatorKey{}
	for k := range a.Indicators {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Window < out[j].Window
	})
	return out
}

// Analyze walks the tree once, pre-order. Group labels are split on "+" and
// every token registered as a ticker regardless of what the body resolves to.
func Analyze(root Node) Analysis {
	a := Analysis{
		Tickers:    map[string]struct{}{},
		Indicators: map[marketdata.IndicatorKey]struct{}{},
	}
	a.walk(root)
	return a
}

func (a Analysis) walk(node Node) {
	switch n := node.(type) {
	case Asset:
		a.Tickers[n.Symbol] = struct{}{}
	case Group:
		for _, member := range strings.Split(n.Label, "+") {
			if member = strings.TrimSpace(member); member != "" {
				a.Tickers[member] = struct{}{}
			}
		}
		a.walk(n.Body)
	case If:
		a.walkValue(n.Cond.LHS)
		a.walkValue(n.Cond.RHS)
		a.walk(n.Then)
		a.walk(n.Else)
	case WeightEqual:
		for _, branch := range n.Branches {
			a.walk(branch)
		}
	case WeightSpecified:
		for _, pair := range n.Pairs {
			a.walk(pair.Expr)
		}
	case Filter:
		a.Indicators[n.Indicator] = struct{}{}
		for _, candidate := range n.Candidates {
			a.walk(candidate)
		}
	}
}

func (a Analysis) walkValue(v ValueExpr) {
	switch e := v.(type) {
	case CurrentPrice:
		a.Tickers[e.Symbol] = struct{}{}
	case MovingAveragePrice:
		a.Tickers[e.Symbol] = struct{}{}
		a.Indicators[marketdata.IndicatorKey{Kind: marketdata.IndicatorKind_MovingAverage, Window: e.Window}] = struct{}{}
	case RSI:
		a.Tickers[e.Symbol] = struct{}{}
		a.Indicators[marketdata.IndicatorKey{Kind: marketdata.IndicatorKind_RSI, Window: e.Window}] = struct{}{}
	}
}
