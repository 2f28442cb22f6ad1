package strategy

import (
	"fmt"
	"sort"
	"time"

	"symphonybacktest/internal/domain"
	"symphonybacktest/internal/marketdata"
)

// Evaluator interprets a strategy tree against market data. It carries no
// state between calls: every Evaluate is a pure function of (tree, date,
// accessor), so independent dates may be evaluated concurrently.
type Evaluator struct {
	Data marketdata.Accessor
}

func NewEvaluator(data marketdata.Accessor) Evaluator {
	return Evaluator{Data: data}
}

// Evaluate produces the normalized target allocation for one date. An empty
// allocation means hold cash. Missing price/indicator data for a condition
// aborts the whole date; inside a filter it only drops the candidate.
func (e Evaluator) Evaluate(root Node, date time.Time) (domain.TargetAllocation, error) {
	alloc, err := e.evaluateNode(root, date)
	if err != nil {
		return nil, err
	}

	// combinators normalize their own output; normalizing once more at the
	// root guards against epsilon drift from nested renormalization
	return alloc.Normalized(), nil
}

func (e Evaluator) evaluateNode(node Node, date time.Time) (domain.TargetAllocation, error) {
	switch n := node.(type) {
	case Asset:
		// placeholder weight, always consumed by the parent combinator
		return domain.TargetAllocation{n.Symbol: 1.0}, nil

	case Group:
		return e.evaluateNode(n.Body, date)

	case If:
		pass, err := e.evaluateCondition(n.Cond, date)
		if err != nil {
			return nil, err
		}
		if pass {
			return e.evaluateNode(n.Then, date)
		}
		return e.evaluateNode(n.Else, date)

	case WeightEqual:
		combined := domain.TargetAllocation{}
		for _, branch := range n.Branches {
			alloc, err := e.evaluateNode(branch, date)
			if err != nil {
				return nil, err
			}
			// a symbol reachable through several branches accumulates
			// each branch's contribution before renormalization
			for symbol, weight := range alloc {
				combined[symbol] += weight
			}
		}
		return combined.Normalized(), nil

	case WeightSpecified:
		combined := domain.TargetAllocation{}
		for _, pair := range n.Pairs {
			alloc, err := e.evaluateNode(pair.Expr, date)
			if err != nil {
				return nil, err
			}
			// the governing pair's weight replaces whatever the
			// sub-expression proposed
			for symbol := range alloc {
				combined[symbol] = pair.Weight
			}
		}
		return combined.Normalized(), nil

	case Filter:
		return e.evaluateFilter(n, date)

	default:
		return nil, malformedf("unhandled node type %T", node)
	}
}

type scoredCandidate struct {
	symbol string
	value  float64
}

func (e Evaluator) evaluateFilter(f Filter, date time.Time) (domain.TargetAllocation, error) {
	scored := []scoredCandidate{}
	for _, candidate := range f.Candidates {
		alloc, err := e.evaluateNode(candidate, date)
		if err != nil {
			if IsDataUnavailable(err) {
				// a candidate whose own evaluation hits thin data drops
				// out; the date survives
				continue
			}
			return nil, err
		}
		for _, symbol := range sortedSymbols(alloc) {
			value, err := e.Data.Indicator(symbol, f.Indicator, date)
			if err != nil {
				if IsDataUnavailable(err) {
					// thin indicator data drops the candidate, not the date
					continue
				}
				return nil, err
			}
			scored = append(scored, scoredCandidate{symbol: symbol, value: value})
		}
	}

	if len(scored) == 0 {
		return domain.TargetAllocation{}, nil
	}

	// stable sort keeps original candidate order on ties
	if f.Select.Mode == SelectMode_Bottom {
		sort.SliceStable(scored, func(i, j int) bool { return scored[i].value < scored[j].value })
	} else {
		sort.SliceStable(scored, func(i, j int) bool { return scored[i].value > scored[j].value })
	}

	count := f.Select.Count
	if count > len(scored) {
		count = len(scored)
	}
	selected := scored[:count]

	alloc := domain.TargetAllocation{}
	equalWeight := 1.0 / float64(len(selected))
	for _, c := range selected {
		alloc[c.symbol] = equalWeight
	}

	return alloc, nil
}

// sortedSymbols flattens a candidate's allocation to its symbols. Candidates
// are normally single Asset leaves; for anything compound we keep a
// deterministic order.
func sortedSymbols(alloc domain.TargetAllocation) []string {
	if len(alloc) == 1 {
		for symbol := range alloc {
			return []string{symbol}
		}
	}
	symbols := []string{}
	for symbol := range alloc {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

func (e Evaluator) evaluateCondition(cond Condition, date time.Time) (bool, error) {
	lhs, err := e.resolveValue(cond.LHS, date)
	if err != nil {
		return false, err
	}
	rhs, err := e.resolveValue(cond.RHS, date)
	if err != nil {
		return false, err
	}

	switch cond.Op {
	case CompareOp_GT:
		return lhs > rhs, nil
	case CompareOp_LT:
		return lhs < rhs, nil
	case CompareOp_GTE:
		return lhs >= rhs, nil
	case CompareOp_LTE:
		return lhs <= rhs, nil
	case CompareOp_EQ:
		return lhs == rhs, nil
	default:
		return false, UnknownOperatorError{Operator: string(cond.Op)}
	}
}

func (e Evaluator) resolveValue(v ValueExpr, date time.Time) (float64, error) {
	switch expr := v.(type) {
	case Literal:
		return expr.Value, nil
	case CurrentPrice:
		return e.Data.Close(expr.Symbol, date)
	case MovingAveragePrice:
		return e.Data.Indicator(expr.Symbol, marketdata.IndicatorKey{
			Kind:   marketdata.IndicatorKind_MovingAverage,
			Window: expr.Window,
		}, date)
	case RSI:
		return e.Data.Indicator(expr.Symbol, marketdata.IndicatorKey{
			Kind:   marketdata.IndicatorKind_RSI,
			Window: expr.Window,
		}, date)
	default:
		return 0, fmt.Errorf("unhandled value expression type %T", v)
	}
}
