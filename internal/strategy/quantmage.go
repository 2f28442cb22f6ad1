package strategy

import (
	"encoding/json"
	"fmt"

	"symphonybacktest/internal/marketdata"
)

// Quantmage expresses strategies as a tree of "incantations". The normalizer
// is a stateless rewrite into the same AST the composer parser produces;
// evaluation never knows which dialect a program came from.

type quantmageDocument struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Incantation *quantmageIncantation `json:"incantation"`
}

type quantmageIncantation struct {
	IncantationType string `json:"incantation_type"`

	// Weighted / Filtered
	Incantations []*quantmageIncantation `json:"incantations"`

	// IfElse
	Condition       *quantmageCondition   `json:"condition"`
	ThenIncantation *quantmageIncantation `json:"then_incantation"`
	ElseIncantation *quantmageIncantation `json:"else_incantation"`

	// Filtered
	SortIndicator *quantmageIndicator `json:"sort_indicator"`
	Count         int                 `json:"count"`
	Bottom        bool                `json:"bottom"`

	// Ticker
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

type quantmageCondition struct {
	ConditionType  string              `json:"condition_type"`
	LhIndicator    *quantmageIndicator `json:"lh_indicator"`
	LhTickerSymbol string              `json:"lh_ticker_symbol"`
	RhIndicator    *quantmageIndicator `json:"rh_indicator"`
	RhTickerSymbol string              `json:"rh_ticker_symbol"`
	RhValue        float64             `json:"rh_value"`
	GreaterThan    bool                `json:"greater_than"`
}

type quantmageIndicator struct {
	Type   string `json:"type"`
	Window int    `json:"window"`
}

// ParseQuantmage converts a Quantmage strategy document into a Strategy.
func ParseQuantmage(raw []byte) (*Strategy, error) {
	var doc quantmageDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode quantmage json: %w", err)
	}
	if doc.Incantation == nil {
		return nil, malformedf("quantmage document has no incantation")
	}

	root, err := convertIncantation(doc.Incantation)
	if err != nil {
		return nil, err
	}

	name := doc.Name
	if name == "" {
		name = "Quantmage Strategy"
	}

	return &Strategy{
		Name:        name,
		Description: doc.Description,
		Root:        root,
	}, nil
}

func convertIncantation(inc *quantmageIncantation) (Node, error) {
	if inc == nil {
		return nil, malformedf("missing incantation")
	}

	switch inc.IncantationType {
	case "Ticker":
		if inc.Symbol == "" {
			return nil, malformedf("ticker incantation has no symbol")
		}
		return Asset{Symbol: inc.Symbol, Name: inc.Name}, nil

	case "Weighted":
		if len(inc.Incantations) == 0 {
			return nil, malformedf("weighted incantation has no children")
		}
		if len(inc.Incantations) == 1 {
			return convertIncantation(inc.Incantations[0])
		}
		branches := []Node{}
		for _, sub := range inc.Incantations {
			branch, err := convertIncantation(sub)
			if err != nil {
				return nil, err
			}
			branches = append(branches, branch)
		}
		return WeightEqual{Branches: branches}, nil

	case "IfElse":
		cond, err := convertCondition(inc.Condition)
		if err != nil {
			return nil, err
		}
		then, err := convertIncantation(inc.ThenIncantation)
		if err != nil {
			return nil, err
		}
		els, err := convertIncantation(inc.ElseIncantation)
		if err != nil {
			return nil, err
		}
		return If{Cond: cond, Then: then, Else: els}, nil

	case "Filtered":
		if inc.SortIndicator == nil {
			return nil, malformedf("filtered incantation has no sort indicator")
		}
		key, err := convertIndicatorKey(inc.SortIndicator)
		if err != nil {
			return nil, err
		}
		if inc.Count < 1 {
			return nil, malformedf("filtered incantation count must be positive, got %d", inc.Count)
		}
		candidates := []Node{}
		for _, sub := range inc.Incantations {
			candidate, err := convertIncantation(sub)
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, candidate)
		}
		mode := SelectMode_Top
		if inc.Bottom {
			mode = SelectMode_Bottom
		}
		return Filter{
			Indicator:  key,
			Select:     Selector{Mode: mode, Count: inc.Count},
			Candidates: candidates,
		}, nil

	default:
		return nil, malformedf("unknown incantation type %q", inc.IncantationType)
	}
}

func convertCondition(cond *quantmageCondition) (Condition, error) {
	if cond == nil {
		return Condition{}, malformedf("if-else incantation has no condition")
	}
	if cond.ConditionType != "SingleCondition" {
		return Condition{}, malformedf("unknown condition type %q", cond.ConditionType)
	}

	lhs, err := convertValueExpr(cond.LhIndicator, cond.LhTickerSymbol)
	if err != nil {
		return Condition{}, err
	}

	var rhs ValueExpr
	if cond.RhIndicator != nil && cond.RhIndicator.Type != "" {
		rhs, err = convertValueExpr(cond.RhIndicator, cond.RhTickerSymbol)
		if err != nil {
			return Condition{}, err
		}
	} else {
		rhs = Literal{Value: cond.RhValue}
	}

	op := CompareOp_LT
	if cond.GreaterThan {
		op = CompareOp_GT
	}

	return Condition{Op: op, LHS: lhs, RHS: rhs}, nil
}

func convertValueExpr(indicator *quantmageIndicator, symbol string) (ValueExpr, error) {
	if indicator == nil {
		return nil, malformedf("condition side has no indicator")
	}
	if symbol == "" {
		return nil, malformedf("condition indicator %q has no ticker symbol", indicator.Type)
	}

	switch indicator.Type {
	case "RelativeStrengthIndex":
		window := indicator.Window
		if window < 1 {
			window = defaultRSIWindow
		}
		return RSI{Symbol: symbol, Window: window}, nil
	case "MovingAverage":
		window := indicator.Window
		if window < 1 {
			window = defaultMAWindow
		}
		return MovingAveragePrice{Symbol: symbol, Window: window}, nil
	case "CurrentPrice", "Price":
		return CurrentPrice{Symbol: symbol}, nil
	default:
		return nil, malformedf("unsupported quantmage indicator type %q", indicator.Type)
	}
}

func convertIndicatorKey(indicator *quantmageIndicator) (marketdata.IndicatorKey, error) {
	switch indicator.Type {
	case "RelativeStrengthIndex":
		window := indicator.Window
		if window < 1 {
			window = defaultRSIWindow
		}
		return marketdata.IndicatorKey{Kind: marketdata.IndicatorKind_RSI, Window: window}, nil
	case "MovingAverage":
		window := indicator.Window
		if window < 1 {
			window = defaultMAWindow
		}
		return marketdata.IndicatorKey{Kind: marketdata.IndicatorKind_MovingAverage, Window: window}, nil
	default:
		return marketdata.IndicatorKey{}, malformedf("unsupported quantmage sort indicator type %q", indicator.Type)
	}
}
