package strategy

import (
	"encoding/json"
	"fmt"

	"symphonybacktest/internal/marketdata"
)

// Default indicator windows applied when a program omits :window.
const (
	defaultRSIWindow = 10
	defaultMAWindow  = 20
)

// ParseSymphony parses a Composer-style nested-list program. Accepted roots:
// ["defsymphony", name, expr] and [name, description, expr].
func ParseSymphony(raw []byte) (*Strategy, error) {
	var doc []any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode symphony json: %w", err)
	}

	return ParseSymphonyDocument(doc)
}

func ParseSymphonyDocument(doc []any) (*Strategy, error) {
	if len(doc) < 3 {
		return nil, malformedf("symphony root needs 3 elements, got %d", len(doc))
	}

	s := &Strategy{}
	head, ok := doc[0].(string)
	if ok && head == "defsymphony" {
		name, ok := doc[1].(string)
		if !ok {
			return nil, malformedf("defsymphony name must be a string, got %T", doc[1])
		}
		s.Name = name
	} else if ok {
		s.Name = head
		if desc, ok := doc[1].(string); ok {
			s.Description = desc
		}
	} else {
		return nil, malformedf("symphony root must start with a string, got %T", doc[0])
	}

	root, err := parseNode(doc[2])
	if err != nil {
		return nil, err
	}
	s.Root = root

	return s, nil
}

func parseNode(v any) (Node, error) {
	expr, ok := v.([]any)
	if !ok {
		return nil, malformedf("expected expression list, got %T", v)
	}
	if len(expr) == 0 {
		// an empty expression allocates nothing
		return WeightEqual{}, nil
	}

	op, ok := expr[0].(string)
	if !ok {
		return parseBranchList(expr)
	}

	switch op {
	case "asset":
		return parseAsset(expr)
	case "group":
		if len(expr) != 3 {
			return nil, malformedf("group needs 3 elements, got %d", len(expr))
		}
		label, ok := expr[1].(string)
		if !ok {
			return nil, malformedf("group label must be a string, got %T", expr[1])
		}
		body, err := parseNode(expr[2])
		if err != nil {
			return nil, err
		}
		return Group{Label: label, Body: body}, nil
	case "if":
		if len(expr) != 4 {
			return nil, malformedf("if needs 4 elements, got %d", len(expr))
		}
		cond, err := parseCondition(expr[1])
		if err != nil {
			return nil, err
		}
		then, err := parseNode(expr[2])
		if err != nil {
			return nil, err
		}
		els, err := parseNode(expr[3])
		if err != nil {
			return nil, err
		}
		return If{Cond: cond, Then: then, Else: els}, nil
	case "weight-equal":
		branches := []Node{}
		for _, arg := range expr[1:] {
			branch, err := parseNode(arg)
			if err != nil {
				return nil, err
			}
			branches = append(branches, branch)
		}
		return WeightEqual{Branches: branches}, nil
	case "weight-specified":
		return parseWeightSpecified(expr)
	case "filter":
		return parseFilter(expr)
	case "current-price", "moving-average-price", "rsi":
		return nil, malformedf("value operator %q used where an allocation expression is expected", op)
	default:
		return nil, UnknownOperatorError{Operator: op}
	}
}

// parseBranchList handles the implicit branch form the DSL uses for if/weight
// bodies: a list of expressions with no leading operator tag. A single-element
// list unwraps; multiple branches combine like weight-equal.
func parseBranchList(expr []any) (Node, error) {
	branches := []Node{}
	for _, item := range expr {
		branch, err := parseNode(item)
		if err != nil {
			return nil, err
		}
		branches = append(branches, branch)
	}
	if len(branches) == 1 {
		return branches[0], nil
	}
	return WeightEqual{Branches: branches}, nil
}

func parseAsset(expr []any) (Node, error) {
	if len(expr) < 2 {
		return nil, malformedf("asset needs a symbol")
	}
	symbol, ok := expr[1].(string)
	if !ok {
		return nil, malformedf("asset symbol must be a string, got %T", expr[1])
	}
	a := Asset{Symbol: symbol}
	if len(expr) > 2 {
		if name, ok := expr[2].(string); ok {
			a.Name = name
		}
	}
	return a, nil
}

func parseWeightSpecified(expr []any) (Node, error) {
	args := expr[1:]
	if len(args) == 0 || len(args)%2 != 0 {
		return nil, malformedf("weight-specified needs weight/expression pairs, got %d arguments", len(args))
	}

	pairs := []WeightedBranch{}
	for i := 0; i < len(args); i += 2 {
		weight, ok := args[i].(float64)
		if !ok {
			return nil, malformedf("weight-specified weight must be a number, got %T", args[i])
		}
		if weight < 0 {
			return nil, malformedf("weight-specified weight must be non-negative, got %f", weight)
		}
		branch, err := parseNode(args[i+1])
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, WeightedBranch{Weight: weight, Expr: branch})
	}

	return WeightSpecified{Pairs: pairs}, nil
}

func parseFilter(expr []any) (Node, error) {
	if len(expr) != 4 {
		return nil, malformedf("filter needs 4 elements, got %d", len(expr))
	}

	indicator, err := parseFilterIndicator(expr[1])
	if err != nil {
		return nil, err
	}
	selector, err := parseSelector(expr[2])
	if err != nil {
		return nil, err
	}

	candidateList, ok := expr[3].([]any)
	if !ok {
		return nil, malformedf("filter candidates must be a list, got %T", expr[3])
	}
	candidates := []Node{}
	for _, item := range candidateList {
		candidate, err := parseNode(item)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate)
	}

	return Filter{Indicator: indicator, Select: selector, Candidates: candidates}, nil
}

// parseFilterIndicator parses the symbol-less indicator position of a filter,
// e.g. ["rsi", {":window": 10}].
func parseFilterIndicator(v any) (marketdata.IndicatorKey, error) {
	expr, ok := v.([]any)
	if !ok || len(expr) == 0 {
		return marketdata.IndicatorKey{}, malformedf("filter indicator must be an expression list, got %T", v)
	}
	op, ok := expr[0].(string)
	if !ok {
		return marketdata.IndicatorKey{}, malformedf("filter indicator operator must be a string, got %T", expr[0])
	}

	switch op {
	case "rsi":
		return marketdata.IndicatorKey{
			Kind:   marketdata.IndicatorKind_RSI,
			Window: windowFromArgs(expr[1:], defaultRSIWindow),
		}, nil
	case "moving-average-price":
		return marketdata.IndicatorKey{
			Kind:   marketdata.IndicatorKind_MovingAverage,
			Window: windowFromArgs(expr[1:], defaultMAWindow),
		}, nil
	default:
		return marketdata.IndicatorKey{}, UnknownOperatorError{Operator: op}
	}
}

func parseSelector(v any) (Selector, error) {
	expr, ok := v.([]any)
	if !ok || len(expr) != 2 {
		return Selector{}, malformedf("filter selector must be [select-top|select-bottom, count]")
	}
	op, ok := expr[0].(string)
	if !ok {
		return Selector{}, malformedf("filter selector operator must be a string, got %T", expr[0])
	}
	count, ok := expr[1].(float64)
	if !ok || count != float64(int(count)) || count < 1 {
		return Selector{}, malformedf("filter selector count must be a positive integer, got %v", expr[1])
	}

	switch op {
	case "select-top":
		return Selector{Mode: SelectMode_Top, Count: int(count)}, nil
	case "select-bottom":
		return Selector{Mode: SelectMode_Bottom, Count: int(count)}, nil
	default:
		return Selector{}, UnknownOperatorError{Operator: op}
	}
}

func parseCondition(v any) (Condition, error) {
	expr, ok := v.([]any)
	if !ok || len(expr) != 3 {
		return Condition{}, malformedf("condition must be [op, lhs, rhs]")
	}
	opStr, ok := expr[0].(string)
	if !ok {
		return Condition{}, malformedf("comparison operator must be a string, got %T", expr[0])
	}

	var op CompareOp
	switch opStr {
	case ">", "<", ">=", "<=", "=":
		op = CompareOp(opStr)
	default:
		return Condition{}, UnknownOperatorError{Operator: opStr}
	}

	lhs, err := parseValueExpr(expr[1])
	if err != nil {
		return Condition{}, err
	}
	rhs, err := parseValueExpr(expr[2])
	if err != nil {
		return Condition{}, err
	}

	return Condition{Op: op, LHS: lhs, RHS: rhs}, nil
}

func parseValueExpr(v any) (ValueExpr, error) {
	if n, ok := v.(float64); ok {
		return Literal{Value: n}, nil
	}
	expr, ok := v.([]any)
	if !ok || len(expr) < 2 {
		return nil, malformedf("value expression must be a number or [op, symbol, ...], got %v", v)
	}
	op, ok := expr[0].(string)
	if !ok {
		return nil, malformedf("value operator must be a string, got %T", expr[0])
	}
	symbol, ok := expr[1].(string)
	if !ok {
		return nil, malformedf("%s symbol must be a string, got %T", op, expr[1])
	}

	switch op {
	case "current-price":
		return CurrentPrice{Symbol: symbol}, nil
	case "moving-average-price":
		return MovingAveragePrice{Symbol: symbol, Window: windowFromArgs(expr[2:], defaultMAWindow)}, nil
	case "rsi":
		return RSI{Symbol: symbol, Window: windowFromArgs(expr[2:], defaultRSIWindow)}, nil
	default:
		return nil, UnknownOperatorError{Operator: op}
	}
}

// windowFromArgs finds a :window parameter among trailing arguments. Both the
// map form {":window": 10} and the list form [":window", 10] occur in the wild.
func windowFromArgs(args []any, fallback int) int {
	for _, arg := range args {
		switch params := arg.(type) {
		case map[string]any:
			if raw, ok := params[":window"]; ok {
				if w, ok := raw.(float64); ok && w >= 1 {
					return int(w)
				}
			}
		case []any:
			for i := 0; i+1 < len(params); i++ {
				if key, ok := params[i].(string); ok && key == ":window" {
					if w, ok := params[i+1].(float64); ok && w >= 1 {
						return int(w)
					}
				}
			}
		}
	}
	return fallback
}
