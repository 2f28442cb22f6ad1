package strategy

import "symphonybacktest/internal/marketdata"

// Strategy is one parsed program: a name and the expression tree that is
// evaluated per date. Nodes are immutable and shared by reference within a
// single parse.
type Strategy struct {
	Name        string
	Description string
	Root        Node
}

// Node is the closed set of strategy expression variants. The evaluator
// matches it exhaustively; there is no open-ended operator dispatch.
type Node interface {
	strategyNode()
}

// Asset is a leaf referencing one tradable instrument.
type Asset struct {
	Symbol string
	Name   string
}

// Group wraps one sub-expression under a `+`-joined member label. The label
// feeds static discovery only; evaluation passes straight through to Body.
type Group struct {
	Label string
	Body  Node
}

// If evaluates exactly one branch; the unchosen branch is never touched.
type If struct {
	Cond Condition
	Then Node
	Else Node
}

// WeightEqual sums each branch's allocation per symbol, then renormalizes.
type WeightEqual struct {
	Branches []Node
}

type WeightedBranch struct {
	Weight float64
	Expr   Node
}

// WeightSpecified assigns each pair's literal weight to the symbols its
// expression resolves to, then renormalizes.
type WeightSpecified struct {
	Pairs []WeightedBranch
}

type SelectMode string

const (
	SelectMode_Top    SelectMode = "top"
	SelectMode_Bottom SelectMode = "bottom"
)

type Selector struct {
	Mode  SelectMode
	Count int
}

// Filter ranks candidate symbols by an indicator value and keeps the
// top/bottom Count, equally weighted.
type Filter struct {
	Indicator  marketdata.IndicatorKey
	Select     Selector
	Candidates []Node
}

func (Asset) strategyNode()           {}
func (Group) strategyNode()           {}
func (If) strategyNode()              {}
func (WeightEqual) strategyNode()     {}
func (WeightSpecified) strategyNode() {}
func (Filter) strategyNode()          {}

type CompareOp string

const (
	CompareOp_GT  CompareOp = ">"
	CompareOp_LT  CompareOp = "<"
	CompareOp_GTE CompareOp = ">="
	CompareOp_LTE CompareOp = "<="
	CompareOp_EQ  CompareOp = "="
)

type Condition struct {
	Op  CompareOp
	LHS ValueExpr
	RHS ValueExpr
}

// ValueExpr resolves to a float64 during condition evaluation.
type ValueExpr interface {
	valueExpr()
}

type Literal struct {
	Value float64
}

type CurrentPrice struct {
	Symbol string
}

type MovingAveragePrice struct {
	Symbol string
	Window int
}

type RSI struct {
	Symbol string
	Window int
}

func (Literal) valueExpr()            {}
func (CurrentPrice) valueExpr()       {}
func (MovingAveragePrice) valueExpr() {}
func (RSI) valueExpr()                {}
