package strategy

import (
	"testing"
	"time"

	"symphonybacktest/internal/domain"
	"symphonybacktest/internal/marketdata"
	mock_marketdata "symphonybacktest/internal/marketdata/mocks"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var evalDate = time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

func rsiKey(window int) marketdata.IndicatorKey {
	return marketdata.IndicatorKey{Kind: marketdata.IndicatorKind_RSI, Window: window}
}

func TestEvaluator_Evaluate(t *testing.T) {
	approx := cmpopts.EquateApprox(0, 1e-9)

	t.Run("asset resolves to full weight", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		data := mock_marketdata.NewMockAccessor(ctrl)
		e := NewEvaluator(data)

		alloc, err := e.Evaluate(Asset{Symbol: "SPY"}, evalDate)
		require.NoError(t, err)
		require.Equal(t, "", cmp.Diff(domain.TargetAllocation{"SPY": 1.0}, alloc, approx))
	})

	t.Run("if takes then branch and never touches the other", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		data := mock_marketdata.NewMockAccessor(ctrl)
		e := NewEvaluator(data)

		data.EXPECT().Indicator("QQQ", rsiKey(14), evalDate).Return(85.0, nil)
		// no expectation for anything the else branch would need

		root := If{
			Cond: Condition{Op: CompareOp_GT, LHS: RSI{Symbol: "QQQ", Window: 14}, RHS: Literal{Value: 79}},
			Then: Asset{Symbol: "UVXY"},
			Else: Asset{Symbol: "TQQQ"},
		}
		alloc, err := e.Evaluate(root, evalDate)
		require.NoError(t, err)
		require.Equal(t, "", cmp.Diff(domain.TargetAllocation{"UVXY": 1.0}, alloc, approx))
	})

	t.Run("condition compares two data-driven sides", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		data := mock_marketdata.NewMockAccessor(ctrl)
		e := NewEvaluator(data)

		data.EXPECT().Close("SPY", evalDate).Return(400.0, nil)
		data.EXPECT().Indicator("SPY", marketdata.IndicatorKey{
			Kind:   marketdata.IndicatorKind_MovingAverage,
			Window: 200,
		}, evalDate).Return(410.0, nil)

		root := If{
			Cond: Condition{
				Op:  CompareOp_LT,
				LHS: CurrentPrice{Symbol: "SPY"},
				RHS: MovingAveragePrice{Symbol: "SPY", Window: 200},
			},
			Then: Asset{Symbol: "BIL"},
			Else: Asset{Symbol: "SPY"},
		}
		alloc, err := e.Evaluate(root, evalDate)
		require.NoError(t, err)
		require.Equal(t, "", cmp.Diff(domain.TargetAllocation{"BIL": 1.0}, alloc, approx))
	})

	t.Run("weight-equal splits evenly", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		data := mock_marketdata.NewMockAccessor(ctrl)
		e := NewEvaluator(data)

		root := WeightEqual{Branches: []Node{
			Asset{Symbol: "SPY"},
			Asset{Symbol: "TLT"},
			Asset{Symbol: "GLD"},
		}}
		alloc, err := e.Evaluate(root, evalDate)
		require.NoError(t, err)
		require.Equal(t, "", cmp.Diff(domain.TargetAllocation{
			"SPY": 1.0 / 3,
			"TLT": 1.0 / 3,
			"GLD": 1.0 / 3,
		}, alloc, approx))
	})

	t.Run("duplicate symbol accumulates across branches", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		data := mock_marketdata.NewMockAccessor(ctrl)
		e := NewEvaluator(data)

		// S is reachable through two of three branches: 2/3 vs 1/3
		root := WeightEqual{Branches: []Node{
			Asset{Symbol: "S"},
			Asset{Symbol: "S"},
			Asset{Symbol: "T"},
		}}
		alloc, err := e.Evaluate(root, evalDate)
		require.NoError(t, err)
		require.Equal(t, "", cmp.Diff(domain.TargetAllocation{
			"S": 2.0 / 3,
			"T": 1.0 / 3,
		}, alloc, approx))
	})

	t.Run("weight-specified applies the governing weight", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		data := mock_marketdata.NewMockAccessor(ctrl)
		e := NewEvaluator(data)

		root := WeightSpecified{Pairs: []WeightedBranch{
			{Weight: 0.3, Expr: Asset{Symbol: "SPY"}},
			{Weight: 0.7, Expr: Asset{Symbol: "TLT"}},
		}}
		alloc, err := e.Evaluate(root, evalDate)
		require.NoError(t, err)
		require.Equal(t, "", cmp.Diff(domain.TargetAllocation{
			"SPY": 0.3,
			"TLT": 0.7,
		}, alloc, approx))
		require.True(t, alloc.Valid())
	})

	t.Run("weight-specified renormalizes when weights sum past 1", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		data := mock_marketdata.NewMockAccessor(ctrl)
		e := NewEvaluator(data)

		root := WeightSpecified{Pairs: []WeightedBranch{
			{Weight: 60, Expr: Asset{Symbol: "SPY"}},
			{Weight: 40, Expr: Asset{Symbol: "TLT"}},
		}}
		alloc, err := e.Evaluate(root, evalDate)
		require.NoError(t, err)
		require.Equal(t, "", cmp.Diff(domain.TargetAllocation{
			"SPY": 0.6,
			"TLT": 0.4,
		}, alloc, approx))
	})

	t.Run("empty branches mean cash", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		data := mock_marketdata.NewMockAccessor(ctrl)
		e := NewEvaluator(data)

		alloc, err := e.Evaluate(WeightEqual{}, evalDate)
		require.NoError(t, err)
		require.Empty(t, alloc)
		require.True(t, alloc.Valid())
	})

	t.Run("missing data in a condition aborts the date", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		data := mock_marketdata.NewMockAccessor(ctrl)
		e := NewEvaluator(data)

		data.EXPECT().Indicator("QQQ", rsiKey(14), evalDate).
			Return(0.0, marketdata.MissingDataError{Symbol: "QQQ", What: "rsi(14)", Date: evalDate})

		root := If{
			Cond: Condition{Op: CompareOp_GT, LHS: RSI{Symbol: "QQQ", Window: 14}, RHS: Literal{Value: 79}},
			Then: Asset{Symbol: "UVXY"},
			Else: Asset{Symbol: "TQQQ"},
		}
		_, err := e.Evaluate(root, evalDate)
		require.Error(t, err)
		require.True(t, IsDataUnavailable(err))
		require.False(t, IsFatal(err))
	})
}

func TestEvaluator_Filter(t *testing.T) {
	approx := cmpopts.EquateApprox(0, 1e-9)

	filterOf := func(mode SelectMode, count int, symbols ...string) Filter {
		candidates := []Node{}
		for _, s := range symbols {
			candidates = append(candidates, Asset{Symbol: s})
		}
		return Filter{
			Indicator:  rsiKey(10),
			Select:     Selector{Mode: mode, Count: count},
			Candidates: candidates,
		}
	}

	t.Run("select-top picks highest scores", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		data := mock_marketdata.NewMockAccessor(ctrl)
		e := NewEvaluator(data)

		data.EXPECT().Indicator("A", rsiKey(10), evalDate).Return(55.0, nil)
		data.EXPECT().Indicator("B", rsiKey(10), evalDate).Return(72.0, nil)
		data.EXPECT().Indicator("C", rsiKey(10), evalDate).Return(31.0, nil)

		alloc, err := e.Evaluate(filterOf(SelectMode_Top, 2, "A", "B", "C"), evalDate)
		require.NoError(t, err)
		require.Equal(t, "", cmp.Diff(domain.TargetAllocation{
			"B": 0.5,
			"A": 0.5,
		}, alloc, approx))
	})

	t.Run("select-bottom picks lowest scores", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		data := mock_marketdata.NewMockAccessor(ctrl)
		e := NewEvaluator(data)

		data.EXPECT().Indicator("A", rsiKey(10), evalDate).Return(55.0, nil)
		data.EXPECT().Indicator("B", rsiKey(10), evalDate).Return(72.0, nil)
		data.EXPECT().Indicator("C", rsiKey(10), evalDate).Return(31.0, nil)

		alloc, err := e.Evaluate(filterOf(SelectMode_Bottom, 1, "A", "B", "C"), evalDate)
		require.NoError(t, err)
		require.Equal(t, "", cmp.Diff(domain.TargetAllocation{"C": 1.0}, alloc, approx))
	})

	t.Run("missing indicator drops the candidate only", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		data := mock_marketdata.NewMockAccessor(ctrl)
		e := NewEvaluator(data)

		data.EXPECT().Indicator("A", rsiKey(10), evalDate).Return(55.0, nil)
		data.EXPECT().Indicator("B", rsiKey(10), evalDate).
			Return(0.0, marketdata.MissingDataError{Symbol: "B", What: "rsi(10)", Date: evalDate})

		alloc, err := e.Evaluate(filterOf(SelectMode_Top, 2, "A", "B"), evalDate)
		require.NoError(t, err)
		require.Equal(t, "", cmp.Diff(domain.TargetAllocation{"A": 1.0}, alloc, approx))
	})

	t.Run("candidate whose condition hits missing data drops out", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		data := mock_marketdata.NewMockAccessor(ctrl)
		e := NewEvaluator(data)

		data.EXPECT().Indicator("Q", rsiKey(14), evalDate).
			Return(0.0, marketdata.MissingDataError{Symbol: "Q", What: "rsi(14)", Date: evalDate})
		data.EXPECT().Indicator("B", rsiKey(10), evalDate).Return(60.0, nil)

		root := Filter{
			Indicator: rsiKey(10),
			Select:    Selector{Mode: SelectMode_Top, Count: 1},
			Candidates: []Node{
				If{
					Cond: Condition{Op: CompareOp_GT, LHS: RSI{Symbol: "Q", Window: 14}, RHS: Literal{Value: 50}},
					Then: Asset{Symbol: "A1"},
					Else: Asset{Symbol: "A2"},
				},
				Asset{Symbol: "B"},
			},
		}
		alloc, err := e.Evaluate(root, evalDate)
		require.NoError(t, err)
		require.Equal(t, "", cmp.Diff(domain.TargetAllocation{"B": 1.0}, alloc, approx))
	})

	t.Run("all compound candidates dropped means cash", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		data := mock_marketdata.NewMockAccessor(ctrl)
		e := NewEvaluator(data)

		data.EXPECT().Indicator("Q", rsiKey(14), evalDate).
			Return(0.0, marketdata.MissingDataError{Symbol: "Q", What: "rsi(14)", Date: evalDate})

		root := Filter{
			Indicator: rsiKey(10),
			Select:    Selector{Mode: SelectMode_Top, Count: 1},
			Candidates: []Node{
				If{
					Cond: Condition{Op: CompareOp_GT, LHS: RSI{Symbol: "Q", Window: 14}, RHS: Literal{Value: 50}},
					Then: Asset{Symbol: "A1"},
					Else: Asset{Symbol: "A2"},
				},
			},
		}
		alloc, err := e.Evaluate(root, evalDate)
		require.NoError(t, err)
		require.Empty(t, alloc)
	})

	t.Run("all candidates dropped means cash", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		data := mock_marketdata.NewMockAccessor(ctrl)
		e := NewEvaluator(data)

		data.EXPECT().Indicator("A", rsiKey(10), evalDate).
			Return(0.0, marketdata.MissingDataError{Symbol: "A", What: "rsi(10)", Date: evalDate})

		alloc, err := e.Evaluate(filterOf(SelectMode_Top, 1, "A"), evalDate)
		require.NoError(t, err)
		require.Empty(t, alloc)
	})

	t.Run("count larger than candidate pool selects everything", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		data := mock_marketdata.NewMockAccessor(ctrl)
		e := NewEvaluator(data)

		data.EXPECT().Indicator("A", rsiKey(10), evalDate).Return(55.0, nil)
		data.EXPECT().Indicator("B", rsiKey(10), evalDate).Return(72.0, nil)

		alloc, err := e.Evaluate(filterOf(SelectMode_Top, 5, "A", "B"), evalDate)
		require.NoError(t, err)
		require.Equal(t, "", cmp.Diff(domain.TargetAllocation{
			"A": 0.5,
			"B": 0.5,
		}, alloc, approx))
	})

	t.Run("ties keep candidate order", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		data := mock_marketdata.NewMockAccessor(ctrl)
		e := NewEvaluator(data)

		data.EXPECT().Indicator("A", rsiKey(10), evalDate).Return(50.0, nil)
		data.EXPECT().Indicator("B", rsiKey(10), evalDate).Return(50.0, nil)

		alloc, err := e.Evaluate(filterOf(SelectMode_Top, 1, "A", "B"), evalDate)
		require.NoError(t, err)
		require.Equal(t, "", cmp.Diff(domain.TargetAllocation{"A": 1.0}, alloc, approx))
	})
}
