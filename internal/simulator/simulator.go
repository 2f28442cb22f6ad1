package simulator

import (
	"fmt"
	"sort"
	"time"

	"symphonybacktest/internal/domain"
	"symphonybacktest/internal/marketdata"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Frictions are the trading costs applied to every simulated order.
type Frictions struct {
	TransactionCostPct     float64
	SlippagePct            float64
	MinTradeSize           float64
	RebalanceFrequencyDays int
}

func (f Frictions) rebalanceEvery() int {
	if f.RebalanceFrequencyDays < 1 {
		return 1
	}
	return f.RebalanceFrequencyDays
}

// StepResult reports what one simulated day did to the ledger.
type StepResult struct {
	Date          time.Time
	PreTradeValue decimal.Decimal
	Trades        []domain.FilledTrade
	Traded        bool
}

// Simulator is the day-by-day state machine that tracks a target allocation.
// It has exactly one writer: days must be stepped in date order and never
// concurrently, because each day's ledger carries into the next.
type Simulator struct {
	data      marketdata.Accessor
	frictions Frictions
	portfolio *domain.Portfolio
	history   []domain.DailyValuation
	log       *zap.SugaredLogger

	daysSinceRebalance int
	seeded             bool
}

// cash may dip below zero by no more than this after an order
var cashEpsilon = decimal.NewFromFloat(1e-6)

func New(data marketdata.Accessor, initialCapital decimal.Decimal, frictions Frictions, log *zap.SugaredLogger) *Simulator {
	if log == nil {
		log = zap.S()
	}
	return &Simulator{
		data:      data,
		frictions: frictions,
		portfolio: domain.NewPortfolio(initialCapital),
		log:       log,
	}
}

func (s *Simulator) Portfolio() *domain.Portfolio {
	return s.portfolio.DeepCopy()
}

// ValueHistory returns the pre-trade valuation series, one sample per
// stepped day, in date order.
func (s *Simulator) ValueHistory() []domain.DailyValuation {
	out := make([]domain.DailyValuation, len(s.history))
	copy(out, s.history)
	return out
}

// MarkOnly advances one day without trading: mark-to-market, cadence counter,
// valuation sample. Used when the day's evaluation failed.
func (s *Simulator) MarkOnly(date time.Time) decimal.Decimal {
	preTradeValue := s.markToMarket(date)
	s.daysSinceRebalance++
	s.appendValuation(date, preTradeValue)
	return preTradeValue
}

// Step runs one simulated day against the target allocation, in fixed order:
// mark-to-market, cadence gate, liquidate dropped positions, rebalance
// remaining targets, append valuation.
func (s *Simulator) Step(date time.Time, target domain.TargetAllocation) (*StepResult, error) {
	preTradeValue := s.markToMarket(date)

	result := &StepResult{
		Date:          date,
		PreTradeValue: preTradeValue,
		Trades:        []domain.FilledTrade{},
	}

	s.daysSinceRebalance++
	if s.daysSinceRebalance < s.frictions.rebalanceEvery() {
		s.appendValuation(date, preTradeValue)
		return result, nil
	}
	s.daysSinceRebalance = 0
	result.Traded = true

	firstRebalance := !s.seeded
	s.seeded = true

	targetSymbols := target.Symbols()

	// dropped positions are liquidated before any rebalance order, so a
	// same-day drop-and-add can never overdraw cash
	for _, symbol := range sortedHeld(s.portfolio) {
		if _, ok := targetSymbols[symbol]; ok {
			continue
		}
		trade, err := s.liquidate(symbol, date, firstRebalance)
		if err != nil {
			return nil, err
		}
		if trade != nil {
			result.Trades = append(result.Trades, *trade)
		}
	}

	for _, symbol := range sortedSymbols(targetSymbols) {
		trade, err := s.rebalanceSymbol(symbol, target[symbol], preTradeValue, date, firstRebalance)
		if err != nil {
			return nil, err
		}
		if trade != nil {
			result.Trades = append(result.Trades, *trade)
		}
	}

	if s.portfolio.Cash.LessThan(cashEpsilon.Neg()) {
		return nil, fmt.Errorf("ledger invariant violated: cash %s is negative after rebalance on %s",
			s.portfolio.Cash.String(), date.Format(time.DateOnly))
	}

	s.appendValuation(date, preTradeValue)

	return result, nil
}

// markToMarket sums cash plus held positions at as-of prices. A symbol with
// no price on or before date stays held but is excluded from the sample.
func (s *Simulator) markToMarket(date time.Time) decimal.Decimal {
	value := s.portfolio.Cash
	for symbol, position := range s.portfolio.Positions {
		price, err := s.data.Close(symbol, date)
		if err != nil {
			s.log.Warnf("no price for held symbol %s on %s, excluding from valuation", symbol, date.Format(time.DateOnly))
			continue
		}
		value = value.Add(position.Quantity.Mul(decimal.NewFromFloat(price)))
	}
	return value
}

func (s *Simulator) liquidate(symbol string, date time.Time, firstRebalance bool) (*domain.FilledTrade, error) {
	position := s.portfolio.Positions[symbol]

	price, err := s.data.Close(symbol, date)
	if err != nil {
		s.log.Warnf("cannot liquidate %s on %s: no price; keeping position", symbol, date.Format(time.DateOnly))
		return nil, nil
	}

	execPrice := decimal.NewFromFloat(price * (1 - s.frictions.SlippagePct))
	proceeds := position.Quantity.Mul(execPrice)
	if !firstRebalance && proceeds.LessThan(decimal.NewFromFloat(s.frictions.MinTradeSize)) {
		return nil, nil
	}

	fee := proceeds.Mul(decimal.NewFromFloat(s.frictions.TransactionCostPct))
	s.portfolio.Cash = s.portfolio.Cash.Add(proceeds).Sub(fee)
	delete(s.portfolio.Positions, symbol)

	return &domain.FilledTrade{
		TradeID:   uuid.New(),
		Symbol:    symbol,
		Side:      domain.TradeSide_Sell,
		Quantity:  position.Quantity,
		FillPrice: execPrice,
		Fee:       fee,
		FilledAt:  date,
	}, nil
}

func (s *Simulator) rebalanceSymbol(
	symbol string,
	weight float64,
	preTradeValue decimal.Decimal,
	date time.Time,
	firstRebalance bool,
) (*domain.FilledTrade, error) {
	price, err := s.data.Close(symbol, date)
	if err != nil {
		s.log.Warnf("no price for target symbol %s on %s, skipping", symbol, date.Format(time.DateOnly))
		return nil, nil
	}
	priceDec := decimal.NewFromFloat(price)

	currentShares := decimal.Zero
	if position, ok := s.portfolio.Positions[symbol]; ok {
		currentShares = position.Quantity
	}

	targetValue := preTradeValue.Mul(decimal.NewFromFloat(weight))
	targetShares := targetValue.Div(priceDec)
	delta := targetShares.Sub(currentShares)

	notional := delta.Mul(priceDec).Abs()
	if !firstRebalance && notional.LessThan(decimal.NewFromFloat(s.frictions.MinTradeSize)) {
		return nil, nil
	}

	if delta.IsPositive() {
		return s.buy(symbol, delta, price, date), nil
	}
	if delta.IsNegative() {
		return s.sell(symbol, delta.Neg(), price, date), nil
	}
	return nil, nil
}

func (s *Simulator) buy(symbol string, shares decimal.Decimal, price float64, date time.Time) *domain.FilledTrade {
	execPrice := decimal.NewFromFloat(price * (1 + s.frictions.SlippagePct))
	feeRate := decimal.NewFromFloat(s.frictions.TransactionCostPct)
	one := decimal.NewFromInt(1)

	// cap to what cash affords once slippage and the fee are included
	totalCost := shares.Mul(execPrice).Mul(one.Add(feeRate))
	if totalCost.GreaterThan(s.portfolio.Cash) {
		shares = s.portfolio.Cash.Div(execPrice.Mul(one.Add(feeRate)))
	}
	if !shares.IsPositive() {
		return nil
	}

	gross := shares.Mul(execPrice)
	fee := gross.Mul(feeRate)
	s.portfolio.Cash = s.portfolio.Cash.Sub(gross).Sub(fee)

	position, ok := s.portfolio.Positions[symbol]
	if !ok {
		position = &domain.Position{Symbol: symbol}
		s.portfolio.Positions[symbol] = position
	}
	position.Quantity = position.Quantity.Add(shares)

	return &domain.FilledTrade{
		TradeID:   uuid.New(),
		Symbol:    symbol,
		Side:      domain.TradeSide_Buy,
		Quantity:  shares,
		FillPrice: execPrice,
		Fee:       fee,
		FilledAt:  date,
	}
}

func (s *Simulator) sell(symbol string, shares decimal.Decimal, price float64, date time.Time) *domain.FilledTrade {
	position, ok := s.portfolio.Positions[symbol]
	if !ok {
		return nil
	}
	if shares.GreaterThan(position.Quantity) {
		shares = position.Quantity
	}

	execPrice := decimal.NewFromFloat(price * (1 - s.frictions.SlippagePct))
	proceeds := shares.Mul(execPrice)
	fee := proceeds.Mul(decimal.NewFromFloat(s.frictions.TransactionCostPct))

	s.portfolio.Cash = s.portfolio.Cash.Add(proceeds).Sub(fee)
	position.Quantity = position.Quantity.Sub(shares)

	return &domain.FilledTrade{
		TradeID:   uuid.New(),
		Symbol:    symbol,
		Side:      domain.TradeSide_Sell,
		Quantity:  shares,
		FillPrice: execPrice,
		Fee:       fee,
		FilledAt:  date,
	}
}

func (s *Simulator) appendValuation(date time.Time, value decimal.Decimal) {
	s.history = append(s.history, domain.DailyValuation{
		Date:  date,
		Value: value.InexactFloat64(),
	})
}

func sortedHeld(p *domain.Portfolio) []string {
	symbols := p.HeldSymbols()
	sort.Strings(symbols)
	return symbols
}

func sortedSymbols(set map[string]struct{}) []string {
	symbols := []string{}
	for symbol := range set {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}
