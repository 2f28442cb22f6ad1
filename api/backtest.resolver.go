package api

import (
	"encoding/json"
	"fmt"
	"time"

	"symphonybacktest/internal/app"
	"symphonybacktest/internal/domain"
	"symphonybacktest/internal/logger"
	"symphonybacktest/internal/simulator"
	"symphonybacktest/internal/strategy"

	"github.com/gin-gonic/gin"
)

type BacktestRequest struct {
	// exactly one of these carries the program
	Symphony  json.RawMessage `json:"symphony"`
	Quantmage json.RawMessage `json:"quantmage"`

	BacktestStart string `json:"backtestStart"`
	BacktestEnd   string `json:"backtestEnd"`

	InitialCapital         float64 `json:"initialCapital"`
	TransactionCostPct     float64 `json:"transactionCostPct"`
	SlippagePct            float64 `json:"slippagePct"`
	MinTradeSize           float64 `json:"minTradeSize"`
	RebalanceFrequencyDays int     `json:"rebalanceFrequencyDays"`
}

type BacktestResponse struct {
	RunID        string                             `json:"runId"`
	StrategyName string                             `json:"strategyName"`
	Allocations  map[string]domain.TargetAllocation `json:"allocations"`
	Valuations   []valuationJson                    `json:"valuations"`
	TotalReturn  float64                            `json:"totalReturn"`
	SharpeRatio  *float64                           `json:"sharpeRatio"`
	MaxDrawdown  float64                            `json:"maxDrawdown"`
	SkippedDays  []skippedDayJson                   `json:"skippedDays"`
}

type valuationJson struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

type skippedDayJson struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

func (m ApiHandler) backtest(c *gin.Context) {
	ctx := logger.AddToContext(c.Request.Context(), m.Logger)

	var requestBody BacktestRequest
	if err := c.ShouldBindJSON(&requestBody); err != nil {
		m.returnErrorJsonCode(err, c, 400)
		return
	}

	var (
		parsed *strategy.Strategy
		err    error
	)
	switch {
	case len(requestBody.Symphony) > 0:
		parsed, err = strategy.ParseSymphony(requestBody.Symphony)
	case len(requestBody.Quantmage) > 0:
		parsed, err = strategy.ParseQuantmage(requestBody.Quantmage)
	default:
		err = fmt.Errorf("request must include a symphony or quantmage program")
	}
	if err != nil {
		m.returnErrorJsonCode(err, c, 400)
		return
	}

	backtestStartDate, err := time.Parse(time.DateOnly, requestBody.BacktestStart)
	if err != nil {
		m.returnErrorJsonCode(err, c, 400)
		return
	}
	backtestEndDate, err := time.Parse(time.DateOnly, requestBody.BacktestEnd)
	if err != nil {
		m.returnErrorJsonCode(err, c, 400)
		return
	}
	if backtestEndDate.Before(backtestStartDate) {
		m.returnErrorJsonCode(fmt.Errorf("end date cannot be before start date"), c, 400)
		return
	}

	initialCapital := requestBody.InitialCapital
	if initialCapital == 0 {
		initialCapital = 100000
	}

	result, err := m.BacktestHandler.Run(ctx, app.BacktestInput{
		Strategy:       parsed,
		Start:          backtestStartDate,
		End:            backtestEndDate,
		InitialCapital: initialCapital,
		Frictions: simulator.Frictions{
			TransactionCostPct:     requestBody.TransactionCostPct,
			SlippagePct:            requestBody.SlippagePct,
			MinTradeSize:           requestBody.MinTradeSize,
			RebalanceFrequencyDays: requestBody.RebalanceFrequencyDays,
		},
	})
	if err != nil {
		m.returnErrorJson(err, c)
		return
	}

	response := BacktestResponse{
		RunID:        result.RunID.String(),
		StrategyName: result.StrategyName,
		Allocations:  result.Allocations,
		TotalReturn:  result.Metrics.TotalReturn,
		SharpeRatio:  result.Metrics.SharpeRatio,
		MaxDrawdown:  result.Metrics.MaxDrawdown,
		Valuations:   []valuationJson{},
		SkippedDays:  []skippedDayJson{},
	}
	for _, v := range result.Valuations {
		response.Valuations = append(response.Valuations, valuationJson{
			Date:  v.Date.Format(time.DateOnly),
			Value: v.Value,
		})
	}
	for _, s := range result.SkippedDays {
		response.SkippedDays = append(response.SkippedDays, skippedDayJson{
			Date:   s.Date.Format(time.DateOnly),
			Reason: s.Reason,
		})
	}

	c.JSON(200, response)
}
