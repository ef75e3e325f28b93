package models

import "time"

// TradeStatus — машина состояний позиции: OPEN -> IN_POSITION -> CLOSED.
type TradeStatus string

const (
	StatusOpen       TradeStatus = "OPEN"
	StatusInPosition TradeStatus = "IN_POSITION"
	StatusClosed     TradeStatus = "CLOSED"
)

// Target — чем закрылась сделка.
const (
	TargetTP = "TP"
	TargetSL = "SL"
)

// Trade принадлежит трейдеру пока открыта; в журнал уходит read-only копия.
type Trade struct {
	InstID   string
	Side     Side
	Size     float64
	Status   TradeStatus
	Entry    float64
	Exit     float64
	TP       float64
	SL       float64
	Target   string // "TP"/"SL"
	Strategy string

	OpenCandle  Candle
	CloseCandle Candle
	OpenedAt    time.Time
	ClosedAt    time.Time

	Pnl float64
}

// RealizedPnl: BUY (exit-entry)*size, SELL (entry-exit)*size.
func (t Trade) RealizedPnl(exit float64) float64 {
	if t.Side == SideSell {
		return (t.Entry - exit) * t.Size
	}
	return (exit - t.Entry) * t.Size
}

// TradeClosed — единственный выходной артефакт ядра для журнала и нотификаций.
type TradeClosed struct {
	Trade Trade
}

// PortfolioState мутирует только PortfolioManager и только на TradeClosed.
type PortfolioState struct {
	InitialBalance float64
	Balance        float64
	MaxBalance     float64
	MinBalance     float64
}
