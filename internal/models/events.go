package models

// Topic имени события в шине. Каждый тип события привязан к одному топику.
type Topic string

const (
	TopicCandleHistoryReady Topic = "candle.history_ready"
	TopicCandleClose        Topic = "candle.close"
	TopicIndicatorUpdate    Topic = "indicator.update"
	TopicSignal             Topic = "signal"
	TopicTradeApproved      Topic = "trade.approved"
	TopicTradeClosed        Topic = "trade.closed"
	TopicEngineError        Topic = "engine.error"
)

// Event реализуют все события, проходящие через шину.
type Event interface {
	EventTopic() Topic
}

// CandleHistoryReady — прогрев завершён: candles упорядочены от старых к новым.
type CandleHistoryReady struct {
	InstID    string
	Timeframe string
	Candles   []Candle
}

func (CandleHistoryReady) EventTopic() Topic { return TopicCandleHistoryReady }

// CandleClose — одна закрытая свеча after warmup, строго по хронологии.
type CandleClose struct {
	InstID string
	Candle Candle
}

func (CandleClose) EventTopic() Topic { return TopicCandleClose }

func (IndicatorUpdate) EventTopic() Topic { return TopicIndicatorUpdate }

func (Signal) EventTopic() Topic { return TopicSignal }

func (ApprovedTrade) EventTopic() Topic { return TopicTradeApproved }

func (TradeClosed) EventTopic() Topic { return TopicTradeClosed }

// EngineError — фатальная ошибка компонента (symbol mismatch, feed exhausted).
// Engine подписан и останавливает прогон.
type EngineError struct {
	Component string
	Err       error
}

func (EngineError) EventTopic() Topic { return TopicEngineError }
