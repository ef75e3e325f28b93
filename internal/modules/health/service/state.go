package service

import (
	"sync/atomic"
	"time"
)

type State struct {
	ready     atomic.Bool
	startedAt time.Time

	feedConnected   atomic.Bool
	lastCandleUnix  atomic.Int64 // unix seconds
	tradesClosedCnt atomic.Int64
}

func NewState() *State {
	s := &State{startedAt: time.Now()}
	s.ready.Store(false)
	return s
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) SetFeedConnected(v bool) { s.feedConnected.Store(v) }
func (s *State) FeedConnected() bool     { return s.feedConnected.Load() }

func (s *State) SetLastCandle(t time.Time) { s.lastCandleUnix.Store(t.Unix()) }

func (s *State) LastCandle() time.Time {
	v := s.lastCandleUnix.Load()
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0)
}

func (s *State) IncTradesClosed()      { s.tradesClosedCnt.Add(1) }
func (s *State) TradesClosed() int64   { return s.tradesClosedCnt.Load() }
func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
