package engine

import (
	"fmt"
	"io"

	"trade_engine/internal/journal"
)

// WriteReport печатает итог бэктеста: журнал сделок и агрегаты.
func WriteReport(w io.Writer, j *journal.Journal, p *journal.PortfolioManager) {
	s := j.Summarize(p.State().InitialBalance)
	st := p.State()

	fmt.Fprintln(w, "==== BACKTEST REPORT ====")
	for i, t := range j.Trades() {
		fmt.Fprintf(w, "%3d  %-4s %-8s  entry=%.4f exit=%.4f (%s)  pnl=%+.4f\n",
			i+1, t.Side, t.Strategy, t.Entry, t.Exit, t.Target, t.Pnl)
	}
	fmt.Fprintf(w, "trades:        %d (W %d / L %d)\n", s.Trades, s.Wins, s.Losses)
	fmt.Fprintf(w, "win rate:      %.1f%%\n", s.WinRate*100)
	fmt.Fprintf(w, "total pnl:     %+.4f\n", s.TotalPnl)
	fmt.Fprintf(w, "max drawdown:  %.2f%%\n", s.MaxDrawdown*100)
	fmt.Fprintf(w, "best streak:   %d\n", s.BestStreak)
	fmt.Fprintf(w, "balance:       %.4f -> %.4f (max %.4f, min %.4f)\n",
		st.InitialBalance, st.Balance, st.MaxBalance, st.MinBalance)
}
