package bench

import "github.com/rs/zerolog/log"

// LogListener reports arena progress through the same structured logger
// the search engine uses, instead of the teacher's raw ANSI terminal
// redraw (listener.go) — cmd/searchctl runs headless, so a scrolling log
// line fits its output model better than an in-place redraw.
type LogListener struct{}

func (LogListener) OnGameFinished(report GameReport) {
	log.Info().
		Int("worker", report.WorkerID).
		Int("result", int(report.Result)).
		Int("total_games", report.Total).
		Msg("bench: game finished")
}

func (LogListener) OnSummary(s Summary) {
	log.Info().
		Int("total_games", s.TotalGames).
		Int("p1_wins", s.P1Wins).
		Int("p2_wins", s.P2Wins).
		Int("draws", s.Draws).
		Int("workers", s.Workers).
		Msg("bench: summary")
}
