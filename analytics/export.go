package analytics

import (
	"context"
	"log/slog"
	"time"
)

// Exporter ships snapshots somewhere.
type Exporter interface {
	Export(ctx context.Context, s Snapshot) error
}

// LogExporter writes snapshots as structured log lines.
type LogExporter struct{ Logger *slog.Logger }

func (e LogExporter) Export(ctx context.Context, s Snapshot) error {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "analytics snapshot",
		"day", s.Day,
		"events", s.Events,
		"dau", s.DailyActive,
		"wau", s.WeeklyActive,
		"xp_today", s.XPToday,
		"level_ups_today", s.LevelUpsToday,
		"daily_claims_today", s.DailyClaimsToday,
	)
	return nil
}

// Run exports m every interval until ctx is done, plus once on exit.
func Run(ctx context.Context, m *Metrics, every time.Duration, exp Exporter) {
	if every <= 0 || exp == nil {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = exp.Export(context.Background(), m.Snapshot())
			return
		case <-ticker.C:
			if err := exp.Export(ctx, m.Snapshot()); err != nil {
				slog.Warn("analytics export failed", "err", err)
			}
		}
	}
}
