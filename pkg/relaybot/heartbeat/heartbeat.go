// Package heartbeat periodically logs the health of every connected channel.
package heartbeat

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jholhewres/relaybot/pkg/relaybot/channels"
)

// DefaultSchedule reports every five minutes.
const DefaultSchedule = "@every 5m"

// HealthSource reports per-channel health, keyed by channel name.
type HealthSource interface {
	HealthAll() map[string]channels.HealthStatus
}

// parser accepts standard five-field expressions, an optional leading
// seconds field, and descriptors such as "@hourly" or "@every 1m".
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Heartbeat runs the health report on a cron schedule.
type Heartbeat struct {
	schedule string
	source   HealthSource
	logger   *slog.Logger
	cron     *cron.Cron
	now      func() time.Time
}

// New validates schedule and returns a stopped Heartbeat.
func New(schedule string, source HealthSource, logger *slog.Logger) (*Heartbeat, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := parser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("invalid heartbeat schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Heartbeat{
		schedule: schedule,
		source:   source,
		logger:   logger.With("component", "heartbeat"),
		now:      time.Now,
	}, nil
}

// Start schedules the report and returns immediately.
func (h *Heartbeat) Start() error {
	h.cron = cron.New(cron.WithParser(parser))
	if _, err := h.cron.AddFunc(h.schedule, h.Report); err != nil {
		return fmt.Errorf("scheduling heartbeat: %w", err)
	}
	h.cron.Start()
	h.logger.Info("heartbeat started", "schedule", h.schedule)
	return nil
}

// Stop halts the schedule and waits for a running report, bounded by ctx.
func (h *Heartbeat) Stop(ctx context.Context) {
	if h.cron == nil {
		return
	}
	select {
	case <-h.cron.Stop().Done():
	case <-ctx.Done():
	}
	h.logger.Info("heartbeat stopped")
}

// Report logs one line per channel. Disconnected channels are logged at warn
// level; channels silent for more than a day are flagged as idle.
func (h *Heartbeat) Report() {
	health := h.source.HealthAll()
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	sort.Strings(names)

	now := h.now()
	for _, name := range names {
		st := health[name]
		attrs := []any{
			"channel", name,
			"connected", st.Connected,
			"errors", st.ErrorCount,
		}
		if !st.LastMessageAt.IsZero() {
			idle := now.Sub(st.LastMessageAt).Round(time.Second)
			attrs = append(attrs, "idle", idle.String())
			if idle > 24*time.Hour {
				attrs = append(attrs, "stale", true)
			}
		}
		if !st.Connected {
			h.logger.Warn("channel unhealthy", attrs...)
			continue
		}
		h.logger.Info("channel health", attrs...)
	}
	if len(names) == 0 {
		h.logger.Warn("no channels registered")
	}
}
