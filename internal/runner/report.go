package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nsgamedb/eshop-scraper/internal/publisher"
	"github.com/nsgamedb/eshop-scraper/internal/queue"
	"github.com/nsgamedb/eshop-scraper/internal/storage"
)

// Report summarizes one run for operators and downstream consumers.
type Report struct {
	RunID       string        `json:"run_id"`
	Timestamp   time.Time     `json:"timestamp"`
	Processed   int           `json:"processed"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	SuccessRate float64       `json:"success_rate"`
	FailedIDs   []string      `json:"failed_ids,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
	QueueStats  *queue.Stats  `json:"queue_stats,omitempty"`
}

// objectName returns the blob path the report is stored under.
func (r *Report) objectName(prefix string) string {
	name := fmt.Sprintf("runs/%s/%s.json", r.Timestamp.UTC().Format("2006/01/02"), r.RunID)
	if prefix != "" {
		return prefix + "/" + name
	}
	return name
}

// Publisher side: run events share the report payload.
const eventRunCompleted = "run.completed"

type runEvent struct {
	Event  string  `json:"event"`
	Report *Report `json:"report"`
}

// Emit persists the report to blob storage and publishes a completion
// event. Neither sink failing fails the run: the scrape work is already
// settled in the queue and database.
func (r *Report) Emit(ctx context.Context, store storage.Provider, pub publisher.Provider, prefix, topic string, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		logger.Error("encode run report", zap.String("run_id", r.RunID), zap.Error(err))
		return
	}

	if store != nil {
		uri, err := store.Save(ctx, r.objectName(prefix), data)
		if err != nil {
			logger.Warn("persist run report", zap.String("run_id", r.RunID), zap.Error(err))
		} else {
			logger.Info("run report stored", zap.String("run_id", r.RunID), zap.String("uri", uri))
		}
	}

	if pub != nil && topic != "" {
		id, err := pub.Publish(ctx, topic, runEvent{Event: eventRunCompleted, Report: r})
		if err != nil {
			logger.Warn("publish run event", zap.String("run_id", r.RunID), zap.Error(err))
		} else if id != "" {
			logger.Debug("run event published", zap.String("run_id", r.RunID), zap.String("message_id", id))
		}
	}
}
