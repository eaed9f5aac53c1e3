package runner

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	pubmemory "github.com/nsgamedb/eshop-scraper/internal/publisher/memory"
	"github.com/nsgamedb/eshop-scraper/internal/queue"
)

type capturingStore struct {
	objectName string
	data       []byte
	err        error
}

func (s *capturingStore) Save(_ context.Context, objectName string, data []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.objectName = objectName
	s.data = data
	return "fake://" + objectName, nil
}

func sampleReport() *Report {
	return &Report{
		RunID:       "2f1c9e6a-0000-4000-8000-000000000000",
		Timestamp:   time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		Processed:   3,
		Succeeded:   2,
		Failed:      1,
		SuccessRate: 2.0 / 3.0,
		FailedIDs:   []string{"0100000000030000"},
		QueueStats:  &queue.Stats{Pending: 5, Failed: 1},
	}
}

func TestEmitStoresAndPublishes(t *testing.T) {
	t.Parallel()

	store := &capturingStore{}
	pub := pubmemory.New()
	report := sampleReport()

	report.Emit(context.Background(), store, pub, "eshop", "scrape-events", nil)

	require.Equal(t, "eshop/runs/2026/08/30/"+report.RunID+".json", store.objectName)

	var decoded Report
	require.NoError(t, json.Unmarshal(store.data, &decoded))
	require.Equal(t, report.RunID, decoded.RunID)
	require.Equal(t, 2, decoded.Succeeded)

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "scrape-events", msgs[0].Topic)
	event, ok := msgs[0].Payload.(runEvent)
	require.True(t, ok)
	require.Equal(t, eventRunCompleted, event.Event)
	require.Equal(t, report.RunID, event.Report.RunID)
}

func TestEmitSinkFailuresAreSwallowed(t *testing.T) {
	t.Parallel()

	store := &capturingStore{err: errors.New("bucket gone")}
	report := sampleReport()

	// Must not panic or error; the run outcome is already settled.
	report.Emit(context.Background(), store, nil, "", "scrape-events", nil)
}

func TestObjectNameWithoutPrefix(t *testing.T) {
	t.Parallel()

	report := sampleReport()
	require.Equal(t, "runs/2026/08/30/"+report.RunID+".json", report.objectName(""))
}
