package observability

import (
	"crush-chat/errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMonitoringManager_Counters(t *testing.T) {
	req := require.New(t)
	mm := NewMonitoringManager(slog.Default(), prometheus.NewRegistry())

	mm.MessageSent("1", "text")
	mm.MessageSent("1", "audio")
	mm.MessageReceived("2")
	mm.Recording("1", RecordingCompleted)
	mm.Recording("1", RecordingCancelled)
	mm.AttachmentRejected("1")
	mm.ComposerRejected("1", fmt.Errorf("%w: recording in progress", errors.ErrBusy))
	mm.SetCrushes(3)

	stats := mm.GetLatest()
	req.Equal(uint64(2), stats.MessagesSent)
	req.Equal(uint64(1), stats.MessagesReceived)
	req.Equal(uint64(1), stats.RecordingsCompleted)
	req.Equal(uint64(1), stats.RecordingsAborted)
	req.Equal(uint64(1), stats.AttachmentsRejected)
	req.Equal(uint64(1), stats.ComposerRejections)
	req.Equal(int64(3), stats.Crushes)
	req.Equal("rejected", stats.RecentActivity[0].Event)
	req.Equal("Busy", stats.RecentActivity[0].Detail)

	req.Equal(float64(1), testutil.ToFloat64(mm.sentTotal.WithLabelValues("audio")))
	req.Equal(float64(1), testutil.ToFloat64(mm.recordingsTotal.WithLabelValues("cancelled")))
	req.Equal(float64(3), testutil.ToFloat64(mm.crushesGauge))
}

func TestMonitoringManager_Recent_Activity_Is_Bounded(t *testing.T) {
	req := require.New(t)
	mm := NewMonitoringManager(slog.Default(), prometheus.NewRegistry())

	for i := 0; i < recentActivityLimit+5; i++ {
		mm.MessageSent(fmt.Sprint(i), "text")
	}

	recent := mm.GetLatest().RecentActivity
	req.Len(recent, recentActivityLimit)
	req.Equal(fmt.Sprint(recentActivityLimit+4), recent[0].ConversationID)
}
