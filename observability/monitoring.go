package observability

import (
	"crush-chat/errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const recentActivityLimit = 20

type RecordingOutcome string

const (
	RecordingCompleted   RecordingOutcome = "completed"
	RecordingCancelled   RecordingOutcome = "cancelled"
	RecordingFailed      RecordingOutcome = "failed"
	RecordingDenied      RecordingOutcome = "denied"
	RecordingUnavailable RecordingOutcome = "unavailable"
)

// RecentActivity is one line of the activity feed.
type RecentActivity struct {
	ConversationID string `json:"conversation_id"`
	Event          string `json:"event"`
	Detail         string `json:"detail"`
	Timestamp      string `json:"timestamp"`
}

// MonitoringStats aggregates the counters for display.
type MonitoringStats struct {
	MessagesSent        uint64           `json:"messages_sent"`
	MessagesReceived    uint64           `json:"messages_received"`
	RecordingsCompleted uint64           `json:"recordings_completed"`
	RecordingsAborted   uint64           `json:"recordings_aborted"`
	AttachmentsRejected uint64           `json:"attachments_rejected"`
	ComposerRejections  uint64           `json:"composer_rejections"`
	Crushes             int64            `json:"crushes"`
	RecentActivity      []RecentActivity `json:"recent_activity"`
}

// MonitoringManager counts what happens in composers, stores and the crush
// registry. Counters are exported to prometheus and mirrored in memory for
// the terminal client.
type MonitoringManager struct {
	log *slog.Logger
	mu  sync.RWMutex

	messagesSent        uint64
	messagesReceived    uint64
	recordingsCompleted uint64
	recordingsAborted   uint64
	attachmentsRejected uint64
	composerRejections  uint64
	crushes             int64
	recent              []RecentActivity

	sentTotal       *prometheus.CounterVec
	receivedTotal   prometheus.Counter
	recordingsTotal *prometheus.CounterVec
	rejectedTotal   prometheus.Counter
	composerTotal   *prometheus.CounterVec
	crushesGauge    prometheus.Gauge
}

func NewMonitoringManager(log *slog.Logger, registerer prometheus.Registerer) *MonitoringManager {
	mm := &MonitoringManager{
		log: log,
		sentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crushchat_messages_sent_total",
			Help: "Messages emitted by composers, by kind.",
		}, []string{"kind"}),
		receivedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crushchat_messages_received_total",
			Help: "Inbound peer messages stored.",
		}),
		recordingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crushchat_recordings_total",
			Help: "Voice recording attempts, by outcome.",
		}, []string{"outcome"}),
		rejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crushchat_attachments_rejected_total",
			Help: "Picker results that could not become a message.",
		}),
		composerTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crushchat_composer_rejections_total",
			Help: "Composer requests rejected, by error kind.",
		}, []string{"kind"}),
		crushesGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crushchat_crushes",
			Help: "Crushes saved by the signed-in user.",
		}),
	}
	registerer.MustRegister(mm.sentTotal, mm.receivedTotal, mm.recordingsTotal,
		mm.rejectedTotal, mm.composerTotal, mm.crushesGauge)
	return mm
}

func (mm *MonitoringManager) MessageSent(conversationID, kind string) {
	atomic.AddUint64(&mm.messagesSent, 1)
	mm.sentTotal.WithLabelValues(kind).Inc()
	mm.addActivity(conversationID, "sent", kind)
}

func (mm *MonitoringManager) MessageReceived(conversationID string) {
	atomic.AddUint64(&mm.messagesReceived, 1)
	mm.receivedTotal.Inc()
	mm.addActivity(conversationID, "received", "")
}

func (mm *MonitoringManager) Recording(conversationID string, outcome RecordingOutcome) {
	if outcome == RecordingCompleted {
		atomic.AddUint64(&mm.recordingsCompleted, 1)
	} else {
		atomic.AddUint64(&mm.recordingsAborted, 1)
	}
	mm.recordingsTotal.WithLabelValues(string(outcome)).Inc()
	mm.addActivity(conversationID, "recording", string(outcome))
}

func (mm *MonitoringManager) AttachmentRejected(conversationID string) {
	atomic.AddUint64(&mm.attachmentsRejected, 1)
	mm.rejectedTotal.Inc()
	mm.addActivity(conversationID, "attachment_rejected", "")
}

func (mm *MonitoringManager) ComposerRejected(conversationID string, err error) {
	kind := errors.KindOf(err)
	atomic.AddUint64(&mm.composerRejections, 1)
	mm.composerTotal.WithLabelValues(kind.String()).Inc()
	mm.addActivity(conversationID, "rejected", kind.String())
}

func (mm *MonitoringManager) SetCrushes(n int) {
	atomic.StoreInt64(&mm.crushes, int64(n))
	mm.crushesGauge.Set(float64(n))
}

// addActivity keeps the most recent events first.
func (mm *MonitoringManager) addActivity(conversationID, event, detail string) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	activity := RecentActivity{
		ConversationID: conversationID,
		Event:          event,
		Detail:         detail,
		Timestamp:      time.Now().Format("15:04:05"),
	}
	mm.recent = append([]RecentActivity{activity}, mm.recent...)
	if len(mm.recent) > recentActivityLimit {
		mm.recent = mm.recent[:recentActivityLimit]
	}
}

func (mm *MonitoringManager) GetLatest() MonitoringStats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	return MonitoringStats{
		MessagesSent:        atomic.LoadUint64(&mm.messagesSent),
		MessagesReceived:    atomic.LoadUint64(&mm.messagesReceived),
		RecordingsCompleted: atomic.LoadUint64(&mm.recordingsCompleted),
		RecordingsAborted:   atomic.LoadUint64(&mm.recordingsAborted),
		AttachmentsRejected: atomic.LoadUint64(&mm.attachmentsRejected),
		ComposerRejections:  atomic.LoadUint64(&mm.composerRejections),
		Crushes:             atomic.LoadInt64(&mm.crushes),
		RecentActivity:      append([]RecentActivity(nil), mm.recent...),
	}
}
