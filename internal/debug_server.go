package internal

import (
	"context"
	"crush-chat/repositories"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed inspect.html
var templatesFS embed.FS

const defaultPrefix = "msg:"

type InspectRow struct {
	Key          string
	Type         string
	Timestamp    string
	Conversation string
	EntityID     string
	Detail       string
}

type StatsProvider func() map[string]any

type PageData struct {
	Prefix string
	Items  []InspectRow
	Stats  map[string]any
	Error  string
}

// NewDebugHandler serves /inspect, a browsable dump of the badger records
// under a key prefix, and /metrics for prometheus.
func NewDebugHandler(log *slog.Logger, db *badger.DB, gatherer prometheus.Gatherer, stats StatsProvider) http.Handler {
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))

	mux.HandleFunc("/inspect", func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = defaultPrefix
		}
		data := PageData{Prefix: prefix, Stats: make(map[string]any)}
		if stats != nil {
			data.Stats = stats()
		}
		err := repositories.Scan(db, prefix, func(record repositories.Record) error {
			data.Items = append(data.Items, DefaultMapper(record))
			return nil
		})
		if err != nil {
			log.Warn("Inspection failed", "prefix", prefix, "error", err)
			data.Error = err.Error()
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}

// StartDebugServer listens on localhost:port until ctx is done.
func StartDebugServer(ctx context.Context, log *slog.Logger, port int, handler http.Handler) {
	server := &http.Server{
		Addr:              fmt.Sprintf("localhost:%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("Debug server started", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Debug server stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}

// DefaultMapper turns a stored record into a row, from its key layout
// (msg:{escaped conversation}:{nanos}:{id}, conv:{id}, profile:{user}) and fields.
func DefaultMapper(record repositories.Record) InspectRow {
	parts := strings.SplitN(record.Key, ":", 4)
	row := InspectRow{
		Key:          record.Key,
		Type:         "RAW",
		Timestamp:    "--:--:--",
		Conversation: "-",
		EntityID:     "--------",
		Detail:       "Size: " + strconv.Itoa(record.Size) + " bytes",
	}
	if record.Err != nil {
		row.Detail = record.Err.Error()
		return row
	}
	field := func(key string) string {
		v, _ := record.Fields[key].(string)
		return v
	}

	switch parts[0] {
	case "msg":
		if len(parts) < 4 {
			return row
		}
		row.Type = strings.ToUpper(field("kind"))
		row.Conversation = parts[1]
		if conversation, err := url.QueryUnescape(parts[1]); err == nil {
			row.Conversation = conversation
		}
		if nanos, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
			row.Timestamp = time.Unix(0, nanos).Format("15:04:05")
		}
		row.EntityID = short(parts[3])
		row.Detail = field("sender") + ": " + field("text")
		if uri := field("media_uri"); uri != "" {
			row.Detail = field("sender") + ": " + uri
		}
	case "conv":
		row.Type = "CONVERSATION"
		row.Conversation = field("id")
		if ids, ok := record.Fields["participant_ids"].([]any); ok {
			row.Detail = fmt.Sprintf("%v", ids)
		}
	case "profile":
		row.Type = "PROFILE"
		row.EntityID = short(field("user_id"))
		row.Detail = field("display_name")
	}
	return row
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
