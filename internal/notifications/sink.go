// Package notifications carries domain notices out of the core services.
// Delivery is fire-and-forget: callers never learn whether a notice arrived.
package notifications

import (
	"context"
	"sync"

	"github.com/angelmondragon/angkor-storefront/pkg/logger"
)

// Kind names a notice.
type Kind string

const (
	KindVariantsRequired         Kind = "variants_required"
	KindConflictsFixed           Kind = "conflicts_fixed"
	KindDefaultVariantReassigned Kind = "default_variant_reassigned"
	KindOrderPaid                Kind = "order_paid"
	KindUnknownGatewayStatus     Kind = "unknown_gateway_status"
	KindLowStock                 Kind = "low_stock"
)

// Titles shown to admins alongside the notice body.
var titles = map[Kind]string{
	KindVariantsRequired:         "Variants Required",
	KindConflictsFixed:           "Conflicts Fixed",
	KindDefaultVariantReassigned: "Default Variant Reassigned",
	KindOrderPaid:                "Order Paid",
	KindUnknownGatewayStatus:     "Unknown Gateway Status",
	KindLowStock:                 "Low Stock",
}

// Level mirrors the log level a notice is reported at.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
)

type Notice struct {
	Kind    Kind           `json:"kind"`
	Level   Level          `json:"level"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// New builds a notice with the standard title for kind.
func New(kind Kind, level Level, message string, fields map[string]any) Notice {
	return Notice{Kind: kind, Level: level, Title: titles[kind], Message: message, Fields: fields}
}

// Sink receives notices. Implementations must not block the caller for long
// and must not panic.
type Sink interface {
	Notify(ctx context.Context, notice Notice)
}

// LogSink writes notices to the structured logger.
type LogSink struct {
	logg *logger.Logger
}

func NewLogSink(logg *logger.Logger) *LogSink {
	return &LogSink{logg: logg}
}

func (s *LogSink) Notify(ctx context.Context, notice Notice) {
	if s == nil || s.logg == nil {
		return
	}
	fields := map[string]any{
		"notice_kind":  string(notice.Kind),
		"notice_title": notice.Title,
	}
	for k, v := range notice.Fields {
		fields[k] = v
	}
	ctx = s.logg.WithFields(ctx, fields)
	if notice.Level == LevelWarning {
		s.logg.Warn(ctx, notice.Message)
		return
	}
	s.logg.Info(ctx, notice.Message)
}

// Discard drops every notice.
type Discard struct{}

func (Discard) Notify(context.Context, Notice) {}

// Recorder keeps notices in memory; handy for tests and admin responses.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(_ context.Context, notice Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice)
}

func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Has reports whether a notice of kind was recorded.
func (r *Recorder) Has(kind Kind) bool {
	for _, n := range r.Notices() {
		if n.Kind == kind {
			return true
		}
	}
	return false
}

// Fanout forwards each notice to every sink.
type Fanout []Sink

func (f Fanout) Notify(ctx context.Context, notice Notice) {
	for _, sink := range f {
		if sink != nil {
			sink.Notify(ctx, notice)
		}
	}
}
