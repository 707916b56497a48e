package publish

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"elwinator/internal/blob"
	"elwinator/internal/core"
)

const (
	// DefaultPrefix is the key prefix documents are written under.
	DefaultPrefix = "namespaces/"
	// ChecksumKey is the object metadata entry holding the document's sha256.
	ChecksumKey = "sha256"

	contentType = "application/json"
	operation   = "publish"
)

// Outcome is what happened to one namespace during a publish.
type Outcome string

const (
	OutcomeWritten   Outcome = "written"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeDeleted   Outcome = "deleted"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Entry reports one namespace (or orphaned document when pruning).
type Entry struct {
	Namespace string  `json:"namespace"`
	Key       string  `json:"key"`
	Outcome   Outcome `json:"outcome"`
	Error     string  `json:"error,omitempty"`
}

// Report lists the outcome of every namespace in state order, then pruned documents.
type Report struct {
	Entries []Entry `json:"entries"`
}

// Count returns how many entries have the given outcome.
func (r Report) Count(o Outcome) int {
	n := 0
	for _, e := range r.Entries {
		if e.Outcome == o {
			n++
		}
	}
	return n
}

// Publisher writes namespace documents to a blob store.
type Publisher struct {
	store   blob.Store
	prefix  string
	prune   bool
	dryRun  bool
	logger  core.Logger
	metrics core.MetricsRecorder
	tracer  core.Tracer
	audit   core.AuditRecorder
	clock   core.Clock
}

// Option customises a Publisher.
type Option func(*Publisher)

// WithPrefix changes the key prefix. A trailing slash is added when missing.
func WithPrefix(prefix string) Option {
	return func(p *Publisher) {
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		p.prefix = prefix
	}
}

// WithPrune makes Publish delete documents under the prefix whose namespace is no
// longer in the state.
func WithPrune(prune bool) Option { return func(p *Publisher) { p.prune = prune } }

// WithDryRun computes the report without writing or deleting anything.
func WithDryRun(dryRun bool) Option { return func(p *Publisher) { p.dryRun = dryRun } }

// WithLogger sets the structured logger.
func WithLogger(l core.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetricsRecorder sets the metrics recorder observed once per Publish.
func WithMetricsRecorder(m core.MetricsRecorder) Option {
	return func(p *Publisher) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t core.Tracer) Option {
	return func(p *Publisher) {
		if t != nil {
			p.tracer = t
		}
	}
}

// WithAuditRecorder sets the recorder receiving one entry per written or deleted document.
func WithAuditRecorder(a core.AuditRecorder) Option {
	return func(p *Publisher) {
		if a != nil {
			p.audit = a
		}
	}
}

// WithClock overrides the time source.
func WithClock(c core.Clock) Option {
	return func(p *Publisher) {
		if c != nil {
			p.clock = c
		}
	}
}

// New returns a Publisher writing to store.
func New(store blob.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:   store,
		prefix:  DefaultPrefix,
		logger:  nopLogger{},
		metrics: nopMetrics{},
		tracer:  nopTracer{},
		audit:   nopAudit{},
		clock:   core.ClockFunc(func() time.Time { return time.Now().UTC() }),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Key returns the object key of a namespace document.
func (p *Publisher) Key(namespace string) string {
	return p.prefix + url.PathEscape(namespace) + ".json"
}

// Publish brings the store in line with state:
//   - active namespaces with Publish set are rendered and written unless the stored
//     document already has the same checksum;
//   - namespaces marked for deletion have their document removed;
//   - other namespaces are skipped.
//
// A failing namespace does not stop the others; the returned error joins every failure.
func (p *Publisher) Publish(ctx context.Context, state core.State) (Report, error) {
	ctx, span := p.tracer.Start(ctx, operation)
	started := p.clock.Now()

	var report Report
	var errs []error
	seen := make(map[string]bool, len(state.Namespaces))
	for _, ns := range state.Namespaces {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		key := p.Key(ns.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		entry, err := p.publishOne(ctx, ns, key)
		if err != nil {
			entry.Outcome, entry.Error = OutcomeFailed, err.Error()
			errs = append(errs, fmt.Errorf("publish %s: %w", ns.Name, err))
		}
		report.Entries = append(report.Entries, entry)
	}
	if p.prune && len(errs) == 0 {
		pruned, err := p.pruneOrphans(ctx, seen)
		report.Entries = append(report.Entries, pruned...)
		if err != nil {
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	span.End(err)
	p.metrics.Observe(ctx, operation, err == nil, p.clock.Now().Sub(started))
	p.logger.Info("namespaces published",
		"written", report.Count(OutcomeWritten),
		"unchanged", report.Count(OutcomeUnchanged),
		"deleted", report.Count(OutcomeDeleted),
		"failed", report.Count(OutcomeFailed),
		"dry_run", p.dryRun,
	)
	return report, err
}

func (p *Publisher) publishOne(ctx context.Context, ns *core.Namespace, key string) (Entry, error) {
	entry := Entry{Namespace: ns.Name, Key: key}
	switch {
	case ns.MarkedForDeletion():
		existed, err := p.remove(ctx, ns.Name, key)
		if err != nil {
			return entry, err
		}
		entry.Outcome = OutcomeSkipped
		if existed {
			entry.Outcome = OutcomeDeleted
		}
		return entry, nil
	case !ns.Publish:
		entry.Outcome = OutcomeSkipped
		return entry, nil
	}

	doc, err := Render(ns)
	if err != nil {
		return entry, err
	}
	body, sum, err := Encode(doc)
	if err != nil {
		return entry, err
	}
	info, err := p.store.Head(ctx, key)
	switch {
	case err == nil && info.Metadata[ChecksumKey] == sum:
		entry.Outcome = OutcomeUnchanged
		return entry, nil
	case err != nil && !errors.Is(err, blob.ErrNotFound):
		return entry, fmt.Errorf("head %s: %w", key, err)
	}
	entry.Outcome = OutcomeWritten
	if p.dryRun {
		return entry, nil
	}
	started := p.clock.Now()
	_, err = p.store.Put(ctx, key, bytes.NewReader(body), blob.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{ChecksumKey: sum},
	})
	p.record(ctx, ns.Name, started, err)
	if err != nil {
		return entry, err
	}
	p.logger.Debug("namespace document written", "namespace", ns.Name, "key", key, "sha256", sum)
	return entry, nil
}

func (p *Publisher) remove(ctx context.Context, namespace, key string) (bool, error) {
	if p.dryRun {
		_, err := p.store.Head(ctx, key)
		if errors.Is(err, blob.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	}
	started := p.clock.Now()
	existed, err := p.store.Delete(ctx, key)
	if existed || err != nil {
		p.record(ctx, namespace, started, err)
	}
	return existed, err
}

func (p *Publisher) pruneOrphans(ctx context.Context, seen map[string]bool) ([]Entry, error) {
	infos, err := p.store.List(ctx, p.prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", p.prefix, err)
	}
	var entries []Entry
	for _, info := range infos {
		if seen[info.Key] || !strings.HasSuffix(info.Key, ".json") {
			continue
		}
		name, err := url.PathUnescape(strings.TrimSuffix(strings.TrimPrefix(info.Key, p.prefix), ".json"))
		if err != nil {
			name = info.Key
		}
		existed, err := p.remove(ctx, name, info.Key)
		if err != nil {
			return entries, fmt.Errorf("prune %s: %w", info.Key, err)
		}
		if existed {
			entries = append(entries, Entry{Namespace: name, Key: info.Key, Outcome: OutcomeDeleted})
		}
	}
	return entries, nil
}

func (p *Publisher) record(ctx context.Context, namespace string, started time.Time, err error) {
	ended := p.clock.Now()
	entry := core.AuditEntry{
		Operation: operation,
		Namespace: namespace,
		Entity:    core.EntityNamespace,
		EntityID:  namespace,
		Status:    core.AuditStatusSuccess,
		Duration:  ended.Sub(started),
		Timestamp: ended,
	}
	if err != nil {
		entry.Status = core.AuditStatusError
		entry.Error = err.Error()
		p.logger.Error("publish failed", "namespace", namespace, "error", err)
	}
	p.audit.Record(ctx, entry)
}

// Encode renders a document as indented JSON and returns its hex sha256.
func Encode(doc Document) ([]byte, string, error) {
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("encode %s: %w", doc.Name, err)
	}
	body = append(body, '\n')
	sum := sha256.Sum256(body)
	return body, hex.EncodeToString(sum[:]), nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type nopMetrics struct{}

func (nopMetrics) Observe(context.Context, string, bool, time.Duration) {}

type nopTracer struct{}

func (nopTracer) Start(ctx context.Context, _ string) (context.Context, core.TraceSpan) {
	return ctx, nopSpan{}
}

type nopSpan struct{}

func (nopSpan) End(error) {}

type nopAudit struct{}

func (nopAudit) Record(context.Context, core.AuditEntry) {}
