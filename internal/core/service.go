package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNoPersistentStore is returned by Load and Save when the service has no store.
var ErrNoPersistentStore = errors.New("no persistent store configured")

// ErrNotFound is returned when a lookup by name or id fails.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Service is the host-side dispatch point. It owns the current State, applies actions
// in call order and evaluates the rules engine after each dispatch. Violations are
// reported, never enforced.
type Service struct {
	mu      sync.RWMutex
	state   State
	engine  *RulesEngine
	store   PersistentStore
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
	clock   Clock
}

// ServiceOption customises a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	engine  *RulesEngine
	store   PersistentStore
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
	clock   Clock
	initial State
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		engine:  NewDefaultRulesEngine(),
		logger:  noopLogger{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		audit:   noopAuditRecorder{},
		clock:   ClockFunc(func() time.Time { return time.Now().UTC() }),
	}
}

// WithRulesEngine replaces the default rules engine.
func WithRulesEngine(engine *RulesEngine) ServiceOption {
	return func(o *serviceOptions) {
		if engine != nil {
			o.engine = engine
		}
	}
}

// WithPersistentStore sets the store used by Load and Save.
func WithPersistentStore(store PersistentStore) ServiceOption {
	return func(o *serviceOptions) { o.store = store }
}

// WithInitialState seeds the service state.
func WithInitialState(state State) ServiceOption {
	return func(o *serviceOptions) { o.initial = state }
}

// WithLogger sets the structured logger.
func WithLogger(logger Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetricsRecorder sets the metrics recorder.
func WithMetricsRecorder(metrics MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer Tracer) ServiceOption {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithAuditRecorder sets the audit recorder.
func WithAuditRecorder(audit AuditRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if audit != nil {
			o.audit = audit
		}
	}
}

// WithClock overrides the time source used for audit timestamps and durations.
func WithClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// NewService constructs a service.
func NewService(opts ...ServiceOption) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Service{
		state:   o.initial,
		engine:  o.engine,
		store:   o.store,
		logger:  o.logger,
		metrics: o.metrics,
		tracer:  o.tracer,
		audit:   o.audit,
		clock:   o.clock,
	}
}

// State returns the current state. The returned value must be treated as read-only.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Namespace resolves a namespace of the current state.
func (s *Service) Namespace(name string) (*Namespace, error) {
	ns, ok := s.State().Namespace(name)
	if !ok {
		return nil, ErrNotFound{Entity: EntityNamespace, ID: name}
	}
	return ns, nil
}

// Dispatch applies one action and evaluates the rules against the resulting state.
// The state is committed regardless of the violations returned.
func (s *Service) Dispatch(ctx context.Context, action Action) (State, Result, error) {
	if action == nil {
		return s.State(), Result{}, fmt.Errorf("%w: nil action", ErrInvalidAction)
	}
	entry := auditFor(action)
	ctx, done := s.begin(ctx, "dispatch", map[string]string{
		"kind":      string(entry.Kind),
		"namespace": entry.Namespace,
	})

	s.mu.Lock()
	prev := s.state
	next := Apply(prev, action)
	s.state = next
	s.mu.Unlock()

	res, err := s.engine.Evaluate(ctx, next)
	done(entry, err)
	if err != nil {
		return next, Result{}, fmt.Errorf("evaluate rules: %w", err)
	}
	s.logger.Debug("action dispatched",
		"kind", entry.Kind,
		"namespace", entry.Namespace,
		"changed", !sameState(prev, next),
		"violations", len(res.Violations),
	)
	for _, v := range res.Violations {
		s.logger.Warn("rule violation", "rule", v.Rule, "namespace", v.Namespace, "entity", v.Entity, "id", v.EntityID, "message", v.Message)
	}
	return next, res, nil
}

// DispatchAll applies actions in order and evaluates the rules once at the end.
func (s *Service) DispatchAll(ctx context.Context, actions ...Action) (State, Result, error) {
	ctx, done := s.begin(ctx, "dispatch_batch", map[string]string{"actions": fmt.Sprint(len(actions))})

	s.mu.Lock()
	next := ApplyAll(s.state, actions...)
	s.state = next
	s.mu.Unlock()

	res, err := s.engine.Evaluate(ctx, next)
	done(AuditEntry{Entity: EntityNamespace}, err)
	if err != nil {
		return next, Result{}, fmt.Errorf("evaluate rules: %w", err)
	}
	s.logger.Info("actions dispatched", "count", len(actions), "violations", len(res.Violations))
	return next, res, nil
}

// Validate evaluates the rules against the current state.
func (s *Service) Validate(ctx context.Context) (Result, error) {
	return s.engine.Evaluate(ctx, s.State())
}

// Allocation computes the segment allocation of a namespace seen from the given
// exclusion set.
func (s *Service) Allocation(namespace string, exclude ...string) (Allocation, error) {
	ns, err := s.Namespace(namespace)
	if err != nil {
		return Allocation{}, err
	}
	return Allocate(ns, exclude...), nil
}

// ValidateExperiment computes the issues of one experiment.
func (s *Service) ValidateExperiment(namespace, experimentID string) ([]ExperimentIssue, error) {
	ns, err := s.Namespace(namespace)
	if err != nil {
		return nil, err
	}
	return ValidateExperiment(ns, experimentID)
}

// Load replaces the current state with the persisted payloads.
func (s *Service) Load(ctx context.Context) (State, error) {
	if s.store == nil {
		return s.State(), ErrNoPersistentStore
	}
	ctx, done := s.begin(ctx, "load", nil)
	payloads, err := s.store.Load(ctx)
	done(AuditEntry{Kind: KindLoadNamespaces, Entity: EntityNamespace}, err)
	if err != nil {
		return s.State(), fmt.Errorf("load namespaces: %w", err)
	}
	state := Hydrate(payloads)
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	if dropped := len(payloads) - len(state.Namespaces); dropped > 0 {
		s.logger.Warn("duplicate namespaces dropped", "count", dropped)
	}
	s.logger.Info("namespaces loaded", "count", len(state.Namespaces))
	return state, nil
}

// Save purges records marked for deletion, persists the remaining namespaces and
// rehydrates them so every record is clean. Tombstones describe what was purged.
func (s *Service) Save(ctx context.Context) ([]Tombstone, error) {
	if s.store == nil {
		return nil, ErrNoPersistentStore
	}
	ctx, done := s.begin(ctx, "save", nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	purged, tombstones := Purge(s.state)
	payloads := ExportPayloads(purged)
	if err := s.store.Save(ctx, payloads); err != nil {
		done(AuditEntry{Entity: EntityNamespace}, err)
		return nil, fmt.Errorf("save namespaces: %w", err)
	}
	s.state = Hydrate(payloads)
	done(AuditEntry{Entity: EntityNamespace}, nil)
	s.logger.Info("namespaces saved", "count", len(payloads), "purged", len(tombstones))
	return tombstones, nil
}

func (s *Service) begin(ctx context.Context, operation string, attrs map[string]string) (context.Context, func(AuditEntry, error)) {
	if len(attrs) > 0 {
		ctx = WithTraceAttributes(ctx, attrs)
	}
	ctx, span := s.tracer.Start(ctx, operation)
	started := s.clock.Now()
	return ctx, func(entry AuditEntry, err error) {
		ended := s.clock.Now()
		duration := ended.Sub(started)
		span.End(err)
		s.metrics.Observe(ctx, operation, err == nil, duration)

		entry.Operation = operation
		entry.Duration = duration
		entry.Timestamp = ended
		entry.Status = AuditStatusSuccess
		if err != nil {
			entry.Status = AuditStatusError
			entry.Error = err.Error()
			s.logger.Error("operation failed", "operation", operation, "error", err)
		}
		s.audit.Record(ctx, entry)
	}
}

func auditFor(action Action) AuditEntry {
	entry := AuditEntry{Kind: action.Kind(), Entity: EntityNamespace}
	switch a := action.(type) {
	case AddParam:
		entry.Namespace, entry.Entity, entry.EntityID = a.Namespace, EntityParam, a.ID
	case ParamAction:
		entry.Namespace, entry.Entity, entry.EntityID = a.TargetNamespace(), EntityParam, a.TargetParam()
	case ExperimentAction:
		entry.Namespace, entry.Entity, entry.EntityID = a.TargetNamespace(), EntityExperiment, a.TargetExperiment()
	case NamespaceAction:
		entry.Namespace, entry.EntityID = a.TargetNamespace(), a.TargetNamespace()
	case AddNamespace:
		entry.Namespace, entry.EntityID = a.Name, a.Name
	}
	return entry
}

func sameState(a, b State) bool {
	if len(a.Namespaces) != len(b.Namespaces) {
		return false
	}
	for i := range a.Namespaces {
		if a.Namespaces[i] != b.Namespaces[i] {
			return false
		}
	}
	return true
}
