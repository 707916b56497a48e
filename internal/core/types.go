package core

import "elwinator/pkg/domain"

type (
	EntityType         = domain.EntityType
	Lifecycle          = domain.Lifecycle
	Severity           = domain.Severity
	Namespace          = domain.Namespace
	Label              = domain.Label
	Experiment         = domain.Experiment
	Param              = domain.Param
	Choice             = domain.Choice
	SegmentSet         = domain.SegmentSet
	NamespacePayload   = domain.NamespacePayload
	ExperimentPayload  = domain.ExperimentPayload
	ParamPayload       = domain.ParamPayload
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	Rule               = domain.Rule
	RuleView           = domain.RuleView
	RulesEngine        = domain.RulesEngine
	PersistentStore    = domain.PersistentStore
)

const (
	EntityNamespace  = domain.EntityNamespace
	EntityLabel      = domain.EntityLabel
	EntityExperiment = domain.EntityExperiment
	EntityParam      = domain.EntityParam
	EntityChoice     = domain.EntityChoice
)

const (
	LifecycleActive            = domain.LifecycleActive
	LifecycleMarkedForDeletion = domain.LifecycleMarkedForDeletion
	LifecyclePurged            = domain.LifecyclePurged
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

// NewRulesEngine constructs an empty rules engine.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }

// DefaultNumSegments is the segment universe used when nothing else determines one.
const DefaultNumSegments = domain.DefaultNumSegments

// NewSegmentSet builds a normalized segment set.
func NewSegmentSet(segments ...int) SegmentSet { return domain.NewSegmentSet(segments...) }

// SegmentRange returns {0..n-1}.
func SegmentRange(n int) SegmentSet { return domain.SegmentRange(n) }

// NewNamespace returns the default namespace shape.
func NewNamespace(name string) *Namespace { return domain.NewNamespace(name) }
