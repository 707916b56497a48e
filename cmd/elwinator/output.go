package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"elwinator/internal/core"
	"elwinator/internal/publish"
)

// namespaceView is the human-facing form of a namespace: segment sets render as
// ranges and records appear in display order.
type namespaceView struct {
	Name        string           `yaml:"name"`
	Publish     bool             `yaml:"publish"`
	Deleted     bool             `yaml:"deleted,omitempty"`
	Labels      []core.Label     `yaml:"labels,omitempty"`
	Experiments []experimentView `yaml:"experiments,omitempty"`
}

type experimentView struct {
	ID          string      `yaml:"id"`
	Name        string      `yaml:"name"`
	NumSegments int         `yaml:"numSegments"`
	Segments    string      `yaml:"segments"`
	Deleted     bool        `yaml:"deleted,omitempty"`
	Params      []paramView `yaml:"params,omitempty"`
}

type paramView struct {
	ID       string        `yaml:"id"`
	Name     string        `yaml:"name"`
	Weighted bool          `yaml:"weighted"`
	Choices  []core.Choice `yaml:"choices,omitempty"`
	Deleted  bool          `yaml:"deleted,omitempty"`
}

func viewOf(ns *core.Namespace) namespaceView {
	v := namespaceView{
		Name:    ns.Name,
		Publish: ns.Publish,
		Deleted: ns.MarkedForDeletion(),
		Labels:  ns.Labels,
	}
	for _, exp := range ns.ListExperiments() {
		ev := experimentView{
			ID:          exp.ID,
			Name:        exp.Name,
			NumSegments: exp.NumSegments,
			Segments:    exp.Segments.String(),
			Deleted:     exp.MarkedForDeletion(),
		}
		for _, p := range ns.ListParams(exp.ID) {
			ev.Params = append(ev.Params, paramView{
				ID:       p.ID,
				Name:     p.Name,
				Weighted: p.Weighted,
				Choices:  p.Choices,
				Deleted:  p.MarkedForDeletion(),
			})
		}
		v.Experiments = append(v.Experiments, ev)
	}
	return v
}

func outputNamespaces(w io.Writer, namespaces []*core.Namespace, format string) error {
	switch format {
	case "json":
		payloads := make([]core.NamespacePayload, 0, len(namespaces))
		for _, ns := range namespaces {
			payloads = append(payloads, core.NamespaceToPayload(ns))
		}
		return writeJSON(w, payloads)
	case "yaml":
		views := make([]namespaceView, 0, len(namespaces))
		for _, ns := range namespaces {
			views = append(views, viewOf(ns))
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(views); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAMESPACE\tPUBLISH\tEXPERIMENT\tSEGMENTS\tUNIVERSE\tPARAMS")
		for _, ns := range namespaces {
			name := ns.Name
			if ns.MarkedForDeletion() {
				name += " (deleted)"
			}
			exps := ns.ListExperiments()
			if len(exps) == 0 {
				fmt.Fprintf(tw, "%s\t%t\t-\t-\t%d\t-\n", name, ns.Publish, core.Universe(ns))
				continue
			}
			for _, exp := range exps {
				expName := exp.Name
				if exp.MarkedForDeletion() {
					expName += " (deleted)"
				}
				fmt.Fprintf(tw, "%s\t%t\t%s\t%s\t%d\t%s\n",
					name, ns.Publish, expName, orDash(exp.Segments.String()), exp.NumSegments, paramNames(ns, exp.ID))
			}
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func paramNames(ns *core.Namespace, experimentID string) string {
	var names []string
	for _, p := range ns.ListParams(experimentID) {
		if !p.MarkedForDeletion() {
			names = append(names, p.Name)
		}
	}
	return orDash(strings.Join(names, ","))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func outputViolations(w io.Writer, res core.Result) {
	if len(res.Violations) == 0 {
		fmt.Fprintln(w, "no violations")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEVERITY\tRULE\tNAMESPACE\tENTITY\tMESSAGE")
	for _, v := range res.Violations {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\t%s\n", v.Severity, v.Rule, orDash(v.Namespace), v.Entity, v.EntityID, v.Message)
	}
	_ = tw.Flush()
}

func outputIssues(w io.Writer, issues []core.ExperimentIssue) {
	if len(issues) == 0 {
		fmt.Fprintln(w, "no issues")
		return
	}
	for _, issue := range issues {
		fmt.Fprintf(w, "%s: %s\n", issue.Code, issue.Message)
	}
}

func outputTombstones(w io.Writer, tombstones []core.Tombstone) {
	for _, t := range tombstones {
		fmt.Fprintf(w, "purged %s %s (%s)\n", t.Entity, t.Name, t.Namespace)
	}
	fmt.Fprintln(w, "saved")
}

func outputAllocation(w io.Writer, namespace string, alloc core.Allocation, sample *core.SegmentSet, format string) error {
	switch format {
	case "json":
		out := struct {
			Namespace string `json:"namespace"`
			core.Allocation
			Sample *core.SegmentSet `json:"sample,omitempty"`
		}{namespace, alloc, sample}
		return writeJSON(w, out)
	case "table", "":
		fmt.Fprintf(w, "namespace: %s\n", namespace)
		fmt.Fprintf(w, "universe:  %d\n", alloc.Universe)
		fmt.Fprintf(w, "claimed:   %s\n", orDash(alloc.Combined.String()))
		fmt.Fprintf(w, "free:      %s (%d)\n", orDash(alloc.Available.String()), alloc.Available.Len())
		for _, o := range alloc.Overlaps {
			fmt.Fprintf(w, "overlap:   %s and %s share %s\n", o.First, o.Second, o.Segments.String())
		}
		if sample != nil {
			fmt.Fprintf(w, "sample:    %s\n", orDash(sample.String()))
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func outputReport(w io.Writer, report publish.Report, driver string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAMESPACE\tKEY\tOUTCOME")
	for _, e := range report.Entries {
		outcome := string(e.Outcome)
		if e.Error != "" {
			outcome += ": " + e.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", orDash(e.Namespace), e.Key, outcome)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "%s: %d written, %d unchanged, %d deleted, %d skipped, %d failed\n", driver,
		report.Count(publish.OutcomeWritten), report.Count(publish.OutcomeUnchanged),
		report.Count(publish.OutcomeDeleted), report.Count(publish.OutcomeSkipped),
		report.Count(publish.OutcomeFailed))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
