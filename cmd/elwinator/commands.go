package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"elwinator/internal/core"
	"elwinator/internal/publish"
)

// readInput reads a named file, or stdin when name is "-" or empty.
func readInput(cmd *cobra.Command, name string) (io.ReadCloser, error) {
	if name == "" || name == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return f, nil
}

// createImportCmd creates the import command
func createImportCmd(a *app) *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "import [file|-]",
		Short: "Load namespace payloads into the store",
		Long: `Read a JSON array of namespace payloads and save them.

By default imported namespaces are added to the store and replace stored
namespaces of the same name. With --replace the store holds exactly the
imported namespaces afterwards.

Examples:
  elwinator import namespaces.json
  cat namespaces.json | elwinator import --replace -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			in, err := readInput(cmd, firstArg(args))
			if err != nil {
				return err
			}
			defer in.Close()
			var payloads []core.NamespacePayload
			if err := json.NewDecoder(in).Decode(&payloads); err != nil {
				return fmt.Errorf("decode namespaces: %w", err)
			}

			svc, err := a.service(ctx)
			if err != nil {
				return err
			}
			imported := len(payloads)
			if !replace {
				payloads = mergePayloads(core.ExportPayloads(svc.State()), payloads)
			}
			if _, _, err := svc.Dispatch(ctx, core.NewLoadNamespaces(payloads)); err != nil {
				return err
			}
			if _, err := svc.Save(ctx); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "imported %d namespaces, %d stored\n", imported, len(svc.State().Namespaces))
			return nil
		},
	}

	cmd.Flags().BoolVar(&replace, "replace", false, "Replace the whole store with the imported namespaces")
	return cmd
}

// mergePayloads keeps stored namespaces in order, replacing those named in incoming
// and appending the rest.
func mergePayloads(stored, incoming []core.NamespacePayload) []core.NamespacePayload {
	byName := make(map[string]int, len(stored))
	out := append([]core.NamespacePayload(nil), stored...)
	for i, p := range out {
		byName[p.Name] = i
	}
	replaced := make(map[string]bool, len(incoming))
	for _, p := range incoming {
		if replaced[p.Name] {
			continue
		}
		replaced[p.Name] = true
		if i, ok := byName[p.Name]; ok {
			out[i] = p
			continue
		}
		byName[p.Name] = len(out)
		out = append(out, p)
	}
	return out
}

// createShowCmd creates the show command
func createShowCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show [namespace]",
		Short: "Show stored namespaces",
		Long: `Show every namespace, or one namespace, in table, json or yaml form. The json
form is the import format.

Examples:
  elwinator show
  elwinator show prod --format yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			namespaces := svc.State().Namespaces
			if name := firstArg(args); name != "" {
				ns, err := svc.Namespace(name)
				if err != nil {
					return err
				}
				namespaces = []*core.Namespace{ns}
			}
			return outputNamespaces(a.stdout, namespaces, format)
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	return cmd
}

// createApplyCmd creates the apply command
func createApplyCmd(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "apply [file|-]",
		Short: "Apply action envelopes and save the result",
		Long: `Read action envelopes (a JSON array or one object per line), apply them in
order, report rule violations and save. Records deleted by the actions are
purged on save and listed.

Examples:
  elwinator apply edits.json
  echo '{"type":"TOGGLE_PUBLISH","namespace":"prod"}' | elwinator apply -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			in, err := readInput(cmd, firstArg(args))
			if err != nil {
				return err
			}
			defer in.Close()
			actions, err := core.DecodeActions(in)
			if err != nil {
				return err
			}

			svc, err := a.service(ctx)
			if err != nil {
				return err
			}
			var res core.Result
			for _, action := range actions {
				if _, res, err = svc.Dispatch(ctx, action); err != nil {
					return err
				}
			}
			fmt.Fprintf(a.stdout, "applied %d actions\n", len(actions))
			outputViolations(a.stdout, res)
			if dryRun {
				return nil
			}
			tombstones, err := svc.Save(ctx)
			if err != nil {
				return err
			}
			outputTombstones(a.stdout, tombstones)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Apply and validate without saving")
	return cmd
}

// createSegmentsCmd creates the segments command
func createSegmentsCmd(a *app) *cobra.Command {
	var (
		exclude []string
		sample  int
		format  string
	)

	cmd := &cobra.Command{
		Use:   "segments <namespace>",
		Short: "Report segment allocation of a namespace",
		Long: `Report the segment universe, claimed and free segments and overlapping claims
of a namespace. Pass --exclude with the id of an experiment being edited so
its own claim counts as free. --sample picks that many free segments.

Examples:
  elwinator segments prod
  elwinator segments prod --exclude 7f3c... --sample 16`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			alloc, err := svc.Allocation(args[0], exclude...)
			if err != nil {
				return err
			}
			var picked *core.SegmentSet
			if cmd.Flags().Changed("sample") {
				set, err := core.SampleSegments(alloc.Available, sample)
				if err != nil {
					return err
				}
				picked = &set
			}
			return outputAllocation(a.stdout, args[0], alloc, picked, format)
		},
	}

	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Experiment ids whose claims count as free")
	cmd.Flags().IntVar(&sample, "sample", 0, "Pick this many free segments")
	cmd.Flags().StringVar(&format, "format", "table", "Output format (table, json)")
	return cmd
}

// errViolations makes validate --strict exit non-zero.
var errViolations = errors.New("rule violations found")

// createValidateCmd creates the validate command
func createValidateCmd(a *app) *cobra.Command {
	var (
		experiment string
		strict     bool
	)

	cmd := &cobra.Command{
		Use:   "validate [namespace]",
		Short: "Evaluate integrity rules",
		Long: `Evaluate the integrity rules over the store, or over one namespace, and list
the violations. With --experiment, list the issues of that experiment instead.

Examples:
  elwinator validate
  elwinator validate prod --strict
  elwinator validate prod --experiment 7f3c...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.service(ctx)
			if err != nil {
				return err
			}
			name := firstArg(args)
			if experiment != "" {
				if name == "" {
					return errors.New("--experiment requires a namespace argument")
				}
				issues, err := svc.ValidateExperiment(name, experiment)
				if err != nil {
					return err
				}
				outputIssues(a.stdout, issues)
				if strict && len(issues) > 0 {
					return errViolations
				}
				return nil
			}
			res, err := svc.Validate(ctx)
			if err != nil {
				return err
			}
			if name != "" {
				if _, err := svc.Namespace(name); err != nil {
					return err
				}
				res = res.ForNamespace(name)
			}
			outputViolations(a.stdout, res)
			if strict && len(res.Violations) > 0 {
				return errViolations
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&experiment, "experiment", "", "Experiment id to check")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when anything is reported")
	return cmd
}

// createPublishCmd creates the publish command
func createPublishCmd(a *app) *cobra.Command {
	var (
		dryRun bool
		prune  bool
		prefix string
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Write namespace documents to the blob store",
		Long: `Render every namespace marked for publishing and write it to the configured
blob store. Unchanged documents are not rewritten; documents of deleted
namespaces are removed. With --prune, documents of namespaces no longer in
the store are removed too.

Examples:
  elwinator publish
  ELWINATOR_BLOB_DRIVER=s3 ELWINATOR_BLOB_S3_BUCKET=experiments elwinator publish --prune`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := a.service(ctx)
			if err != nil {
				return err
			}
			opts, err := a.cfg.BlobOptions()
			if err != nil {
				return err
			}
			store, err := a.openBlob(ctx, opts)
			if err != nil {
				return fmt.Errorf("open blob store: %w", err)
			}
			if !cmd.Flags().Changed("prefix") {
				prefix = a.cfg.Publish.Prefix
			}
			if !cmd.Flags().Changed("prune") {
				prune = a.cfg.Publish.Prune
			}
			pubOpts := []publish.Option{
				publish.WithPrune(prune),
				publish.WithDryRun(dryRun),
				publish.WithLogger(a.logger),
				publish.WithMetricsRecorder(a.metrics),
				publish.WithTracer(a.tracer),
				publish.WithAuditRecorder(logAudit{logger: a.logger}),
			}
			if prefix != "" {
				pubOpts = append(pubOpts, publish.WithPrefix(prefix))
			}
			report, err := publish.New(store, pubOpts...).Publish(ctx, svc.State())
			outputReport(a.stdout, report, string(store.Driver()))
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without writing")
	cmd.Flags().BoolVar(&prune, "prune", false, "Remove documents of namespaces no longer stored")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Key prefix (default namespaces/)")
	return cmd
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
