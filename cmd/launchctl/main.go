// Command launchctl is a thin cobra demonstration harness over the
// planner/executor API: it exercises plan/execute/affected/test-select
// end to end against a real workspace on disk. Grounded on
// cli/cmd/turbo/main.go's shape, stripped of its CGO/Rust-FFI bridge
// (no rust interop surface exists to bridge to here) and its
// login/daemon/telemetry subcommands (out of scope).
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/forgecrew/launchcore/internal/cachestore"
	"github.com/forgecrew/launchcore/internal/change"
	"github.com/forgecrew/launchcore/internal/config"
	"github.com/forgecrew/launchcore/internal/fingerprint"
	"github.com/forgecrew/launchcore/internal/fsutil"
	"github.com/forgecrew/launchcore/internal/planner"
	"github.com/forgecrew/launchcore/internal/scheduler"
	"github.com/forgecrew/launchcore/internal/taskspec"
	"github.com/forgecrew/launchcore/internal/vcs"
	"github.com/forgecrew/launchcore/internal/workspace"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

var (
	repoRoot   string
	configPath string
	verbose    bool
	logger     hclog.Logger
)

func main() {
	os.Exit(run())
}

func run() int {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "launchctl",
		Short:         "Drive task orchestration over a discovered workspace",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := hclog.Warn
			if verbose {
				level = hclog.Debug
			}
			logger = hclog.New(&hclog.LoggerOptions{Name: "launchctl", Level: level})
		},
	}
	root.PersistentFlags().StringVar(&repoRoot, "root", ".", "workspace root")
	root.PersistentFlags().StringVar(&configPath, "config", "launch.json", "path to the pipeline config, relative to --root")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newPlanCmd())
	root.AddCommand(newExecuteCmd())
	root.AddCommand(newAffectedCmd())
	root.AddCommand(newTestSelectCmd())
	return root
}

func newPlanner() *planner.Planner {
	return planner.New(fsutil.NewOS(), vcs.NewGit(repoRoot), logger)
}

// loadConfig reads --config relative to --root and decodes it into a
// Config plus its embedded pipeline. A missing file decodes as an
// empty Config so plan/execute still work against a pipeline built up
// entirely from defaults.
func loadConfig(p *planner.Planner) (*config.Config, taskspec.Pipeline, error) {
	raw, err := fsutil.NewOS().Read(filepath.Join(repoRoot, configPath))
	if err != nil {
		return &config.Config{}, nil, nil
	}
	return p.LoadConfig(raw)
}

func newFingerprinter() *fingerprint.Fingerprinter {
	return fingerprint.New(fsutil.NewOS())
}

func openCache(p *planner.Planner, cfg *config.Config) (*cachestore.Store, error) {
	return cachestore.Open(fsutil.NewOS(), cfg.CacheDir())
}

// consoleWriter tags each line with its producing node, matching the
// fatih/color-based per-node tagging the scheduler already applies to
// the label.
type consoleWriter struct {
	stdout, stderr *os.File
}

func (c consoleWriter) WriteLine(nodeLabel, stream, line string) {
	out := c.stdout
	if stream == "stderr" {
		out = c.stderr
	}
	fmt.Fprintf(out, "%s: %s\n", nodeLabel, line)
}

func newPlanCmd() *cobra.Command {
	var tasks []string
	var filterNames []string
	var includeDependents bool
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Materialize the task graph for the given tasks and print its waves",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPlanner()
			ws, err := p.BuildWorkspace(repoRoot)
			if err != nil {
				return err
			}
			_, pipeline, err := loadConfig(p)
			if err != nil {
				return err
			}

			filter := planner.PackageFilter{IncludeDependents: includeDependents}
			for _, n := range filterNames {
				filter.Names = append(filter.Names, resolvePackageID(ws, n))
			}

			plan, err := p.Plan(ws, pipeline, tasks, filter)
			if err != nil {
				return err
			}

			if dryRun {
				report := planner.DryRun(plan)
				for i, wave := range report.Waves {
					fmt.Printf("wave %d:\n", i)
					for _, label := range wave {
						fmt.Printf("  %s\n", label)
					}
				}
				return nil
			}
			for i, wave := range plan.Waves {
				fmt.Printf("wave %d: %d node(s)\n", i, len(wave))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&tasks, "task", nil, "task name(s) to plan (repeatable)")
	cmd.Flags().StringSliceVar(&filterNames, "filter", nil, "package name(s) to scope the plan to (repeatable)")
	cmd.Flags().BoolVar(&includeDependents, "include-dependents", false, "expand --filter to include dependent packages")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "render waves without executing")
	return cmd
}

func newExecuteCmd() *cobra.Command {
	var tasks []string
	var filterNames []string
	var concurrency int
	var failFast bool
	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Plan and run the given tasks, reporting per-node outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPlanner()
			ws, err := p.BuildWorkspace(repoRoot)
			if err != nil {
				return err
			}
			cfg, pipeline, err := loadConfig(p)
			if err != nil {
				return err
			}

			filter := planner.PackageFilter{}
			for _, n := range filterNames {
				filter.Names = append(filter.Names, resolvePackageID(ws, n))
			}
			plan, err := p.Plan(ws, pipeline, tasks, filter)
			if err != nil {
				return err
			}

			opts := planner.SchedulerOptionsFromConfig(cfg)
			if concurrency > 0 {
				opts.Concurrency = concurrency
			}
			opts.FailFast = failFast
			opts.Logger = logger

			store, err := openCache(p, cfg)
			if err != nil {
				return err
			}
			exec := planner.Executor{
				FS:          fsutil.NewOS(),
				Cache:       store,
				Fingerprint: newFingerprinter(),
				PackageRoot: planner.PackageRootFunc(ws),
				Output:      consoleWriter{stdout: os.Stdout, stderr: os.Stderr},
			}

			report, err := p.Execute(context.Background(), exec, plan, opts)
			printReport(report)
			return err
		},
	}
	cmd.Flags().StringSliceVar(&tasks, "task", nil, "task name(s) to run (repeatable)")
	cmd.Flags().StringSliceVar(&filterNames, "filter", nil, "package name(s) to scope the run to (repeatable)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "override configured concurrency (0 = CPU count)")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "cancel remaining work on first failure")
	return cmd
}

func newAffectedCmd() *cobra.Command {
	var fromRev, toRev string
	cmd := &cobra.Command{
		Use:   "affected",
		Short: "List packages affected between two revisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPlanner()
			ws, err := p.BuildWorkspace(repoRoot)
			if err != nil {
				return err
			}
			cs, err := p.DetectChanges(ws, fromRev, toRev, change.Policy{})
			if err != nil {
				return err
			}
			for id, kind := range cs.Packages {
				fmt.Printf("%s\t%s\n", id, kind)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fromRev, "from", "HEAD~1", "base revision")
	cmd.Flags().StringVar(&toRev, "to", "HEAD", "target revision")
	return cmd
}

func newTestSelectCmd() *cobra.Command {
	var fromRev, toRev string
	cmd := &cobra.Command{
		Use:   "test-select",
		Short: "Select the tests reverse-reachable from the current change set",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPlanner()
			ws, err := p.BuildWorkspace(repoRoot)
			if err != nil {
				return err
			}
			cs, err := p.DetectChanges(ws, fromRev, toRev, change.Policy{})
			if err != nil {
				return err
			}
			changedFiles, err := vcs.NewGit(repoRoot).ChangedFiles(fromRev, toRev)
			if err != nil {
				return err
			}
			result, err := p.SelectTests(ws, cs, changedFiles)
			if err != nil {
				return err
			}
			if result.RanEverything {
				fmt.Printf("running everything: %s\n", result.Reason)
				return nil
			}
			for f := range result.SelectedTests {
				fmt.Println(f)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fromRev, "from", "HEAD~1", "base revision")
	cmd.Flags().StringVar(&toRev, "to", "HEAD", "target revision")
	return cmd
}

func resolvePackageID(ws *planner.Workspace, name string) workspace.PackageID {
	for id := range ws.WS.Packages {
		if id.Name == name {
			return id
		}
	}
	return workspace.PackageID{Name: name}
}

func printReport(report *scheduler.RunReport) {
	if report == nil {
		return
	}
	for _, n := range report.Nodes {
		fmt.Printf("%-30s %-10s %s\n", n.Node, n.Outcome, n.CacheAction)
	}
}
