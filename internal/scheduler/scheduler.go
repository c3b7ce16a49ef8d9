// Package scheduler implements the Wave Scheduler (spec §4.I): a
// bounded worker pool executing a TaskGraph with cache consult/populate,
// fail-fast/no-fail-fast semantics, and cancellation.
//
// Grounded on cli/internal/run/real_run.go's dependency-counter-based
// dispatch loop (decrement on completion, enqueue newly-ready nodes)
// and cli/internal/colorcache + cli/internal/logger/prefixed.go's
// per-task colored, prefixed output, adapted from Turborepo's
// push-button build runner into a general node executor driven purely
// by the TaskGraph's edges rather than a fixed build/test/lint set.
package scheduler

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/forgecrew/launchcore/internal/cachestore"
	"github.com/forgecrew/launchcore/internal/fingerprint"
	"github.com/forgecrew/launchcore/internal/fsutil"
	"github.com/forgecrew/launchcore/internal/taskgraph"
	"github.com/forgecrew/launchcore/internal/taskspec"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
)

// Outcome is a node's terminal state in a RunReport (spec §6).
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeCacheHit  Outcome = "cache_hit"
	OutcomeFailure   Outcome = "failure"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeCancelled Outcome = "cancelled"
)

// CacheAction records what happened to the cache for a node (spec §6).
type CacheAction string

const (
	CacheActionHit         CacheAction = "hit"
	CacheActionMissInsert  CacheAction = "miss_insert"
	CacheActionMissNoCache CacheAction = "miss_no_cache"
)

// NodeResult is one TaskNode's entry in the RunReport (spec §6).
type NodeResult struct {
	Node        taskspec.NodeKey
	Outcome     Outcome
	Duration    time.Duration
	Fingerprint fingerprint.Digest
	CacheAction CacheAction
	Err         error
}

// RunReport is the execute() API's return value (spec §6). RunID
// stably names one Execute call, so operator-facing output can
// correlate log lines back to a single run.
type RunReport struct {
	RunID string
	Nodes []NodeResult
}

// Options configures one execute() call (spec §4.I, §5).
type Options struct {
	Concurrency  int // default: CPU count, spec §4.I
	FailFast     bool
	GracePeriod  time.Duration // SIGTERM-to-SIGKILL grace, spec §4.I/§5
	PerTaskLimit time.Duration // spec §5 per-task timeout, 0 disables
	CacheEnabled bool
	Replay       bool // if false, a cache hit is still recorded but not materialized (dry-run support)
	Logger       hclog.Logger
}

// Scheduler executes a TaskGraph (spec §4.I).
type Scheduler struct {
	Graph       *taskgraph.TaskGraph
	FS          fsutil.FS
	Fingerprint *fingerprint.Fingerprinter
	Cache       *cachestore.Store
	// PackageRoot resolves a node's package to its absolute directory,
	// the anchor for glob expansion and the command's working directory.
	PackageRoot func(taskspec.NodeKey) string
	Output      LineWriter
}

// New constructs a Scheduler.
func New(graph *taskgraph.TaskGraph, fs fsutil.FS, fp *fingerprint.Fingerprinter, cache *cachestore.Store, packageRoot func(taskspec.NodeKey) string, output LineWriter) *Scheduler {
	return &Scheduler{Graph: graph, FS: fs, Fingerprint: fp, Cache: cache, PackageRoot: packageRoot, Output: output}
}

// state tracks one node's execution bookkeeping across the run.
type state struct {
	node       *taskspec.TaskNode
	remaining  int
	dependents []taskspec.NodeKey
	result     NodeResult
}

// Execute drives the TaskGraph to completion per Options (spec §4.I
// execution loop).
func (s *Scheduler) Execute(ctx context.Context, opts Options) (*RunReport, error) {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}

	states := make(map[taskspec.NodeKey]*state, len(s.Graph.Nodes()))
	for key, node := range s.Graph.Nodes() {
		states[key] = &state{node: node, remaining: len(node.EdgesIn)}
	}
	for key, st := range states {
		for _, dep := range st.node.EdgesIn {
			if depState, ok := states[dep]; ok {
				depState.dependents = append(depState.dependents, key)
			}
		}
	}

	var mu sync.Mutex
	ready := make(chan taskspec.NodeKey, len(states))
	var pendingCount int
	var failed bool
	var skippedAncestorFailed = map[taskspec.NodeKey]bool{}

	for key, st := range states {
		if st.remaining == 0 {
			ready <- key
			pendingCount++
		}
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)
	resultsCh := make(chan taskspec.NodeKey, len(states))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	dispatch := func(key taskspec.NodeKey) {
		defer wg.Done()
		sem <- struct{}{}
		defer func() { <-sem }()

		st := states[key]

		mu.Lock()
		shouldSkip := skippedAncestorFailed[key]
		stopDispatch := failed && opts.FailFast
		mu.Unlock()

		if shouldSkip {
			mu.Lock()
			st.result = NodeResult{Node: key, Outcome: OutcomeSkipped}
			mu.Unlock()
			resultsCh <- key
			return
		}
		if stopDispatch {
			mu.Lock()
			st.result = NodeResult{Node: key, Outcome: OutcomeCancelled}
			mu.Unlock()
			resultsCh <- key
			return
		}

		result := s.runOne(runCtx, key, st.node, opts)

		mu.Lock()
		st.result = result
		if result.Outcome == OutcomeFailure {
			failed = true
			if opts.FailFast {
				cancel()
			}
			markDescendantsSkipped(states, key, skippedAncestorFailed)
		}
		mu.Unlock()

		resultsCh <- key
	}

	for key := range ready {
		wg.Add(1)
		go dispatch(key)
		pendingCount--
		if pendingCount == 0 {
			break
		}
	}

	completed := 0
	total := len(states)
	for completed < total {
		key := <-resultsCh
		completed++
		st := states[key]
		for _, dependent := range st.dependents {
			depState := states[dependent]
			mu.Lock()
			depState.remaining--
			isReady := depState.remaining == 0
			mu.Unlock()
			if isReady {
				wg.Add(1)
				go dispatch(dependent)
			}
		}
	}

	wg.Wait()
	close(ready)
	close(resultsCh)

	report := &RunReport{RunID: uuid.New().String()}
	for _, st := range states {
		report.Nodes = append(report.Nodes, st.result)
	}

	var merr *multierror.Error
	for _, nr := range report.Nodes {
		if nr.Outcome == OutcomeFailure && nr.Err != nil {
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", nr.Node.String(), nr.Err))
		}
	}
	if err := ctx.Err(); err != nil {
		merr = multierror.Append(merr, err)
	}
	if merr.ErrorOrNil() != nil {
		return report, merr
	}
	return report, nil
}

// markDescendantsSkipped marks every node reachable from a failed
// node's dependents as skipped-on-failure (spec §4.I step 5: "nodes
// whose prerequisites failed are marked skipped").
func markDescendantsSkipped(states map[taskspec.NodeKey]*state, failedKey taskspec.NodeKey, skip map[taskspec.NodeKey]bool) {
	queue := append([]taskspec.NodeKey{}, states[failedKey].dependents...)
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		if skip[key] {
			continue
		}
		skip[key] = true
		queue = append(queue, states[key].dependents...)
	}
}

// runOne computes a node's fingerprint, consults the cache, and on
// miss spawns the command, populating the cache on success (spec
// §4.I step 3).
func (s *Scheduler) runOne(ctx context.Context, key taskspec.NodeKey, node *taskspec.TaskNode, opts Options) NodeResult {
	start := time.Now()
	anchor := s.PackageRoot(key)

	inputs, err := s.FS.Walk(anchor, node.InputGlobs, nil)
	if err != nil {
		return NodeResult{Node: key, Outcome: OutcomeFailure, Duration: time.Since(start), Err: err}
	}
	absInputs := make([]string, len(inputs))
	for i, rel := range inputs {
		absInputs[i] = anchorJoin(anchor, rel)
	}

	envNames := node.EnvCaptureSet
	digest, err := s.Fingerprint.Fingerprint(anchor, absInputs, node.Command, envNames)
	if err != nil {
		return NodeResult{Node: key, Outcome: OutcomeFailure, Duration: time.Since(start), Err: err}
	}

	label := colorForNode(key)

	if opts.CacheEnabled && node.Cacheable && s.Cache != nil {
		entry, hit, err := s.Cache.Lookup(digest)
		if err == nil && hit {
			if opts.Replay {
				_ = s.Cache.Replay(entry, anchor)
				if s.Output != nil {
					s.Output.WriteLine(label, "stdout", entry.Stdout)
				}
			}
			return NodeResult{Node: key, Outcome: OutcomeCacheHit, Duration: time.Since(start), Fingerprint: digest, CacheAction: CacheActionHit}
		}
	}

	exitStatus, runErr := runCommand(ctx, label, node.Command, anchor, envSlice(nil), s.Output, opts.PerTaskLimit, opts.GracePeriod)
	if ctx.Err() != nil {
		return NodeResult{Node: key, Outcome: OutcomeCancelled, Duration: time.Since(start), Fingerprint: digest}
	}
	if runErr != nil || exitStatus != 0 {
		errOut := runErr
		if errOut == nil {
			errOut = fmt.Errorf("command exited with status %d", exitStatus)
		}
		return NodeResult{Node: key, Outcome: OutcomeFailure, Duration: time.Since(start), Fingerprint: digest, Err: errOut, CacheAction: CacheActionMissNoCache}
	}

	outputs, err := s.FS.Walk(anchor, node.OutputGlobs, nil)
	if err != nil {
		return NodeResult{Node: key, Outcome: OutcomeFailure, Duration: time.Since(start), Fingerprint: digest, Err: err}
	}
	absOutputs := make([]string, len(outputs))
	for i, rel := range outputs {
		absOutputs[i] = anchorJoin(anchor, rel)
	}

	action := CacheActionMissNoCache
	if opts.CacheEnabled && node.Cacheable && s.Cache != nil && len(node.OutputGlobs) > 0 {
		if err := s.Cache.Insert(digest, 0, "", "", absOutputs, anchor); err != nil {
			// Cache errors never surface as run failures (spec §7).
			action = CacheActionMissNoCache
		} else {
			action = CacheActionMissInsert
		}
	}

	return NodeResult{Node: key, Outcome: OutcomeSuccess, Duration: time.Since(start), Fingerprint: digest, CacheAction: action}
}

func colorForNode(key taskspec.NodeKey) string {
	colors := []func(format string, a ...interface{}) string{
		color.CyanString, color.MagentaString, color.GreenString, color.YellowString, color.BlueString,
	}
	h := 0
	for _, r := range key.Package.Name {
		h = h*31 + int(r)
	}
	if h < 0 {
		h = -h
	}
	return colors[h%len(colors)]("%s", key.String())
}

func anchorJoin(anchor, rel string) string {
	if rel == "" {
		return anchor
	}
	return anchor + "/" + rel
}
