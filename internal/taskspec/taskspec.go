// Package taskspec holds the TaskSpec configuration model (spec §3,
// §6) and its materialization against a concrete Package into a
// TaskNode (spec §4.G).
//
// Grounded on the teacher's pipeline/task config shape
// (cli/internal/config's RawTurboJSON pipeline map, since removed from
// this tree), decoded the same way the pack favors for loosely-typed
// JSON-with-comments config: github.com/muhammadmuzzammil1998/jsonc to
// strip comments, github.com/mitchellh/mapstructure to decode into
// typed Go structs.
package taskspec

import (
	"fmt"

	"github.com/forgecrew/launchcore/internal/workspace"
)

// TaskSpec is a named task template from tasks.pipeline (spec §3, §6).
type TaskSpec struct {
	Name              string   `mapstructure:"-"`
	Command           string   `mapstructure:"command"`
	DependsOn         []string `mapstructure:"depends_on"`
	DependsOnPackages bool     `mapstructure:"depends_on_packages"`
	Inputs            []string `mapstructure:"inputs"`
	Outputs           []string `mapstructure:"outputs"`
	Env               []string `mapstructure:"env"`
	// CacheSet distinguishes "cache: false" (explicit) from an absent
	// field (defaults to true iff Outputs is non-empty, spec §3).
	CacheSet   bool `mapstructure:"-"`
	CacheValue bool `mapstructure:"cache"`
}

// Cacheable resolves the TaskSpec's effective cache flag (spec §3:
// "default true iff outputs declared").
func (t TaskSpec) Cacheable() bool {
	if t.CacheSet {
		return t.CacheValue
	}
	return len(t.Outputs) > 0
}

// Pipeline is the full tasks.pipeline table (spec §6).
type Pipeline map[string]TaskSpec

// UnknownTaskError is returned when a requested task name, or a
// depends_on reference, names a task absent from the pipeline (spec
// §7: configuration error, surfaced before execution, exit code 2).
type UnknownTaskError struct {
	TaskName string
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("unknown task %q: not declared in tasks.pipeline", e.TaskName)
}

// Validate checks every depends_on reference resolves within the
// pipeline (spec §7 configuration errors).
func (p Pipeline) Validate() error {
	for name, spec := range p {
		for _, dep := range spec.DependsOn {
			if _, ok := p[dep]; !ok {
				return &UnknownTaskError{TaskName: dep}
			}
		}
		_ = name
	}
	return nil
}

// TaskNode is a (PackageId, task_name) pair materialized from a
// TaskSpec against a Package (spec §3, §4.G).
type TaskNode struct {
	Package workspace.PackageID
	Task    string

	Command        string
	InputGlobs     []string
	OutputGlobs    []string
	EnvCaptureSet  []string
	Cacheable      bool

	// EdgesIn lists the other TaskNodes this node depends on, keyed by
	// their NodeKey (spec §3: "edges_in set of other TaskNodes").
	EdgesIn []NodeKey
}

// NodeKey uniquely identifies a TaskNode within a single run (spec §4.G).
type NodeKey struct {
	Package workspace.PackageID
	Task    string
}

func (n TaskNode) Key() NodeKey {
	return NodeKey{Package: n.Package, Task: n.Task}
}

func (k NodeKey) String() string {
	return fmt.Sprintf("%s@%s", k.Task, k.Package.String())
}

// Materialize builds a TaskNode for (spec.Name, pkg) without resolving
// edges yet (edge wiring is the Task Graph Builder's job, spec §4.G).
// Glob resolution against the package root happens later in the
// fingerprinter/scheduler, which holds the filesystem adapter; this
// keeps TaskSpec/TaskNode materialization filesystem-free and pure, as
// spec §3's "pure values... computed on demand" wants for the
// adjoining Fingerprint type.
func Materialize(spec TaskSpec, pkg workspace.PackageID) TaskNode {
	return TaskNode{
		Package:       pkg,
		Task:          spec.Name,
		Command:       spec.Command,
		InputGlobs:    append([]string{}, spec.Inputs...),
		OutputGlobs:   append([]string{}, spec.Outputs...),
		EnvCaptureSet: append([]string{}, spec.Env...),
		Cacheable:     spec.Cacheable(),
	}
}
