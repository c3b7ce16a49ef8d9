package taskspec

import (
	"testing"

	"github.com/forgecrew/launchcore/internal/ecosystem"
	"github.com/forgecrew/launchcore/internal/workspace"
	"github.com/stretchr/testify/require"
)

func TestDecodePipelineBasic(t *testing.T) {
	raw := []byte(`{
		// build artifacts before anything depending on them
		"build": {
			"depends_on": [],
			"depends_on_packages": true,
			"inputs": ["src/**"],
			"outputs": ["target/**"]
		},
		"test": {
			"depends_on": ["build"],
			"inputs": ["src/**", "tests/**"]
		}
	}`)

	pipeline, err := DecodePipeline(raw)
	require.NoError(t, err)
	require.Len(t, pipeline, 2)

	build := pipeline["build"]
	require.True(t, build.DependsOnPackages)
	require.True(t, build.Cacheable())

	test := pipeline["test"]
	require.Equal(t, []string{"build"}, test.DependsOn)
	require.False(t, test.Cacheable()) // no outputs declared, cache unset
}

func TestDecodePipelineUnknownDependency(t *testing.T) {
	raw := []byte(`{"test": {"depends_on": ["nonexistent"]}}`)
	_, err := DecodePipeline(raw)
	require.Error(t, err)
	var unknownErr *UnknownTaskError
	require.ErrorAs(t, err, &unknownErr)
}

func TestExplicitCacheFalseOverridesOutputs(t *testing.T) {
	raw := []byte(`{"build": {"outputs": ["dist/**"], "cache": false}}`)
	pipeline, err := DecodePipeline(raw)
	require.NoError(t, err)
	require.False(t, pipeline["build"].Cacheable())
}

func TestMaterializeProducesTaskNode(t *testing.T) {
	spec := TaskSpec{Name: "build", Command: "make build", Inputs: []string{"src/**"}, Outputs: []string{"target/**"}}
	pkg := workspace.PackageID{Ecosystem: ecosystem.Cargo, Name: "core"}

	node := Materialize(spec, pkg)
	require.Equal(t, "build", node.Task)
	require.Equal(t, pkg, node.Package)
	require.True(t, node.Cacheable)
	require.Equal(t, NodeKey{Package: pkg, Task: "build"}, node.Key())
}
