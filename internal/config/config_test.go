package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeBasic(t *testing.T) {
	raw := []byte(`{
		// trailing comment, jsonc-tolerant
		"tasks": {
			"concurrency": 4,
			"cache": {"max_bytes": 1000000},
			"pipeline": {
				"build": {"command": "make build", "outputs": ["dist/**"]},
				"test": {"command": "make test", "depends_on": ["build"]}
			}
		},
		"monorepo": {
			"ignore_changes": ["**/*.md"],
			"shared_affects_all": true
		},
		"test_selection": {
			"languages": ["rust", "python"]
		}
	}`)

	cfg, pipeline, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.Tasks.Concurrency)
	require.True(t, cfg.Monorepo.SharedAffectsAll)
	require.ElementsMatch(t, []string{"**/*.md"}, cfg.Monorepo.IgnoreChanges)
	require.ElementsMatch(t, []string{"rust", "python"}, cfg.TestSelection.Languages)

	require.Len(t, pipeline, 2)
	require.True(t, pipeline["build"].Cacheable())
	require.Equal(t, []string{"build"}, pipeline["test"].DependsOn)
}

func TestCacheDefaults(t *testing.T) {
	cfg, _, err := Decode([]byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, int64(5<<30), cfg.CacheMaxBytes())
	require.NotEmpty(t, cfg.CacheDir())
	require.Equal(t, "5s", cfg.CacheGracePeriod().String())
}
