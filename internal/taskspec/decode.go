package taskspec

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"muzzammil.xyz/jsonc"
)

// DecodePipeline parses a tasks.pipeline block from JSON-with-comments
// bytes (spec §6 config surface), the way the teacher's turbo.json
// loader tolerates trailing comments in hand-edited config files.
func DecodePipeline(raw []byte) (Pipeline, error) {
	var untyped map[string]interface{}
	if err := jsonc.Unmarshal(raw, &untyped); err != nil {
		return nil, fmt.Errorf("tasks.pipeline: %w", err)
	}

	pipeline := make(Pipeline, len(untyped))
	for name, raw := range untyped {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("tasks.pipeline.%s: expected an object", name)
		}

		_, cacheSet := entry["cache"]

		var spec TaskSpec
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &spec,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(entry); err != nil {
			return nil, fmt.Errorf("tasks.pipeline.%s: %w", name, err)
		}

		spec.Name = name
		spec.CacheSet = cacheSet
		pipeline[name] = spec
	}

	if err := pipeline.Validate(); err != nil {
		return nil, err
	}
	return pipeline, nil
}
