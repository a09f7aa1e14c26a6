package config

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// PrintConfig writes the merged configuration as YAML with credentials
// redacted. A non-empty prefix such as "modelPresets.claude" limits the output
// to that subtree.
func (s *ConfigSchema) PrintConfig(w io.Writer, includeSources bool, prefix string) error {
	var value interface{} = redact("", s.settings)
	if prefix != "" {
		for _, part := range strings.Split(strings.ToLower(prefix), ".") {
			m, ok := value.(map[string]interface{})
			if !ok {
				return fmt.Errorf("no configuration under %q", prefix)
			}
			if value, ok = m[part]; !ok {
				return fmt.Errorf("no configuration under %q", prefix)
			}
		}
	}

	// Round trip through JSON so YAML sees plain maps and durations as numbers.
	jsonBytes, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	var out interface{}
	if err := json.Unmarshal(jsonBytes, &out); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	yamlBytes, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("error converting to YAML: %w", err)
	}
	if _, err := w.Write(yamlBytes); err != nil {
		return err
	}

	if !includeSources {
		return nil
	}
	keys := make([]string, 0, len(s.sources))
	for k := range s.sources {
		if prefix == "" || strings.HasPrefix(k, strings.ToLower(prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if len(keys) > 0 {
		fmt.Fprintln(w, "# sources (anything not listed comes from defaults)")
	}
	for _, k := range keys {
		list := s.sources[k]
		fmt.Fprintf(w, "# %s: %s\n", k, list[len(list)-1].source)
	}
	return nil
}

func redact(path string, value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, child := range v {
			childPath := k
			if path != "" {
				childPath = path + "." + k
			}
			out[k] = redact(childPath, child)
		}
		return out
	case string:
		if v != "" && IsSecretKey(path) {
			return "[REDACTED]"
		}
		return v
	default:
		return v
	}
}
