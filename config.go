package buildwire

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/xeipuuv/gojsonschema"
)

// Config controls the CLI and the worker transport.
type Config struct {
	WorkerPath  string   `koanf:"worker_path"`
	WorkerArgs  []string `koanf:"worker_args"`
	LogLevel    string   `koanf:"log_level"`
	MetricsPort int      `koanf:"metrics_port"`
}

const configSchema = `{
  "type": "object",
  "properties": {
    "worker_path": {"type": "string", "minLength": 1},
    "worker_args": {"type": ["array", "string"], "items": {"type": "string"}},
    "log_level": {"type": "string", "enum": ["debug", "info", "warn", "error"]},
    "metrics_port": {"type": ["integer", "string"], "minimum": 0, "maximum": 65535, "pattern": "^[0-9]+$"}
  },
  "required": ["worker_path"],
  "additionalProperties": false
}`

// LoadConfig merges YAML (if present) with env vars
// (prefix BUILDWIRE__, delimiter __) and validates the merged tree
// against the config schema before unmarshalling.
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}

	_ = k.Load(env.Provider("BUILDWIRE__", "__", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "BUILDWIRE__"))
	}), nil)

	if err := validateConfigTree(k.Raw()); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// validateConfigTree checks the merged config map against the embedded
// JSON schema so a typo'd key or mistyped value fails before a worker is
// ever spawned.
func validateConfigTree(tree map[string]interface{}) error {
	doc, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(configSchema),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if !result.Valid() {
		var details []string
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return fmt.Errorf("invalid config: %s", strings.Join(details, "; "))
	}
	return nil
}
