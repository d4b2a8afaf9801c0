package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/go-units"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LoadConfig reads a configuration file.
// Files named *.yaml or *.yml are parsed as YAML,
// everything else as JSON.
func LoadConfig(filename string) (map[string]interface{}, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", filename)
	}

	var conf map[string]interface{}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &conf)
	default:
		err = json.Unmarshal(data, &conf)
	}
	return conf, errors.Wrapf(err, "parsing %s", filename)
}

// String gets a string parameter from a config map.
func String(conf map[string]interface{}, key string) (string, bool) {
	s, ok := conf[key].(string)
	return s, ok
}

// Int gets an integer parameter from a config map.
// JSON numbers arrive as float64 and YAML numbers as int;
// both are accepted.
func Int(conf map[string]interface{}, key string) (int, bool, error) {
	switch v := conf[key].(type) {
	case nil:
		return 0, false, nil
	case int:
		return v, true, nil
	case int64:
		return int(v), true, nil
	case float64:
		if v != float64(int(v)) {
			return 0, false, errors.Errorf("parameter %s: %v is not an integer", key, v)
		}
		return int(v), true, nil
	default:
		return 0, false, errors.Errorf("parameter %s: unexpected type %T", key, v)
	}
}

// Float gets a floating-point parameter from a config map.
func Float(conf map[string]interface{}, key string) (float64, bool, error) {
	switch v := conf[key].(type) {
	case nil:
		return 0, false, nil
	case int:
		return float64(v), true, nil
	case float64:
		return v, true, nil
	default:
		return 0, false, errors.Errorf("parameter %s: unexpected type %T", key, v)
	}
}

// Size gets a byte-size parameter from a config map.
// It may be a number or a string like "256KiB".
func Size(conf map[string]interface{}, key string) (int64, bool, error) {
	if s, ok := conf[key].(string); ok {
		n, err := units.RAMInBytes(s)
		return n, err == nil, errors.Wrapf(err, "parsing %s", key)
	}
	n, ok, err := Int(conf, key)
	return int64(n), ok, err
}
