package config

import (
	"encoding/json"
	"io"
	"os"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/acsr/racecar/utils"
)

// AttributeMap is a loosely typed configuration as found in JSON.
type AttributeMap map[string]interface{}

// FromAttributes decodes and validates a config. Unknown attributes are rejected.
func FromAttributes(attributes AttributeMap) (*Config, error) {
	var conf Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		Result:      &conf,
		ErrorUnused: true,
		DecodeHook:  mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return nil, utils.NewConfigValidationError("planner", err)
	}
	if err := conf.Validate("planner"); err != nil {
		return nil, err
	}
	return &conf, nil
}

// Read decodes a JSON config from r.
func Read(r io.Reader) (*Config, error) {
	var attributes AttributeMap
	if err := json.NewDecoder(r).Decode(&attributes); err != nil {
		return nil, errors.Wrap(err, "cannot parse config")
	}
	return FromAttributes(attributes)
}

// ReadFile decodes the JSON config stored at filename.
func ReadFile(filename string) (*Config, error) {
	//nolint:gosec
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer goutils.UncheckedErrorFunc(f.Close)
	conf, err := Read(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", filename)
	}
	return conf, nil
}

// Schema returns the JSON schema of a config file.
func Schema() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == reflect.TypeOf(time.Duration(0)) {
				return &jsonschema.Schema{Type: "string", Description: "duration such as 50ms"}
			}
			return nil
		},
	}
	return reflector.Reflect(&Config{})
}
