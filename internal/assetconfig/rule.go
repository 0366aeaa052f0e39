package assetconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ConfigFilenameJSON and ConfigFilenameJSON5 are the two filenames a
// directory in an asset source tree may use to declare rules for itself
// and its descendants. A directory carrying both is a configuration
// error (see Load).
const (
	ConfigFilenameJSON  = ".ic-assets.json"
	ConfigFilenameJSON5 = ".ic-assets.json5"
)

// Rule pairs a glob pattern (relative to the directory the config file
// lives in) with the AssetConfig fields it contributes.
type Rule struct {
	Match  string `json:"match"`
	Config AssetConfig
}

// ruleSchema rejects unknown top-level keys the way serde's
// deny_unknown_fields does for the Rust config structs; every field name
// mirrors AssetConfig's json tags plus "match".
const ruleSchemaJSON = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["match"],
  "properties": {
    "match": {"type": "string"},
    "cache": {"type": "object"},
    "headers": {"type": ["object", "null"]},
    "ignore": {"type": "boolean"},
    "enable_aliasing": {"type": "boolean"},
    "allow_raw_access": {"type": "boolean"},
    "encodings": {"type": "array"},
    "security_policy": {"type": "string"},
    "disable_security_policy_warning": {"type": "boolean"}
  }
}`

var ruleSchema = mustCompileRuleSchema()

func mustCompileRuleSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("rule.json", strings.NewReader(ruleSchemaJSON)); err != nil {
		panic(err)
	}
	return c.MustCompile("rule.json")
}

// ParseRules decodes a config file's contents (JSON or JSON5, selected by
// isJSON5) into its ordered list of rules, validating each entry against
// ruleSchema before decoding it into an AssetConfig.
func ParseRules(data []byte, isJSON5 bool) ([]Rule, error) {
	if isJSON5 {
		data = stripJSON5Comments(data)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	rules := make([]Rule, 0, len(raw))
	for i, entry := range raw {
		var generic any
		dec := json.NewDecoder(bytes.NewReader(entry))
		dec.UseNumber()
		if err := dec.Decode(&generic); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		if err := ruleSchema.Validate(generic); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		var r Rule
		if err := json.Unmarshal(entry, &r); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		if err := json.Unmarshal(entry, &r.Config); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}
