package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	schemavalidator "github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema.json
var embeddedSchema string

const schemaURL = "https://github.com/umputun/lawscope/pkg/config/config"

// VerifyAgainstEmbeddedSchema validates the config against the embedded JSON schema
func VerifyAgainstEmbeddedSchema(cfg *Config) error {
	doc, err := schemavalidator.UnmarshalJSON(strings.NewReader(embeddedSchema))
	if err != nil {
		return fmt.Errorf("parse embedded schema: %w", err)
	}

	c := schemavalidator.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return fmt.Errorf("add embedded schema: %w", err)
	}
	sch, err := c.Compile(schemaURL)
	if err != nil {
		return fmt.Errorf("compile embedded schema: %w", err)
	}

	configData, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	inst, err := schemavalidator.UnmarshalJSON(bytes.NewReader(configData))
	if err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// GenerateSchema generates a JSON schema for the Config struct
func GenerateSchema() *jsonschema.Schema {
	r := jsonschema.Reflector{}
	return r.Reflect(&Config{})
}
