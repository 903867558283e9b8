package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const schemaBase = "https://gridrealm.dev/schemas/"

// Validator checks inbound client frames against the embedded JSON schemas.
// It is safe for concurrent use once built.
type Validator struct {
	hello *jsonschema.Schema
	req   *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	for _, name := range []string{"hello.schema.json", "req.schema.json"} {
		raw, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, err
		}
		if err := c.AddResource(schemaBase+name, bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
	}
	hello, err := c.Compile(schemaBase + "hello.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile hello schema: %w", err)
	}
	req, err := c.Compile(schemaBase + "req.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile req schema: %w", err)
	}
	return &Validator{hello: hello, req: req}, nil
}

func (v *Validator) ValidateHello(raw []byte) error { return validateRaw(v.hello, raw) }

func (v *Validator) ValidateReq(raw []byte) error { return validateRaw(v.req, raw) }

func validateRaw(s *jsonschema.Schema, raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return err
	}
	return s.Validate(doc)
}
