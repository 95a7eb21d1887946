package services

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator validates state documents against service schemas. Compiled
// schemas are cached keyed by their raw bytes, so each service's schema is
// compiled once.
type Validator struct {
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// NewValidator creates a Validator with an empty cache.
func NewValidator() *Validator {
	return &Validator{
		cache: make(map[string]*jsonschema.Schema),
	}
}

// Validate checks doc against schemaDoc. An empty schema validates
// everything.
func (v *Validator) Validate(schemaDoc, doc json.RawMessage) error {
	if len(schemaDoc) == 0 || string(schemaDoc) == "{}" || string(schemaDoc) == "null" {
		return nil
	}

	compiled, err := v.compile(schemaDoc)
	if err != nil {
		return fmt.Errorf("compiling schema: %w", err)
	}

	var payload any
	if err := json.Unmarshal(doc, &payload); err != nil {
		return fmt.Errorf("parsing state document: %w", err)
	}
	return compiled.Validate(payload)
}

func (v *Validator) compile(schemaDoc json.RawMessage) (*jsonschema.Schema, error) {
	key := string(schemaDoc)

	v.mu.RLock()
	if s, ok := v.cache[key]; ok {
		v.mu.RUnlock()
		return s, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	if s, ok := v.cache[key]; ok {
		return s, nil
	}

	var schemaMap any
	if err := json.Unmarshal(schemaDoc, &schemaMap); err != nil {
		return nil, fmt.Errorf("unmarshaling schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaMap); err != nil {
		return nil, fmt.Errorf("adding schema resource: %w", err)
	}
	compiled, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compiling: %w", err)
	}

	v.cache[key] = compiled
	return compiled, nil
}
