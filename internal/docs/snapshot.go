package docs

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrMalformedContext reports a stored snapshot that is not a structurally
// valid context document.
var ErrMalformedContext = errors.New("malformed context")

const snapshotSchemaURL = "docnum://context.schema.json"

// snapshotSchema describes what every stored snapshot must look like,
// regardless of which version wrote it. It checks shape only. Business rules
// live in [Context.Validate].
const snapshotSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["date", "products"],
  "properties": {
    "number":             {"type": "string"},
    "date":               {"type": "string", "minLength": 1},
    "supplier_name":      {"type": "string"},
    "supplier_address_1": {"type": "string"},
    "supplier_address_2": {"type": "string"},
    "supplier_nip":       {"type": "string"},
    "client_name":        {"type": "string"},
    "client_address_1":   {"type": "string"},
    "client_address_2":   {"type": "string"},
    "client_nip":         {"type": "string"},
    "client_alias":       {"type": "string"},
    "products": {
      "type": "array",
      "items": {
        "type": "array",
        "minItems": 4,
        "maxItems": 6,
        "items": {"type": ["string", "number", "null"]}
      }
    }
  }
}`

var (
	snapshotOnce     sync.Once
	snapshotCompiled *jsonschema.Schema
	snapshotErr      error
)

func compiledSnapshotSchema() (*jsonschema.Schema, error) {
	snapshotOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(snapshotSchema))
		if err != nil {
			snapshotErr = fmt.Errorf("parse snapshot schema: %w", err)

			return
		}

		c := jsonschema.NewCompiler()

		err = c.AddResource(snapshotSchemaURL, doc)
		if err != nil {
			snapshotErr = fmt.Errorf("add snapshot schema: %w", err)

			return
		}

		snapshotCompiled, snapshotErr = c.Compile(snapshotSchemaURL)
	})

	return snapshotCompiled, snapshotErr
}

// CheckSnapshot validates the structure of a raw stored snapshot.
func CheckSnapshot(raw []byte) error {
	sch, err := compiledSnapshotSchema()
	if err != nil {
		return err
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(bytes.TrimSpace(raw)))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedContext, err)
	}

	err = sch.Validate(inst)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedContext, err)
	}

	return nil
}

// DecodeSnapshot checks and decodes a stored snapshot. Every failure wraps
// [ErrMalformedContext].
func DecodeSnapshot(raw []byte) (Context, error) {
	err := CheckSnapshot(raw)
	if err != nil {
		return Context{}, err
	}

	c, err := DecodeContext(raw)
	if err != nil {
		return Context{}, fmt.Errorf("%w: %w", ErrMalformedContext, err)
	}

	return c, nil
}
