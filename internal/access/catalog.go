// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package access

import (
	_ "embed"
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

//go:embed permissions.yaml
var defaultCatalogYAML []byte

// CatalogSchemaID is the $id of the generated catalog schema.
const CatalogSchemaID = "https://warden.dev/schemas/permission-catalog.schema.json"

// CatalogEntry declares one permission.
type CatalogEntry struct {
	Group       string `yaml:"group" json:"group" jsonschema:"required,pattern=^[a-z][a-z0-9_]*$,description=Permission group"`
	Name        string `yaml:"name" json:"name" jsonschema:"required,pattern=^[a-z][a-z0-9_:]*$,description=Permission name within the group"`
	Description string `yaml:"description,omitempty" json:"description,omitempty" jsonschema:"description=Human readable description"`
}

// Key returns "group:name".
func (e CatalogEntry) Key() string {
	return e.Group + ":" + e.Name
}

// Catalog is the set of permissions seeded at startup.
type Catalog struct {
	Permissions []CatalogEntry `yaml:"permissions" json:"permissions" jsonschema:"required,description=Permissions seeded at startup"`
}

// Keys returns every entry key in catalog order.
func (c *Catalog) Keys() []string {
	keys := make([]string, len(c.Permissions))
	for i, e := range c.Permissions {
		keys[i] = e.Key()
	}
	return keys
}

var (
	compiledCatalogSchema     *jschema.Schema
	compiledCatalogSchemaErr  error
	compiledCatalogSchemaOnce sync.Once
)

// GenerateCatalogSchema reflects the JSON Schema of Catalog.
func GenerateCatalogSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&Catalog{})
	schema.ID = jsonschema.ID(CatalogSchemaID)
	schema.Title = "Warden Permission Catalog"
	schema.Description = "Schema for permissions.yaml catalog files"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("CATALOG_SCHEMA_FAILED").Wrap(err)
	}
	return data, nil
}

func catalogSchema() (*jschema.Schema, error) {
	compiledCatalogSchemaOnce.Do(func() {
		data, err := GenerateCatalogSchema()
		if err != nil {
			compiledCatalogSchemaErr = err
			return
		}
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			compiledCatalogSchemaErr = oops.Code("CATALOG_SCHEMA_FAILED").Wrap(err)
			return
		}
		c := jschema.NewCompiler()
		if err := c.AddResource("catalog.json", doc); err != nil {
			compiledCatalogSchemaErr = oops.Code("CATALOG_SCHEMA_FAILED").Wrap(err)
			return
		}
		compiledCatalogSchema, compiledCatalogSchemaErr = c.Compile("catalog.json")
		if compiledCatalogSchemaErr != nil {
			compiledCatalogSchemaErr = oops.Code("CATALOG_SCHEMA_FAILED").Wrap(compiledCatalogSchemaErr)
		}
	})
	return compiledCatalogSchema, compiledCatalogSchemaErr
}

// ParseCatalog decodes YAML catalog data, validates it against the catalog
// schema and rejects duplicate keys.
func ParseCatalog(data []byte) (*Catalog, error) {
	if len(data) == 0 {
		return nil, oops.Code("CATALOG_INVALID").Errorf("catalog data is empty")
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, oops.Code("CATALOG_INVALID").Wrapf(err, "invalid YAML")
	}
	sch, err := catalogSchema()
	if err != nil {
		return nil, err
	}
	if err := sch.Validate(raw); err != nil {
		return nil, oops.Code("CATALOG_INVALID").Wrapf(err, "schema validation failed")
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, oops.Code("CATALOG_INVALID").Wrapf(err, "invalid YAML")
	}

	seen := make(map[string]struct{}, len(catalog.Permissions))
	for _, e := range catalog.Permissions {
		if _, dup := seen[e.Key()]; dup {
			return nil, oops.Code("CATALOG_INVALID").
				With("key", e.Key()).
				Errorf("duplicate permission %s", e.Key())
		}
		seen[e.Key()] = struct{}{}
	}
	return &catalog, nil
}

// DefaultCatalog returns the catalog bundled with the binary.
func DefaultCatalog() (*Catalog, error) {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		return nil, oops.Wrapf(err, "bundled permission catalog")
	}
	return c, nil
}
