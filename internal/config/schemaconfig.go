package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/ryanbastic/go-sheetcms/internal/schema"
)

// FieldConfig declares one extra column.
type FieldConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// SheetExtension appends columns to one sheet.
type SheetExtension struct {
	Sheet  string        `yaml:"sheet"`
	Fields []FieldConfig `yaml:"fields"`
}

// SchemaConfig lists the extensions applied on top of the built-in schemas.
type SchemaConfig struct {
	Extensions []SheetExtension `yaml:"extensions"`
}

// LoadSchemaConfig reads a YAML (or JSON) schema extension file and
// validates its shape. Whether the columns fit the registry is checked by Apply.
func LoadSchemaConfig(path string) (*SchemaConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema config: %w", err)
	}

	var cfg SchemaConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse schema config: %w", err)
	}

	for i, ext := range cfg.Extensions {
		if ext.Sheet == "" {
			return nil, fmt.Errorf("schema config: extension #%d has empty sheet", i)
		}
		if len(ext.Fields) == 0 {
			return nil, fmt.Errorf("schema config: extension for %q has no fields", ext.Sheet)
		}
		for _, f := range ext.Fields {
			if f.Name == "" {
				return nil, fmt.Errorf("schema config: sheet %q has a field with empty name", ext.Sheet)
			}
			if _, err := schema.ParseFieldType(f.Type); err != nil {
				return nil, fmt.Errorf("schema config: sheet %q field %q: %w", ext.Sheet, f.Name, err)
			}
		}
	}

	return &cfg, nil
}

// Apply extends reg with every configured column. All problems are
// reported together.
func (c *SchemaConfig) Apply(reg *schema.Registry) error {
	var errs *multierror.Error
	for _, ext := range c.Extensions {
		fields := make([]schema.Field, 0, len(ext.Fields))
		for _, f := range ext.Fields {
			fields = append(fields, schema.Field{Name: f.Name, Type: schema.FieldType(f.Type)})
		}
		if err := reg.Extend(schema.Sheet(ext.Sheet), fields...); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}
