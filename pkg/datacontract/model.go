package datacontract

import (
	"fmt"
	"iter"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/contractd/contractd/pkg/engine"
)

// Contract is a parsed data contract document.
type Contract struct {
	DataContractSpecification string             `yaml:"dataContractSpecification"`
	ID                        string             `yaml:"id"`
	Info                      Info               `yaml:"info"`
	Servers                   OrderedMap[Server] `yaml:"servers"`
	Terms                     *Terms             `yaml:"terms"`
	Models                    OrderedMap[Model]  `yaml:"models"`
	Definitions               OrderedMap[Field]  `yaml:"definitions"`
	Tags                      []string           `yaml:"tags"`
	Links                     map[string]string  `yaml:"links"`
}

// Info describes the contract itself.
type Info struct {
	Title       string   `yaml:"title"`
	Version     string   `yaml:"version"`
	Status      string   `yaml:"status"`
	Description string   `yaml:"description"`
	Owner       string   `yaml:"owner"`
	Contact     *Contact `yaml:"contact"`
}

// Contact is the contract owner's contact.
type Contact struct {
	Name  string `yaml:"name"`
	URL   string `yaml:"url"`
	Email string `yaml:"email"`
}

// Terms are the usage terms of the data.
type Terms struct {
	Usage        string `yaml:"usage"`
	Limitations  string `yaml:"limitations"`
	Billing      string `yaml:"billing"`
	NoticePeriod string `yaml:"noticePeriod"`
}

// Server is a location where the data is served.
type Server struct {
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
	Environment string `yaml:"environment"`
	Location    string `yaml:"location"`
	Format      string `yaml:"format"`
	Delimiter   string `yaml:"delimiter"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Database    string `yaml:"database"`
	Schema      string `yaml:"schema"`
	Account     string `yaml:"account"`
	Warehouse   string `yaml:"warehouse"`
	Catalog     string `yaml:"catalog"`
	Project     string `yaml:"project"`
	Dataset     string `yaml:"dataset"`
	Path        string `yaml:"path"`
	Driver      string `yaml:"driver"`
}

// Model is a table, view or other dataset.
type Model struct {
	Description string            `yaml:"description"`
	Type        string            `yaml:"type"`
	Title       string            `yaml:"title"`
	Fields      OrderedMap[Field] `yaml:"fields"`
	Quality     []Quality         `yaml:"quality"`
	PrimaryKey  []string          `yaml:"primaryKey"`
}

// Field is a column or nested attribute.
type Field struct {
	Ref              string            `yaml:"$ref"`
	Type             string            `yaml:"type"`
	Title            string            `yaml:"title"`
	Description      string            `yaml:"description"`
	Required         bool              `yaml:"required"`
	Unique           bool              `yaml:"unique"`
	PrimaryKey       bool              `yaml:"primaryKey"`
	Format           string            `yaml:"format"`
	Pattern          string            `yaml:"pattern"`
	MinLength        *int              `yaml:"minLength"`
	MaxLength        *int              `yaml:"maxLength"`
	Minimum          *float64          `yaml:"minimum"`
	Maximum          *float64          `yaml:"maximum"`
	ExclusiveMinimum *float64          `yaml:"exclusiveMinimum"`
	ExclusiveMaximum *float64          `yaml:"exclusiveMaximum"`
	Enum             []string          `yaml:"enum"`
	Examples         []any             `yaml:"examples"`
	PII              bool              `yaml:"pii"`
	Classification   string            `yaml:"classification"`
	Tags             []string          `yaml:"tags"`
	References       string            `yaml:"references"`
	Fields           OrderedMap[Field] `yaml:"fields"`
	Items            *Field            `yaml:"items"`
	Precision        *int              `yaml:"precision"`
	Scale            *int              `yaml:"scale"`
	Quality          []Quality         `yaml:"quality"`
	Config           map[string]any    `yaml:"config"`
}

// Quality is a quality rule attached to a model or field.
type Quality struct {
	Type                       string    `yaml:"type"`
	Name                       string    `yaml:"name"`
	Description                string    `yaml:"description"`
	Dialect                    string    `yaml:"dialect"`
	Query                      string    `yaml:"query"`
	MustBe                     *float64  `yaml:"mustBe"`
	MustNotBe                  *float64  `yaml:"mustNotBe"`
	MustBeGreaterThan          *float64  `yaml:"mustBeGreaterThan"`
	MustBeGreaterThanOrEqualTo *float64  `yaml:"mustBeGreaterThanOrEqualTo"`
	MustBeLessThan             *float64  `yaml:"mustBeLessThan"`
	MustBeLessThanOrEqualTo    *float64  `yaml:"mustBeLessThanOrEqualTo"`
	MustBeBetween              []float64 `yaml:"mustBeBetween"`
	MustNotBeBetween           []float64 `yaml:"mustNotBeBetween"`
}

// OrderedMap is a YAML mapping of name to *T that keeps document order.
type OrderedMap[T any] struct {
	keys   []string
	values map[string]*T
}

// UnmarshalYAML implements yaml.Unmarshaler. A null value decodes to a
// zero T.
func (m *OrderedMap[T]) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	m.keys = nil
	m.values = make(map[string]*T, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		v := new(T)
		if value.ShortTag() != "!!null" {
			if err := value.Decode(v); err != nil {
				return err
			}
		}
		m.Set(key.Value, v)
	}
	return nil
}

// Set adds or replaces key. New keys go last.
func (m *OrderedMap[T]) Set(key string, v *T) {
	if m.values == nil {
		m.values = make(map[string]*T)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Get returns the value stored under key.
func (m *OrderedMap[T]) Get(key string) (*T, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Len returns the number of entries.
func (m *OrderedMap[T]) Len() int {
	return len(m.keys)
}

// Keys returns the keys in document order.
func (m *OrderedMap[T]) Keys() []string {
	return append([]string(nil), m.keys...)
}

// All iterates over the entries in document order.
func (m *OrderedMap[T]) All() iter.Seq2[string, *T] {
	return func(yield func(string, *T) bool) {
		for _, k := range m.keys {
			if !yield(k, m.values[k]) {
				return
			}
		}
	}
}

const definitionsRefPrefix = "#/definitions/"

// Parse decodes a data contract document and resolves $ref references to
// its definitions.
func Parse(document string) (*Contract, error) {
	var c Contract
	if err := yaml.Unmarshal([]byte(document), &c); err != nil {
		return nil, engine.Wrap(engine.KindInvalidDocument, err, "cannot parse data contract: %v", err)
	}
	if c.ID == "" && c.DataContractSpecification == "" && c.Models.Len() == 0 && c.Servers.Len() == 0 {
		return nil, engine.Errorf(engine.KindInvalidDocument, "cannot parse data contract: document is empty or not a data contract")
	}

	for modelName, model := range c.Models.All() {
		if err := c.resolveFields(&model.Fields, modelName, 0); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

// maxRefDepth bounds nested $ref resolution, which guards against cycles.
const maxRefDepth = 32

func (c *Contract) resolveFields(fields *OrderedMap[Field], path string, depth int) error {
	for name, f := range fields.All() {
		if err := c.resolveField(f, path+"."+name, depth); err != nil {
			return err
		}
	}
	return nil
}

func (c *Contract) resolveField(f *Field, path string, depth int) error {
	if depth > maxRefDepth {
		return engine.Errorf(engine.KindInvalidDocument, "field '%s': $ref nesting is too deep", path)
	}
	if f.Ref != "" {
		if !strings.HasPrefix(f.Ref, definitionsRefPrefix) {
			return engine.Errorf(engine.KindUnsupported, "field '%s': only local references to '%s...' are supported, got '%s'",
				path, definitionsRefPrefix, f.Ref)
		}
		name := strings.TrimPrefix(f.Ref, definitionsRefPrefix)
		def, ok := c.Definitions.Get(name)
		if !ok {
			return engine.Errorf(engine.KindInvalidDocument, "field '%s': definition '%s' not found", path, name)
		}
		if err := c.resolveField(def, "definitions."+name, depth+1); err != nil {
			return err
		}
		f.inherit(def)
	}
	if err := c.resolveFields(&f.Fields, path, depth+1); err != nil {
		return err
	}
	if f.Items != nil {
		return c.resolveField(f.Items, path+"[]", depth+1)
	}
	return nil
}

// inherit copies the properties f leaves unset from def.
func (f *Field) inherit(def *Field) {
	if f.Type == "" {
		f.Type = def.Type
	}
	if f.Title == "" {
		f.Title = def.Title
	}
	if f.Description == "" {
		f.Description = def.Description
	}
	if f.Format == "" {
		f.Format = def.Format
	}
	if f.Pattern == "" {
		f.Pattern = def.Pattern
	}
	if f.MinLength == nil {
		f.MinLength = def.MinLength
	}
	if f.MaxLength == nil {
		f.MaxLength = def.MaxLength
	}
	if f.Minimum == nil {
		f.Minimum = def.Minimum
	}
	if f.Maximum == nil {
		f.Maximum = def.Maximum
	}
	if f.ExclusiveMinimum == nil {
		f.ExclusiveMinimum = def.ExclusiveMinimum
	}
	if f.ExclusiveMaximum == nil {
		f.ExclusiveMaximum = def.ExclusiveMaximum
	}
	if len(f.Enum) == 0 {
		f.Enum = def.Enum
	}
	if len(f.Examples) == 0 {
		f.Examples = def.Examples
	}
	if f.Classification == "" {
		f.Classification = def.Classification
	}
	if len(f.Tags) == 0 {
		f.Tags = def.Tags
	}
	if f.Fields.Len() == 0 {
		f.Fields = def.Fields
	}
	if f.Items == nil {
		f.Items = def.Items
	}
	if f.Precision == nil {
		f.Precision = def.Precision
	}
	if f.Scale == nil {
		f.Scale = def.Scale
	}
	f.PII = f.PII || def.PII
	f.Ref = ""
}

// ModelNames returns the model names in document order.
func (c *Contract) ModelNames() []string {
	return c.Models.Keys()
}
