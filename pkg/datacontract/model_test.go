package datacontract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contractd/contractd/pkg/engine"
)

func TestParse_KeepsDocumentOrder(t *testing.T) {
	c, err := Parse(`dataContractSpecification: 1.1.0
id: shop
info: {title: Shop, version: 1.0.0}
servers:
  zeta: {type: postgres}
  alpha: {type: duckdb}
models:
  orders:
    fields:
      z_last: {type: string}
      a_first: {type: string}
      m_middle:
        type: object
        fields:
          street: {type: string}
          city: {type: string}
  customers:
  line_items:
    fields: {}
`)
	require.NoError(t, err)

	assert.Equal(t, []string{"zeta", "alpha"}, c.Servers.Keys())
	assert.Equal(t, []string{"orders", "customers", "line_items"}, c.ModelNames())

	orders, ok := c.Models.Get("orders")
	require.True(t, ok)
	assert.Equal(t, []string{"z_last", "a_first", "m_middle"}, orders.Fields.Keys())

	addr, _ := orders.Fields.Get("m_middle")
	assert.Equal(t, []string{"street", "city"}, addr.Fields.Keys())

	customers, ok := c.Models.Get("customers")
	require.True(t, ok)
	assert.Equal(t, 0, customers.Fields.Len())
}

func TestParse_ResolvesDefinitions(t *testing.T) {
	c, err := Parse(readTestdata(t, "orders.yaml"))
	require.NoError(t, err)

	orders, _ := c.Models.Get("orders")
	id, ok := orders.Fields.Get("order_id")
	require.True(t, ok)
	assert.Empty(t, id.Ref)
	assert.Equal(t, "text", id.Type)
	assert.Equal(t, "uuid", id.Format)
	assert.Equal(t, "restricted", id.Classification)
	assert.True(t, id.PII)
	assert.True(t, id.Required)
	require.NotNil(t, id.MinLength)
	assert.Equal(t, 8, *id.MinLength)
}

func TestParse_FieldOverridesDefinition(t *testing.T) {
	c, err := Parse(`id: x
models:
  m:
    fields:
      f:
        $ref: '#/definitions/d'
        description: own description
definitions:
  d:
    type: string
    description: inherited
    maxLength: 10
`)
	require.NoError(t, err)
	m, _ := c.Models.Get("m")
	f, _ := m.Fields.Get("f")
	assert.Equal(t, "own description", f.Description)
	assert.Equal(t, "string", f.Type)
	require.NotNil(t, f.MaxLength)
	assert.Equal(t, 10, *f.MaxLength)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		kind engine.Kind
		msg  string
	}{
		{"not yaml", "id: [unclosed", engine.KindInvalidDocument, "cannot parse data contract"},
		{"scalar", "hello world", engine.KindInvalidDocument, "cannot parse data contract"},
		{"empty", "", engine.KindInvalidDocument, "not a data contract"},
		{"unrelated mapping", "name: value\n", engine.KindInvalidDocument, "not a data contract"},
		{"models not a mapping", "id: x\nmodels: [a, b]\n", engine.KindInvalidDocument, "expected a mapping"},
		{
			"missing definition",
			"id: x\nmodels:\n  m:\n    fields:\n      f: {$ref: '#/definitions/nope'}\n",
			engine.KindInvalidDocument, "definition 'nope' not found",
		},
		{
			"remote ref",
			"id: x\nmodels:\n  m:\n    fields:\n      f: {$ref: 'https://example.com/defs.yaml#/id'}\n",
			engine.KindUnsupported, "only local references",
		},
		{
			"cyclic ref",
			"id: x\nmodels:\n  m:\n    fields:\n      f: {$ref: '#/definitions/a'}\ndefinitions:\n  a: {$ref: '#/definitions/a'}\n",
			engine.KindInvalidDocument, "too deep",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.doc)
			require.Error(t, err)
			e, ok := engine.AsError(err)
			require.True(t, ok, "got %T", err)
			assert.Equal(t, tt.kind, e.Kind)
			assert.Contains(t, e.Message, tt.msg)
		})
	}
}

func TestOrderedMap_Set(t *testing.T) {
	var m OrderedMap[Server]
	m.Set("b", &Server{Type: "postgres"})
	m.Set("a", &Server{Type: "duckdb"})
	m.Set("b", &Server{Type: "snowflake"})

	assert.Equal(t, []string{"b", "a"}, m.Keys())
	b, ok := m.Get("b")
	require.True(t, ok)
	assert.Equal(t, "snowflake", b.Type)

	var seen []string
	for k := range m.All() {
		seen = append(seen, k)
		break
	}
	assert.Equal(t, []string{"b"}, seen)
}
