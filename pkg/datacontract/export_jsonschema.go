package datacontract

import (
	"github.com/contractd/contractd/pkg/engine"
)

func exportJSONSchema(req *exportRequest) (string, error) {
	m := req.models[0]

	title := m.Title
	if title == "" {
		title = m.Name
	}
	schema := newJSONObject().
		set("$schema", "http://json-schema.org/draft-07/schema#").
		set("title", title).
		setIf(m.Description != "", "description", m.Description)
	writeObjectSchema(schema, &m.Fields)

	out, err := indentJSON(schema)
	if err != nil {
		return "", engine.Wrap(engine.KindInternal, err, "cannot render JSON schema for model '%s'", m.Name)
	}
	return out, nil
}

// writeObjectSchema adds type, properties and required to o.
func writeObjectSchema(o *jsonObject, fields *OrderedMap[Field]) {
	props := newJSONObject()
	var required []string
	for name, f := range fields.All() {
		props.set(name, fieldJSONSchema(f))
		if f.Required {
			required = append(required, name)
		}
	}
	o.set("type", "object").set("properties", props)
	if len(required) > 0 {
		o.set("required", required)
	}
}

func fieldJSONSchema(f *Field) *jsonObject {
	o := newJSONObject()
	typeName, format := jsonSchemaType(typeFamily(f.Type))

	switch {
	case typeName == "object":
		writeObjectSchema(o, &f.Fields)
		if !f.Required {
			o.set("type", []string{"object", "null"})
		}
	case typeName == "":
	case f.Required, typeName == "null":
		o.set("type", typeName)
	default:
		o.set("type", []string{typeName, "null"})
	}

	o.setIf(f.Title != "", "title", f.Title)
	o.setIf(f.Description != "", "description", f.Description)
	switch {
	case f.Format != "":
		o.set("format", f.Format)
	case format != "":
		o.set("format", format)
	}
	if typeName == "array" {
		if f.Items != nil {
			o.set("items", fieldJSONSchema(f.Items))
		}
		o.setIf(f.Unique, "uniqueItems", true)
	}
	o.setIf(f.Pattern != "", "pattern", f.Pattern)
	o.setIf(f.MinLength != nil, "minLength", f.MinLength)
	o.setIf(f.MaxLength != nil, "maxLength", f.MaxLength)
	o.setIf(f.Minimum != nil, "minimum", f.Minimum)
	o.setIf(f.Maximum != nil, "maximum", f.Maximum)
	o.setIf(f.ExclusiveMinimum != nil, "exclusiveMinimum", f.ExclusiveMinimum)
	o.setIf(f.ExclusiveMaximum != nil, "exclusiveMaximum", f.ExclusiveMaximum)
	o.setIf(len(f.Enum) > 0, "enum", f.Enum)
	o.setIf(len(f.Examples) > 0, "examples", f.Examples)
	return o
}

func jsonSchemaType(fam family) (typeName, format string) {
	switch fam {
	case familyString:
		return "string", ""
	case familyTimestampTZ, familyTimestampNTZ:
		return "string", "date-time"
	case familyDate:
		return "string", "date"
	case familyTime:
		return "string", "time"
	case familyDecimal, familyFloat, familyDouble:
		return "number", ""
	case familyInteger, familyLong:
		return "integer", ""
	case familyBoolean:
		return "boolean", ""
	case familyBytes:
		return "string", "byte"
	case familyObject, familyMap:
		return "object", ""
	case familyArray:
		return "array", ""
	case familyNull:
		return "null", ""
	default:
		return "", ""
	}
}
