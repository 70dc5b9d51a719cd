package datacontract

import (
	"regexp"

	"github.com/contractd/contractd/pkg/engine"
)

var avroInvalidName = regexp.MustCompile(`[^A-Za-z0-9_]`)

// avroName turns s into a valid Avro name.
func avroName(s string) string {
	n := avroInvalidName.ReplaceAllString(s, "_")
	if n == "" || (n[0] >= '0' && n[0] <= '9') {
		n = "_" + n
	}
	return n
}

func exportAvro(req *exportRequest) (string, error) {
	m := req.models[0]
	record := avroRecord(m.Name, m.Description, &m.Fields)
	out, err := indentJSON(record)
	if err != nil {
		return "", engine.Wrap(engine.KindInternal, err, "cannot render Avro schema for model '%s'", m.Name)
	}
	return out, nil
}

func avroRecord(name, doc string, fields *OrderedMap[Field]) *jsonObject {
	list := make([]*jsonObject, 0, fields.Len())
	for fieldName, f := range fields.All() {
		field := newJSONObject().
			set("name", avroName(fieldName)).
			setIf(f.Description != "", "doc", f.Description)
		t := avroType(fieldName, f)
		if f.Required || typeFamily(f.Type) == familyNull {
			field.set("type", t)
		} else {
			field.set("type", []any{"null", t}).set("default", nil)
		}
		list = append(list, field)
	}
	return newJSONObject().
		set("type", "record").
		set("name", avroName(name)).
		setIf(doc != "", "doc", doc).
		set("fields", list)
}

func avroType(name string, f *Field) any {
	switch typeFamily(f.Type) {
	case familyTimestampTZ:
		return newJSONObject().set("type", "long").set("logicalType", "timestamp-millis")
	case familyTimestampNTZ:
		return newJSONObject().set("type", "long").set("logicalType", "local-timestamp-millis")
	case familyDate:
		return newJSONObject().set("type", "int").set("logicalType", "date")
	case familyTime:
		return newJSONObject().set("type", "int").set("logicalType", "time-millis")
	case familyDecimal:
		if f.Precision == nil {
			return "double"
		}
		scale := 0
		if f.Scale != nil {
			scale = *f.Scale
		}
		return newJSONObject().
			set("type", "bytes").
			set("logicalType", "decimal").
			set("precision", *f.Precision).
			set("scale", scale)
	case familyFloat:
		return "float"
	case familyDouble:
		return "double"
	case familyInteger:
		return "int"
	case familyLong:
		return "long"
	case familyBoolean:
		return "boolean"
	case familyBytes:
		return "bytes"
	case familyObject:
		return avroRecord(name, f.Description, &f.Fields)
	case familyMap:
		return newJSONObject().set("type", "map").set("values", "string")
	case familyArray:
		var items any = "string"
		if f.Items != nil {
			items = avroType(name+"_item", f.Items)
		}
		return newJSONObject().set("type", "array").set("items", items)
	case familyNull:
		return "null"
	default:
		if len(f.Enum) > 0 {
			symbols := make([]string, len(f.Enum))
			for i, s := range f.Enum {
				symbols[i] = avroName(s)
			}
			return newJSONObject().set("type", "enum").set("name", avroName(name)+"_enum").set("symbols", symbols)
		}
		return "string"
	}
}
