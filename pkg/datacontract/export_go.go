package datacontract

import (
	"fmt"
	"go/format"
	"strings"

	"github.com/contractd/contractd/pkg/engine"
)

// exportGo renders one Go struct per model. Nested objects become their own
// types named after the parent.
func exportGo(req *exportRequest) (string, error) {
	g := &goGen{}
	for _, m := range req.models {
		g.writeStruct(pascalCase(m.Name), m.Description, &m.Fields)
	}

	var src strings.Builder
	src.WriteString("package model\n\n")
	if g.needsTime {
		src.WriteString("import \"time\"\n\n")
	}
	src.WriteString(g.body.String())

	out, err := format.Source([]byte(src.String()))
	if err != nil {
		return "", engine.Wrap(engine.KindInternal, err, "cannot render Go types")
	}
	return string(out), nil
}

type goGen struct {
	body      strings.Builder
	needsTime bool
}

func (g *goGen) writeStruct(name, doc string, fields *OrderedMap[Field]) {
	var nested []func()

	if doc != "" {
		for _, line := range strings.Split(strings.TrimSpace(doc), "\n") {
			g.body.WriteString("// " + strings.TrimSpace(line) + "\n")
		}
	}
	g.body.WriteString("type " + name + " struct {\n")
	for fieldName, f := range fields.All() {
		goName := pascalCase(fieldName)
		t := g.goType(name+goName, f, &nested)
		if !f.Required && t != "any" && !strings.HasPrefix(t, "[]") && !strings.HasPrefix(t, "map[") {
			t = "*" + t
		}
		tag := fieldName
		if !f.Required {
			tag += ",omitempty"
		}
		fmt.Fprintf(&g.body, "%s %s `json:%q`", goName, t, tag)
		if f.Description != "" {
			g.body.WriteString(" // " + strings.ReplaceAll(strings.TrimSpace(f.Description), "\n", " "))
		}
		g.body.WriteString("\n")
	}
	g.body.WriteString("}\n\n")

	for _, write := range nested {
		write()
	}
}

func (g *goGen) goType(typeName string, f *Field, nested *[]func()) string {
	switch typeFamily(f.Type) {
	case familyTimestampTZ, familyTimestampNTZ, familyDate:
		g.needsTime = true
		return "time.Time"
	case familyDecimal, familyDouble:
		return "float64"
	case familyFloat:
		return "float32"
	case familyInteger:
		return "int32"
	case familyLong:
		return "int64"
	case familyBoolean:
		return "bool"
	case familyBytes:
		return "[]byte"
	case familyMap:
		return "map[string]any"
	case familyObject:
		if f.Fields.Len() == 0 {
			return "map[string]any"
		}
		*nested = append(*nested, func() { g.writeStruct(typeName, f.Description, &f.Fields) })
		return typeName
	case familyArray:
		if f.Items == nil {
			return "[]any"
		}
		return "[]" + g.goType(typeName+"Item", f.Items, nested)
	case familyNull:
		return "any"
	default:
		return "string"
	}
}
