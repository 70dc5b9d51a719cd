package datacontract

import (
	"fmt"
	"strings"
	"unicode"
)

func exportProtobuf(req *exportRequest) (string, error) {
	var b strings.Builder
	b.WriteString("syntax = \"proto3\";\n")
	if usesTimestamp(req.models) {
		b.WriteString("\nimport \"google/protobuf/timestamp.proto\";\n")
	}
	if pkg := protoPackage(req.contract.ID); pkg != "" {
		b.WriteString("\npackage " + pkg + ";\n")
	}
	for _, m := range req.models {
		b.WriteString("\n")
		writeProtoMessage(&b, "", pascalCase(m.Name), m.Description, &m.Fields)
	}
	return b.String(), nil
}

func usesTimestamp(models []namedModel) bool {
	found := false
	for _, m := range models {
		var walk func(fields *OrderedMap[Field])
		walk = func(fields *OrderedMap[Field]) {
			for _, f := range fields.All() {
				switch typeFamily(f.Type) {
				case familyTimestampTZ, familyTimestampNTZ:
					found = true
				case familyObject:
					walk(&f.Fields)
				case familyArray:
					if f.Items != nil && (typeFamily(f.Items.Type) == familyTimestampTZ || typeFamily(f.Items.Type) == familyTimestampNTZ) {
						found = true
					}
				}
			}
		}
		walk(&m.Fields)
	}
	return found
}

func writeProtoMessage(b *strings.Builder, indent, name, doc string, fields *OrderedMap[Field]) {
	if doc != "" {
		writeProtoComment(b, indent, doc)
	}
	b.WriteString(indent + "message " + name + " {\n")
	inner := indent + "  "
	number := 1
	for fieldName, f := range fields.All() {
		if typeFamily(f.Type) == familyObject {
			writeProtoMessage(b, inner, pascalCase(fieldName), "", &f.Fields)
		}
		if f.Items != nil && typeFamily(f.Items.Type) == familyObject {
			writeProtoMessage(b, inner, pascalCase(fieldName)+"Item", "", &f.Items.Fields)
		}
		if f.Description != "" {
			writeProtoComment(b, inner, f.Description)
		}
		fmt.Fprintf(b, "%s%s %s = %d;\n", inner, protoType(fieldName, f), snakeCase(fieldName), number)
		number++
	}
	b.WriteString(indent + "}\n")
}

func writeProtoComment(b *strings.Builder, indent, text string) {
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		b.WriteString(indent + "// " + strings.TrimSpace(line) + "\n")
	}
}

func protoType(name string, f *Field) string {
	fam := typeFamily(f.Type)
	if fam == familyArray {
		item := "string"
		if f.Items != nil {
			if typeFamily(f.Items.Type) == familyObject {
				item = pascalCase(name) + "Item"
			} else {
				item = protoScalar(typeFamily(f.Items.Type))
			}
		}
		return "repeated " + item
	}
	if fam == familyObject {
		return pascalCase(name)
	}
	scalar := protoScalar(fam)
	if !f.Required && scalar != "google.protobuf.Timestamp" && fam != familyMap {
		return "optional " + scalar
	}
	return scalar
}

func protoScalar(fam family) string {
	switch fam {
	case familyTimestampTZ, familyTimestampNTZ:
		return "google.protobuf.Timestamp"
	case familyDecimal, familyDouble:
		return "double"
	case familyFloat:
		return "float"
	case familyInteger:
		return "int32"
	case familyLong:
		return "int64"
	case familyBoolean:
		return "bool"
	case familyBytes:
		return "bytes"
	case familyMap:
		return "map<string, string>"
	default:
		return "string"
	}
}

func protoPackage(id string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(id) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9' && b.Len() > 0:
			b.WriteRune(r)
		case b.Len() > 0 && !strings.HasSuffix(b.String(), "_"):
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

// words splits an identifier on non-alphanumerics and lower-to-upper case
// changes.
func words(s string) []string {
	var out []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			out = append(out, string(cur))
			cur = cur[:0]
		}
	}
	prevLower := false
	for _, r := range s {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
			prevLower = false
		case unicode.IsUpper(r) && prevLower:
			flush()
			cur = append(cur, r)
			prevLower = false
		default:
			cur = append(cur, r)
			prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
		}
	}
	flush()
	return out
}

func pascalCase(s string) string {
	var b strings.Builder
	for _, w := range words(s) {
		rs := []rune(strings.ToLower(w))
		rs[0] = unicode.ToUpper(rs[0])
		b.WriteString(string(rs))
	}
	out := b.String()
	if out == "" || unicode.IsDigit([]rune(out)[0]) {
		out = "X" + out
	}
	return out
}

func snakeCase(s string) string {
	ws := words(s)
	for i, w := range ws {
		ws[i] = strings.ToLower(w)
	}
	out := strings.Join(ws, "_")
	if out == "" || unicode.IsDigit([]rune(out)[0]) {
		out = "f_" + out
	}
	return out
}
