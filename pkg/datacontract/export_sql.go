package datacontract

import (
	"strings"
)

func exportSQL(req *exportRequest) (string, error) {
	d, err := req.dialect()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(req.header(d))
	for _, m := range req.models {
		writeCreateTable(&b, d, m)
	}
	return b.String(), nil
}

func writeCreateTable(b *strings.Builder, d *Dialect, m namedModel) {
	b.WriteString("CREATE TABLE " + d.Quote(m.Name) + " (\n")

	names := m.Fields.Keys()
	for i, name := range names {
		f, _ := m.Fields.Get(name)
		b.WriteString("  " + d.Quote(name) + " " + d.ColumnType(f))
		if f.Required || f.PrimaryKey {
			b.WriteString(" not null")
		}
		if f.PrimaryKey && len(m.PrimaryKey) == 0 {
			b.WriteString(" primary key")
		}
		if f.Description != "" && (d.Name == "snowflake" || d.Name == "databricks") {
			b.WriteString(" COMMENT " + d.Literal(f.Description))
		}
		if i < len(names)-1 || len(m.PrimaryKey) > 0 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	if len(m.PrimaryKey) > 0 {
		quoted := make([]string, len(m.PrimaryKey))
		for i, k := range m.PrimaryKey {
			quoted[i] = d.Quote(k)
		}
		b.WriteString("  primary key (" + strings.Join(quoted, ", ") + ")\n")
	}
	b.WriteString(");\n")
}

func exportSQLQuery(req *exportRequest) (string, error) {
	d, err := req.dialect()
	if err != nil {
		return "", err
	}
	m := req.models[0]

	var b strings.Builder
	b.WriteString(req.header(d))
	b.WriteString("select\n")
	names := m.Fields.Keys()
	for i, name := range names {
		b.WriteString("  " + d.Quote(name))
		if i < len(names)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	if len(names) == 0 {
		b.WriteString("  *\n")
	}
	b.WriteString("from " + d.Quote(m.Name) + "\n")
	return b.String(), nil
}
