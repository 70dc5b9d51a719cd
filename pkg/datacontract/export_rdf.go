package datacontract

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	rdfVocabulary          = "https://datacontract.com/DataContractSpecification/1.1.0/"
	rdfExtensionVocabulary = "https://datacontract.com/DataContractSpecification/1.1.0/Extension/"
)

// exportRDF renders the contract as Turtle. Subjects are IRIs relative to
// the export's base.
func exportRDF(req *exportRequest) (string, error) {
	c := req.contract
	base := req.opts.RDFBase
	if base == "" {
		base = DefaultRDFBase
	}

	var b strings.Builder
	b.WriteString("@prefix dc1: <" + rdfVocabulary + "> .\n")
	b.WriteString("@prefix dcx: <" + rdfExtensionVocabulary + "> .\n")
	b.WriteString("@prefix xsd: <http://www.w3.org/2001/XMLSchema#> .\n")
	b.WriteString("@base <" + turtleIRI(base) + "> .\n\n")

	contract := turtleSubject{iri: rdfRelative(c.ID), class: "dc1:DataContract"}
	contract.literal("dc1:dataContractSpecification", c.DataContractSpecification)
	contract.blank("dc1:info", "dc1:Info", [][2]string{
		{"dc1:title", turtleString(c.Info.Title)},
		{"dc1:version", turtleString(c.Info.Version)},
		{"dc1:status", turtleString(c.Info.Status)},
		{"dc1:description", turtleString(c.Info.Description)},
		{"dc1:owner", turtleString(c.Info.Owner)},
	})
	if c.Terms != nil {
		contract.blank("dc1:terms", "dc1:Terms", [][2]string{
			{"dc1:usage", turtleString(c.Terms.Usage)},
			{"dc1:limitations", turtleString(c.Terms.Limitations)},
			{"dc1:billing", turtleString(c.Terms.Billing)},
			{"dc1:noticePeriod", turtleString(c.Terms.NoticePeriod)},
		})
	}
	for _, name := range c.Servers.Keys() {
		contract.ref("dc1:server", rdfRelative(name))
	}
	for _, m := range req.models {
		contract.ref("dc1:model", rdfRelative(m.Name))
	}
	contract.write(&b)

	for name, s := range c.Servers.All() {
		srv := turtleSubject{iri: rdfRelative(name), class: "dc1:Server"}
		srv.literal("dc1:type", s.Type)
		srv.literal("dc1:description", s.Description)
		srv.literal("dc1:environment", s.Environment)
		srv.literal("dc1:location", s.Location)
		srv.literal("dc1:format", s.Format)
		srv.literal("dc1:delimiter", s.Delimiter)
		srv.literal("dc1:host", s.Host)
		if s.Port != 0 {
			srv.add("dc1:port", strconv.Itoa(s.Port))
		}
		srv.literal("dc1:database", s.Database)
		srv.literal("dc1:schema", s.Schema)
		srv.literal("dc1:account", s.Account)
		srv.literal("dc1:warehouse", s.Warehouse)
		srv.literal("dc1:catalog", s.Catalog)
		srv.literal("dc1:project", s.Project)
		srv.literal("dc1:dataset", s.Dataset)
		srv.literal("dc1:path", s.Path)
		srv.write(&b)
	}

	for _, m := range req.models {
		model := turtleSubject{iri: rdfRelative(m.Name), class: "dc1:Model"}
		model.literal("dc1:description", m.Description)
		model.literal("dc1:type", m.Type)
		model.literal("dc1:title", m.Title)
		for name := range m.Fields.All() {
			model.ref("dc1:field", rdfRelative(m.Name+"/"+name))
		}
		model.write(&b)
		writeRDFFields(&b, m.Name, &m.Fields)
	}
	return b.String(), nil
}

func writeRDFFields(b *strings.Builder, prefix string, fields *OrderedMap[Field]) {
	for name, f := range fields.All() {
		path := prefix + "/" + name
		field := turtleSubject{iri: rdfRelative(path), class: "dc1:Field"}
		field.literal("dc1:type", f.Type)
		field.literal("dc1:title", f.Title)
		field.literal("dc1:description", f.Description)
		if f.Required {
			field.add("dc1:required", "true")
		}
		if f.Unique {
			field.add("dc1:unique", "true")
		}
		if f.PrimaryKey {
			field.add("dc1:primaryKey", "true")
		}
		if f.PII {
			field.add("dc1:pii", "true")
		}
		field.literal("dc1:classification", f.Classification)
		field.literal("dc1:format", f.Format)
		field.literal("dc1:pattern", f.Pattern)
		if f.MinLength != nil {
			field.add("dc1:minLength", strconv.Itoa(*f.MinLength))
		}
		if f.MaxLength != nil {
			field.add("dc1:maxLength", strconv.Itoa(*f.MaxLength))
		}
		if f.Minimum != nil {
			field.add("dc1:minimum", turtleDecimal(*f.Minimum))
		}
		if f.Maximum != nil {
			field.add("dc1:maximum", turtleDecimal(*f.Maximum))
		}
		for _, e := range f.Enum {
			field.literal("dc1:enum", e)
		}
		for _, t := range f.Tags {
			field.literal("dc1:tag", t)
		}
		if f.References != "" {
			model, target, _ := strings.Cut(f.References, ".")
			field.ref("dc1:references", rdfRelative(model+"/"+target))
		}
		for sub := range f.Fields.All() {
			field.ref("dc1:field", rdfRelative(path+"/"+sub))
		}
		field.write(b)
		writeRDFFields(b, path, &f.Fields)
	}
}

// turtleSubject collects the predicate-object pairs of one subject.
type turtleSubject struct {
	iri   string
	class string
	pairs [][2]string
}

func (s *turtleSubject) add(predicate, object string) {
	s.pairs = append(s.pairs, [2]string{predicate, object})
}

func (s *turtleSubject) literal(predicate, value string) {
	if value != "" {
		s.add(predicate, turtleString(value))
	}
}

func (s *turtleSubject) ref(predicate, iri string) {
	s.add(predicate, "<"+iri+">")
}

func (s *turtleSubject) blank(predicate, class string, pairs [][2]string) {
	parts := []string{"a " + class}
	for _, p := range pairs {
		if p[1] != "" {
			parts = append(parts, p[0]+" "+p[1])
		}
	}
	s.add(predicate, "[ "+strings.Join(parts, " ; ")+" ]")
}

func (s *turtleSubject) write(b *strings.Builder) {
	b.WriteString("<" + s.iri + "> a " + s.class)
	for _, p := range s.pairs {
		b.WriteString(" ;\n    " + p[0] + " " + p[1])
	}
	b.WriteString(" .\n\n")
}

// turtleString renders a string literal; empty strings render as empty.
func turtleString(s string) string {
	if s == "" {
		return ""
	}
	if strings.Contains(s, "\n") {
		return `"""` + strings.NewReplacer(`\`, `\\`, `"""`, `\"\"\"`).Replace(s) + `"""`
	}
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\r", `\r`, "\t", `\t`).Replace(s) + `"`
}

func turtleDecimal(v float64) string {
	return fmt.Sprintf("%q^^xsd:decimal", formatNumber(v))
}

// rdfRelative turns a name into a relative IRI reference.
func rdfRelative(name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func turtleIRI(s string) string {
	return strings.NewReplacer("<", "%3C", ">", "%3E", " ", "%20", `"`, "%22").Replace(s)
}
