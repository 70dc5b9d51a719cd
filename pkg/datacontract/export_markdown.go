package datacontract

import (
	"fmt"
	"strings"
)

func exportMarkdown(req *exportRequest) (string, error) {
	c := req.contract
	var b strings.Builder

	title := c.Info.Title
	if title == "" {
		title = c.ID
	}
	fmt.Fprintf(&b, "# %s\n\n", mdEscape(title))
	if c.Info.Description != "" {
		b.WriteString(strings.TrimSpace(c.Info.Description) + "\n\n")
	}

	b.WriteString("## Info\n\n")
	mdTable(&b, []string{"Property", "Value"}, nonEmptyRows(
		[]string{"id", c.ID},
		[]string{"version", c.Info.Version},
		[]string{"status", c.Info.Status},
		[]string{"owner", c.Info.Owner},
		[]string{"specification", c.DataContractSpecification},
	))
	if c.Info.Contact != nil {
		b.WriteString("### Contact\n\n")
		mdTable(&b, []string{"Property", "Value"}, nonEmptyRows(
			[]string{"name", c.Info.Contact.Name},
			[]string{"url", c.Info.Contact.URL},
			[]string{"email", c.Info.Contact.Email},
		))
	}

	if c.Servers.Len() > 0 {
		b.WriteString("## Servers\n\n")
		var rows [][]string
		for name, s := range c.Servers.All() {
			rows = append(rows, []string{name, s.Type, s.Environment, serverAddress(s), s.Description})
		}
		mdTable(&b, []string{"Name", "Type", "Environment", "Location", "Description"}, rows)
	}

	if c.Terms != nil {
		b.WriteString("## Terms\n\n")
		mdTable(&b, []string{"Property", "Value"}, nonEmptyRows(
			[]string{"usage", c.Terms.Usage},
			[]string{"limitations", c.Terms.Limitations},
			[]string{"billing", c.Terms.Billing},
			[]string{"noticePeriod", c.Terms.NoticePeriod},
		))
	}

	b.WriteString("## Models\n\n")
	for _, m := range req.models {
		fmt.Fprintf(&b, "### %s\n\n", mdEscape(m.Name))
		if m.Description != "" {
			b.WriteString(strings.TrimSpace(m.Description) + "\n\n")
		}
		var rows [][]string
		var walk func(prefix string, fields *OrderedMap[Field])
		walk = func(prefix string, fields *OrderedMap[Field]) {
			for name, f := range fields.All() {
				path := prefix + name
				rows = append(rows, []string{
					path,
					f.Type,
					yesNo(f.Required),
					yesNo(f.Unique),
					fieldConstraints(f),
					f.Description,
				})
				walk(path+".", &f.Fields)
			}
		}
		walk("", &m.Fields)
		mdTable(&b, []string{"Field", "Type", "Required", "Unique", "Constraints", "Description"}, rows)

		if len(m.Quality) > 0 {
			b.WriteString("#### Quality\n\n")
			for _, q := range m.Quality {
				text := q.Description
				if text == "" {
					text = q.Query
				}
				fmt.Fprintf(&b, "- **%s**: %s\n", mdEscape(q.Type), mdEscape(strings.TrimSpace(text)))
			}
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

func serverAddress(s *Server) string {
	switch {
	case s.Location != "":
		return s.Location
	case s.Host != "" && s.Port != 0:
		return fmt.Sprintf("%s:%d", s.Host, s.Port)
	case s.Host != "":
		return s.Host
	case s.Account != "":
		return s.Account
	case s.Project != "":
		return s.Project + "." + s.Dataset
	default:
		return s.Path
	}
}

func fieldConstraints(f *Field) string {
	var parts []string
	if f.PrimaryKey {
		parts = append(parts, "primary key")
	}
	if f.MinLength != nil {
		parts = append(parts, fmt.Sprintf("minLength %d", *f.MinLength))
	}
	if f.MaxLength != nil {
		parts = append(parts, fmt.Sprintf("maxLength %d", *f.MaxLength))
	}
	if f.Pattern != "" {
		parts = append(parts, "pattern `"+f.Pattern+"`")
	}
	if f.Minimum != nil {
		parts = append(parts, "minimum "+formatNumber(*f.Minimum))
	}
	if f.Maximum != nil {
		parts = append(parts, "maximum "+formatNumber(*f.Maximum))
	}
	if len(f.Enum) > 0 {
		parts = append(parts, "enum "+strings.Join(f.Enum, ", "))
	}
	if f.References != "" {
		parts = append(parts, "references "+f.References)
	}
	return strings.Join(parts, "; ")
}

func nonEmptyRows(rows ...[]string) [][]string {
	out := rows[:0]
	for _, r := range rows {
		if r[1] != "" {
			out = append(out, r)
		}
	}
	return out
}

func mdTable(b *strings.Builder, header []string, rows [][]string) {
	b.WriteString("| " + strings.Join(header, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(header)) + "\n")
	for _, r := range rows {
		cells := make([]string, len(r))
		for i, c := range r {
			cells[i] = mdEscape(c)
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	b.WriteString("\n")
}

var mdReplacer = strings.NewReplacer("|", `\|`, "\r\n", "<br>", "\n", "<br>")

func mdEscape(s string) string {
	return mdReplacer.Replace(strings.TrimSpace(s))
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
