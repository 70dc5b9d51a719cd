package datacontract

import (
	"fmt"
	"strings"

	"github.com/xwb1989/sqlparser"
)

// renderQuery substitutes the {model} and {field} placeholders of a quality
// query.
func renderQuery(query, model, field string) string {
	r := strings.NewReplacer("{model}", model, "{field}", field)
	return strings.TrimSpace(r.Replace(query))
}

// guardQuery accepts only a single read-only query. Statements the MySQL
// grammar of sqlparser understands must be a SELECT or UNION; dialect SQL it
// cannot parse (casts with ::, double-quoted identifiers, FILTER, CTEs) is
// checked lexically instead.
func guardQuery(query string) error {
	query = strings.TrimSuffix(strings.TrimSpace(query), ";")
	stmt, err := sqlparser.Parse(query)
	if err != nil {
		return lexicalGuard(query)
	}
	switch stmt.(type) {
	case *sqlparser.Select, *sqlparser.Union, *sqlparser.ParenSelect:
		return nil
	default:
		return fmt.Errorf("quality query must be a SELECT statement, got %s", statementKind(stmt))
	}
}

// writeKeywords may not appear as bare words in a lexically checked query.
var writeKeywords = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "MERGE": true, "UPSERT": true,
	"DROP": true, "ALTER": true, "CREATE": true, "TRUNCATE": true,
	"GRANT": true, "REVOKE": true, "COPY": true, "CALL": true,
}

func lexicalGuard(query string) error {
	words, statements := scanSQL(query)
	if statements != 1 || len(words) == 0 {
		return fmt.Errorf("quality query is not a single SELECT statement")
	}
	if first := words[0]; first != "SELECT" && first != "WITH" {
		return fmt.Errorf("quality query is not a single SELECT statement: starts with %s", first)
	}
	for _, w := range words {
		if writeKeywords[w] {
			return fmt.Errorf("quality query must be a SELECT statement, got %s", w)
		}
	}
	return nil
}

// scanSQL returns the upper-cased bare words of query, skipping string
// literals, quoted identifiers and comments, and the number of non-empty
// statements separated by semicolons.
func scanSQL(query string) (words []string, statements int) {
	var word strings.Builder
	pending := false
	flush := func() {
		if word.Len() > 0 {
			words = append(words, strings.ToUpper(word.String()))
			word.Reset()
		}
	}

	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			flush()
			pending = true
			for i++; i < len(query); i++ {
				if query[i] == c {
					if i+1 < len(query) && query[i+1] == c {
						i++
						continue
					}
					break
				}
			}
		case c == '-' && i+1 < len(query) && query[i+1] == '-':
			flush()
			for i < len(query) && query[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(query) && query[i+1] == '*':
			flush()
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				i = len(query)
			} else {
				i += end + 3
			}
		case c == ';':
			flush()
			if pending {
				statements++
				pending = false
			}
		case c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9':
			word.WriteByte(c)
			pending = true
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			flush()
		default:
			flush()
			pending = true
		}
	}
	flush()
	if pending {
		statements++
	}
	return words, statements
}

func statementKind(stmt sqlparser.Statement) string {
	switch stmt.(type) {
	case *sqlparser.Insert:
		return "INSERT"
	case *sqlparser.Update:
		return "UPDATE"
	case *sqlparser.Delete:
		return "DELETE"
	case *sqlparser.DDL:
		return "DDL"
	case *sqlparser.Set:
		return "SET"
	default:
		return fmt.Sprintf("%T", stmt)
	}
}

// threshold is one mustBe* rule of a quality check.
type threshold struct {
	name string
	test func(v float64) bool
	want string
}

// thresholds returns the rules set on q. A check without any rule expects
// the query to return 0.
func (q *Quality) thresholds() []threshold {
	var ts []threshold
	add := func(name string, bound *float64, test func(v, b float64) bool, op string) {
		if bound == nil {
			return
		}
		b := *bound
		ts = append(ts, threshold{
			name: name,
			test: func(v float64) bool { return test(v, b) },
			want: op + " " + formatNumber(b),
		})
	}
	add("mustBe", q.MustBe, func(v, b float64) bool { return v == b }, "=")
	add("mustNotBe", q.MustNotBe, func(v, b float64) bool { return v != b }, "!=")
	add("mustBeGreaterThan", q.MustBeGreaterThan, func(v, b float64) bool { return v > b }, ">")
	add("mustBeGreaterThanOrEqualTo", q.MustBeGreaterThanOrEqualTo, func(v, b float64) bool { return v >= b }, ">=")
	add("mustBeLessThan", q.MustBeLessThan, func(v, b float64) bool { return v < b }, "<")
	add("mustBeLessThanOrEqualTo", q.MustBeLessThanOrEqualTo, func(v, b float64) bool { return v <= b }, "<=")
	if len(q.MustBeBetween) == 2 {
		lo, hi := q.MustBeBetween[0], q.MustBeBetween[1]
		ts = append(ts, threshold{
			name: "mustBeBetween",
			test: func(v float64) bool { return v >= lo && v <= hi },
			want: fmt.Sprintf("between %s and %s", formatNumber(lo), formatNumber(hi)),
		})
	}
	if len(q.MustNotBeBetween) == 2 {
		lo, hi := q.MustNotBeBetween[0], q.MustNotBeBetween[1]
		ts = append(ts, threshold{
			name: "mustNotBeBetween",
			test: func(v float64) bool { return v < lo || v > hi },
			want: fmt.Sprintf("not between %s and %s", formatNumber(lo), formatNumber(hi)),
		})
	}
	if len(ts) == 0 {
		zero := 0.0
		add("mustBe", &zero, func(v, b float64) bool { return v == b }, "=")
	}
	return ts
}

// evaluate returns the rules v violates, formatted for a check reason.
func (q *Quality) evaluate(v float64) []string {
	var failed []string
	for _, t := range q.thresholds() {
		if !t.test(v) {
			failed = append(failed, fmt.Sprintf("%s: got %s, expected %s", t.name, formatNumber(v), t.want))
		}
	}
	return failed
}
