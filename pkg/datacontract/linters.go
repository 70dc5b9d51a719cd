package datacontract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/contractd/contractd/pkg/engine"
)

// linter is one contract-level consistency rule. A linter never fails a
// contract; findings are reported as warnings.
type linter struct {
	key  string
	name string
	fn   func(c *Contract) []string
}

func (l linter) run(c *Contract) engine.Check {
	check := engine.Check{
		Key:    l.key,
		Type:   "lint",
		Name:   fmt.Sprintf("Linter '%s'", l.name),
		Engine: checkEngine,
		Result: engine.ResultPassed,
	}
	if findings := l.fn(c); len(findings) > 0 {
		check.Result = engine.ResultWarning
		check.Reason = strings.Join(findings, "; ")
	}
	return check
}

var linters = []linter{
	{key: "field_constraints_types", name: "Field constraints match type", fn: lintConstraintTypes},
	{key: "field_constraints_valid", name: "Valid field constraints", fn: lintConstraintBounds},
	{key: "field_references", name: "Field references existing field", fn: lintReferences},
	{key: "field_pattern", name: "Field pattern is correct regex", fn: lintPatterns},
	{key: "field_examples", name: "Example(s) match field type", fn: lintExamples},
	{key: "quality_model_name", name: "Quality check(s) use model name", fn: lintQualityModelName},
	{key: "model_descriptions", name: "Models have descriptions", fn: lintDescriptions},
	{key: "notice_period", name: "noticePeriod in ISO8601 format", fn: lintNoticePeriod},
}

// eachField calls fn for every field of every model, nested ones included,
// in document order. The path is model.field[.nested...].
func (c *Contract) eachField(fn func(path string, f *Field)) {
	var walk func(prefix string, fields *OrderedMap[Field])
	walk = func(prefix string, fields *OrderedMap[Field]) {
		for name, f := range fields.All() {
			path := prefix + "." + name
			fn(path, f)
			walk(path, &f.Fields)
		}
	}
	for modelName, model := range c.Models.All() {
		walk(modelName, &model.Fields)
	}
}

func lintConstraintTypes(c *Contract) []string {
	var findings []string
	c.eachField(func(path string, f *Field) {
		fam := typeFamily(f.Type)
		if fam == familyUnknown {
			return
		}
		if !fam.isString() {
			for _, name := range setStringConstraints(f) {
				findings = append(findings, fmt.Sprintf("field '%s' of type '%s' has string constraint '%s'", path, f.Type, name))
			}
		}
		if !fam.isNumeric() {
			for _, name := range setNumericConstraints(f) {
				findings = append(findings, fmt.Sprintf("field '%s' of type '%s' has numeric constraint '%s'", path, f.Type, name))
			}
		}
	})
	return findings
}

func setStringConstraints(f *Field) []string {
	var names []string
	if f.MinLength != nil {
		names = append(names, "minLength")
	}
	if f.MaxLength != nil {
		names = append(names, "maxLength")
	}
	if f.Pattern != "" {
		names = append(names, "pattern")
	}
	return names
}

func setNumericConstraints(f *Field) []string {
	var names []string
	if f.Minimum != nil {
		names = append(names, "minimum")
	}
	if f.Maximum != nil {
		names = append(names, "maximum")
	}
	if f.ExclusiveMinimum != nil {
		names = append(names, "exclusiveMinimum")
	}
	if f.ExclusiveMaximum != nil {
		names = append(names, "exclusiveMaximum")
	}
	return names
}

func lintConstraintBounds(c *Contract) []string {
	var findings []string
	c.eachField(func(path string, f *Field) {
		if f.MinLength != nil && *f.MinLength < 0 {
			findings = append(findings, fmt.Sprintf("field '%s' has negative minLength %d", path, *f.MinLength))
		}
		if f.MinLength != nil && f.MaxLength != nil && *f.MinLength > *f.MaxLength {
			findings = append(findings, fmt.Sprintf("field '%s' has minLength %d greater than maxLength %d",
				path, *f.MinLength, *f.MaxLength))
		}
		if f.Minimum != nil && f.Maximum != nil && *f.Minimum > *f.Maximum {
			findings = append(findings, fmt.Sprintf("field '%s' has minimum %s greater than maximum %s",
				path, formatNumber(*f.Minimum), formatNumber(*f.Maximum)))
		}
		if f.ExclusiveMinimum != nil && f.ExclusiveMaximum != nil && *f.ExclusiveMinimum >= *f.ExclusiveMaximum {
			findings = append(findings, fmt.Sprintf("field '%s' has exclusiveMinimum %s not less than exclusiveMaximum %s",
				path, formatNumber(*f.ExclusiveMinimum), formatNumber(*f.ExclusiveMaximum)))
		}
	})
	return findings
}

func lintReferences(c *Contract) []string {
	var findings []string
	c.eachField(func(path string, f *Field) {
		if f.References == "" {
			return
		}
		modelName, fieldName, ok := strings.Cut(f.References, ".")
		if !ok {
			findings = append(findings, fmt.Sprintf("field '%s' references '%s', expected model.field", path, f.References))
			return
		}
		model, ok := c.Models.Get(modelName)
		if !ok {
			findings = append(findings, fmt.Sprintf("field '%s' references unknown model '%s'", path, modelName))
			return
		}
		if _, ok := model.Fields.Get(fieldName); !ok {
			findings = append(findings, fmt.Sprintf("field '%s' references unknown field '%s' of model '%s'", path, fieldName, modelName))
		}
	})
	return findings
}

func lintPatterns(c *Contract) []string {
	var findings []string
	c.eachField(func(path string, f *Field) {
		if f.Pattern == "" {
			return
		}
		if _, err := regexp.Compile(f.Pattern); err != nil {
			findings = append(findings, fmt.Sprintf("field '%s' has invalid pattern '%s': %v", path, f.Pattern, err))
		}
	})
	return findings
}

func lintExamples(c *Contract) []string {
	var findings []string
	c.eachField(func(path string, f *Field) {
		fam := typeFamily(f.Type)
		for _, ex := range f.Examples {
			if !exampleMatches(fam, ex) {
				findings = append(findings, fmt.Sprintf("example %v of field '%s' is not of type '%s'", ex, path, f.Type))
			}
		}
	})
	return findings
}

func exampleMatches(fam family, ex any) bool {
	switch {
	case ex == nil:
		return true
	case fam.isIntegral():
		switch v := ex.(type) {
		case int, int64, uint64:
			return true
		case float64:
			return v == float64(int64(v))
		}
		return false
	case fam.isNumeric():
		switch ex.(type) {
		case int, int64, uint64, float64:
			return true
		}
		return false
	case fam == familyBoolean:
		_, ok := ex.(bool)
		return ok
	case fam.isString(), fam == familyTimestampTZ, fam == familyTimestampNTZ, fam == familyDate, fam == familyTime:
		_, ok := ex.(string)
		return ok
	case fam == familyArray:
		_, ok := ex.([]any)
		return ok
	case fam == familyObject, fam == familyMap:
		_, ok := ex.(map[string]any)
		return ok
	default:
		return true
	}
}

func lintQualityModelName(c *Contract) []string {
	var findings []string
	for modelName, model := range c.Models.All() {
		for i, q := range model.Quality {
			if !strings.EqualFold(q.Type, "sql") || q.Query == "" {
				continue
			}
			if !strings.Contains(q.Query, modelName) && !strings.Contains(q.Query, "{model}") {
				findings = append(findings, fmt.Sprintf("quality check %d of model '%s' does not reference the model", i+1, modelName))
			}
		}
	}
	return findings
}

func lintDescriptions(c *Contract) []string {
	var findings []string
	for modelName, model := range c.Models.All() {
		if strings.TrimSpace(model.Description) == "" {
			findings = append(findings, fmt.Sprintf("model '%s' has no description", modelName))
		}
	}
	return findings
}

// isoDuration matches ISO 8601 durations such as P3M, P1Y2M10DT2H30M or PT0.5S.
var isoDuration = regexp.MustCompile(`^P(\d+Y)?(\d+M)?(\d+W)?(\d+D)?(T(\d+H)?(\d+M)?(\d+(\.\d+)?S)?)?$`)

func lintNoticePeriod(c *Contract) []string {
	if c.Terms == nil || c.Terms.NoticePeriod == "" {
		return nil
	}
	if !isISODuration(c.Terms.NoticePeriod) {
		return []string{fmt.Sprintf("noticePeriod '%s' is not an ISO 8601 duration", c.Terms.NoticePeriod)}
	}
	return nil
}

func isISODuration(s string) bool {
	if !isoDuration.MatchString(s) || s == "P" || strings.HasSuffix(s, "T") {
		return false
	}
	return true
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
