package engine

import "time"

// Result is the outcome of a check or a whole run.
type Result string

// Result values, ordered by severity.
const (
	ResultPassed  Result = "passed"
	ResultWarning Result = "warning"
	ResultFailed  Result = "failed"
	ResultError   Result = "error"
	ResultInfo    Result = "info"
)

func (r Result) severity() int {
	switch r {
	case ResultWarning:
		return 1
	case ResultFailed:
		return 2
	case ResultError:
		return 3
	default:
		return 0
	}
}

// Worst returns the most severe of the given results. An empty slice yields
// ResultPassed.
func Worst(results ...Result) Result {
	worst := ResultPassed
	for _, r := range results {
		if r.severity() > worst.severity() {
			worst = r
		}
	}
	return worst
}

// Check is a single test or lint check.
type Check struct {
	ID             string         `json:"id,omitempty"`
	Key            string         `json:"key,omitempty"`
	Category       string         `json:"category,omitempty"`
	Type           string         `json:"type"`
	Name           string         `json:"name,omitempty"`
	Model          string         `json:"model,omitempty"`
	Field          string         `json:"field,omitempty"`
	Engine         string         `json:"engine,omitempty"`
	Language       string         `json:"language,omitempty"`
	Implementation string         `json:"implementation,omitempty"`
	Result         Result         `json:"result"`
	Reason         string         `json:"reason,omitempty"`
	Details        map[string]any `json:"details,omitempty"`
}

// Log is a log line recorded during a run.
type Log struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// RunResult is the outcome of Session.Test. Unset fields are omitted when
// encoded.
type RunResult struct {
	RunID               string     `json:"runId,omitempty"`
	DataContractID      string     `json:"dataContractId,omitempty"`
	DataContractVersion string     `json:"dataContractVersion,omitempty"`
	DataProductID       string     `json:"dataProductId,omitempty"`
	OutputPortID        string     `json:"outputPortId,omitempty"`
	Server              string     `json:"server,omitempty"`
	TimestampStart      *time.Time `json:"timestampStart,omitempty"`
	TimestampEnd        *time.Time `json:"timestampEnd,omitempty"`
	Result              Result     `json:"result,omitempty"`
	Checks              []Check    `json:"checks,omitempty"`
	Logs                []Log      `json:"logs,omitempty"`
}

// Finish sets Result from the checks.
func (r *RunResult) Finish() {
	results := make([]Result, 0, len(r.Checks))
	for _, c := range r.Checks {
		results = append(results, c.Result)
	}
	r.Result = Worst(results...)
}

// LintResult is the outcome of Session.Lint.
type LintResult struct {
	Result Result  `json:"result"`
	Checks []Check `json:"checks"`
}

// NewLintResult builds a LintResult whose overall result is the worst of
// its checks.
func NewLintResult(checks []Check) *LintResult {
	if checks == nil {
		checks = []Check{}
	}
	results := make([]Result, 0, len(checks))
	for _, c := range checks {
		results = append(results, c.Result)
	}
	return &LintResult{Result: Worst(results...), Checks: checks}
}
