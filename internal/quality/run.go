package quality

import (
	"errors"

	"github.com/charmbracelet/log"
)

// Check is a named data-quality check
type Check struct {
	Name string
	Fn   func() error
	// Expected marks a check that is known to fail
	ExpectFail bool
}

// Result is the outcome of one check
type Result struct {
	Name       string `json:"name"`
	Passed     bool   `json:"passed"`
	ExpectFail bool   `json:"expect_fail,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Report collects the results of a Run
type Report struct {
	Results []Result `json:"results"`
}

// Failed counts the checks whose outcome was not the expected one
func (r Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Passed == res.ExpectFail {
			n++
		}
	}
	return n
}

// Run executes every check and records its result. Errors other than a
// *CheckError (a missing column, a ragged dataset) count as failures too.
func Run(checks ...Check) Report {
	var report Report
	for _, c := range checks {
		err := c.Fn()
		res := Result{Name: c.Name, Passed: err == nil, ExpectFail: c.ExpectFail}
		if err != nil {
			res.Error = err.Error()
			var checkErr *CheckError
			if !errors.As(err, &checkErr) {
				log.Error("Check could not run", "check", c.Name, "error", err)
			} else {
				log.Debug("Check failed", "check", c.Name, "error", err)
			}
		}
		report.Results = append(report.Results, res)
	}
	return report
}
