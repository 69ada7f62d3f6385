// Package preflight validates a deployment tree before the proxy and its frontend
// are shipped: required tools, project files, authentication and configuration.
package preflight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status is the result class of a single check.
type Status int

const (
	Pass Status = iota
	Warn
	Fail
)

func (s Status) String() string {
	switch s {
	case Pass:
		return "pass"
	case Warn:
		return "warn"
	default:
		return "fail"
	}
}

// commandTimeout bounds each external command a check runs.
const commandTimeout = 15 * time.Second

// Outcome is what a check reports.
type Outcome struct {
	Status  Status
	Message string
}

// Check is one entry of the checklist.
type Check struct {
	Section string
	Name    string
	// Hint tells the operator how to fix a failed or warned check. Optional.
	Hint string
	Run  func(ctx context.Context) Outcome
}

// Result pairs a check with its outcome.
type Result struct {
	Check   Check
	Outcome Outcome
}

// Report is the ordered result of a checklist run.
type Report struct {
	Results []Result
}

// Issues returns the number of failed checks.
func (r Report) Issues() int { return r.count(Fail) }

// Warnings returns the number of checks that passed with a warning.
func (r Report) Warnings() int { return r.count(Warn) }

func (r Report) count(s Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome.Status == s {
			n++
		}
	}
	return n
}

// ExitCode is 1 when any check failed, 0 otherwise. Warnings do not fail the run.
func (r Report) ExitCode() int {
	if r.Issues() > 0 {
		return 1
	}
	return 0
}

// Hints returns the fix hints of failed checks, in checklist order, without duplicates.
func (r Report) Hints() []string {
	var hints []string
	seen := make(map[string]bool)
	for _, res := range r.Results {
		h := res.Check.Hint
		if res.Outcome.Status != Fail || h == "" || seen[h] {
			continue
		}
		seen[h] = true
		hints = append(hints, h)
	}
	return hints
}

// Run executes checks with at most limit running at once and returns their results
// in the order the checks were given. A limit below 1 means no limit.
func Run(ctx context.Context, checks []Check, limit int) Report {
	results := make([]Result, len(checks))

	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, chk := range checks {
		g.Go(func() error {
			results[i] = Result{Check: chk, Outcome: chk.Run(ctx)}
			return nil
		})
	}
	_ = g.Wait()

	return Report{Results: results}
}

// CommandCheck fails unless `bin args...` runs and exits 0.
func CommandCheck(section, name, hint, bin string, args ...string) Check {
	return Check{
		Section: section,
		Name:    name,
		Hint:    hint,
		Run: func(ctx context.Context) Outcome {
			if err := runCommand(ctx, bin, args...); err != nil {
				return Outcome{Fail, fmt.Sprintf("%s is NOT installed", name)}
			}
			return Outcome{Pass, fmt.Sprintf("%s is installed", name)}
		},
	}
}

// WarnCommandCheck is like CommandCheck but a failing command is only a warning.
// ok and notOK are the messages reported for either outcome.
func WarnCommandCheck(section, name, hint, ok, notOK, bin string, args ...string) Check {
	return Check{
		Section: section,
		Name:    name,
		Hint:    hint,
		Run: func(ctx context.Context) Outcome {
			if err := runCommand(ctx, bin, args...); err != nil {
				return Outcome{Warn, notOK}
			}
			return Outcome{Pass, ok}
		},
	}
}

func runCommand(ctx context.Context, bin string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	return exec.CommandContext(ctx, bin, args...).Run()
}

// FileCheck fails unless path exists.
func FileCheck(section, name, hint, path string) Check {
	return Check{
		Section: section,
		Name:    name,
		Hint:    hint,
		Run: func(context.Context) Outcome {
			if _, err := os.Stat(path); err != nil {
				return Outcome{Fail, fmt.Sprintf("%s NOT found", name)}
			}
			return Outcome{Pass, fmt.Sprintf("%s exists", name)}
		},
	}
}

// DirCheck fails unless path exists and is a directory.
func DirCheck(section, name, hint, path string) Check {
	return Check{
		Section: section,
		Name:    name,
		Hint:    hint,
		Run: func(context.Context) Outcome {
			fi, err := os.Stat(path)
			if err != nil || !fi.IsDir() {
				return Outcome{Fail, fmt.Sprintf("%s directory NOT found", name)}
			}
			return Outcome{Pass, fmt.Sprintf("%s directory exists", name)}
		},
	}
}

// ContentCheck warns when the file at path does not contain text and fails when
// the file cannot be read.
func ContentCheck(section, name, hint, path, text string) Check {
	return Check{
		Section: section,
		Name:    name,
		Hint:    hint,
		Run: func(context.Context) Outcome {
			data, err := os.ReadFile(path)
			if err != nil {
				return Outcome{Fail, fmt.Sprintf("Could not read %s", name)}
			}
			if !strings.Contains(string(data), text) {
				return Outcome{Warn, fmt.Sprintf("%s might need configuration", name)}
			}
			return Outcome{Pass, fmt.Sprintf("%s is configured", name)}
		},
	}
}

// JSONKeyCheck warns when the JSON document at path lacks the dotted key path
// (for example "devDependencies.wrangler") and fails when it cannot be read or parsed.
func JSONKeyCheck(section, name, hint, path, key string) Check {
	return Check{
		Section: section,
		Name:    name,
		Hint:    hint,
		Run: func(context.Context) Outcome {
			data, err := os.ReadFile(path)
			if err != nil {
				return Outcome{Fail, fmt.Sprintf("Could not read %s", path)}
			}
			var doc any
			if err := json.Unmarshal(data, &doc); err != nil {
				return Outcome{Fail, fmt.Sprintf("Could not parse %s: %v", path, err)}
			}
			if !hasKeyPath(doc, strings.Split(key, ".")) {
				return Outcome{Warn, fmt.Sprintf("%s not in %s", name, path)}
			}
			return Outcome{Pass, fmt.Sprintf("%s is in %s", name, path)}
		},
	}
}

func hasKeyPath(doc any, keys []string) bool {
	for _, k := range keys {
		obj, ok := doc.(map[string]any)
		if !ok {
			return false
		}
		if doc, ok = obj[k]; !ok {
			return false
		}
	}
	return true
}

// FuncCheck wraps fn: a nil error passes with ok, an error fails with the error text.
func FuncCheck(section, name, hint, ok string, fn func(ctx context.Context) error) Check {
	return Check{
		Section: section,
		Name:    name,
		Hint:    hint,
		Run: func(ctx context.Context) Outcome {
			if err := fn(ctx); err != nil {
				var skip skipError
				if errors.As(err, &skip) {
					return Outcome{Warn, skip.msg}
				}
				return Outcome{Fail, fmt.Sprintf("%s: %v", name, err)}
			}
			return Outcome{Pass, ok}
		},
	}
}

// skipError downgrades a FuncCheck failure to a warning.
type skipError struct{ msg string }

func (e skipError) Error() string { return e.msg }
