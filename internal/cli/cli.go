package cli

import (
	"errors"
	"fmt"
	"strings"
)

type ExitCode int

const (
	ExitOK ExitCode = iota
	ExitRules
	ExitInvalid
	ExitRuntime
)

func (c ExitCode) String() string {
	switch c {
	case ExitOK:
		return "ok"
	case ExitRules:
		return "validation failed"
	case ExitInvalid:
		return "invalid arguments"
	case ExitRuntime:
		return "runtime error"
	default:
		return fmt.Sprintf("exit(%d)", int(c))
	}
}

// ExitError carries the process exit code out of a cobra RunE.
type ExitError struct {
	Code ExitCode
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Code.String()
	}

	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func Exit(code ExitCode, err error) error {
	if code == ExitOK && err == nil {
		return nil
	}

	return &ExitError{Code: code, Err: err}
}

// CodeOf maps an error returned by a command to an exit code. Errors that do
// not carry one are runtime failures.
func CodeOf(err error) ExitCode {
	if err == nil {
		return ExitOK
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	return ExitRuntime
}

type Format string

const (
	FormatText  Format = "text"
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
	FormatHTML  Format = "html"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatTable, FormatJSON, FormatCSV, FormatHTML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown format %q (text, table, json, csv, html)", s)
	}
}

type ValidateArgs struct {
	SessionsFile string
	RulesPath    string
	SessionIDs   []string
	App          string
	Device       string
	Limit        int
	Format       Format
	Output       string
	Workers      int
	Upload       bool
	SaveHistory  bool
	Labels       map[string]string
}

// ParseLabels turns repeated key=value flags into a map; malformed entries
// are ignored.
func ParseLabels(values []string) map[string]string {
	labels := make(map[string]string, len(values))
	for _, label := range values {
		if idx := strings.IndexByte(label, '='); idx > 0 {
			labels[label[:idx]] = label[idx+1:]
		}
	}

	return labels
}
