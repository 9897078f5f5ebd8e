package routing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

var (
	percentRe = regexp.MustCompile(`(\d+)\s*%`)
)

// Runner executes one external command to completion.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// Result is the outcome of a command that did run. A non-zero ExitCode is
// not an error at this level.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

func (r Result) OK() bool { return r.ExitCode == 0 }

func (r Result) stderr() string { return strings.TrimSpace(string(r.Stderr)) }

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	if ctx.Err() != nil {
		return res, ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}

	return res, err
}

// ToolError reports a pactl invocation that could not run or that failed.
type ToolError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	msg := "pactl " + strings.Join(e.Args, " ")
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }

// --- pactl output parsing ---

type module struct {
	ID   string
	Name string
	Args string
}

// parseModules reads `pactl list modules short`.
func parseModules(out string) []module {
	var res []module

	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		m := module{
			ID:   strings.TrimSpace(fields[0]),
			Name: strings.TrimSpace(fields[1]),
		}
		if len(fields) > 2 {
			m.Args = fields[2]
		}
		if m.ID == "" {
			continue
		}
		res = append(res, m)
	}

	return res
}

// parseShortNames returns the second column of a `pactl list ... short`
// listing.
func parseShortNames(out string) []string {
	names := []string{}

	for _, line := range strings.Split(out, "\n") {
		parts := strings.Fields(line)
		if len(parts) >= 2 {
			names = append(names, parts[1])
		}
	}

	return names
}

// shortIndex returns the first-column index of the entry named name in a
// `pactl list ... short` listing, or -1.
func shortIndex(out, name string) int {
	for _, line := range strings.Split(out, "\n") {
		parts := strings.Fields(line)
		if len(parts) < 2 || parts[1] != name {
			continue
		}
		if idx, err := strconv.Atoi(parts[0]); err == nil {
			return idx
		}
	}
	return -1
}

type streamInfo struct {
	ID        int
	Sink      int
	Volume    int
	AppName   string
	Binary    string
	ProcessID int
}

// parseStreams reads the long `pactl list sink-inputs` listing.
func parseStreams(text string) []streamInfo {
	parts := strings.Split(text, "Sink Input #")
	if len(parts) <= 1 {
		return nil
	}

	var res []streamInfo

	for i := 1; i < len(parts); i++ {
		block := parts[i]

		newline := strings.IndexByte(block, '\n')
		if newline <= 0 {
			continue
		}

		id, err := strconv.Atoi(strings.TrimSpace(block[:newline]))
		if err != nil {
			continue
		}

		s := streamInfo{
			ID:   id,
			Sink: -1,
		}

		for _, line := range strings.Split(block[newline+1:], "\n") {
			line = strings.TrimSpace(line)

			switch {
			case strings.HasPrefix(line, "Sink:") && s.Sink < 0:
				if v, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Sink:"))); err == nil {
					s.Sink = v
				}
			case strings.HasPrefix(line, "Volume:") && s.Volume == 0:
				m := percentRe.FindStringSubmatch(line)
				if len(m) >= 2 {
					if v, err := strconv.Atoi(m[1]); err == nil {
						s.Volume = v
					}
				}
			case strings.HasPrefix(line, "application.name =") && s.AppName == "":
				s.AppName = propValue(line)
			case strings.HasPrefix(line, "application.process.binary =") && s.Binary == "":
				s.Binary = propValue(line)
			case strings.HasPrefix(line, "application.process.id =") && s.ProcessID == 0:
				if v, err := strconv.Atoi(propValue(line)); err == nil {
					s.ProcessID = v
				}
			}
		}

		res = append(res, s)
	}

	return res
}

// propValue extracts "Firefox" from `application.name = "Firefox"`.
func propValue(line string) string {
	idx := strings.Index(line, "\"")
	if idx < 0 {
		return ""
	}
	line = line[idx+1:]
	idx2 := strings.Index(line, "\"")
	if idx2 < 0 {
		return ""
	}
	return line[:idx2]
}

func exitError(res Result) error {
	return fmt.Errorf("exit status %d", res.ExitCode)
}
