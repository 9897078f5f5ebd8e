package routing

import (
	"context"
	"fmt"
	"os/exec"
	"slices"
	"strings"
	"sync"
)

// fakePactl keeps a tiny module table and answers pactl invocations from it.
type fakePactl struct {
	mu sync.Mutex

	nextID        int
	modules       []module
	sources       []string
	sinks         []string
	defaultSource string
	sinkInputs    string

	failRemap   bool
	unavailable bool

	calls [][]string
}

func newFakePactl() *fakePactl {
	return &fakePactl{
		nextID:        536870912,
		sources:       []string{"alsa_output.pci-0000_00_1f.3.analog-stereo.monitor", "alsa_input.pci-0000_00_1f.3.analog-stereo"},
		sinks:         []string{"alsa_output.pci-0000_00_1f.3.analog-stereo"},
		defaultSource: "alsa_input.pci-0000_00_1f.3.analog-stereo",
		modules: []module{
			{ID: "1", Name: "module-alsa-card", Args: "device_id=0"},
		},
	}
}

func (f *fakePactl) Run(_ context.Context, name string, args ...string) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, append([]string{name}, args...))

	if f.unavailable {
		return Result{}, exec.ErrNotFound
	}
	if len(args) == 0 {
		return fail("No command specified."), nil
	}

	switch args[0] {
	case "list":
		return f.list(args[1:]), nil
	case "get-default-source":
		return ok(f.defaultSource + "\n"), nil
	case "set-default-source":
		if !slices.Contains(f.allSources(), args[1]) {
			return fail("Failure: No such entity"), nil
		}
		f.defaultSource = args[1]
		return ok(""), nil
	case "load-module":
		if args[1] == "module-remap-source" && f.failRemap {
			return fail("Failure: Module initialization failed"), nil
		}
		f.nextID++
		id := fmt.Sprint(f.nextID)
		f.modules = append(f.modules, module{ID: id, Name: args[1], Args: strings.Join(args[2:], " ")})
		return ok(id + "\n"), nil
	case "unload-module":
		for i, m := range f.modules {
			if m.ID == args[1] {
				f.modules = slices.Delete(f.modules, i, i+1)
				return ok(""), nil
			}
		}
		return fail("Failure: No such entity"), nil
	case "move-sink-input", "set-sink-input-volume":
		return ok(""), nil
	}

	return fail("Unknown command"), nil
}

func (f *fakePactl) list(args []string) Result {
	var b strings.Builder

	switch args[0] {
	case "sources":
		for i, s := range f.allSources() {
			fmt.Fprintf(&b, "%d\t%s\tPipeWire\tfloat32le 2ch 48000Hz\tSUSPENDED\n", i+40, s)
		}
	case "sinks":
		sinks := slices.Clone(f.sinks)
		for _, m := range f.modules {
			if m.Name == "module-null-sink" {
				sinks = append(sinks, argValue(m.Args, "sink_name"))
			}
		}
		for i, s := range sinks {
			fmt.Fprintf(&b, "%d\t%s\tPipeWire\tfloat32le 2ch 48000Hz\tSUSPENDED\n", i+50, s)
		}
	case "modules":
		for _, m := range f.modules {
			fmt.Fprintf(&b, "%s\t%s\t%s\t\n", m.ID, m.Name, m.Args)
		}
	case "sink-inputs":
		b.WriteString(f.sinkInputs)
	}

	return ok(b.String())
}

func (f *fakePactl) allSources() []string {
	sources := slices.Clone(f.sources)
	for _, m := range f.modules {
		if m.Name == "module-remap-source" {
			sources = append(sources, argValue(m.Args, "source_name"))
		}
	}
	return sources
}

// moduleSignatures describes the loaded modules without their ids.
func (f *fakePactl) moduleSignatures() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []string
	for _, m := range f.modules {
		out = append(out, m.Name+" "+m.Args)
	}
	return out
}

func (f *fakePactl) modulesNamed(name string) []module {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []module
	for _, m := range f.modules {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakePactl) callsWith(verb string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out [][]string
	for _, c := range f.calls {
		if len(c) > 1 && c[1] == verb {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakePactl) resetCalls() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

func argValue(args, key string) string {
	for _, a := range strings.Fields(args) {
		if v, found := strings.CutPrefix(a, key+"="); found {
			return v
		}
	}
	return ""
}

func ok(stdout string) Result {
	return Result{Stdout: []byte(stdout)}
}

func fail(stderr string) Result {
	return Result{Stderr: []byte(stderr + "\n"), ExitCode: 1}
}
