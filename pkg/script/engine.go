// Package script runs zone scripts. A script is an expr program evaluated against the zone's
// exported functions; it runs once when started and again for each event it listens to.
package script

import (
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Event names a zone lifecycle event scripts can listen to.
type Event string

const (
	EventRun           Event = "onRun"
	EventPlayerEntered Event = "onPlayerEntered"
	EventPlayerLeft    Event = "onPlayerLeft"
)

const listenHeader = "// on:"

var ErrNotRunning = eris.New("script is not running")

// Script is a compiled program.
type Script struct {
	Name    string
	Source  string
	Listens []Event

	program *vm.Program
}

// Engine owns the running scripts and the functions they may call.
type Engine struct {
	log     zerolog.Logger
	funcs   map[string]any
	running map[string]*Script
}

func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{
		log:     logger,
		funcs:   make(map[string]any),
		running: make(map[string]*Script),
	}
}

// RegisterFunction exposes fn to scripts under name.
func (e *Engine) RegisterFunction(name string, fn any) {
	e.funcs[name] = fn
}

// Compile parses src. A first line of the form "// on: onPlayerEntered, onPlayerLeft" subscribes
// the script to those events once it runs.
func (e *Engine) Compile(name, src string) (*Script, error) {
	program, err := expr.Compile(src, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, eris.Wrapf(err, "failed to compile script %s", name)
	}
	return &Script{Name: name, Source: src, Listens: parseListens(src), program: program}, nil
}

// LoadDir compiles every *.expr file in dir, ordered by file name.
func (e *Engine) LoadDir(dir string) ([]*Script, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.expr"))
	if err != nil {
		return nil, eris.Wrapf(err, "failed to list scripts in %s", dir)
	}
	slices.Sort(paths)

	scripts := make([]*Script, 0, len(paths))
	for _, p := range paths {
		src, err := os.ReadFile(p)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to read script %s", p)
		}
		s, err := e.Compile(strings.TrimSuffix(filepath.Base(p), ".expr"), string(src))
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, s)
	}
	return scripts, nil
}

// Run starts s: it is evaluated once with event onRun and then listens for its events.
func (e *Engine) Run(s *Script) error {
	e.running[s.Name] = s
	return e.eval(s, EventRun, nil)
}

// Remove stops s. Removing a script that is not running is a no-op.
func (e *Engine) Remove(s *Script) {
	delete(e.running, s.Name)
}

// RemoveAll stops every running script.
func (e *Engine) RemoveAll() {
	clear(e.running)
}

// Running returns the names of the running scripts.
func (e *Engine) Running() []string {
	return slices.Sorted(maps.Keys(e.running))
}

// Emit evaluates every running script listening to ev. Script failures are logged, never returned:
// scripts are listeners and cannot veto the event.
func (e *Engine) Emit(ev Event, vars map[string]any) {
	for _, name := range e.Running() {
		s := e.running[name]
		if !slices.Contains(s.Listens, ev) {
			continue
		}
		if err := e.eval(s, ev, vars); err != nil {
			e.log.Warn().Err(err).Str("script", s.Name).Str("event", string(ev)).Msg("script failed")
		}
	}
}

func (e *Engine) eval(s *Script, ev Event, vars map[string]any) error {
	env := make(map[string]any, len(e.funcs)+len(vars)+1)
	maps.Copy(env, e.funcs)
	maps.Copy(env, vars)
	env["event"] = string(ev)

	if _, err := expr.Run(s.program, env); err != nil {
		return eris.Wrapf(err, "script %s failed on %s", s.Name, ev)
	}
	return nil
}

func parseListens(src string) []Event {
	first, _, _ := strings.Cut(src, "\n")
	rest, ok := strings.CutPrefix(strings.TrimSpace(first), listenHeader)
	if !ok {
		return nil
	}
	var out []Event
	for _, f := range strings.Split(rest, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, Event(f))
		}
	}
	return out
}
