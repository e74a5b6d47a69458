// Package program wraps a parsed block tree together with its source and
// runs it against the simulation under a step budget.
package program

import (
	"errors"
	"fmt"

	"cowboys.arena/internal/lang/blocks"
	"cowboys.arena/internal/lang/value"
	"cowboys.arena/internal/sim/actions"
	"cowboys.arena/internal/sim/entity"
)

const (
	MsgNotExecutable = "Program is not executable"
	MsgNoAction      = "No action"
	MsgOutOfSteps    = "Out of steps"
	MsgFault         = "Program failed"
)

// Program is immutable once built. A program without a root failed to parse;
// it keeps its source so it can still be edited.
type Program struct {
	Root     blocks.Stmt
	Vars     map[string]value.Kind
	Declared []string
	Source   string
	// Err is the parse error of an invalid program.
	Err error
}

func (p *Program) Valid() bool { return p != nil && p.Root != nil }

// Result is the outcome of one execution.
type Result struct {
	OK      bool
	Action  actions.Action
	Message string
	Steps   int
	// Detail is the internal reason of a fault, kept for the team's log.
	Detail string
}

func (r Result) String() string {
	if r.OK {
		return fmt.Sprintf("%s (%d steps)", r.Action, r.Steps)
	}
	return fmt.Sprintf("%s (%d steps)", r.Message, r.Steps)
}

// Execute evaluates the program once. It never panics and never returns an
// error: every failure ends up in Result.
func (p *Program) Execute(budget int, w blocks.World, actor entity.Actor) (res Result) {
	if !p.Valid() {
		return Result{Message: MsgNotExecutable}
	}
	vars := make(map[string]value.Value, len(p.Vars))
	for name, k := range p.Vars {
		if v, ok := value.Zero(k); ok {
			vars[name] = v
		}
	}
	run := blocks.NewRun(budget, vars, w, actor)
	defer func() {
		if rec := recover(); rec != nil {
			res = Result{Message: MsgFault, Steps: run.Steps, Detail: fmt.Sprint(rec)}
		}
	}()

	act, err := p.Root.Exec(run)
	switch {
	case errors.Is(err, blocks.ErrOutOfSteps):
		return Result{Message: MsgOutOfSteps, Steps: run.Steps}
	case err != nil:
		return Result{Message: MsgFault, Steps: run.Steps, Detail: err.Error()}
	case act == nil:
		return Result{Message: MsgNoAction, Steps: run.Steps}
	}
	return Result{OK: true, Action: *act, Steps: run.Steps}
}

const nopSource = `<xml xmlns="` + blocks.XMLNamespace + `"></xml>`

var nop = &Program{Root: blocks.NewNop(), Vars: map[string]value.Kind{}, Source: nopSource}

// Nop is the stand-in for units whose team has no active program.
func Nop() *Program { return nop }
