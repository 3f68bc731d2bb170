package rule

import (
	"fmt"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// DynEvaluator runs the dynamic half of the {Static, Dynamic} attribute sum
// type (spec §9) with an embedded scripting runtime, standing in for the
// out-of-scope Python attribute evaluation the original system embeds.
// Grounded on the teacher's internal/autopoiesis/yaegi_executor.go pattern:
// one yaegi interpreter, stdlib-only symbol table, a well-known entry
// point evaluated per call.
//
// A dynamic cmd/resources/env attribute is authored as a Go function body:
//
//	func Eval(stems map[string]string, matches []string, deps []string) (string, error) { ... }
//
// which is evaluated once per job with that job's resolved stems/matches/
// deps bound, producing the attribute's final string value (a command
// line, a resource-expression, or an environment assignment list).
type DynEvaluator struct{}

// NewDynEvaluator returns a ready-to-use evaluator. It holds no state: each
// Eval call gets a fresh interpreter so one rule's dynamic attribute can
// never leak mutable state into another's (spec §9 "Global mutable state"
// is explicitly process-wide only for the rule *table*, not for per-call
// scripting state).
func NewDynEvaluator() *DynEvaluator { return &DynEvaluator{} }

// Eval interprets callable.Source, binding stems/matches/deps, and returns
// the attribute's computed string value.
func (e *DynEvaluator) Eval(callable DynCallable, stems map[string]string, matches, deps []string) (string, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return "", fmt.Errorf("rule: dynattr: load stdlib: %w", err)
	}

	src := "package main\n\n" + callable.Source
	if _, err := i.Eval(src); err != nil {
		return "", fmt.Errorf("rule: dynattr: compile: %w", err)
	}

	v, err := i.Eval("main.Eval")
	if err != nil {
		return "", fmt.Errorf("rule: dynattr: missing func Eval: %w", err)
	}
	fn, ok := v.Interface().(func(map[string]string, []string, []string) (string, error))
	if !ok {
		return "", fmt.Errorf("rule: dynattr: Eval has wrong signature")
	}
	return fn(stems, matches, deps)
}
