// Package condition compiles CEL predicates over tuples.
//
// A predicate sees the tuple as the list variable `t` and its arity as `arity`, e.g.
// `t[0] != t[1]` or `arity == 3 && t[2] > 100`.
package condition

import (
	"fmt"
	"reflect"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common"

	"github.com/tupleflow/tupleflow/pkg/tuple"
)

const (
	tupleVariable = "t"
	arityVariable = "arity"
)

var celBaseEnv *cel.Env

func init() {
	env, err := cel.NewEnv(
		cel.Variable(tupleVariable, cel.ListType(cel.IntType)),
		cel.Variable(arityVariable, cel.IntType),
		cel.EagerlyValidateDeclarations(true),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to construct CEL base env: %v", err))
	}

	celBaseEnv = env
}

// Predicate is a compiled boolean expression over one tuple. It is safe for concurrent use.
type Predicate struct {
	name       string
	expression string
	program    cel.Program
}

// Compile validates and compiles expression. name is used in error messages only.
func Compile(name, expression string) (*Predicate, error) {
	source := common.NewStringSource(expression, name)
	ast, issues := celBaseEnv.CompileSource(source)
	if issues != nil {
		if err := issues.Err(); err != nil {
			return nil, &CompilationError{Predicate: name, Cause: err}
		}
	}

	if !reflect.DeepEqual(ast.OutputType(), cel.BoolType) {
		return nil, &CompilationError{
			Predicate: name,
			Cause:     fmt.Errorf("expected a bool predicate output, but got '%s'", ast.OutputType()),
		}
	}

	prg, err := celBaseEnv.Program(ast)
	if err != nil {
		return nil, &CompilationError{
			Predicate: name,
			Cause:     fmt.Errorf("predicate construction: %w", err),
		}
	}

	return &Predicate{name: name, expression: expression, program: prg}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(name, expression string) *Predicate {
	p, err := Compile(name, expression)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Predicate) Name() string {
	return p.name
}

func (p *Predicate) Expression() string {
	return p.expression
}

// Evaluate reports whether t satisfies the predicate. Runtime failures such as an index
// out of range are returned as errors matching ErrEvaluationFailed.
func (p *Predicate) Evaluate(t tuple.Tuple) (bool, error) {
	out, _, err := p.program.Eval(map[string]any{
		tupleVariable: t.Elements(),
		arityVariable: int64(t.Size()),
	})
	if err != nil {
		return false, NewEvaluationError(p.name, err)
	}

	met, err := out.ConvertToNative(reflect.TypeOf(false))
	if err != nil {
		return false, NewEvaluationError(p.name, fmt.Errorf("failed to convert predicate output to bool: %v", err))
	}

	ok, isBool := met.(bool)
	if !isBool {
		return false, NewEvaluationError(p.name, fmt.Errorf("expected CEL type conversion to return native Go bool"))
	}
	return ok, nil
}
