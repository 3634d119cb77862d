package executor

import (
	"fmt"

	"github.com/ozanh/ugo"

	"github.com/weavedoc/textgen/internal/xerrors"
)

// UgoExecutor is the default Executor, backed by github.com/ozanh/ugo's
// embeddable VM. Programs and init codes are plain ugo scripts; a
// program's init codes must each evaluate to a map, which is merged into
// the namespace visible to the next init code and to the program itself.
type UgoExecutor struct{}

// NewUgoExecutor returns the default ugo-backed Executor.
func NewUgoExecutor() *UgoExecutor {
	return &UgoExecutor{}
}

func (u *UgoExecutor) Compile(source string, opts CompileOptions) (Code, error) {
	bc, err := ugo.Compile([]byte(source), ugo.DefaultCompilerOptions)
	if err != nil {
		return Code{}, xerrors.NewParseError(opts.Filename, 0, fragmentOf(source), err.Error())
	}
	return Code{Source: source, Filename: opts.Filename, Compiled: bc}, nil
}

func (u *UgoExecutor) Prepare(init []Code, ns Namespace) (Namespace, error) {
	for _, code := range init {
		raw, err := runCode(code, ns)
		if err != nil {
			return nil, err
		}
		exports, ok := raw.(map[string]interface{})
		if !ok {
			return nil, xerrors.NewValidationError(code.Filename, "init code did not return a mapping of exports")
		}
		for k, v := range exports {
			ns[k] = v
		}
	}
	return ns, nil
}

func (u *UgoExecutor) Run(program Code, ns Namespace) (interface{}, error) {
	return runCode(program, ns)
}

func runCode(code Code, ns Namespace) (interface{}, error) {
	bc, ok := code.Compiled.(*ugo.Bytecode)
	if !ok {
		return nil, xerrors.NewValidationError(code.Filename, fmt.Sprintf("code was not compiled by %T", &UgoExecutor{}))
	}

	globals := make(ugo.Map, len(ns))
	for k, v := range ns {
		obj, err := toUgoObject(k, v)
		if err != nil {
			return nil, xerrors.NewValidationError(code.Filename, fmt.Sprintf("exporting %q to the script runtime: %v", k, err))
		}
		globals[k] = obj
	}

	vm := ugo.NewVM(bc)
	ret, err := vm.Run(globals)
	if err != nil {
		return nil, xerrors.NewIOError("exec", code.Filename, err)
	}
	return ugo.ToInterface(ret), nil
}

// toUgoObject converts a namespace value into a VM object, wrapping the
// environment's capability functions as callables the script can invoke.
func toUgoObject(name string, v interface{}) (ugo.Object, error) {
	switch fn := v.(type) {
	case ugo.Object:
		return fn, nil
	case func(string) string:
		return &ugo.Function{
			Name: name,
			Value: func(args ...ugo.Object) (ugo.Object, error) {
				if len(args) != 1 {
					return nil, ugo.ErrWrongNumArguments.NewError(fmt.Sprintf("%s expects 1 argument, got %d", name, len(args)))
				}
				s, ok := args[0].(ugo.String)
				if !ok {
					return nil, ugo.NewArgumentTypeError("1st", "string", args[0].TypeName())
				}
				return ugo.String(fn(string(s))), nil
			},
		}, nil
	case func(...string) []string:
		return &ugo.Function{
			Name: name,
			Value: func(args ...ugo.Object) (ugo.Object, error) {
				names := make([]string, len(args))
				for i, a := range args {
					s, ok := a.(ugo.String)
					if !ok {
						return nil, ugo.NewArgumentTypeError(fmt.Sprintf("%d", i+1), "string", a.TypeName())
					}
					names[i] = string(s)
				}
				tokens := fn(names...)
				out := make(ugo.Array, len(tokens))
				for i, tok := range tokens {
					out[i] = ugo.String(tok)
				}
				return out, nil
			},
		}, nil
	default:
		return ugo.ToObject(v)
	}
}

func fragmentOf(source string) string {
	const width = 40
	if len(source) <= width {
		return source
	}
	return source[:width] + "…"
}
