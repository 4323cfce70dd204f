package lifecycle

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/me/qcal/pkg/model"
)

// evalAccept evaluates a JavaScript acceptance expression against the raw
// result parameters, exposed to the script as "result". A malformed or
// non-boolean expression is a ConfigurationError; a false verdict is an
// AcceptanceError. Each call gets a fresh runtime so flows cannot leak state
// into each other.
func evalAccept(expr string, result map[string]any) error {
	vm := goja.New()
	if err := vm.Set("result", result); err != nil {
		return &model.ConfigurationError{Msg: fmt.Sprintf("acceptance expression setup: %v", err)}
	}

	val, err := vm.RunString(expr)
	if err != nil {
		return &model.ConfigurationError{Msg: fmt.Sprintf("acceptance expression %q: %v", expr, err)}
	}

	ok, isBool := val.Export().(bool)
	if !isBool {
		return &model.ConfigurationError{Msg: fmt.Sprintf("acceptance expression %q returned %T, want boolean", expr, val.Export())}
	}
	if !ok {
		return &model.AcceptanceError{Expr: expr}
	}
	return nil
}
