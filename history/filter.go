package history

import (
	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/teranos/lathe/errors"
	"github.com/teranos/lathe/feature"
)

// filterFields names the variables available to filter expressions.
const filterFields = "index, id, kind, name, detail, component_id, depth, suppressed, suppressible, rolled_back, active"

// Filter returns the rows of Features for which expression evaluates to true.
//
// Example expressions:
//
//	kind == "sketch" && !suppressed
//	rolled_back || depth > 0
//	name startsWith "Bracket"
func (h *History) Filter(expression string) ([]feature.View, error) {
	program, err := CompileFilter(expression)
	if err != nil {
		return nil, err
	}
	var out []feature.View
	for _, row := range h.Features() {
		ok, err := matchFilter(program, row)
		if err != nil {
			return nil, errors.Wrapf(err, "evaluate filter %q on feature %q", expression, row.ID)
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}

// CompileFilter type-checks a boolean filter expression against the view fields.
func CompileFilter(expression string) (*exprvm.Program, error) {
	if expression == "" {
		return nil, errors.WithHint(errors.New("filter expression must not be empty"), "fields: "+filterFields)
	}
	program, err := exprlang.Compile(expression,
		exprlang.Env(filterEnv(feature.View{})),
		exprlang.AsBool(),
	)
	if err != nil {
		return nil, errors.WithHint(errors.Wrapf(err, "compile filter %q", expression), "fields: "+filterFields)
	}
	return program, nil
}

func matchFilter(program *exprvm.Program, row feature.View) (bool, error) {
	result, err := exprlang.Run(program, filterEnv(row))
	if err != nil {
		return false, err
	}
	ok, _ := result.(bool)
	return ok, nil
}

// filterEnv exposes a view row with plain types so string comparisons
// against literals behave as expected.
func filterEnv(v feature.View) map[string]any {
	return map[string]any{
		"index":        v.Index,
		"id":           v.ID,
		"kind":         string(v.Kind),
		"name":         v.Name,
		"detail":       v.Detail,
		"component_id": v.ComponentID,
		"depth":        v.Depth,
		"suppressed":   v.Suppressed,
		"suppressible": v.Suppressible,
		"rolled_back":  v.RolledBack,
		"active":       v.Active,
	}
}
