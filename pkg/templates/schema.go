// Package templates loads declarative, parameterized animation templates
// and expands a play(name, params) call into concrete tween actions
// queued on the action scheduler. Grounded on
// vts_model_control/schemas/preformed_animation.py and
// vts_model_control/services/animation_player.py.
package templates

// ParamDef is one externally-supplied parameter a template declares. Only
// numeric defaults participate in expression evaluation; a "str"-typed
// parameter may still be declared (and is echoed back by List for
// documentation purposes) but cannot be referenced from an expression or
// random-range node, since every consumer of a resolved context
// (tween target/duration/delay) is numeric.
type ParamDef struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Type        string   `json:"type,omitempty"` // "float" | "int" | "str", default "float"
	Default     *float64 `json:"default,omitempty"`
}

// ActionTemplate is one entry in a template's action list, with every
// numeric field expressed as a Value node (literal, random range, or
// expression) rather than a fixed number.
type ActionTemplate struct {
	Parameter string `json:"parameter"`
	From      *Value `json:"from,omitempty"`
	To        Value  `json:"to"`
	Duration  Value  `json:"duration"`
	Easing    string `json:"easing,omitempty"`
	Delay     Value  `json:"delay,omitempty"`
}

// TemplateData is a template file's "data" section.
type TemplateData struct {
	Description string            `json:"description,omitempty"`
	Params      []ParamDef        `json:"params,omitempty"`
	Variables   map[string]Value  `json:"variables,omitempty"`
	Actions     []ActionTemplate  `json:"actions"`
}

// Template is one loaded *.jsonc file's parsed content, keyed by Name.
type Template struct {
	Name string        `json:"name"`
	Type string        `json:"type"` // always "animation"
	Data TemplateData  `json:"data"`
}

// Info is the summary shape returned by list_preformed_animations.
type Info struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Params      []ParamDef `json:"params,omitempty"`
}
