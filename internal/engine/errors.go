package engine

import "fmt"

// UnsupportedIntentError reports a plan whose intent the engine cannot
// dispatch. "unknown" plans are routed away upstream; if one arrives
// anyway it fails here rather than degrading.
type UnsupportedIntentError struct {
	Intent string
}

func (e *UnsupportedIntentError) Error() string {
	return fmt.Sprintf("unsupported intent %q", e.Intent)
}

// MissingParameterError reports an intent-specific required field absent
// from the plan at execution time.
type MissingParameterError struct {
	Param   string
	Context string
}

func (e *MissingParameterError) Error() string {
	if e.Context == "" {
		return fmt.Sprintf("missing required parameter %s", e.Param)
	}
	return fmt.Sprintf("missing required parameter %s (%s)", e.Param, e.Context)
}
