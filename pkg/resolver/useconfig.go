package resolver

import "fmt"

// UseState is the resolved value of one USE flag.
type UseState int

const (
	// UseDisabled is the value of any flag not listed in the config.
	UseDisabled UseState = iota
	UseEnabled
	// UseSolverDecided leaves the flag's value to the solving engine. A
	// conditional referencing such a flag becomes a choice instead of being
	// expanded eagerly.
	UseSolverDecided
)

// UseConfig maps flag names to their resolved state. A nil config treats
// every flag as disabled.
type UseConfig map[string]UseState

// State returns the configured state of a flag. Unlisted flags are
// disabled.
func (c UseConfig) State(flag string) UseState {
	return c[flag]
}

// AmbiguousUseError is returned in strict mode when a conditional names a
// flag whose value is left to the engine.
type AmbiguousUseError struct {
	Flag string
}

func (e AmbiguousUseError) Error() string {
	return fmt.Sprintf("USE flag %q has no fixed value", e.Flag)
}
