package macro

import "fmt"

// MissingError reports a required constant that no line defines.
type MissingError struct {
	Name   string
	Source string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%s: required macro %s is not defined", e.Source, e.Name)
}

// InvalidError reports a constant whose value cannot be converted.
type InvalidError struct {
	Name   string
	Source string
	Raw    string
	Err    error
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("%s: macro %s has non-integer value %q: %v",
		e.Source, e.Name, e.Raw, e.Err)
}

func (e *InvalidError) Unwrap() error {
	return e.Err
}
