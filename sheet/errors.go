package sheet

import (
	"fmt"
	"strings"
)

// UnknownSettingError is returned for a setting name outside the closed set.
type UnknownSettingError struct {
	Name string
}

func (e *UnknownSettingError) Error() string {
	return fmt.Sprintf("unknown setting %q", e.Name)
}

// InvalidValueError is returned when a setting value is not accepted. The
// message lists the accepted values.
type InvalidValueError struct {
	Setting SettingName
	Value   string
	Allowed []string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("%q is not a valid %s. Available: %s", e.Value, e.Setting, strings.Join(e.Allowed, ", "))
}

// SetupError means the channel's spreadsheet could not be resolved or created.
type SetupError struct {
	Channel string
	Op      string
	Err     error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("sheet setup for %s: %s: %v", e.Channel, e.Op, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// PartialClearError means the worksheets were cleared but the header could
// not be written back; they stay headerless until the next header write.
type PartialClearError struct {
	Channel string
	Err     error
}

func (e *PartialClearError) Error() string {
	return fmt.Sprintf("sheet %s cleared but header not restored: %v", e.Channel, e.Err)
}

func (e *PartialClearError) Unwrap() error { return e.Err }
