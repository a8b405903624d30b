package instrument

import "fmt"

// ConfigError is returned when an instrument configuration is invalid
type ConfigError struct {
	msg string
}

func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string {
	return e.msg
}

// ReplyError is returned when an instrument answers a query with something that cannot be parsed
type ReplyError struct {
	Command string
	Reply   string
	Err     error
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("unexpected reply %q to %q: %v", e.Reply, e.Command, e.Err)
}

func (e *ReplyError) Unwrap() error {
	return e.Err
}
