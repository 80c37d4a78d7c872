package types

import "fmt"

// ConfigurationError reports a sensor kind or conversion name with no entry
// in the conversion table, or a session key that does not name a single
// directory below the output root.
type ConfigurationError struct {
	Kind       SensorKind
	Conversion string
	Session    string
}

func (e *ConfigurationError) Error() string {
	if e.Session != "" || (e.Kind == "" && e.Conversion == "") {
		return fmt.Sprintf("configuration: invalid session key %q", e.Session)
	}
	if e.Conversion != "" {
		return fmt.Sprintf("configuration: unknown conversion %q for sensor kind %q", e.Conversion, e.Kind)
	}
	return fmt.Sprintf("configuration: no conversion for sensor kind %q", e.Kind)
}

// DecodeError reports an image that could not be read or converted.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("decode: %v", e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// FilesystemError reports a failed mkdir, write or listing.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}
