package yolink

import "fmt"

// ErrInvalidPlatform defines a trigger which is not a device trigger.
type ErrInvalidPlatform struct {
	Platform string
}

// Error formats output.
func (e *ErrInvalidPlatform) Error() string {
	return fmt.Sprintf("unsupported trigger platform %q", e.Platform)
}

// ErrInvalidDomain defines a device trigger owned by another integration.
type ErrInvalidDomain struct {
	Domain string
}

// Error formats output.
func (e *ErrInvalidDomain) Error() string {
	return fmt.Sprintf("trigger domain %q is not %s", e.Domain, Domain)
}

// ErrDeviceMismatch defines a trigger validated against the wrong device.
type ErrDeviceMismatch struct {
	Expected string
	Actual   string
}

// Error formats output.
func (e *ErrDeviceMismatch) Error() string {
	return fmt.Sprintf("trigger targets device %s, got %s", e.Expected, e.Actual)
}

// ErrUnknownTriggerType defines a trigger type the device model does not offer.
type ErrUnknownTriggerType struct {
	Type  string
	Model string
}

// Error formats output.
func (e *ErrUnknownTriggerType) Error() string {
	return fmt.Sprintf("trigger type %q is not offered by model %q", e.Type, e.Model)
}
