package queryengine

import (
	"errors"
	"fmt"
)

// SchemaFileName is the file name schema diagnostics are reported against.
const SchemaFileName = "schema.hcl"

// Engine error messages are host-visible and keep their capitalization.
var (
	ErrAlreadyConnected    = errors.New("Can't modify an already connected engine.")
	ErrNotConnected        = errors.New("Engine is not yet connected.")
	ErrChannelTimeout      = errors.New("Channel timed out")
	ErrChannelDisconnected = errors.New("Channel disconnected")
	ErrNoDatasource        = errors.New("You defined no datasource. You must define exactly one datasource.")
	ErrMultipleDatasources = errors.New("You defined more than one datasource. This is not allowed yet because support for multiple databases has not been implemented yet.")
	ErrUnknownConnector    = errors.New("Unknown connector error")
)

// ErrorKind is the closed set of failure categories the engine reports.
type ErrorKind int

const (
	KindSchemaCompilation ErrorKind = iota + 1
	KindConfiguration
	KindExecutionService
	KindConnector
	KindAlreadyConnected
	KindNotConnected
	KindChannel
	KindJSONDecode
)

var errorKindNames = map[ErrorKind]string{
	KindSchemaCompilation: "SchemaCompilationError",
	KindConfiguration:     "ConfigurationError",
	KindExecutionService:  "ExecutionServiceError",
	KindConnector:         "ConnectorError",
	KindAlreadyConnected:  "AlreadyConnected",
	KindNotConnected:      "NotConnected",
	KindChannel:           "ChannelError",
	KindJSONDecode:        "JsonDecodeError",
}

// AllErrorKinds lists every ErrorKind in declaration order.
func AllErrorKinds() []ErrorKind {
	return []ErrorKind{
		KindSchemaCompilation,
		KindConfiguration,
		KindExecutionService,
		KindConnector,
		KindAlreadyConnected,
		KindNotConnected,
		KindChannel,
		KindJSONDecode,
	}
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Diagnostics is a list of schema problems that can be rendered against the schema source.
type Diagnostics interface {
	error
	ErrorCount() int
	Render(source string) string
}

// UserFacingError is the structured payload of connector and execution failures.
type UserFacingError struct {
	IsPanic   bool           `json:"is_panic"`
	Message   string         `json:"message"`
	Meta      map[string]any `json:"meta,omitempty"`
	ErrorCode string         `json:"error_code,omitempty"`
}

// Error is the single error type every engine operation fails with.
type Error struct {
	Kind ErrorKind

	// Diagnostics and Source are set for KindSchemaCompilation.
	Diagnostics Diagnostics
	Source      string

	// UserFacing is optional for KindConnector and KindExecutionService.
	UserFacing *UserFacingError

	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindSchemaCompilation && e.Diagnostics != nil:
		return e.Diagnostics.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	case e.UserFacing != nil:
		return e.UserFacing.Message
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}

	if e.Diagnostics != nil {
		return e.Diagnostics
	}

	return nil
}

// Pretty renders schema diagnostics against the source together with the error count.
// For every other kind it is the same as Error.
func (e *Error) Pretty() string {
	if e.Kind != KindSchemaCompilation || e.Diagnostics == nil {
		return e.Error()
	}

	return fmt.Sprintf("%s\nValidation Error Count: %d", e.Diagnostics.Render(e.Source), e.Diagnostics.ErrorCount())
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr.Kind, true
	}

	return 0, false
}

// WrapError classifies err as kind unless it already carries a kind of its own.
func WrapError(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}

	var engineErr *Error
	if errors.As(err, &engineErr) {
		return err
	}

	return &Error{Kind: kind, Err: err}
}

func NewSchemaCompilationError(diagnostics Diagnostics, source string) *Error {
	return &Error{Kind: KindSchemaCompilation, Diagnostics: diagnostics, Source: source}
}

func NewConfigurationError(message string) *Error {
	return &Error{Kind: KindConfiguration, Message: message}
}

func NewConfigurationErrorFrom(err error) *Error {
	return &Error{Kind: KindConfiguration, Err: err}
}

func NewExecutionServiceError(err error, userFacing *UserFacingError) *Error {
	return &Error{Kind: KindExecutionService, Err: err, UserFacing: userFacing}
}

func NewConnectorError(err error, userFacing *UserFacingError) *Error {
	if err == nil {
		err = ErrUnknownConnector
	}

	return &Error{Kind: KindConnector, Err: err, UserFacing: userFacing}
}

func NewAlreadyConnectedError() *Error {
	return &Error{Kind: KindAlreadyConnected, Err: ErrAlreadyConnected}
}

func NewNotConnectedError() *Error {
	return &Error{Kind: KindNotConnected, Err: ErrNotConnected}
}

// NewChannelError wraps ErrChannelTimeout or ErrChannelDisconnected.
func NewChannelError(cause error) *Error {
	return &Error{Kind: KindChannel, Err: cause}
}

func NewJSONDecodeError(err error) *Error {
	return &Error{Kind: KindJSONDecode, Err: err}
}

// AsDiagnostics returns the Diagnostics in err's chain, or a single-entry list carrying err's message.
func AsDiagnostics(err error) Diagnostics {
	var diagnostics Diagnostics
	if errors.As(err, &diagnostics) {
		return diagnostics
	}

	return messageDiagnostics{message: err.Error()}
}

type messageDiagnostics struct {
	message string
}

func (d messageDiagnostics) Error() string {
	return d.message
}

func (d messageDiagnostics) ErrorCount() int {
	return 1
}

func (d messageDiagnostics) Render(_ string) string {
	return "Error: " + d.message
}
