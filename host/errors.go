package host

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine"
)

// ErrorType is the category a host sees.
type ErrorType string

const (
	EngineError           ErrorType = "EngineError"
	JSONError             ErrorType = "JSONError"
	ChannelError          ErrorType = "ChannelError"
	NotConnectedError     ErrorType = "NotConnectedError"
	ConfigurationError    ErrorType = "ConfigurationError"
	AlreadyConnectedError ErrorType = "AlreadyConnectedError"
)

// HostError is the only error type returned by this package.
type HostError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *HostError) Error() string {
	return e.Message
}

func (e *HostError) Unwrap() error {
	return e.Cause
}

// errorTypes must map every queryengine.ErrorKind.
var errorTypes = map[queryengine.ErrorKind]ErrorType{
	queryengine.KindSchemaCompilation: ConfigurationError,
	queryengine.KindConfiguration:     ConfigurationError,
	queryengine.KindExecutionService:  EngineError,
	queryengine.KindConnector:         EngineError,
	queryengine.KindAlreadyConnected:  AlreadyConnectedError,
	queryengine.KindNotConnected:      NotConnectedError,
	queryengine.KindChannel:           ChannelError,
	queryengine.KindJSONDecode:        JSONError,
}

func init() {
	for _, kind := range queryengine.AllErrorKinds() {
		if _, ok := errorTypes[kind]; !ok {
			panic(fmt.Sprintf("host: no error type for %s", kind))
		}
	}
}

// ErrorTypeOf returns the host error type of kind.
func ErrorTypeOf(kind queryengine.ErrorKind) ErrorType {
	return errorTypes[kind]
}

// ToHostError maps err to a *HostError. Errors that are not engine errors become EngineError.
//
// Schema compilation errors carry the pretty printed diagnostics, connector and execution service
// errors the JSON encoded user-facing error if there is one.
func ToHostError(err error) error {
	if err == nil {
		return nil
	}

	var hostErr *HostError
	if errors.As(err, &hostErr) {
		return hostErr
	}

	var engineErr *queryengine.Error
	if !errors.As(err, &engineErr) {
		return &HostError{Type: EngineError, Message: err.Error(), Cause: err}
	}

	return &HostError{
		Type:    errorTypes[engineErr.Kind],
		Message: hostMessage(engineErr),
		Cause:   err,
	}
}

func hostMessage(err *queryengine.Error) string {
	switch err.Kind {
	case queryengine.KindSchemaCompilation:
		return err.Pretty()

	case queryengine.KindConnector:
		if err.UserFacing == nil {
			return queryengine.ErrUnknownConnector.Error()
		}

		return userFacingJSON(err)

	case queryengine.KindExecutionService:
		if err.UserFacing == nil {
			return err.Error()
		}

		return userFacingJSON(err)

	default:
		return err.Error()
	}
}

func userFacingJSON(err *queryengine.Error) string {
	encoded, marshalErr := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalToString(err.UserFacing)
	if marshalErr != nil {
		return err.Error()
	}

	return encoded
}
