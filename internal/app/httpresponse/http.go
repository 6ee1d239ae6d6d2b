package httpresponse

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/form3tech-oss/pact-engine/internal/app/engine"
)

// APIError is the JSON error body of the engine API. Kind carries the engine
// error classification when one applies, so callers can branch without
// parsing the message.
type APIError struct {
	ErrorMessage string `json:"error_message"`
	Kind         string `json:"kind,omitempty"`
}

func Error(error string) *APIError {
	log.Error(error)
	e := &APIError{
		ErrorMessage: error,
	}
	return e
}

func Errorf(error string, a ...interface{}) *APIError {
	return Error(fmt.Sprintf(error, a...))
}

// FromError builds an error body from an engine error, classifying the
// known error types.
func FromError(context string, err error) *APIError {
	e := Errorf("%s. %s", context, err.Error())
	e.Kind = classify(err)
	return e
}

func classify(err error) string {
	var (
		unsupportedType      *engine.UnsupportedTypeError
		unsupportedMatcher   *engine.UnsupportedMatcherError
		unsupportedGenerator *engine.UnsupportedGeneratorError
		malformed            *engine.MalformedSpecError
		missingState         *engine.MissingProviderStateError
	)
	switch {
	case errors.As(err, &unsupportedType):
		return "unsupported_type"
	case errors.As(err, &unsupportedMatcher):
		return "unsupported_matcher"
	case errors.As(err, &unsupportedGenerator):
		return "unsupported_generator"
	case errors.As(err, &malformed):
		return "malformed_spec"
	case errors.As(err, &missingState):
		return "missing_provider_state"
	case errors.Is(err, engine.ErrNoMockServer):
		return "no_mock_server"
	}
	return ""
}
