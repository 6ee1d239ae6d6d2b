package httpresponse

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/form3tech-oss/pact-engine/internal/app/engine"
)

func TestFromErrorClassifiesEngineErrors(t *testing.T) {
	e := FromError("unable to generate", &engine.MissingProviderStateError{Expression: "userId"})
	assert.Equal(t, "missing_provider_state", e.Kind)
	assert.Contains(t, e.ErrorMessage, "unable to generate")
	assert.Contains(t, e.ErrorMessage, "userId")

	e = FromError("unable to generate", errors.Wrap(engine.ErrNoMockServer, "resolve"))
	assert.Equal(t, "no_mock_server", e.Kind)

	e = FromError("unable to match", &engine.MalformedSpecError{Kind: "regex", Reason: "empty pattern"})
	assert.Equal(t, "malformed_spec", e.Kind)
}

func TestFromErrorLeavesUnknownErrorsUnclassified(t *testing.T) {
	e := FromError("unable to match", errors.New("boom"))
	assert.Equal(t, "", e.Kind)
	assert.Equal(t, "unable to match. boom", e.ErrorMessage)
}
