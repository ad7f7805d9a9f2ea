package diag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/carina-lang/carina/internal/value"
)

func TestResolveErrorOmitsSpanWhenUnset(t *testing.T) {
	err := UnresolvedReference("main_vpc.bogus", value.Span{})
	assert.NotContains(t, err.Error(), "0:0")
	assert.Contains(t, err.Error(), "unresolved_reference")
}

func TestResolveErrorIncludesSpanWhenSet(t *testing.T) {
	err := UnknownModule("net", value.Span{File: "main.crn", Line: 3, Column: 5})
	assert.Contains(t, err.Error(), "main.crn:3:5")
}

func TestCircularImportJoinsCyclePath(t *testing.T) {
	err := CircularImport([]string{"a", "b", "a"}, value.Span{})
	assert.Contains(t, err.Error(), "a -> b -> a")
}

func TestValidationErrorListsEachDiagnostic(t *testing.T) {
	err := &ValidationError{ResourceKey: "aws.vpc.main", Diagnostics: []string{"x is bad", "y is worse"}}
	msg := err.Error()
	assert.Contains(t, msg, "aws.vpc.main")
	assert.Contains(t, msg, "x is bad")
	assert.Contains(t, msg, "y is worse")
}

func TestProviderErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := &ProviderError{Kind: Transient, Message: "create failed", Cause: cause}
	assert.ErrorIs(t, err, cause)
}

func TestUnsupportedTypeIsPermanentAndNotRetryable(t *testing.T) {
	err := UnsupportedType("aws.bogus")
	assert.Equal(t, Permanent, err.Kind)
	assert.False(t, err.Retryable)
}

func TestTimeoutIsTransientAndRetryable(t *testing.T) {
	err := Timeout("aws.vpc", "create")
	assert.Equal(t, Transient, err.Kind)
	assert.True(t, err.Retryable)
}
