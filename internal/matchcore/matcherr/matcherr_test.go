package matcherr

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassOf(t *testing.T) {
	assert.Equal(t, ClassValidation, ClassOf(Validation("missing id")))
	assert.Equal(t, ClassInternal, ClassOf(errors.New("boom")))
	assert.Equal(t, Class(""), ClassOf(nil))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(Transient(errors.New("conn reset"))))
	assert.False(t, IsRetryable(Validation("bad input")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestCircuitOpenCarriesRetryAfter(t *testing.T) {
	err := CircuitOpen("geo", 5*time.Second)
	assert.Equal(t, ClassCircuitOpen, err.Class)
	assert.Equal(t, 5*time.Second, err.RetryAfter)
	assert.True(t, err.Retryable)
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("upstream 503")
	err := Transient(cause)
	assert.True(t, errors.Is(err, cause))
}

func TestAs(t *testing.T) {
	var target *Error
	assert.True(t, As(NotFound("candidate %s", "c1"), &target))
	assert.Equal(t, ClassNotFound, target.Class)
}
