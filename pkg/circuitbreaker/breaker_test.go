package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errBoom = errors.New("boom")
var errNotFound = errors.New("not found")

func TestExecute_PassesValueThrough(t *testing.T) {
	b := New(DefaultSettings("test"), zap.NewNop())

	v, err := Execute(b, func() (int, error) { return 42, nil })

	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestExecute_NilPointerResult(t *testing.T) {
	b := New(DefaultSettings("test"), zap.NewNop())

	v, err := Execute(b, func() (*int, error) { return nil, nil })

	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestExecute_TripsAfterConsecutiveFailures(t *testing.T) {
	s := DefaultSettings("test")
	s.ConsecutiveFailures = 2
	s.OpenTimeout = time.Minute
	b := New(s, zap.NewNop())

	calls := 0
	fail := func() (string, error) {
		calls++
		return "", errBoom
	}

	_, err := Execute(b, fail)
	assert.ErrorIs(t, err, errBoom)
	_, err = Execute(b, fail)
	assert.ErrorIs(t, err, errBoom)

	_, err = Execute(b, fail)
	assert.ErrorIs(t, err, ErrOpenState)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "open", b.State())
}

func TestExecute_IsSuccessfulDoesNotTrip(t *testing.T) {
	s := DefaultSettings("test")
	s.ConsecutiveFailures = 1
	s.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, errNotFound)
	}
	b := New(s, zap.NewNop())

	for i := 0; i < 3; i++ {
		_, err := Execute(b, func() (int, error) { return 0, errNotFound })
		assert.ErrorIs(t, err, errNotFound)
	}
	assert.Equal(t, "closed", b.State())
}
