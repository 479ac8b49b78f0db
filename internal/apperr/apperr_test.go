package apperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrappedErrorsClassifyCorrectly(t *testing.T) {
	require.True(t, IsBadRequest(BadRequest("invalid range")))
	require.True(t, IsUnavailable(Unavailable("bridge b1", errors.New("dial tcp: refused"))))
	require.True(t, IsTransient(Transient("sse read", errors.New("EOF"))))
	require.True(t, IsFatalSession(FatalSession("open device", errors.New("no such device"))))
}

func TestClassificationsAreMutuallyExclusive(t *testing.T) {
	err := Unavailable("bridge offline", nil)
	require.False(t, IsBadRequest(err))
	require.False(t, IsTransient(err))
	require.False(t, IsFatalSession(err))
}

func TestUnavailablePreservesUnderlyingChain(t *testing.T) {
	root := errors.New("dial tcp: connection refused")
	err := Unavailable("bridge b1", root)
	require.ErrorIs(t, err, root)
	require.ErrorIs(t, err, ErrUnavailable)
}
