package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_ErrorString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "queue down", StoreUnavailable("queue down").Error())

	wrapped := Wrap(errors.New("dial tcp: refused"), ErrCodeStoreUnavailable, "enqueue notification")
	assert.Equal(t, "enqueue notification: dial tcp: refused", wrapped.Error())
}

func TestWrap_PreservesCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("dial tcp: refused")
	err := Wrap(cause, ErrCodeStoreUnavailable, "enqueue notification")

	require.NotNil(t, err)
	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsStoreUnavailable(err))
	assert.Equal(t, ErrCodeStoreUnavailable, GetCode(err))
}

func TestWrap_NilErrorIsNil(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Wrap(nil, ErrCodeInternal, "nothing"))
	assert.Nil(t, Wrapf(nil, ErrCodeInternal, "nothing %d", 1))
}

func TestCodePredicates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{name: "store unavailable", err: StoreUnavailablef("store %s down", "redis"), check: IsStoreUnavailable},
		{name: "delivery failure", err: DeliveryFailure("smtp bounce"), check: IsDeliveryFailure},
		{name: "permanent failure", err: PermanentFailure("budget exhausted"), check: IsPermanentFailure},
		{name: "validation", err: Validationf("field %q missing", "to"), check: IsValidation},
		{name: "internal", err: Internal("unexpected state"), check: func(err error) bool {
			return GetCode(err) == ErrCodeInternal
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.True(t, tt.check(tt.err))
			assert.False(t, IsTimeout(tt.err) && tt.name != "timeout")
		})
	}
}

func TestCodePredicates_ThroughWrappingChain(t *testing.T) {
	t.Parallel()

	inner := Validation("recipient is required")
	outer := fmt.Errorf("handle request: %w", inner)

	assert.True(t, IsValidation(outer))
	assert.Equal(t, ErrCodeValidation, GetCode(outer))
	assert.False(t, IsStoreUnavailable(outer))
}

func TestGetCode_NonAppError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ErrorCode(""), GetCode(errors.New("plain")))
	assert.False(t, IsValidation(errors.New("plain")))
}
