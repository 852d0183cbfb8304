package errno

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain errno", ErrWrongPin, 32001},
		{"pointer errno", &ErrRadioDisabled, 31002},
		{"wrapped", fmt.Errorf("%w: node timeout", ErrEstimationFailure), 30001},
		{"double wrapped", fmt.Errorf("send: %w", fmt.Errorf("%w: %w", ErrBroadcastFailure, errors.New("nonce too low"))), 30002},
		{"foreign", errors.New("boom"), InternalServerError.Code},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := Decode(tt.err)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestErrorsIs(t *testing.T) {
	err := fmt.Errorf("%w: %w", ErrNoDeviceConnected, errors.New("open failed twice"))
	assert.True(t, errors.Is(err, ErrNoDeviceConnected))
	assert.False(t, errors.Is(err, ErrRadioDisabled))
}
