package limits

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opd-ai/sionet/result"
)

// TestValidateFrame tests the frame validation function
func TestValidateFrame(t *testing.T) {
	tests := []struct {
		name    string
		frame   []byte
		max     int
		wantErr error
	}{
		{
			name:    "empty frame",
			frame:   []byte{},
			max:     MaxFrameSize,
			wantErr: ErrFrameEmpty,
		},
		{
			name:    "nil frame",
			frame:   nil,
			max:     MaxFrameSize,
			wantErr: ErrFrameEmpty,
		},
		{
			name:    "valid small frame",
			frame:   []byte{0x45, 0x00},
			max:     MaxFrameSize,
			wantErr: nil,
		},
		{
			name:    "valid max-size frame",
			frame:   make([]byte, MaxFrameSize),
			max:     MaxFrameSize,
			wantErr: nil,
		},
		{
			name:    "frame too large",
			frame:   make([]byte, MaxFrameSize+1),
			max:     MaxFrameSize,
			wantErr: ErrFrameTooLarge,
		},
		{
			name:    "custom limit",
			frame:   make([]byte, 1501),
			max:     DefaultMTU,
			wantErr: ErrFrameTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFrame(tt.frame, tt.max)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
		})
	}
}

func TestValidateMTU(t *testing.T) {
	assert.NoError(t, ValidateMTU(MinIPv4MTU))
	assert.NoError(t, ValidateMTU(DefaultMTU))
	assert.NoError(t, ValidateMTU(MaxIPDatagram))
	assert.ErrorIs(t, ValidateMTU(MinIPv4MTU-1), ErrInvalidMTU)
	assert.ErrorIs(t, ValidateMTU(MaxIPDatagram+1), ErrInvalidMTU)
	assert.ErrorIs(t, ValidateMTU(0), ErrInvalidMTU)
}

func TestValidateDestination(t *testing.T) {
	assert.NoError(t, ValidateDestination(10, 10))
	assert.NoError(t, ValidateDestination(11, 10))
	assert.ErrorIs(t, ValidateDestination(9, 10), ErrBufferTooSmall)
}

func TestErrorCodes(t *testing.T) {
	assert.Equal(t, result.Truncated, result.Of(ErrFrameEmpty))
	assert.Equal(t, result.BufferInsufficient, result.Of(ValidateFrame(make([]byte, 3), 2)))
	assert.Equal(t, result.BufferInsufficient, result.Of(ValidateDestination(0, 1)))
	assert.Equal(t, result.Illegal, result.Of(ValidateMTU(1)))
}

// TestConstantConsistency verifies internal consistency of the size constants
func TestConstantConsistency(t *testing.T) {
	assert.Equal(t, MaxIPDatagram+EthernetHeaderSize, MaxFrameSize)
	assert.Less(t, MinIPv4MTU, DefaultMTU)
	assert.Less(t, DefaultMTU, MaxIPDatagram)
	// 60-byte maximum header plus one fragment block.
	assert.Equal(t, 60+8, MinIPv4MTU)
}
