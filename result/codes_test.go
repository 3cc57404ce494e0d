package result

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testOpError uint8

const (
	testOpExhausted = testOpError(Exhausted)
	testOpFinished  = testOpError(Finished)
)

func (e testOpError) Code() Code    { return Code(e) }
func (e testOpError) Error() string { return "test op: " + e.Code().String() }

func TestCodeDiscriminants(t *testing.T) {
	// The numeric values are part of the C ABI.
	tests := []struct {
		code Code
		want uint8
	}{
		{OK, 0},
		{Exhausted, 1},
		{Unaddressable, 3},
		{Fragmented, 8},
		{PacketAssemblerSetKeyNotFound, 18},
		{NotSupported, 19},
		{InvalidState, 20},
		{NameTooLong, 24},
		{Failed, 26},
		{InvalidHandle, 27},
		{BufferInsufficient, 255},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, uint8(tt.code))
		})
	}
}

func TestCodeString(t *testing.T) {
	assert.Equal(t, "OK", OK.String())
	assert.Equal(t, "BufferInsufficient", BufferInsufficient.String())
	assert.Equal(t, "Code(200)", Code(200).String())
	assert.False(t, Code(200).Valid())
}

func TestCodesAscending(t *testing.T) {
	codes := Codes()
	require.Len(t, codes, 29)
	assert.Equal(t, OK, codes[0])
	assert.Equal(t, BufferInsufficient, codes[len(codes)-1])
	for i := 1; i < len(codes); i++ {
		assert.Less(t, codes[i-1], codes[i])
	}
}

func TestOf(t *testing.T) {
	sentinel := New(InvalidHandle, "stale handle")

	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, OK},
		{"sentinel", sentinel, InvalidHandle},
		{"wrapped sentinel", fmt.Errorf("lookup: %w", sentinel), InvalidHandle},
		{"operation error", testOpFinished, Finished},
		{"wrapped operation error", fmt.Errorf("recv: %w", testOpExhausted), Exhausted},
		{"plain error", errors.New("boom"), Failed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Of(tt.err))
		})
	}
}

func TestNewIsComparableByIdentity(t *testing.T) {
	a := New(Pending, "pending")
	b := New(Pending, "pending")
	assert.True(t, errors.Is(fmt.Errorf("x: %w", a), a))
	assert.False(t, errors.Is(a, b))
}

func TestSubsetRoundTrip(t *testing.T) {
	s := NewSubset("test op", testOpExhausted, testOpFinished)
	assert.Equal(t, "test op", s.Name())

	for _, m := range s.Members() {
		got, ok := s.FromCode(m.Code())
		require.True(t, ok)
		assert.Equal(t, m, got)
	}

	_, ok := s.FromCode(OK)
	assert.False(t, ok, "OK is never a member")
	_, ok = s.FromCode(Malformed)
	assert.False(t, ok)
	assert.True(t, s.Contains(Finished))

	narrowed, ok := s.Narrow(fmt.Errorf("wrapped: %w", testOpExhausted))
	require.True(t, ok)
	assert.Equal(t, testOpExhausted, narrowed)
}

func TestSubsetRejectsInvalidMembers(t *testing.T) {
	assert.Panics(t, func() { NewSubset("bad", testOpError(OK)) })
	assert.Panics(t, func() { NewSubset("bad", testOpError(200)) })
}
