package currency

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Code
		wantErr bool
	}{
		{name: "upper case", input: "USD", want: USD},
		{name: "lower case is normalized", input: "idr", want: IDR},
		{name: "surrounding spaces", input: " eur ", want: EUR},
		{name: "too short", input: "US", wantErr: true},
		{name: "digits", input: "U5D", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCode(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCode_DoesNotAliasInput(t *testing.T) {
	buf := []byte("EUR")
	got, err := ParseCode(unsafe.String(&buf[0], len(buf)))
	require.NoError(t, err)

	copy(buf, "JPY")
	assert.Equal(t, EUR, got)
}

func TestNewPair(t *testing.T) {
	p, err := NewPair("eur", "IDR")
	require.NoError(t, err)
	assert.Equal(t, Pair{Source: EUR, Target: IDR}, p)
	assert.Equal(t, "EUR/IDR", p.String())
	assert.False(t, p.IsZero())

	_, err = NewPair("EUR", "rupiah")
	assert.ErrorIs(t, err, ErrInvalidCode)

	assert.True(t, Pair{}.IsZero())
}
