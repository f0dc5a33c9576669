package wms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCommand(t *testing.T) {
	t.Run("encodes a put command", func(t *testing.T) {
		cmd, err := EncodeCommand(7, MethodPut, 3, 12, 0, "B000000005")
		require.NoError(t, err)
		assert.Equal(t, "0007003120B000000005", cmd)
		assert.Len(t, cmd, CommandLength)
	})

	t.Run("encodes a pick command", func(t *testing.T) {
		cmd, err := EncodeCommand(42, MethodPick, 10, 1, 3, "B999999999")
		require.NoError(t, err)
		assert.Equal(t, "0042110013B999999999", cmd)
	})

	t.Run("sequence id wraps at 10000", func(t *testing.T) {
		cmd, err := EncodeCommand(10007, MethodPut, 1, 1, 0, "B000000001")
		require.NoError(t, err)
		assert.Equal(t, "0007", cmd[:4])
	})

	t.Run("rejects field overflow instead of mis-sizing", func(t *testing.T) {
		cases := []struct {
			name          string
			seq, x, y, z  int
			method        Method
			basket        string
		}{
			{"column 100", 1, 100, 1, 0, MethodPut, "B000000001"},
			{"row 100", 1, 1, 100, 0, MethodPut, "B000000001"},
			{"depth 10", 1, 1, 1, 10, MethodPut, "B000000001"},
			{"negative column", 1, -1, 1, 0, MethodPut, "B000000001"},
			{"negative sequence", -1, 1, 1, 0, MethodPut, "B000000001"},
			{"short basket", 1, 1, 1, 0, MethodPut, "B00000001"},
			{"unnormalized basket", 1, 1, 1, 0, MethodPut, "b000000001"},
			{"unknown method", 1, 1, 1, 0, Method("MOVE"), "B000000001"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := EncodeCommand(tc.seq, tc.method, tc.x, tc.y, tc.z, tc.basket)
				assert.Error(t, err)
			})
		}
	})
}

func TestMethodDigit(t *testing.T) {
	d, err := MethodPut.Digit()
	require.NoError(t, err)
	assert.Equal(t, "0", d)

	d, err = MethodPick.Digit()
	require.NoError(t, err)
	assert.Equal(t, "1", d)

	_, err = Method("").Digit()
	assert.Error(t, err)
}
