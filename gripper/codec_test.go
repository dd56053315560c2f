package gripper

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMove(t *testing.T) {
	cmd, err := FormatMove(1, 0.75, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "gripper_control 1 0.750 2000", cmd)

	cmd, err = FormatMove(3, 0, 500*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "gripper_control 3 0.000 500", cmd)

	cmd, err = FormatMove(1, 1, 3*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "gripper_control 1 1.000 3000", cmd)
}

func TestFormatMove_RoundTrip(t *testing.T) {
	// The normalized argument must survive formatting at 3 decimal digits.
	for _, v := range []float64{0, 0.001, 0.123, 0.5, 0.6789, 0.999, 1} {
		cmd, err := FormatMove(1, v, 2*time.Second)
		require.NoError(t, err)

		fields := strings.Fields(cmd)
		require.Len(t, fields, 4)

		parsed, err := strconv.ParseFloat(fields[2], 64)
		require.NoError(t, err)
		assert.InDelta(t, v, parsed, 0.0005, "value %v did not round-trip", v)
	}
}

func TestFormatMove_OutOfRange(t *testing.T) {
	for _, v := range []float64{-0.001, -1, 1.001, 2} {
		_, err := FormatMove(1, v, 2*time.Second)
		require.Error(t, err, "value %v should be rejected", v)
		assert.ErrorIs(t, err, ErrValueOutOfRange)
	}
}

func TestFormatQueries(t *testing.T) {
	assert.Equal(t, "servo_status 1", FormatStatusQuery(1))
	assert.Equal(t, "servo_status 12", FormatStatusQuery(12))
	assert.Equal(t, "servo_read_now_position 1", FormatPositionQuery(1))
}

func TestParseStatus(t *testing.T) {
	status, ok := ParseStatus("Servo 1 状态: 角度=123.45°, 温度=35°C, 电压=6.12V")
	require.True(t, ok)
	assert.InDelta(t, 123.45, status.Angle, 1e-9)
	assert.Equal(t, 35, status.Temperature)
	assert.InDelta(t, 6.12, status.Voltage, 1e-9)
}

func TestParseStatus_NoMatch(t *testing.T) {
	for _, line := range []string{
		"",
		"Servo 1 状态: garbled",
		"角度=123.45°",                // position-only line is not a full status
		"GRIPPER_RESULT:0.123",      // move result is not a status
		"温度=35°C, 电压=6.12V, 角度=1.0°", // field order is part of the contract
	} {
		_, ok := ParseStatus(line)
		assert.False(t, ok, "line %q should not parse as status", line)
	}
}

func TestParsePosition(t *testing.T) {
	angle, ok := ParsePosition("Servo 1 实时位置: 角度=123.45°")
	require.True(t, ok)
	assert.InDelta(t, 123.45, angle, 1e-9)

	_, ok = ParsePosition("no angle here")
	assert.False(t, ok)
}

func TestParseMoveResult(t *testing.T) {
	v, ok := ParseMoveResult("GRIPPER_RESULT:0.123")
	require.True(t, ok)
	assert.InDelta(t, 0.123, v, 1e-9)

	_, ok = ParseMoveResult("no result here")
	assert.False(t, ok)

	// Interleaved diagnostic text around the marker still parses.
	v, ok = ParseMoveResult("[info] done GRIPPER_RESULT:0.900 (settled)")
	require.True(t, ok)
	assert.InDelta(t, 0.9, v, 1e-9)
}

func TestIsErrorLine(t *testing.T) {
	assert.True(t, IsErrorLine("ERROR: servo overload"))
	assert.True(t, IsErrorLine("[servo] ERROR: bad arg"))
	assert.False(t, IsErrorLine("all good"))
	assert.False(t, IsErrorLine("GRIPPER_RESULT:0.123"))
}
