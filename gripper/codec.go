package gripper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Command names understood by the gripper firmware.
const (
	cmdGripperControl = "gripper_control"
	cmdServoStatus    = "servo_status"
	cmdServoPosition  = "servo_read_now_position"
	cmdHelp           = "help"
)

// Reply markers. The protocol is best-effort text: replies are classified by
// substring, not by a grammar. The label text is locale-specific firmware
// output; the numeric fields and their order are the contract.
const (
	markerStatus     = "状态:"
	markerPosition   = "实时位置:"
	markerMoveResult = "GRIPPER_RESULT:"
	markerError      = "ERROR:"
	markerHelp       = "Available commands:"
)

var (
	// e.g. "Servo 1 状态: 角度=123.45°, 温度=35°C, 电压=6.12V"
	statusPattern = regexp.MustCompile(`角度=([0-9.]+)°.*温度=([0-9]+)°C.*电压=([0-9.]+)V`)

	// e.g. "Servo 1 实时位置: 角度=123.45°"
	positionPattern = regexp.MustCompile(`角度=([0-9.]+)°`)

	// e.g. "GRIPPER_RESULT:0.123"
	moveResultPattern = regexp.MustCompile(`GRIPPER_RESULT:([0-9.]+)`)
)

// ServoStatus is a parsed servo status reply.
type ServoStatus struct {
	// Angle is the servo angle in degrees.
	Angle float64
	// Temperature is the servo temperature in degrees Celsius.
	Temperature int
	// Voltage is the servo supply voltage in volts.
	Voltage float64
}

func (s ServoStatus) String() string {
	return fmt.Sprintf("angle=%.2f° temp=%d°C voltage=%.2fV", s.Angle, s.Temperature, s.Voltage)
}

// FormatMove formats a gripper move command for the given servo.
//
// v is the normalized target position in [0, 1] (0 = fully open, 1 = fully
// closed), formatted at 3 decimal digits. It returns ErrValueOutOfRange for
// values outside [0, 1].
func FormatMove(servoID int, v float64, moveTime time.Duration) (string, error) {
	if v < 0.0 || v > 1.0 {
		return "", fmt.Errorf("%w: %v", ErrValueOutOfRange, v)
	}

	return fmt.Sprintf("%s %d %.3f %d", cmdGripperControl, servoID, v, moveTime.Milliseconds()), nil
}

// FormatStatusQuery formats a servo status query.
func FormatStatusQuery(servoID int) string {
	return fmt.Sprintf("%s %d", cmdServoStatus, servoID)
}

// FormatPositionQuery formats a servo position query.
func FormatPositionQuery(servoID int) string {
	return fmt.Sprintf("%s %d", cmdServoPosition, servoID)
}

// ParseStatus extracts angle, temperature and voltage from a status reply
// line. It returns ok == false when the line is not a parseable status
// reply; malformed lines are never an error, the caller just keeps scanning.
func ParseStatus(line string) (ServoStatus, bool) {
	m := statusPattern.FindStringSubmatch(line)
	if m == nil {
		return ServoStatus{}, false
	}

	angle, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return ServoStatus{}, false
	}

	temp, err := strconv.Atoi(m[2])
	if err != nil {
		return ServoStatus{}, false
	}

	voltage, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return ServoStatus{}, false
	}

	return ServoStatus{Angle: angle, Temperature: temp, Voltage: voltage}, true
}

// ParsePosition extracts the servo angle in degrees from a position reply
// line. It returns ok == false when the line doesn't carry an angle.
func ParsePosition(line string) (float64, bool) {
	m := positionPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}

	angle, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}

	return angle, true
}

// ParseMoveResult extracts the actual normalized position from a move result
// line. It returns ok == false when the line is not a move result.
func ParseMoveResult(line string) (float64, bool) {
	m := moveResultPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}

	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

// IsErrorLine reports whether the line is a firmware error reply.
func IsErrorLine(line string) bool {
	return strings.Contains(line, markerError)
}

// matchMarker returns a MatchFunc accepting lines containing marker.
func matchMarker(marker string) MatchFunc {
	return func(line string) bool {
		return strings.Contains(line, marker)
	}
}
