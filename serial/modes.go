package serial

import "fmt"

// ParseParity maps a configuration string to a Parity value.
func ParseParity(s string) (Parity, error) {
	switch s {
	case "", "none":
		return ParityNone, nil
	case "odd":
		return ParityOdd, nil
	case "even":
		return ParityEven, nil
	}
	return ParityNone, fmt.Errorf("invalid parity %q, must be one of: none, odd, even", s)
}

// ParseFlowControl maps a configuration string to a FlowControl value.
func ParseFlowControl(s string) (FlowControl, error) {
	switch s {
	case "", "none":
		return FlowNone, nil
	case "software":
		return FlowSoftware, nil
	case "hardware":
		return FlowHardware, nil
	}
	return FlowNone, fmt.Errorf("invalid flow control %q, must be one of: none, software, hardware", s)
}

// ParseTriggerMode maps a configuration string to a TriggerMode value.
func ParseTriggerMode(s string) (TriggerMode, error) {
	switch s {
	case "immediate":
		return TriggerImmediate, nil
	case "", "delay":
		return TriggerDelay, nil
	case "message":
		return TriggerMessage, nil
	}
	return TriggerImmediate, fmt.Errorf("invalid start mode %q, must be one of: immediate, delay, message", s)
}
