package telephony

import "strconv"

// ResultCode is the outcome the radio reports for one submitted part.
type ResultCode int

const (
	ResultOK                  ResultCode = -1
	ResultErrorGenericFailure ResultCode = 1
	ResultErrorRadioOff       ResultCode = 2
	ResultErrorNullPDU        ResultCode = 3
	ResultErrorNoService      ResultCode = 4
)

func (c ResultCode) String() string {
	switch c {
	case ResultOK:
		return "ok"
	case ResultErrorGenericFailure:
		return "generic-failure"
	case ResultErrorRadioOff:
		return "radio-off"
	case ResultErrorNullPDU:
		return "null-pdu"
	case ResultErrorNoService:
		return "no-service"
	default:
		return "result(" + strconv.Itoa(int(c)) + ")"
	}
}

// PendingIntent identifies the receivers to notify once a part has been
// handed to the radio.
type PendingIntent struct {
	Action string
}

// Intent is the broadcast delivered to receivers registered for Action.
type Intent struct {
	Action     string
	ResultCode ResultCode
	// PartIndex is the zero-based index of the part within its message.
	PartIndex int
	// MessageRef is the reference assigned by the network, zero on failure.
	MessageRef int
}
