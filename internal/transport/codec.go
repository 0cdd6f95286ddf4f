// Package transport implements the OCPP-J wire codec and the WebSocket
// client that carries it to a Central System.
package transport

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/libmcu/ocpp-go/internal/ocppmsg"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// OCPP-J message type ids, per the OCPP 1.6 transport spec.
const (
	frameTypeCall       = 2
	frameTypeCallResult = 3
	frameTypeCallError  = 4
)

// ErrMalformedFrame is returned by Decode when the buffer is not a
// well-formed OCPP-J array frame.
var ErrMalformedFrame = errors.New("transport: malformed OCPP-J frame")

// Frame is the decoded form of a single OCPP-J array: [2,id,action,payload],
// [3,id,payload], or [4,id,errorCode,errorDescription,details].
type Frame struct {
	MessageTypeID int
	ID            string
	Action        string
	ErrorCode     string
	ErrorDesc     string
	Payload       []byte
}

// Encode serializes an engine.Message into its OCPP-J wire frame.
func Encode(role ocppmsg.Role, id string, typ ocppmsg.Type, payload []byte) ([]byte, error) {
	var raw []byte
	if len(payload) == 0 {
		raw = []byte("{}")
	} else {
		raw = payload
	}

	switch role {
	case ocppmsg.Call:
		return json.Marshal([]interface{}{frameTypeCall, id, typ.String(), jsoniter.RawMessage(raw)})
	case ocppmsg.CallResult:
		return json.Marshal([]interface{}{frameTypeCallResult, id, jsoniter.RawMessage(raw)})
	case ocppmsg.CallError:
		return json.Marshal([]interface{}{frameTypeCallError, id, "InternalError", "", jsoniter.RawMessage(raw)})
	default:
		return nil, fmt.Errorf("transport: encode: %w: role %s", ErrMalformedFrame, role)
	}
}

// Decode parses a raw OCPP-J frame off the wire.
func Decode(raw []byte) (Frame, error) {
	var arr []jsoniter.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if len(arr) < 3 {
		return Frame{}, fmt.Errorf("%w: too few elements", ErrMalformedFrame)
	}

	var msgType int
	if err := json.Unmarshal(arr[0], &msgType); err != nil {
		return Frame{}, fmt.Errorf("%w: message type id: %v", ErrMalformedFrame, err)
	}
	var id string
	if err := json.Unmarshal(arr[1], &id); err != nil {
		return Frame{}, fmt.Errorf("%w: id: %v", ErrMalformedFrame, err)
	}

	frame := Frame{MessageTypeID: msgType, ID: id}

	switch msgType {
	case frameTypeCall:
		if len(arr) < 4 {
			return Frame{}, fmt.Errorf("%w: CALL missing action/payload", ErrMalformedFrame)
		}
		if err := json.Unmarshal(arr[2], &frame.Action); err != nil {
			return Frame{}, fmt.Errorf("%w: action: %v", ErrMalformedFrame, err)
		}
		frame.Payload = arr[3]
	case frameTypeCallResult:
		frame.Payload = arr[2]
	case frameTypeCallError:
		if len(arr) < 5 {
			return Frame{}, fmt.Errorf("%w: CALLERROR missing fields", ErrMalformedFrame)
		}
		if err := json.Unmarshal(arr[2], &frame.ErrorCode); err != nil {
			return Frame{}, fmt.Errorf("%w: error code: %v", ErrMalformedFrame, err)
		}
		if err := json.Unmarshal(arr[3], &frame.ErrorDesc); err != nil {
			return Frame{}, fmt.Errorf("%w: error description: %v", ErrMalformedFrame, err)
		}
		frame.Payload = arr[4]
	default:
		return Frame{}, fmt.Errorf("%w: unknown message type id %d", ErrMalformedFrame, msgType)
	}

	return frame, nil
}

// Role reports the ocppmsg.Role implied by the frame's message type id.
func (f Frame) Role() ocppmsg.Role {
	switch f.MessageTypeID {
	case frameTypeCall:
		return ocppmsg.Call
	case frameTypeCallResult:
		return ocppmsg.CallResult
	case frameTypeCallError:
		return ocppmsg.CallError
	default:
		return ocppmsg.None
	}
}
