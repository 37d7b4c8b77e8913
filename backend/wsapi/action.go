package wsapi

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownAction = errors.New("unknown action type")

// WebsocketPacket is pushed to every client registered on Stream.
type WebsocketPacket struct {
	Stream string      `json:"stream"`
	Data   interface{} `json:"data"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}

type WebsocketErrorResponse struct {
	Id    *int64       `json:"id,omitempty"`
	Error ErrorMessage `json:"error"`
}

// WebsocketAction is a request from a websocket client. Data holds the
// decoded payload for Action; RawData is what went over the wire.
type WebsocketAction struct {
	Id      *int64          `json:"id,omitempty"`
	Action  string          `json:"action"`
	Data    interface{}     `json:"-"`
	RawData json.RawMessage `json:"data"`
}

func (action WebsocketAction) MarshalJSON() ([]byte, error) {
	type packet WebsocketAction
	if action.Data != nil {
		b, err := json.Marshal(action.Data)
		if err != nil {
			return nil, err
		}
		action.RawData = b
	}
	return json.Marshal((packet)(action))
}

func (action *WebsocketAction) UnmarshalJSON(data []byte) error {
	type packet WebsocketAction
	if err := json.Unmarshal(data, (*packet)(action)); err != nil {
		return err
	}
	var i interface{}
	switch action.Action {
	case "ping":
		i = &PingActionData{}
	case "register":
		i = &RegisterActionData{}
	case "unregister":
		i = &UnregisterActionData{}
	case "command":
		i = &CommandActionData{}
	case "param":
		i = &ParamActionData{}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action.Action)
	}
	if len(action.RawData) > 0 {
		if err := json.Unmarshal(action.RawData, i); err != nil {
			return err
		}
	}
	action.Data = i
	return nil
}

type WebsocketResponse struct {
	Id   *int64      `json:"id,omitempty"`
	Data interface{} `json:"data"`
}

type PingActionData struct {
	Time int64 `json:"time"`
}

type RegisterActionData struct {
	Stream string `json:"stream"`
}

type UnregisterActionData struct {
	Stream string `json:"stream"`
}

// CommandActionData carries a companion command packet, hex encoded, as it
// would be written to the control characteristic.
type CommandActionData struct {
	Payload string `json:"payload"`
}

func (c CommandActionData) Bytes() ([]byte, error) {
	return hex.DecodeString(c.Payload)
}

type ParamActionData struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

type CommandResult struct {
	Command  string `json:"command"`
	Feedback string `json:"feedback"`
}
