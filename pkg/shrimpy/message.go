// Package shrimpy holds the wire types exchanged with the Shrimpy streaming feed and the
// request payloads used by the REST side.
package shrimpy

import (
	json "github.com/goccy/go-json"
)

// Frame types with a fixed meaning on the stream.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePing        = "ping"
	TypePong        = "pong"
	TypeError       = "error"
)

// Message is both an outbound subscription request and an inbound server frame.
// Absent fields are represented by the empty string. Raw holds the complete frame
// as received, including fields the client does not interpret.
type Message struct {
	Type     string          `json:"type,omitempty"`
	Exchange string          `json:"exchange,omitempty"`
	Pair     string          `json:"pair,omitempty"`
	Channel  string          `json:"channel,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	Raw      json.RawMessage `json:"-"`
}

// Subscription builds a subscribe request for an exchange/pair/channel triple.
func Subscription(exchange, pair, channel string) Message {
	return Message{Type: TypeSubscribe, Exchange: exchange, Pair: pair, Channel: channel}
}

// Unsubscription builds the matching unsubscribe request.
func Unsubscription(exchange, pair, channel string) Message {
	return Message{Type: TypeUnsubscribe, Exchange: exchange, Pair: pair, Channel: channel}
}

// Pong answers a ping, echoing its data untouched.
type Pong struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewPong builds the reply for a ping carrying data.
func NewPong(data json.RawMessage) Pong {
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	return Pong{Type: TypePong, Data: data}
}

// ErrorFrame is the payload of a server-reported error.
type ErrorFrame struct {
	Type    string `json:"type,omitempty"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// DecodeMessage parses a raw frame.
func DecodeMessage(raw []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, err
	}
	msg.Raw = raw
	return msg, nil
}

// DecodeErrorFrame parses a raw error frame.
func DecodeErrorFrame(raw []byte) (ErrorFrame, error) {
	var frame ErrorFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return ErrorFrame{}, err
	}
	return frame, nil
}

// TokenResponse is returned by the ws/token endpoint.
type TokenResponse struct {
	Token string `json:"token"`
}
