package session

import (
	"encoding/json"
	"fmt"
)

// Frame type tags, shared by both directions
const (
	// server → client
	TypeConnected         = "connected"
	TypeSessionInfo       = "session_info"
	TypeHeartbeatAck      = "heartbeat_ack"
	TypeQualityUpdate     = "connection_quality_update"
	TypeExchangeData      = "exchange_data"
	TypeError             = "error"
	TypeSessionReplaced   = "session_replaced"
	TypeServerShutdown    = "server_shutdown"

	// client → server
	TypeHeartbeat   = "heartbeat"
	TypeQuality     = "connection_quality"
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypeReconnect   = "reconnect"
	TypeStopSession = "stop_session"
)

// Error codes carried by error frames
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInvalidDevice      = "INVALID_DEVICE"
	CodeNotReady           = "NOT_READY"
	CodeRateLimited        = "RATE_LIMITED"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeSessionExpired     = "SESSION_EXPIRED"
)

// WebSocket close reasons
const (
	ReasonReplaced       = "Connection replaced by new device connection"
	ReasonServerShutdown = "Server shutting down"
	ReasonSessionStopped = "Session stopped"
)

// Envelope is the minimal inbound decode: the type tag plus the raw payload,
// re-decoded into the matching variant by the dispatcher.
type Envelope struct {
	Type string `json:"type"`
	raw  json.RawMessage
}

// DecodeEnvelope parses one inbound frame
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	if e.Type == "" {
		return nil, fmt.Errorf("frame missing type")
	}
	e.raw = json.RawMessage(data)
	return &e, nil
}

// Payload decodes the full frame into the typed variant
func (e *Envelope) Payload(v interface{}) error {
	return json.Unmarshal(e.raw, v)
}

// Inbound variants

type HeartbeatFrame struct {
	Timestamp int64 `json:"timestamp"` // client clock, unix ms
}

type QualityFrame struct {
	LatencyMs        int64  `json:"latency_ms"`
	MissedHeartbeats int    `json:"missed_heartbeats"`
	ConnectionType   string `json:"connection_type,omitempty"`
}

type SubscribeFrame struct {
	DataType string   `json:"dataType"`
	Symbols  []string `json:"symbols"`
}

type UnsubscribeFrame struct {
	DataType string `json:"dataType"`
}

type ReconnectFrame struct {
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
	DeviceID  string `json:"deviceId"`
	Attempt   int    `json:"attempt"`
}

type RequestFrame struct {
	RequestID string `json:"requestId"`
}

// Outbound frames

type ConnectedFrame struct {
	Type      string `json:"type"`
	ClientID  string `json:"clientId"`
	DeviceID  string `json:"deviceId"`
	SessionID string `json:"sessionId"`
}

type SessionInfoFrame struct {
	Type            string `json:"type"`
	RequestID       string `json:"requestId,omitempty"`
	DeviceID        string `json:"deviceId"`
	ExpiresAt       int64  `json:"expiresAt"` // unix ms
	SimulatorStatus string `json:"simulatorStatus"`
}

type HeartbeatAckFrame struct {
	Type            string `json:"type"`
	Timestamp       int64  `json:"timestamp"`
	ClientTimestamp int64  `json:"clientTimestamp"`
	Latency         int64  `json:"latency"` // ms
}

type QualityUpdateFrame struct {
	Type                 string `json:"type"`
	Quality              string `json:"quality"`
	ReconnectRecommended bool   `json:"reconnectRecommended"`
}

type ExchangeDataFrame struct {
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data"`
}

type ErrorFrame struct {
	Type      string `json:"type"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

type SessionReplacedFrame struct {
	Type string `json:"type"`
}

type ServerShutdownFrame struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func marshalFrame(v interface{}) []byte {
	b, _ := json.Marshal(v)
	return b
}
