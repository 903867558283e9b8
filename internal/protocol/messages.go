package protocol

import (
	"gridrealm.dev/internal/authority"
	"gridrealm.dev/internal/intent"
	"gridrealm.dev/internal/world"
)

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ServerName      string `json:"server_name,omitempty"`
	ConnID          string `json:"conn_id"`
}

// Credentials carries LOGIN / CREATE_ACCOUNT arguments.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// REQ (client -> server). Exactly the fields the op needs are set.
type ReqMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	ReqID           string          `json:"req_id"`
	Op              string          `json:"op"`
	Credentials     *Credentials    `json:"credentials,omitempty"`
	EntityID        *world.EntityID `json:"entity_id,omitempty"`
	Command         *intent.Command `json:"command,omitempty"`
	Chat            *intent.Chat    `json:"chat,omitempty"`
}

// RESP (server -> client)
type RespMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	ReqID           string            `json:"req_id"`
	OK              bool              `json:"ok"`
	Code            string            `json:"code,omitempty"`
	Message         string            `json:"message,omitempty"`
	Matches         []authority.Match `json:"matches,omitempty"`
	EntityID        world.EntityID    `json:"entity_id,omitempty"`
	Entities        []world.Entity    `json:"entities,omitempty"`
	Chat            []world.ChatLine  `json:"chat,omitempty"`
}

func NewReq(reqID, op string) ReqMsg {
	return ReqMsg{Type: TypeReq, ProtocolVersion: Version, ReqID: reqID, Op: op}
}

func OKResp(reqID string) RespMsg {
	return RespMsg{Type: TypeResp, ProtocolVersion: Version, ReqID: reqID, OK: true}
}

// ErrResp builds a failed RESP. Codes outside the vocabulary are sent as
// E_INTERNAL.
func ErrResp(reqID, code, msg string) RespMsg {
	if code == "" || !IsKnownCode(code) {
		code = ErrInternal
	}
	return RespMsg{Type: TypeResp, ProtocolVersion: Version, ReqID: reqID, Code: code, Message: msg}
}
