package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeReq     = "REQ"
	TypeResp    = "RESP"
)

// Request ops.
const (
	OpLogin         = "LOGIN"
	OpCreateAccount = "CREATE_ACCOUNT"
	OpLogout        = "LOGOUT"
	OpInsertCommand = "INSERT_COMMAND"
	OpInsertChat    = "INSERT_CHAT"
	OpFetchEntities = "FETCH_ENTITIES"
	OpFetchChat     = "FETCH_CHAT"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

func IsSupportedVersion(v string) bool { return v == Version }
