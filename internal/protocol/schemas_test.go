package protocol_test

import (
	"encoding/json"
	"testing"

	"gridrealm.dev/internal/intent"
	"gridrealm.dev/internal/protocol"
	"gridrealm.dev/internal/world"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}

	if err := v.ValidateHello([]byte(`{"type":"HELLO","protocol_version":"1.0","client_name":"bot1"}`)); err != nil {
		t.Fatalf("hello: %v", err)
	}

	good := []string{
		`{"type":"REQ","protocol_version":"1.0","req_id":"R1","op":"LOGIN","credentials":{"username":"ada","password":"pw"}}`,
		`{"type":"REQ","protocol_version":"1.0","req_id":"R2","op":"FETCH_ENTITIES","entity_id":7}`,
		`{"type":"REQ","protocol_version":"1.0","req_id":"R3","op":"INSERT_COMMAND","command":{"entity_id":7,"kind":"move","x":1,"y":0}}`,
		`{"type":"REQ","protocol_version":"1.0","req_id":"R4","op":"INSERT_CHAT","chat":{"speaker_id":7,"recipient":"all","text":"hi"}}`,
	}
	for _, raw := range good {
		if err := v.ValidateReq([]byte(raw)); err != nil {
			t.Fatalf("expected valid %s: %v", raw, err)
		}
	}
}

func TestSchemas_RejectMalformed(t *testing.T) {
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	bad := []string{
		`{"type":"REQ","protocol_version":"1.0","req_id":"R1","op":"LOGIN"}`,
		`{"type":"REQ","protocol_version":"1.0","req_id":"R2","op":"FETCH_CHAT"}`,
		`{"type":"REQ","protocol_version":"1.0","req_id":"R3","op":"INSERT_COMMAND","command":{"entity_id":7,"kind":"fly"}}`,
		`{"type":"REQ","protocol_version":"1.0","req_id":"R4","op":"INSERT_CHAT","chat":{"speaker_id":7,"recipient":"all","text":""}}`,
		`{"type":"REQ","protocol_version":"1.0","req_id":"R5","op":"TELEPORT"}`,
		`{"type":"REQ","protocol_version":"1.0","op":"LOGOUT","entity_id":1}`,
		`not json`,
	}
	for _, raw := range bad {
		if err := v.ValidateReq([]byte(raw)); err == nil {
			t.Fatalf("expected rejection of %s", raw)
		}
	}
}

func TestSchemas_AcceptBuiltRequests(t *testing.T) {
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	id := world.EntityID(3)
	cmd, _ := intent.ToCommand(id, intent.Attack{Target: 9})

	reqs := []protocol.ReqMsg{}
	r := protocol.NewReq("A", protocol.OpCreateAccount)
	r.Credentials = &protocol.Credentials{Username: "ada", Password: "pw"}
	reqs = append(reqs, r)
	r = protocol.NewReq("B", protocol.OpLogout)
	r.EntityID = &id
	reqs = append(reqs, r)
	r = protocol.NewReq("C", protocol.OpInsertCommand)
	r.Command = &cmd
	reqs = append(reqs, r)
	r = protocol.NewReq("D", protocol.OpInsertChat)
	chat := intent.ToChat(id, intent.Say{Recipient: "player", Text: "hey"})
	r.Chat = &chat
	reqs = append(reqs, r)

	for _, req := range reqs {
		raw, err := json.Marshal(req)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if err := v.ValidateReq(raw); err != nil {
			t.Fatalf("built %s rejected: %v\n%s", req.Op, err, raw)
		}
	}
}
