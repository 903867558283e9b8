package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrUnauthenticated,
		ErrNoPermission,
		ErrBadRequest,
		ErrNotFound,
		ErrConflict,
		ErrRateLimit,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestErrRespNormalizesUnknownCodes(t *testing.T) {
	if r := ErrResp("r1", ErrConflict, "taken"); r.Code != ErrConflict || r.OK {
		t.Fatalf("known code changed: %+v", r)
	}
	for _, code := range []string{"", "E_NOT_DEFINED"} {
		if r := ErrResp("r1", code, "x"); r.Code != ErrInternal {
			t.Fatalf("ErrResp(%q).Code = %q, want %q", code, r.Code, ErrInternal)
		}
	}
}
