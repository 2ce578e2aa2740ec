package protocol

import (
	"strings"
	"testing"
)

func TestParseInbound(t *testing.T) {
	tests := []struct {
		name        string
		msg         string
		wantID      uint64
		wantState   State
		wantPayload string
		wantErr     bool
	}{
		{
			name:        "data frame",
			msg:         `3 A {"items":[]}`,
			wantID:      3,
			wantState:   StateData,
			wantPayload: `{"items":[]}`,
		},
		{
			name:        "continue frame",
			msg:         `7 C {"part":1}`,
			wantID:      7,
			wantState:   StateContinue,
			wantPayload: `{"part":1}`,
		},
		{
			name:      "control frame without payload",
			msg:       "12 D",
			wantID:    12,
			wantState: StateEnd,
		},
		{
			name:        "error frame",
			msg:         `5 E {"errors":[{"errorCode":"BAD_CURSOR"}]}`,
			wantID:      5,
			wantState:   StateError,
			wantPayload: `{"errors":[{"errorCode":"BAD_CURSOR"}]}`,
		},
		{
			name:        "payload containing spaces",
			msg:         `9 A {"title":"COFFEE SHOP BERLIN"}`,
			wantID:      9,
			wantState:   StateData,
			wantPayload: `{"title":"COFFEE SHOP BERLIN"}`,
		},
		{name: "single token", msg: "garbage", wantErr: true},
		{name: "non-numeric id", msg: "abc A {}", wantErr: true},
		{name: "unknown state", msg: "3 X {}", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseInbound([]byte(tt.msg))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseInbound(%q) error = %v, wantErr %v", tt.msg, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if f.ID != tt.wantID || f.State != tt.wantState || string(f.Payload) != tt.wantPayload {
				t.Errorf("ParseInbound(%q) = %+v", tt.msg, f)
			}
		})
	}
}

func TestIsConnected(t *testing.T) {
	if !IsConnected([]byte("connected")) {
		t.Error("bare connected marker not recognized")
	}
	if !IsConnected([]byte(`connected {"sessionWarningTime":600}`)) {
		t.Error("connected with payload not recognized")
	}
	if IsConnected([]byte("1 A {}")) {
		t.Error("data frame misread as handshake reply")
	}
}

func TestEncodeConnect(t *testing.T) {
	msg, err := EncodeConnect(DefaultConnectMeta("en"))
	if err != nil {
		t.Fatalf("EncodeConnect: %v", err)
	}
	s := string(msg)
	if !strings.HasPrefix(s, "connect 31 {") {
		t.Errorf("unexpected prefix: %s", s)
	}
	if !strings.Contains(s, `"locale":"en"`) || !strings.Contains(s, `"platformId":"webtrading"`) {
		t.Errorf("metadata missing: %s", s)
	}
}

func TestEncodeSub(t *testing.T) {
	msg, err := EncodeSub(4, map[string]string{"type": "timelineTransactions", "token": "tok"})
	if err != nil {
		t.Fatalf("EncodeSub: %v", err)
	}
	s := string(msg)
	if !strings.HasPrefix(s, "sub 4 {") || !strings.Contains(s, `"type":"timelineTransactions"`) {
		t.Errorf("unexpected frame: %s", s)
	}
}

func TestEncodeUnsub(t *testing.T) {
	if got := string(EncodeUnsub(17)); got != "unsub 17" {
		t.Errorf("EncodeUnsub = %q", got)
	}
}

func TestParseError(t *testing.T) {
	pe := ParseError([]byte(`{"errors":[{"errorCode":"AUTHENTICATION_ERROR","errorMessage":"token expired"}]}`))
	if pe.Code != "AUTHENTICATION_ERROR" || pe.Message != "token expired" {
		t.Errorf("ParseError = %+v", pe)
	}

	pe = ParseError([]byte("something went wrong"))
	if pe.Code != "UNKNOWN" || pe.Message != "something went wrong" {
		t.Errorf("fallback ParseError = %+v", pe)
	}
}
