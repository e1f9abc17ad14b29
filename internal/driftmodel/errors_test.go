package driftmodel

import (
	"errors"
	"testing"
)

// TestParseProgramErrorFromRawString exercises ParseProgramError's regexp
// fallback directly — the path every real RPC send/simulation failure
// actually goes through, since nothing upstream constructs a typed
// *ProgramError. Constructing &ProgramError{Code: ...} in a test instead
// short-circuits errors.As and never touches this parsing at all, which is
// exactly how the 6009/6035 numbering mismatch this test guards against
// went unnoticed.
func TestParseProgramErrorFromRawString(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		wantCode ProgramErrorCode
		wantKind Kind
		wantTerm bool
	}{
		{"BidNotCrossed", "send transaction: custom program error: 0x1770", ErrBidNotCrossed, KindTransient, false},
		{"AskNotCrossed", "send transaction: custom program error: 0x1771", ErrAskNotCrossed, KindTransient, false},
		{"TakerOrderNotFound/OrderAlreadyFilled", "send transaction: custom program error: 0x1772", ErrTakerOrderNotFound, KindFillRace, true},
		{"OrderNotFillable", "send transaction: custom program error: 0x1779", ErrOrderNotFillable, KindTransient, false},
		{"OracleInvalid", "send transaction: custom program error: 0x1793", ErrOracleInvalid, KindTransient, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			progErr, ok := ParseProgramError(errors.New(c.raw))
			if !ok {
				t.Fatalf("ParseProgramError did not recognize %q", c.raw)
			}
			if progErr.Code != c.wantCode {
				t.Fatalf("got code %d, want %d", progErr.Code, c.wantCode)
			}
			kind := Classify(progErr.Code)
			if kind != c.wantKind {
				t.Fatalf("Classify(%d) = %v, want %v", progErr.Code, kind, c.wantKind)
			}
			if IsTerminal(kind) != c.wantTerm {
				t.Fatalf("IsTerminal(Classify(%d)) = %v, want %v", progErr.Code, IsTerminal(kind), c.wantTerm)
			}
		})
	}
}

// TestParseProgramErrorPrefersTypedError confirms the errors.As fast path
// still wins when a collaborator already constructed a *ProgramError,
// rather than re-deriving it from the message.
func TestParseProgramErrorPrefersTypedError(t *testing.T) {
	typed := &ProgramError{Code: ErrPositionLimitBreached, Message: "custom program error: 0x1770"}
	progErr, ok := ParseProgramError(typed)
	if !ok {
		t.Fatal("expected ParseProgramError to recognize a typed *ProgramError")
	}
	if progErr.Code != ErrPositionLimitBreached {
		t.Fatalf("got code %d, want %d (the typed error should win over the message)", progErr.Code, ErrPositionLimitBreached)
	}
}
