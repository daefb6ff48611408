package p4client

import (
	"errors"
	"fmt"
	"testing"

	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"
	"google.golang.org/genproto/googleapis/rpc/code"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func p4Detail(c code.Code, msg string) *p4v1.Error {
	return &p4v1.Error{CanonicalCode: int32(c), Message: msg}
}

func statusErr(t *testing.T, c codes.Code, msg string, details ...*p4v1.Error) error {
	t.Helper()
	st := status.New(c, msg)
	var err error
	for _, d := range details {
		st, err = st.WithDetails(d)
		if err != nil {
			t.Fatal(err)
		}
	}
	return st.Err()
}

func TestWrapError(t *testing.T) {
	if wrapError(nil) != nil {
		t.Error("nil should stay nil")
	}

	err := wrapError(statusErr(t, codes.Unknown, "write failed",
		p4Detail(code.Code_OK, ""),
		p4Detail(code.Code_INVALID_ARGUMENT, "bad match"),
	))
	var ce *ClientError
	if !errors.As(err, &ce) {
		t.Fatalf("wrapError = %T", err)
	}
	if ce.Code != codes.Unknown || len(ce.Details) != 2 {
		t.Errorf("client error = %+v", ce)
	}
}

func TestIsNotFoundOnly(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"plain not found", wrapError(statusErr(t, codes.NotFound, "gone")), true},
		{"all details not found", wrapError(statusErr(t, codes.Unknown, "batch",
			p4Detail(code.Code_OK, ""), p4Detail(code.Code_NOT_FOUND, "entry"))), true},
		{"mixed details", wrapError(statusErr(t, codes.Unknown, "batch",
			p4Detail(code.Code_NOT_FOUND, "entry"), p4Detail(code.Code_INTERNAL, "boom"))), false},
		{"other code", wrapError(statusErr(t, codes.PermissionDenied, "no")), false},
		{"not a client error", errors.New("plain"), false},
		{"wrapped client error", fmt.Errorf("delete: %w",
			wrapError(statusErr(t, codes.NotFound, "gone"))), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFoundOnly(tt.err); got != tt.want {
				t.Errorf("IsNotFoundOnly = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsElectionIDUsed(t *testing.T) {
	used := wrapError(statusErr(t, codes.InvalidArgument,
		"Election ID 10 is used by another controller"))
	if !IsElectionIDUsed(used) {
		t.Error("should detect in-use election id")
	}
	exists := wrapError(statusErr(t, codes.InvalidArgument,
		"election id already exists"))
	if !IsElectionIDUsed(exists) {
		t.Error("should detect existing election id")
	}
	if IsElectionIDUsed(wrapError(statusErr(t, codes.InvalidArgument, "bad device id"))) {
		t.Error("unrelated message should not match")
	}
	if IsElectionIDUsed(wrapError(statusErr(t, codes.Internal,
		"election id is used"))) {
		t.Error("wrong code should not match")
	}
}

func TestIsNoPipelineConfigured(t *testing.T) {
	missing := wrapError(statusErr(t, codes.FailedPrecondition,
		"No forwarding pipeline config set for this device"))
	if !IsNoPipelineConfigured(missing) {
		t.Error("should detect missing pipeline")
	}
	if IsNoPipelineConfigured(wrapError(statusErr(t, codes.FailedPrecondition, "not primary"))) {
		t.Error("unrelated precondition should not match")
	}
}

func TestParseApiVersion(t *testing.T) {
	v, err := ParseApiVersion("1.3.0")
	if err != nil {
		t.Fatal(err)
	}
	if v != (ApiVersion{Major: 1, Minor: 3}) {
		t.Errorf("parsed = %+v", v)
	}

	v, err = ParseApiVersion("1.4.0-rc.5")
	if err != nil {
		t.Fatal(err)
	}
	if v.Extra != "-rc.5" || v.String() != "1.4.0-rc.5" {
		t.Errorf("parsed = %+v", v)
	}

	if _, err := ParseApiVersion("weird"); err == nil {
		t.Error("junk should fail to parse")
	}
}
