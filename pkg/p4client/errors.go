package p4client

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"
	"google.golang.org/genproto/googleapis/rpc/code"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ClientError wraps a gRPC error from the device, with any per-update
// p4.Error details unpacked from the status.
type ClientError struct {
	Code    codes.Code
	Message string
	Details []*p4v1.Error
	err     error
}

func (e *ClientError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	var parts []string
	for i, d := range e.Details {
		if code.Code(d.GetCanonicalCode()) == code.Code_OK {
			continue
		}
		parts = append(parts, fmt.Sprintf("[%d] %s: %s", i,
			code.Code(d.GetCanonicalCode()), d.GetMessage()))
	}
	return fmt.Sprintf("%s: %s %s", e.Code, e.Message, strings.Join(parts, "; "))
}

func (e *ClientError) Unwrap() error { return e.err }

// wrapError converts a gRPC error to a *ClientError, pulling p4.Error
// details out of the status. Non-status errors pass through unchanged.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	ce := &ClientError{
		Code:    st.Code(),
		Message: st.Message(),
		err:     err,
	}
	for _, detail := range st.Details() {
		if p4err, ok := detail.(*p4v1.Error); ok {
			ce.Details = append(ce.Details, p4err)
		}
	}
	return ce
}

// IsNotFoundOnly reports whether every failed update in a batched write
// failed with NOT_FOUND. Warn-only deletes use this to tolerate entries
// that are already gone.
func IsNotFoundOnly(err error) bool {
	ce, ok := asClientError(err)
	if !ok {
		return false
	}
	if len(ce.Details) == 0 {
		return ce.Code == codes.NotFound
	}
	for _, d := range ce.Details {
		switch code.Code(d.GetCanonicalCode()) {
		case code.Code_OK, code.Code_NOT_FOUND:
		default:
			return false
		}
	}
	return true
}

var electionIDUsed = regexp.MustCompile(`(?i)election id.*\b(?:used|exists)\b`)

// IsElectionIDUsed reports whether the device rejected an arbitration
// because the requested election id is held by another controller. Wire
// messages for this vary by implementation, so match loosely.
func IsElectionIDUsed(err error) bool {
	ce, ok := asClientError(err)
	if !ok {
		return false
	}
	return ce.Code == codes.InvalidArgument && electionIDUsed.MatchString(ce.Message)
}

var noPipeline = regexp.MustCompile(`(?i)no.*\bforwarding pipeline config\b`)

// IsNoPipelineConfigured reports whether the device rejected a request
// because no pipeline has been installed yet.
func IsNoPipelineConfigured(err error) bool {
	ce, ok := asClientError(err)
	if !ok {
		return false
	}
	return ce.Code == codes.FailedPrecondition && noPipeline.MatchString(ce.Message)
}

// Code extracts the gRPC status code from a wrapped error.
func Code(err error) codes.Code {
	if ce, ok := asClientError(err); ok {
		return ce.Code
	}
	return status.Code(err)
}

func asClientError(err error) (*ClientError, bool) {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
