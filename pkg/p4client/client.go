// Package p4client is a thin wrapper over the P4Runtime gRPC service. It
// dials, opens stream channels and issues unary requests; schema-aware
// encoding lives above it.
package p4client

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"time"

	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"

	"github.com/finsy-network/finsy/pkg/creds"
)

const (
	// defaultTimeout bounds unary requests whose context has no deadline.
	defaultTimeout = 10 * time.Second

	// maxHeaderListSize raises the metadata limit; some devices attach
	// large error details to write responses.
	maxHeaderListSize = 32 << 10

	// maxReconnectDelay caps the channel's connection backoff.
	maxReconnectDelay = 15 * time.Second
)

// Client is a P4Runtime gRPC client for one target.
type Client struct {
	target string
	conn   *grpc.ClientConn
	p4     p4v1.P4RuntimeClient
}

// Dial creates a client channel to the target. The channel connects
// lazily; use an open stream or a unary request to learn reachability.
func Dial(target string, tcreds *creds.Credentials, extra ...grpc.DialOption) (*Client, error) {
	tc, err := tcreds.Transport()
	if err != nil {
		return nil, err
	}
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(tc),
		grpc.WithConnectParams(grpc.ConnectParams{
			Backoff: backoff.Config{
				BaseDelay:  time.Second,
				Multiplier: 1.6,
				Jitter:     0.2,
				MaxDelay:   maxReconnectDelay,
			},
		}),
		grpc.WithMaxHeaderListSize(maxHeaderListSize),
	}
	opts = append(opts, extra...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &Client{target: target, conn: conn, p4: p4v1.NewP4RuntimeClient(conn)}, nil
}

// Target returns the dialed address.
func (c *Client) Target() string { return c.target }

// Conn exposes the underlying channel so other services on the same
// device (gNMI, gNOI) can share it.
func (c *Client) Conn() *grpc.ClientConn { return c.conn }

// Close tears down the underlying channel.
func (c *Client) Close() error { return c.conn.Close() }

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultTimeout)
}

// Write issues a batched write request.
func (c *Client) Write(ctx context.Context, req *p4v1.WriteRequest) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	_, err := c.p4.Write(ctx, req)
	return wrapError(err)
}

// Read streams entities matching the request, invoking fn for each one.
func (c *Client) Read(ctx context.Context, req *p4v1.ReadRequest, fn func(*p4v1.Entity) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.p4.Read(ctx, req)
	if err != nil {
		return wrapError(err)
	}
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return wrapError(err)
		}
		for _, entity := range resp.GetEntities() {
			if err := fn(entity); err != nil {
				return err
			}
		}
	}
}

// ReadAll collects every entity matching the request.
func (c *Client) ReadAll(ctx context.Context, req *p4v1.ReadRequest) ([]*p4v1.Entity, error) {
	var out []*p4v1.Entity
	err := c.Read(ctx, req, func(e *p4v1.Entity) error {
		out = append(out, e)
		return nil
	})
	return out, err
}

// SetForwardingPipelineConfig installs or verifies a pipeline.
func (c *Client) SetForwardingPipelineConfig(ctx context.Context, req *p4v1.SetForwardingPipelineConfigRequest) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	_, err := c.p4.SetForwardingPipelineConfig(ctx, req)
	return wrapError(err)
}

// GetForwardingPipelineConfig retrieves the device's pipeline, at the
// detail level the request asks for.
func (c *Client) GetForwardingPipelineConfig(ctx context.Context, req *p4v1.GetForwardingPipelineConfigRequest) (*p4v1.GetForwardingPipelineConfigResponse, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	resp, err := c.p4.GetForwardingPipelineConfig(ctx, req)
	return resp, wrapError(err)
}

// Capabilities reports the device's P4Runtime API version.
func (c *Client) Capabilities(ctx context.Context) (ApiVersion, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	resp, err := c.p4.Capabilities(ctx, &p4v1.CapabilitiesRequest{})
	if err != nil {
		return ApiVersion{}, wrapError(err)
	}
	return ParseApiVersion(resp.GetP4RuntimeApiVersion())
}

// Stream is one StreamChannel RPC. Send and Recv may be used from
// different goroutines, but each from at most one.
type Stream struct {
	sc     p4v1.P4Runtime_StreamChannelClient
	cancel context.CancelFunc
}

// OpenStream starts a StreamChannel RPC. Closing the stream cancels it.
func (c *Client) OpenStream(ctx context.Context) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	sc, err := c.p4.StreamChannel(ctx)
	if err != nil {
		cancel()
		return nil, wrapError(err)
	}
	return &Stream{sc: sc, cancel: cancel}, nil
}

// Send writes one message to the stream.
func (s *Stream) Send(req *p4v1.StreamMessageRequest) error {
	return wrapError(s.sc.Send(req))
}

// Recv reads the next message from the stream.
func (s *Stream) Recv() (*p4v1.StreamMessageResponse, error) {
	resp, err := s.sc.Recv()
	return resp, wrapError(err)
}

// Close cancels the stream RPC.
func (s *Stream) Close() {
	s.cancel()
}

// ApiVersion is a parsed P4Runtime API version string.
type ApiVersion struct {
	Major int
	Minor int
	Patch int
	Extra string
}

var apiVersionRE = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)(.*)$`)

// ParseApiVersion parses a semantic version like "1.3.0" or "1.4.0-rc.5".
func ParseApiVersion(s string) (ApiVersion, error) {
	m := apiVersionRE.FindStringSubmatch(s)
	if m == nil {
		return ApiVersion{}, fmt.Errorf("invalid API version %q", s)
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])
	return ApiVersion{Major: major, Minor: minor, Patch: patch, Extra: m[4]}, nil
}

func (v ApiVersion) String() string {
	return fmt.Sprintf("%d.%d.%d%s", v.Major, v.Minor, v.Patch, v.Extra)
}
