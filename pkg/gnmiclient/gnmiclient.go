// Package gnmiclient is a client for the gNMI service of a device,
// typically sharing the gRPC channel of the P4Runtime client. It covers
// the operations a control plane needs: capability exchange, get/set and
// streaming subscriptions.
package gnmiclient

import (
	"context"
	"fmt"
	"time"

	gnmipb "github.com/openconfig/gnmi/proto/gnmi"
	"google.golang.org/grpc"

	"github.com/finsy-network/finsy/pkg/creds"
	"github.com/finsy-network/finsy/pkg/gnmipath"
	"github.com/finsy-network/finsy/pkg/p4client"
)

// Client is a gNMI client for one target.
type Client struct {
	conn    *grpc.ClientConn
	ownConn bool
	gnmi    gnmipb.GNMIClient
}

// Dial creates a dedicated channel to the target.
func Dial(target string, tcreds *creds.Credentials, extra ...grpc.DialOption) (*Client, error) {
	pc, err := p4client.Dial(target, tcreds, extra...)
	if err != nil {
		return nil, err
	}
	c := FromConn(pc.Conn())
	c.ownConn = true
	return c, nil
}

// FromConn builds a client on an existing channel. Closing the client
// does not close the channel.
func FromConn(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn, gnmi: gnmipb.NewGNMIClient(conn)}
}

// Close releases the channel if this client owns it.
func (c *Client) Close() error {
	if c.ownConn {
		return c.conn.Close()
	}
	return nil
}

// Capabilities performs the capability exchange.
func (c *Client) Capabilities(ctx context.Context) (*gnmipb.CapabilityResponse, error) {
	return c.gnmi.Capabilities(ctx, &gnmipb.CapabilityRequest{})
}

// Update is one leaf update from a notification.
type Update struct {
	Timestamp int64
	Path      gnmipath.Path
	Value     *gnmipb.TypedValue
}

// Uint returns the update's value as an unsigned integer, for leaves of
// uint or int type.
func (u Update) Uint() uint64 {
	switch v := u.Value.GetValue().(type) {
	case *gnmipb.TypedValue_UintVal:
		return v.UintVal
	case *gnmipb.TypedValue_IntVal:
		return uint64(v.IntVal)
	default:
		return 0
	}
}

// Str returns the update's value as a string.
func (u Update) Str() string {
	switch v := u.Value.GetValue().(type) {
	case *gnmipb.TypedValue_StringVal:
		return v.StringVal
	case *gnmipb.TypedValue_AsciiVal:
		return v.AsciiVal
	default:
		return ""
	}
}

// Bool returns the update's value as a boolean.
func (u Update) Bool() bool {
	if v, ok := u.Value.GetValue().(*gnmipb.TypedValue_BoolVal); ok {
		return v.BoolVal
	}
	return false
}

// Get fetches the current value of each path.
func (c *Client) Get(ctx context.Context, paths ...gnmipath.Path) ([]Update, error) {
	req := &gnmipb.GetRequest{}
	for _, p := range paths {
		req.Path = append(req.Path, p.Proto())
	}
	resp, err := c.gnmi.Get(ctx, req)
	if err != nil {
		return nil, err
	}
	var out []Update
	for _, n := range resp.GetNotification() {
		out = append(out, flatten(n)...)
	}
	return out, nil
}

// PathValue pairs a path with the value to write there.
type PathValue struct {
	Path  gnmipath.Path
	Value *gnmipb.TypedValue
}

// SetRequest describes one transactional set: deletes apply first, then
// replaces, then updates.
type SetRequest struct {
	Deletes  []gnmipath.Path
	Replaces []PathValue
	Updates  []PathValue
}

// Set applies the request as a single transaction.
func (c *Client) Set(ctx context.Context, req SetRequest) error {
	pb := &gnmipb.SetRequest{}
	for _, p := range req.Deletes {
		pb.Delete = append(pb.Delete, p.Proto())
	}
	for _, r := range req.Replaces {
		pb.Replace = append(pb.Replace, &gnmipb.Update{Path: r.Path.Proto(), Val: r.Value})
	}
	for _, u := range req.Updates {
		pb.Update = append(pb.Update, &gnmipb.Update{Path: u.Path.Proto(), Val: u.Value})
	}
	_, err := c.gnmi.Set(ctx, pb)
	return err
}

// Subscription configures a streaming subscription.
type Subscription struct {
	Paths          []gnmipath.Path
	Mode           gnmipb.SubscriptionMode // TARGET_DEFINED, ON_CHANGE or SAMPLE
	SampleInterval time.Duration           // SAMPLE mode only
	UpdatesOnly    bool
}

// Subscriber is one open subscription stream.
type Subscriber struct {
	stream gnmipb.GNMI_SubscribeClient
	cancel context.CancelFunc
}

// Subscribe opens a STREAM-mode subscription. Call Synchronize to drain
// the initial state, then Recv for ongoing notifications.
func (c *Client) Subscribe(ctx context.Context, sub Subscription) (*Subscriber, error) {
	return c.subscribe(ctx, sub, gnmipb.SubscriptionList_STREAM)
}

func (c *Client) subscribe(ctx context.Context, sub Subscription, mode gnmipb.SubscriptionList_Mode) (*Subscriber, error) {
	ctx, cancel := context.WithCancel(ctx)
	stream, err := c.gnmi.Subscribe(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	list := &gnmipb.SubscriptionList{
		Mode:        mode,
		UpdatesOnly: sub.UpdatesOnly,
	}
	for _, p := range sub.Paths {
		list.Subscription = append(list.Subscription, &gnmipb.Subscription{
			Path:           p.Proto(),
			Mode:           sub.Mode,
			SampleInterval: uint64(sub.SampleInterval.Nanoseconds()),
		})
	}
	err = stream.Send(&gnmipb.SubscribeRequest{
		Request: &gnmipb.SubscribeRequest_Subscribe{Subscribe: list},
	})
	if err != nil {
		cancel()
		return nil, err
	}
	return &Subscriber{stream: stream, cancel: cancel}, nil
}

// Synchronize returns the initial state of the subscription: every
// update up to the device's sync_response marker.
func (s *Subscriber) Synchronize() ([]Update, error) {
	var out []Update
	for {
		resp, err := s.stream.Recv()
		if err != nil {
			return nil, err
		}
		switch r := resp.GetResponse().(type) {
		case *gnmipb.SubscribeResponse_Update:
			out = append(out, flatten(r.Update)...)
		case *gnmipb.SubscribeResponse_SyncResponse:
			return out, nil
		default:
			return nil, fmt.Errorf("unexpected subscribe response %T", r)
		}
	}
}

// Recv returns the next batch of updates. sync_response markers after
// the initial one are skipped.
func (s *Subscriber) Recv() ([]Update, error) {
	for {
		resp, err := s.stream.Recv()
		if err != nil {
			return nil, err
		}
		if r, ok := resp.GetResponse().(*gnmipb.SubscribeResponse_Update); ok {
			return flatten(r.Update), nil
		}
	}
}

// Close cancels the subscription.
func (s *Subscriber) Close() {
	s.cancel()
}

// Once fetches the paths via a ONCE subscription, which some devices
// support for leaves that Get does not cover.
func (c *Client) Once(ctx context.Context, sub Subscription) ([]Update, error) {
	s, err := c.subscribe(ctx, sub, gnmipb.SubscriptionList_ONCE)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.Synchronize()
}

// flatten joins each update path with the notification prefix.
func flatten(n *gnmipb.Notification) []Update {
	prefix := gnmipath.FromProto(n.GetPrefix())
	out := make([]Update, 0, len(n.GetUpdate()))
	for _, u := range n.GetUpdate() {
		out = append(out, Update{
			Timestamp: n.GetTimestamp(),
			Path:      prefix.Append(gnmipath.FromProto(u.GetPath())),
			Value:     u.GetVal(),
		})
	}
	return out
}
