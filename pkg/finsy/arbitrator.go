package finsy

import (
	"fmt"
	"sync"

	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/types/known/anypb"

	"github.com/finsy-network/finsy/pkg/p4client"
)

// arbitrator negotiates primary/backup status for one stream channel.
// After the handshake its state is shared between the stream reader and
// request builders, so mutable fields sit behind mu.
type arbitrator struct {
	deviceID   uint64
	roleName   string
	roleConfig *anypb.Any
	log        *logrus.Entry

	mu         sync.Mutex
	electionID ElectionID
	isPrimary  bool
	primaryID  ElectionID
}

func newArbitrator(opts SwitchOptions, log *logrus.Entry) *arbitrator {
	return &arbitrator{
		deviceID:   opts.DeviceID,
		roleName:   opts.RoleName,
		roleConfig: opts.RoleConfig,
		electionID: opts.InitialElectionID,
		log:        log,
	}
}

func (a *arbitrator) request() *p4v1.StreamMessageRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requestLocked()
}

func (a *arbitrator) requestLocked() *p4v1.StreamMessageRequest {
	arb := &p4v1.MasterArbitrationUpdate{
		DeviceId:   a.deviceID,
		ElectionId: a.electionID.Proto(),
	}
	if a.roleName != "" || a.roleConfig != nil {
		arb.Role = &p4v1.Role{Name: a.roleName, Config: a.roleConfig}
	}
	return &p4v1.StreamMessageRequest{
		Update: &p4v1.StreamMessageRequest_Arbitration{Arbitration: arb},
	}
}

func (a *arbitrator) primary() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.isPrimary
}

func (a *arbitrator) currentElectionID() ElectionID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.electionID
}

// handshake sends arbitration requests until the device settles our
// status. Ids the device reports in use are retried with the next lower
// id; a vacant primary slot is claimed by bidding the highest id the
// device has seen.
func (a *arbitrator) handshake(stream *p4client.Stream) error {
	for {
		if err := stream.Send(a.request()); err != nil {
			if p4client.IsElectionIDUsed(err) && a.lowerElectionID() {
				continue
			}
			return err
		}

		resp, err := a.recvArbitration(stream)
		if err != nil {
			if p4client.IsElectionIDUsed(err) && a.lowerElectionID() {
				continue
			}
			return err
		}

		switch codes.Code(resp.GetStatus().GetCode()) {
		case codes.OK:
			a.mu.Lock()
			a.isPrimary = true
			a.primaryID = a.electionID
			a.mu.Unlock()
			return nil
		case codes.AlreadyExists:
			primary := electionIDFromProto(resp.GetElectionId())
			if primary == a.currentElectionID() {
				// Our id is the primary's. Back off below it.
				if a.lowerElectionID() {
					continue
				}
				return fmt.Errorf("no election id available below %s", primary)
			}
			a.mu.Lock()
			a.isPrimary = false
			a.primaryID = primary
			a.mu.Unlock()
			return nil
		case codes.NotFound:
			// No primary for this role. Bid for the vacant slot.
			a.mu.Lock()
			claimed := a.claimVacancyLocked(electionIDFromProto(resp.GetElectionId()))
			if claimed {
				a.log.Debugf("primary slot vacant, bidding %s", a.electionID)
			} else {
				a.isPrimary = false
				a.primaryID = ElectionID{}
			}
			a.mu.Unlock()
			if claimed {
				continue
			}
			return nil
		default:
			return fmt.Errorf("arbitration rejected: %s (%s)",
				resp.GetStatus().GetMessage(), codes.Code(resp.GetStatus().GetCode()))
		}
	}
}

// claimVacancyLocked adopts the highest election id the device reports
// when the primary slot is vacant. It reports whether a new bid should
// be sent; an unchanged or absent id is not re-bid, so a device that
// never grants the slot cannot spin the negotiation. Callers hold a.mu.
func (a *arbitrator) claimVacancyLocked(advertised ElectionID) bool {
	if advertised.IsZero() || advertised == a.electionID {
		return false
	}
	a.electionID = advertised
	return true
}

func (a *arbitrator) lowerElectionID() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	next, ok := a.electionID.Decrement()
	if !ok {
		return false
	}
	a.log.Debugf("election id %s in use, retrying with %s", a.electionID, next)
	a.electionID = next
	return true
}

// recvArbitration waits for the arbitration reply. Other stream
// messages arriving first are logged and skipped; the device is allowed
// to send them.
func (a *arbitrator) recvArbitration(stream *p4client.Stream) (*p4v1.MasterArbitrationUpdate, error) {
	for {
		resp, err := stream.Recv()
		if err != nil {
			return nil, err
		}
		if arb := resp.GetArbitration(); arb != nil {
			return arb, nil
		}
		a.log.Debugf("stream message before arbitration reply: %T", resp.GetUpdate())
	}
}

// update applies an arbitration update received after the handshake.
// It reports the new primary status, whether that status changed, and
// a fresh bid to send when the device reports the primary slot vacant
// (the previous primary left and the target does not auto-promote).
func (a *arbitrator) update(arb *p4v1.MasterArbitrationUpdate) (primary, changed bool, rebid *p4v1.StreamMessageRequest) {
	a.mu.Lock()
	defer a.mu.Unlock()
	wasPrimary := a.isPrimary
	code := codes.Code(arb.GetStatus().GetCode())
	a.isPrimary = code == codes.OK
	a.primaryID = electionIDFromProto(arb.GetElectionId())
	if code == codes.NotFound && a.claimVacancyLocked(a.primaryID) {
		rebid = a.requestLocked()
	}
	return a.isPrimary, a.isPrimary != wasPrimary, rebid
}
