package finsy

import (
	"context"
	"fmt"

	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"

	"github.com/finsy-network/finsy/pkg/p4entity"
	"github.com/finsy-network/finsy/pkg/util"
)

// Reader consumes one category of inbound stream messages. Each reader
// has its own bounded queue; when the consumer falls behind, the oldest
// messages are dropped and the drop is surfaced as a STREAM_ERROR
// event. Close the reader to stop receiving.
type Reader[T any] struct {
	q          *util.DropQueue[T]
	unregister func()
}

func newReader[T any]() *Reader[T] {
	return &Reader[T]{q: util.NewDropQueue[T](streamQueueSize)}
}

// Next returns the next message, blocking until one arrives, the
// context is cancelled, or the reader is closed.
func (r *Reader[T]) Next(ctx context.Context) (T, error) {
	return r.q.Get(ctx)
}

// Dropped returns how many messages were discarded because the reader
// fell behind.
func (r *Reader[T]) Dropped() uint64 { return r.q.Dropped() }

// Close unregisters the reader. Messages already queued remain readable
// until Next returns ErrClosed.
func (r *Reader[T]) Close() {
	r.unregister()
	r.q.Close()
}

// ReadPackets returns a reader of punted packets. With ethTypes given,
// only packets whose Ethernet type matches are delivered; other readers
// are unaffected.
func (sw *Switch) ReadPackets(ethTypes ...uint16) *Reader[*p4entity.PacketIn] {
	var filter map[uint16]struct{}
	if len(ethTypes) > 0 {
		filter = make(map[uint16]struct{}, len(ethTypes))
		for _, et := range ethTypes {
			filter[et] = struct{}{}
		}
	}

	r := newReader[*p4entity.PacketIn]()
	sw.mu.Lock()
	sw.packetReaders[r] = filter
	sw.mu.Unlock()
	r.unregister = func() {
		sw.mu.Lock()
		delete(sw.packetReaders, r)
		sw.mu.Unlock()
	}
	return r
}

// ReadDigests returns a reader of digest lists for the named digest.
func (sw *Switch) ReadDigests(digest string) (*Reader[*p4entity.DigestList], error) {
	dg, err := sw.Schema().Digests().Get(digest)
	if err != nil {
		return nil, err
	}

	r := newReader[*p4entity.DigestList]()
	sw.mu.Lock()
	sw.digestReaders[r] = dg.Name
	sw.mu.Unlock()
	r.unregister = func() {
		sw.mu.Lock()
		delete(sw.digestReaders, r)
		sw.mu.Unlock()
	}
	return r, nil
}

// ReadIdleTimeouts returns a reader of idle timeout notifications.
func (sw *Switch) ReadIdleTimeouts() *Reader[*p4entity.IdleTimeoutNotification] {
	r := newReader[*p4entity.IdleTimeoutNotification]()
	sw.mu.Lock()
	sw.idleReaders[r] = struct{}{}
	sw.mu.Unlock()
	r.unregister = func() {
		sw.mu.Lock()
		delete(sw.idleReaders, r)
		sw.mu.Unlock()
	}
	return r
}

// deliver enqueues v, reporting overflow as a STREAM_ERROR event.
func deliver[T any](sw *Switch, q *util.DropQueue[T], v T, what string) {
	before := q.Dropped()
	q.Put(v)
	if after := q.Dropped(); after > before {
		sw.emit(Event{
			Kind:   EventStreamError,
			Switch: sw,
			Err:    fmt.Errorf("%s queue overflow: %d dropped", what, after),
		})
	}
}

func (sw *Switch) deliverPacket(pb *p4v1.PacketIn) {
	packet, err := p4entity.DecodePacketIn(sw.Schema(), pb)
	if err != nil {
		sw.log.Warnf("malformed packet-in: %v", err)
		return
	}
	ethType := packet.EtherType()

	sw.mu.Lock()
	readers := make(map[*Reader[*p4entity.PacketIn]]map[uint16]struct{}, len(sw.packetReaders))
	for r, filter := range sw.packetReaders {
		readers[r] = filter
	}
	sw.mu.Unlock()

	for r, filter := range readers {
		if filter != nil {
			if _, ok := filter[ethType]; !ok {
				continue
			}
		}
		deliver(sw, r.q, packet, "packet")
	}
}

func (sw *Switch) deliverDigest(pb *p4v1.DigestList) {
	list, err := p4entity.DecodeDigestList(sw.Schema(), pb)
	if err != nil {
		sw.log.Warnf("malformed digest list: %v", err)
		return
	}

	sw.mu.Lock()
	readers := make([]*Reader[*p4entity.DigestList], 0, len(sw.digestReaders))
	for r, name := range sw.digestReaders {
		if name == list.Digest {
			readers = append(readers, r)
		}
	}
	sw.mu.Unlock()

	if len(readers) == 0 {
		sw.log.Debugf("digest %s: no reader, discarding %d entries", list.Digest, len(list.Data))
		return
	}
	for _, r := range readers {
		deliver(sw, r.q, list, "digest")
	}
}

func (sw *Switch) deliverIdleTimeout(pb *p4v1.IdleTimeoutNotification) {
	n, err := p4entity.DecodeIdleTimeout(sw.Schema(), pb)
	if err != nil {
		sw.log.Warnf("malformed idle timeout notification: %v", err)
		return
	}

	sw.mu.Lock()
	readers := make([]*Reader[*p4entity.IdleTimeoutNotification], 0, len(sw.idleReaders))
	for r := range sw.idleReaders {
		readers = append(readers, r)
	}
	sw.mu.Unlock()

	for _, r := range readers {
		deliver(sw, r.q, n, "idle-timeout")
	}
}
