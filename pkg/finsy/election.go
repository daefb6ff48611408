package finsy

import (
	"fmt"
	"strconv"

	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"
)

// ElectionID is a 128-bit arbitration election id. The zero value is
// reserved by P4Runtime to mean "no primary" and is never sent.
type ElectionID struct {
	High uint64
	Low  uint64
}

// ElectionIDFromUint64 builds an election id from a small value.
func ElectionIDFromUint64(v uint64) ElectionID {
	return ElectionID{Low: v}
}

// IsZero reports whether the id is the reserved zero value.
func (e ElectionID) IsZero() bool { return e.High == 0 && e.Low == 0 }

// Decrement returns the next lower id. ok is false when the result would
// be the reserved zero value.
func (e ElectionID) Decrement() (_ ElectionID, ok bool) {
	if e.Low == 0 {
		if e.High == 0 {
			return e, false
		}
		e.High--
		e.Low = ^uint64(0)
	} else {
		e.Low--
	}
	return e, !e.IsZero()
}

// Cmp returns -1, 0 or 1 comparing e against other.
func (e ElectionID) Cmp(other ElectionID) int {
	switch {
	case e.High != other.High:
		if e.High < other.High {
			return -1
		}
		return 1
	case e.Low != other.Low:
		if e.Low < other.Low {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// Proto converts the id to its wire form; the zero id becomes nil.
func (e ElectionID) Proto() *p4v1.Uint128 {
	if e.IsZero() {
		return nil
	}
	return &p4v1.Uint128{High: e.High, Low: e.Low}
}

func electionIDFromProto(pb *p4v1.Uint128) ElectionID {
	return ElectionID{High: pb.GetHigh(), Low: pb.GetLow()}
}

func (e ElectionID) String() string {
	if e.High == 0 {
		return strconv.FormatUint(e.Low, 10)
	}
	return fmt.Sprintf("%#x_%016x", e.High, e.Low)
}
