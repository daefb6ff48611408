// Package p4values converts between user-facing values (integers, strings,
// IP and MAC addresses) and the canonical bitstring representation that
// P4Runtime requires on the wire. Canonical bitstrings are big-endian with
// leading zero octets removed; the zero value is a single 0x00 octet.
package p4values

import (
	"fmt"
	"math/big"
	"net"
	"net/netip"
	"strings"

	"github.com/finsy-network/finsy/pkg/util"
)

// DecodeFormat selects the preferred Go representation of decoded values.
type DecodeFormat uint32

const (
	// Default decodes to uint64 (bitwidth <= 64) or a full-width []byte.
	Default DecodeFormat = 0
	// String decodes to a human-readable string.
	String DecodeFormat = 1 << 0
	// Address decodes 32/128-bit values to netip.Addr and 48-bit values to
	// net.HardwareAddr. Combined with String, yields the canonical textual
	// address form.
	Address DecodeFormat = 1 << 1
)

// LPM is a longest-prefix match value.
type LPM struct {
	Value     any
	PrefixLen int
}

// Ternary is a value/mask pair. A string form "value/&mask" is also
// accepted by EncodeTernary, as is "value/prefixlen".
type Ternary struct {
	Value any
	Mask  any
}

// Range is an inclusive low...high pair.
type Range struct {
	Low  any
	High any
}

// Truncate returns the canonical form of a big-endian bitstring: leading
// zero octets are removed and a zero value becomes a single 0x00 octet.
func Truncate(b []byte) []byte {
	i := 0
	for i < len(b)-1 && b[i] == 0 {
		i++
	}
	if len(b) == 0 {
		return []byte{0}
	}
	return b[i:]
}

// AllOnes returns the full-width mask for the given bitwidth.
func AllOnes(bitwidth int) *big.Int {
	one := big.NewInt(1)
	return new(big.Int).Sub(new(big.Int).Lsh(one, uint(bitwidth)), one)
}

// PrefixToMask returns the mask covering the top prefixLen bits of a
// bitwidth-wide field.
func PrefixToMask(prefixLen, bitwidth int) (*big.Int, error) {
	if prefixLen < 0 || prefixLen > bitwidth {
		return nil, util.NewEncodeError("", prefixLen, bitwidth, "prefix length out of range")
	}
	ones := AllOnes(prefixLen)
	return ones.Lsh(ones, uint(bitwidth-prefixLen)), nil
}

// MaskToPrefix returns the prefix length of a contiguous mask, or ok=false
// if the mask has holes.
func MaskToPrefix(mask *big.Int, bitwidth int) (int, bool) {
	ones := mask.BitLen()
	if ones == 0 {
		return 0, true
	}
	prefixLen := bitwidth - trailingZeros(mask)
	want, err := PrefixToMask(prefixLen, bitwidth)
	if err != nil || want.Cmp(mask) != 0 {
		return 0, false
	}
	return prefixLen, true
}

func trailingZeros(v *big.Int) int {
	if v.Sign() == 0 {
		return 0
	}
	n := 0
	for v.Bit(n) == 0 {
		n++
	}
	return n
}

// toUint converts a supported value type to an unsigned integer checked
// against bitwidth.
func toUint(value any, bitwidth int) (*big.Int, error) {
	v := new(big.Int)
	switch x := value.(type) {
	case int:
		if x < 0 {
			return nil, util.NewEncodeError("", value, bitwidth, "negative value")
		}
		v.SetInt64(int64(x))
	case int8:
		return toUint(int64(x), bitwidth)
	case int16:
		return toUint(int64(x), bitwidth)
	case int32:
		return toUint(int64(x), bitwidth)
	case int64:
		if x < 0 {
			return nil, util.NewEncodeError("", value, bitwidth, "negative value")
		}
		v.SetInt64(x)
	case uint:
		v.SetUint64(uint64(x))
	case uint8:
		v.SetUint64(uint64(x))
	case uint16:
		v.SetUint64(uint64(x))
	case uint32:
		v.SetUint64(uint64(x))
	case uint64:
		v.SetUint64(x)
	case bool:
		if x {
			v.SetInt64(1)
		}
	case []byte:
		v.SetBytes(x)
	case *big.Int:
		if x.Sign() < 0 {
			return nil, util.NewEncodeError("", value, bitwidth, "negative value")
		}
		v.Set(x)
	case netip.Addr:
		if x.Is4() && bitwidth == 32 {
			a := x.As4()
			v.SetBytes(a[:])
		} else if x.Is6() && bitwidth == 128 {
			a := x.As16()
			v.SetBytes(a[:])
		} else {
			return nil, util.NewEncodeError("", value, bitwidth, "address does not match bitwidth")
		}
	case net.IP:
		addr, ok := netip.AddrFromSlice(x)
		if !ok {
			return nil, util.NewEncodeError("", value, bitwidth, "invalid IP")
		}
		return toUint(addr.Unmap(), bitwidth)
	case net.HardwareAddr:
		if len(x)*8 != bitwidth {
			return nil, util.NewEncodeError("", value, bitwidth, "MAC does not match bitwidth")
		}
		v.SetBytes(x)
	case string:
		return parseString(x, bitwidth)
	default:
		return nil, util.NewEncodeError("", value, bitwidth, fmt.Sprintf("unsupported type %T", value))
	}
	if v.BitLen() > bitwidth {
		return nil, util.NewEncodeError("", value, bitwidth, "value does not fit")
	}
	return v, nil
}

func parseString(s string, bitwidth int) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, util.NewEncodeError("", s, bitwidth, "empty value")
	}
	// Base prefixes 0x/0o/0b and plain decimal.
	if v, ok := new(big.Int).SetString(s, 0); ok {
		return toUint(v, bitwidth)
	}
	switch bitwidth {
	case 32, 128:
		if addr, err := netip.ParseAddr(s); err == nil {
			return toUint(addr.Unmap(), bitwidth)
		}
	case 48:
		if mac, err := net.ParseMAC(s); err == nil {
			return toUint(mac, bitwidth)
		}
	}
	return nil, util.NewEncodeError("", s, bitwidth, "not a number or address")
}

// EncodeExact encodes a value to its canonical bitstring. A bitwidth of
// zero means the field is an SDN string and the value is passed through as
// raw bytes.
func EncodeExact(value any, bitwidth int) ([]byte, error) {
	if bitwidth == 0 {
		switch x := value.(type) {
		case string:
			return []byte(x), nil
		case []byte:
			return x, nil
		default:
			return nil, util.NewEncodeError("", value, 0, "sdn string requires string value")
		}
	}
	v, err := toUint(value, bitwidth)
	if err != nil {
		return nil, err
	}
	return encodeUint(v, bitwidth), nil
}

func encodeUint(v *big.Int, bitwidth int) []byte {
	size := (bitwidth + 7) / 8
	return Truncate(v.FillBytes(make([]byte, size)))
}

// DecodeExact decodes a canonical bitstring.
func DecodeExact(data []byte, bitwidth int, format DecodeFormat) (any, error) {
	if bitwidth == 0 {
		return string(data), nil
	}
	if len(data) == 0 {
		return nil, util.NewEncodeError("", data, bitwidth, "empty bitstring")
	}
	v := new(big.Int).SetBytes(data)
	if v.BitLen() > bitwidth {
		return nil, util.NewEncodeError("", data, bitwidth, "value does not fit")
	}
	return decodeUint(v, bitwidth, format), nil
}

func decodeUint(v *big.Int, bitwidth int, format DecodeFormat) any {
	if format&Address != 0 {
		switch bitwidth {
		case 32:
			var a [4]byte
			v.FillBytes(a[:])
			addr := netip.AddrFrom4(a)
			if format&String != 0 {
				return addr.String()
			}
			return addr
		case 128:
			var a [16]byte
			v.FillBytes(a[:])
			addr := netip.AddrFrom16(a)
			if format&String != 0 {
				return addr.String()
			}
			return addr
		case 48:
			mac := net.HardwareAddr(v.FillBytes(make([]byte, 6)))
			if format&String != 0 {
				return mac.String()
			}
			return mac
		}
	}
	if format&String != 0 {
		return fmt.Sprintf("%#x", v)
	}
	if bitwidth <= 64 {
		return v.Uint64()
	}
	return v.FillBytes(make([]byte, (bitwidth+7)/8))
}

// EncodeLPM encodes a longest-prefix match value. Accepted forms: LPM,
// netip.Prefix, "value/prefixlen" strings, or a plain value (full-width
// prefix). Host bits below the prefix are cleared.
func EncodeLPM(value any, bitwidth int) (data []byte, prefixLen int, err error) {
	var raw any
	switch x := value.(type) {
	case LPM:
		raw, prefixLen = x.Value, x.PrefixLen
	case netip.Prefix:
		raw, prefixLen = x.Addr(), x.Bits()
	case string:
		if i := strings.LastIndexByte(x, '/'); i >= 0 {
			n, convErr := parsePrefixLen(x[i+1:], bitwidth)
			if convErr != nil {
				return nil, 0, convErr
			}
			raw, prefixLen = x[:i], n
		} else {
			raw, prefixLen = x, bitwidth
		}
	default:
		raw, prefixLen = value, bitwidth
	}

	v, err := toUint(raw, bitwidth)
	if err != nil {
		return nil, 0, err
	}
	mask, err := PrefixToMask(prefixLen, bitwidth)
	if err != nil {
		return nil, 0, err
	}
	v.And(v, mask)
	return encodeUint(v, bitwidth), prefixLen, nil
}

func parsePrefixLen(s string, bitwidth int) (int, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || !n.IsInt64() || n.Int64() < 0 || n.Int64() > int64(bitwidth) {
		return 0, util.NewEncodeError("", s, bitwidth, "invalid prefix length")
	}
	return int(n.Int64()), nil
}

// DecodeLPM decodes a longest-prefix match value. With the Address format
// and a 32/128-bit field the result is a netip.Prefix.
func DecodeLPM(data []byte, prefixLen, bitwidth int, format DecodeFormat) (any, error) {
	if len(data) == 0 {
		return nil, util.NewEncodeError("", data, bitwidth, "empty bitstring")
	}
	v := new(big.Int).SetBytes(data)
	if v.BitLen() > bitwidth {
		return nil, util.NewEncodeError("", data, bitwidth, "value does not fit")
	}
	if format&Address != 0 && (bitwidth == 32 || bitwidth == 128) {
		addr := decodeUint(v, bitwidth, Address).(netip.Addr)
		p := netip.PrefixFrom(addr, prefixLen)
		if format&String != 0 {
			return p.String(), nil
		}
		return p, nil
	}
	if format&String != 0 {
		return fmt.Sprintf("%#x/%d", v, prefixLen), nil
	}
	return LPM{Value: decodeUint(v, bitwidth, format), PrefixLen: prefixLen}, nil
}

// EncodeTernary encodes a value/mask pair. Accepted forms: Ternary,
// netip.Prefix (mask derived from the prefix length), "value/&mask" or
// "value/prefixlen" strings, or a plain value (full mask). A value bit
// set where the mask is zero is an error; unlike LPM host bits, ternary
// values are never silently adjusted.
func EncodeTernary(value any, bitwidth int) (data, mask []byte, err error) {
	var rawValue, rawMask any
	switch x := value.(type) {
	case Ternary:
		rawValue, rawMask = x.Value, x.Mask
	case netip.Prefix:
		m, convErr := PrefixToMask(x.Bits(), bitwidth)
		if convErr != nil {
			return nil, nil, convErr
		}
		rawValue, rawMask = x.Addr(), m
	case string:
		if i := strings.LastIndex(x, "/&"); i >= 0 {
			rawValue, rawMask = x[:i], x[i+2:]
		} else if i := strings.LastIndexByte(x, '/'); i >= 0 {
			n, convErr := parsePrefixLen(x[i+1:], bitwidth)
			if convErr != nil {
				return nil, nil, convErr
			}
			m, convErr := PrefixToMask(n, bitwidth)
			if convErr != nil {
				return nil, nil, convErr
			}
			rawValue, rawMask = x[:i], m
		} else {
			rawValue, rawMask = x, AllOnes(bitwidth)
		}
	default:
		rawValue, rawMask = value, AllOnes(bitwidth)
	}

	v, err := toUint(rawValue, bitwidth)
	if err != nil {
		return nil, nil, err
	}
	m, err := toUint(rawMask, bitwidth)
	if err != nil {
		return nil, nil, err
	}
	if new(big.Int).AndNot(v, m).Sign() != 0 {
		return nil, nil, util.NewEncodeError("", value, bitwidth, "value bits set outside mask")
	}
	return encodeUint(v, bitwidth), encodeUint(m, bitwidth), nil
}

// DecodeTernary decodes a value/mask pair.
func DecodeTernary(data, mask []byte, bitwidth int, format DecodeFormat) (Ternary, error) {
	v, err := DecodeExact(data, bitwidth, format)
	if err != nil {
		return Ternary{}, err
	}
	m, err := DecodeExact(mask, bitwidth, format)
	if err != nil {
		return Ternary{}, err
	}
	return Ternary{Value: v, Mask: m}, nil
}

// EncodeRange encodes an inclusive low...high range. Accepted forms:
// Range, "low...high" strings, or a plain value (low == high).
func EncodeRange(value any, bitwidth int) (low, high []byte, err error) {
	var rawLow, rawHigh any
	switch x := value.(type) {
	case Range:
		rawLow, rawHigh = x.Low, x.High
	case string:
		if i := strings.Index(x, "..."); i >= 0 {
			rawLow, rawHigh = x[:i], x[i+3:]
		} else {
			rawLow, rawHigh = x, x
		}
	default:
		rawLow, rawHigh = value, value
	}

	lo, err := toUint(rawLow, bitwidth)
	if err != nil {
		return nil, nil, err
	}
	hi, err := toUint(rawHigh, bitwidth)
	if err != nil {
		return nil, nil, err
	}
	if lo.Cmp(hi) > 0 {
		return nil, nil, util.NewEncodeError("", value, bitwidth, "range low exceeds high")
	}
	return encodeUint(lo, bitwidth), encodeUint(hi, bitwidth), nil
}

// DecodeRange decodes an inclusive range.
func DecodeRange(low, high []byte, bitwidth int, format DecodeFormat) (Range, error) {
	lo, err := DecodeExact(low, bitwidth, format)
	if err != nil {
		return Range{}, err
	}
	hi, err := DecodeExact(high, bitwidth, format)
	if err != nil {
		return Range{}, err
	}
	return Range{Low: lo, High: hi}, nil
}

// IsAllZero reports whether a bitstring has no bits set.
func IsAllZero(b []byte) bool {
	for _, x := range b {
		if x != 0 {
			return false
		}
	}
	return true
}
