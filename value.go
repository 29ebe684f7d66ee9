// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2026 Peter Nørlund

package snmp

import (
	"bytes"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ValueType identifies the variant held by a Value.
//
// The zero ValueType means "absent": the device reported no value for the
// requested OID (noSuchObject, noSuchInstance and endOfMibView all collapse
// into this one marker when crossing the RPC boundary).
type ValueType int

const (
	// TypeOctetString holds an arbitrary byte string
	TypeOctetString ValueType = iota + 1

	// TypeObjectIdentifier holds a canonical dotted-decimal OID
	TypeObjectIdentifier

	// TypeInteger32 holds a 32-bit signed integer
	TypeInteger32

	// TypeCounter32 holds a 32-bit unsigned monotonic counter
	TypeCounter32

	// TypeGauge32 holds a 32-bit unsigned gauge
	TypeGauge32

	// TypeTimeTicks holds a 32-bit unsigned duration in centiseconds
	TypeTimeTicks

	// TypeIPAddress holds a 4-byte IPv4 address
	TypeIPAddress

	// TypeOpaque wraps another Value or a raw byte payload
	TypeOpaque

	// TypeCounter64 holds a 64-bit unsigned monotonic counter
	TypeCounter64
)

// String returns the stable wire tag of the value type.
func (t ValueType) String() string {
	switch t {
	case TypeOctetString:
		return "octet-string"
	case TypeObjectIdentifier:
		return "oid"
	case TypeInteger32:
		return "int32"
	case TypeCounter32:
		return "counter32"
	case TypeGauge32:
		return "gauge32"
	case TypeTimeTicks:
		return "timeticks"
	case TypeIPAddress:
		return "ip-address"
	case TypeOpaque:
		return "opaque"
	case TypeCounter64:
		return "counter64"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Value is the tagged union carried between workers and the device session.
//
// Numeric variants always store a canonical numeric value regardless of the
// textual form they were received in. The zero Value is the absent marker.
type Value struct {
	typ ValueType

	raw     []byte // OctetString payload, Opaque raw payload, IPAddress 4 bytes
	str     string // ObjectIdentifier canonical dotted form
	i32     int32
	u32     uint32 // Counter32, Gauge32, TimeTicks
	u64     uint64
	wrapped *Value // Opaque nested value
}

// OctetString returns a Value holding an arbitrary byte string.
func OctetString(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{typ: TypeOctetString, raw: cp}
}

// ObjectIdentifier returns a Value holding an OID, canonicalized to plain
// dotted-decimal form. The OID must be syntactically valid.
func ObjectIdentifier(oid string) (Value, error) {
	canon, err := CanonicalOID(oid)
	if err != nil {
		return Value{}, err
	}
	return Value{typ: TypeObjectIdentifier, str: canon}, nil
}

// Integer32 returns a Value holding a 32-bit signed integer.
func Integer32(v int32) Value {
	return Value{typ: TypeInteger32, i32: v}
}

// Counter32 returns a Value holding a 32-bit unsigned counter.
func Counter32(v uint32) Value {
	return Value{typ: TypeCounter32, u32: v}
}

// Gauge32 returns a Value holding a 32-bit unsigned gauge.
func Gauge32(v uint32) Value {
	return Value{typ: TypeGauge32, u32: v}
}

// TimeTicks returns a Value holding a duration in centiseconds.
func TimeTicks(centiseconds uint32) Value {
	return Value{typ: TypeTimeTicks, u32: centiseconds}
}

// IPAddress returns a Value holding a 4-byte IPv4 address.
func IPAddress(ip net.IP) (Value, error) {
	v4 := ip.To4()
	if v4 == nil {
		return Value{}, protocolErrorf("", "not an IPv4 address: %s", ip)
	}
	raw := make([]byte, 4)
	copy(raw, v4)
	return Value{typ: TypeIPAddress, raw: raw}, nil
}

// ParseIPAddress returns an IPAddress Value from dotted-quad text.
func ParseIPAddress(s string) (Value, error) {
	ip := net.ParseIP(s)
	if ip == nil {
		return Value{}, protocolErrorf("", "not an IPv4 address: %q", s)
	}
	return IPAddress(ip)
}

// Opaque returns a Value wrapping another Value.
func Opaque(inner Value) Value {
	cp := inner
	return Value{typ: TypeOpaque, wrapped: &cp}
}

// OpaqueBytes returns a Value wrapping a raw, undecoded opaque payload.
func OpaqueBytes(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{typ: TypeOpaque, raw: cp}
}

// Counter64 returns a Value holding a 64-bit unsigned counter.
func Counter64(v uint64) Value {
	return Value{typ: TypeCounter64, u64: v}
}

// Type returns the variant tag, or 0 for the absent marker.
func (v Value) Type() ValueType {
	return v.typ
}

// Absent reports whether the value is the absent marker.
func (v Value) Absent() bool {
	return v.typ == 0
}

// Bytes returns the byte payload of an OctetString, raw Opaque or IPAddress
// value, and nil for every other variant.
func (v Value) Bytes() []byte {
	switch v.typ {
	case TypeOctetString, TypeIPAddress:
		return v.raw
	case TypeOpaque:
		if v.wrapped == nil {
			return v.raw
		}
	}
	return nil
}

// Int returns the numeric value of an Integer32 variant and 0 otherwise.
func (v Value) Int() int32 {
	if v.typ == TypeInteger32 {
		return v.i32
	}
	return 0
}

// Uint returns the numeric value of a Counter32, Gauge32 or TimeTicks
// variant and 0 otherwise.
func (v Value) Uint() uint32 {
	switch v.typ {
	case TypeCounter32, TypeGauge32, TypeTimeTicks:
		return v.u32
	}
	return 0
}

// Uint64 returns the numeric value of a Counter64 variant and 0 otherwise.
func (v Value) Uint64() uint64 {
	if v.typ == TypeCounter64 {
		return v.u64
	}
	return 0
}

// Wrapped returns the nested value of an Opaque variant, or the absent
// marker when the opaque payload is raw or the variant is not Opaque.
func (v Value) Wrapped() Value {
	if v.typ == TypeOpaque && v.wrapped != nil {
		return *v.wrapped
	}
	return Value{}
}

// String renders the value in a human-readable textual form. It never
// returns credential material beyond what the value itself carries.
func (v Value) String() string {
	switch v.typ {
	case 0:
		return "<absent>"
	case TypeOctetString:
		return string(v.raw)
	case TypeObjectIdentifier:
		return v.str
	case TypeInteger32:
		return strconv.FormatInt(int64(v.i32), 10)
	case TypeCounter32, TypeGauge32, TypeTimeTicks:
		return strconv.FormatUint(uint64(v.u32), 10)
	case TypeIPAddress:
		return net.IP(v.raw).String()
	case TypeOpaque:
		if v.wrapped != nil {
			return v.wrapped.String()
		}
		return fmt.Sprintf("opaque(%d bytes)", len(v.raw))
	case TypeCounter64:
		return strconv.FormatUint(v.u64, 10)
	default:
		return fmt.Sprintf("<%s>", v.typ)
	}
}

// Equal reports whether two values hold the same variant and payload.
func (v Value) Equal(other Value) bool {
	if v.typ != other.typ {
		return false
	}
	switch v.typ {
	case 0:
		return true
	case TypeOctetString, TypeIPAddress:
		return bytes.Equal(v.raw, other.raw)
	case TypeObjectIdentifier:
		return v.str == other.str
	case TypeInteger32:
		return v.i32 == other.i32
	case TypeCounter32, TypeGauge32, TypeTimeTicks:
		return v.u32 == other.u32
	case TypeCounter64:
		return v.u64 == other.u64
	case TypeOpaque:
		if (v.wrapped == nil) != (other.wrapped == nil) {
			return false
		}
		if v.wrapped != nil {
			return v.wrapped.Equal(*other.wrapped)
		}
		return bytes.Equal(v.raw, other.raw)
	default:
		return false
	}
}

// CanonicalOID re-renders a dotted-decimal OID with each subidentifier as a
// plain integer, removing leading zeros: "1.3.6.01.4.1" becomes
// "1.3.6.1.4.1". A leading dot, as produced by gosnmp, is accepted and
// stripped.
func CanonicalOID(oid string) (string, error) {
	trimmed := strings.TrimPrefix(oid, ".")
	if trimmed == "" {
		return "", protocolErrorf("", "empty oid")
	}
	parts := strings.Split(trimmed, ".")
	var builder strings.Builder
	builder.Grow(len(trimmed))
	for i, part := range parts {
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return "", protocolErrorf("", "invalid oid %q: bad subidentifier %q", oid, part)
		}
		if i > 0 {
			builder.WriteByte('.')
		}
		builder.WriteString(strconv.FormatUint(n, 10))
	}
	return builder.String(), nil
}

// VarBind is one (OID, value) pair. An absent Value records one of the
// device-side "no value" conditions.
type VarBind struct {
	// OID is the canonical dotted-decimal object identifier
	OID string

	// Value is the bound value, or the absent marker
	Value Value
}

// Bindings is an insertion-ordered OID-to-Value mapping, used for get and
// walk results.
type Bindings struct {
	order  []string
	values map[string]Value
}

// NewBindings creates an empty Bindings.
func NewBindings() *Bindings {
	return &Bindings{values: make(map[string]Value)}
}

// Add stores a value under the given key, preserving first-insertion order.
// Adding an existing key overwrites the value in place.
func (b *Bindings) Add(oid string, v Value) {
	if _, ok := b.values[oid]; !ok {
		b.order = append(b.order, oid)
	}
	b.values[oid] = v
}

// Get returns the value stored under the key and whether it exists.
func (b *Bindings) Get(oid string) (Value, bool) {
	v, ok := b.values[oid]
	return v, ok
}

// Value returns the value stored under the key, or the absent marker.
func (b *Bindings) Value(oid string) Value {
	return b.values[oid]
}

// OIDs returns the keys in insertion order. The returned slice is a copy.
func (b *Bindings) OIDs() []string {
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

// Len returns the number of entries.
func (b *Bindings) Len() int {
	return len(b.order)
}

// Each calls fn for every entry in insertion order until fn returns false.
func (b *Bindings) Each(fn func(oid string, v Value) bool) {
	for _, oid := range b.order {
		if !fn(oid, b.values[oid]) {
			return
		}
	}
}
