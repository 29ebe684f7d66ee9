// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2026 Peter Nørlund

package snmp

import (
	"encoding/base64"
	"math"
	"net"

	"github.com/gosnmp/gosnmp"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Wire tags for the value codec. Every Value variant has exactly one stable
// tag; an unrecognized tag on decode is a hard protocol error, never a
// defaulted value.
const (
	tagOctetString = "octet-string"
	tagOID         = "oid"
	tagInteger32   = "int32"
	tagCounter32   = "counter32"
	tagGauge32     = "gauge32"
	tagTimeTicks   = "timeticks"
	tagIPAddress   = "ip-address"
	tagOpaque      = "opaque"
	tagCounter64   = "counter64"
)

// encodeValue renders a Value as a JSON object with a "tag" discriminator.
// Binary payloads ride base64 so the encoded form can never contain the
// frame delimiter. The absent marker encodes as JSON null.
func encodeValue(v Value) (string, error) {
	if v.Absent() {
		return "null", nil
	}

	obj, err := sjson.Set("", "tag", v.typ.String())
	if err != nil {
		return "", protocolErrorf("encode", "building value object: %s", err)
	}

	switch v.typ {
	case TypeOctetString:
		obj, err = sjson.Set(obj, "value", base64.StdEncoding.EncodeToString(v.raw))
	case TypeObjectIdentifier:
		obj, err = sjson.Set(obj, "value", v.str)
	case TypeInteger32:
		obj, err = sjson.Set(obj, "value", int64(v.i32))
	case TypeCounter32, TypeGauge32, TypeTimeTicks:
		obj, err = sjson.Set(obj, "value", uint64(v.u32))
	case TypeIPAddress:
		obj, err = sjson.Set(obj, "value", net.IP(v.raw).String())
	case TypeCounter64:
		obj, err = sjson.Set(obj, "value", v.u64)
	case TypeOpaque:
		if v.wrapped != nil {
			var inner string
			inner, err = encodeValue(*v.wrapped)
			if err != nil {
				return "", err
			}
			obj, err = sjson.SetRaw(obj, "value", inner)
		} else {
			obj, err = sjson.Set(obj, "raw", base64.StdEncoding.EncodeToString(v.raw))
		}
	default:
		return "", protocolErrorf("encode", "unrecognized value type %s", v.typ)
	}
	if err != nil {
		return "", protocolErrorf("encode", "building value object: %s", err)
	}
	return obj, nil
}

// decodeValue rebuilds a Value from its wire object. JSON null decodes to
// the absent marker.
func decodeValue(res gjson.Result) (Value, error) {
	if res.Type == gjson.Null {
		return Value{}, nil
	}
	if !res.IsObject() {
		return Value{}, protocolErrorf("decode", "value is not an object: %s", res.Raw)
	}

	tag := res.Get("tag").String()
	switch tag {
	case tagOctetString:
		raw, err := base64.StdEncoding.DecodeString(res.Get("value").String())
		if err != nil {
			return Value{}, protocolErrorf("decode", "octet-string payload: %s", err)
		}
		return OctetString(raw), nil

	case tagOID:
		return ObjectIdentifier(res.Get("value").String())

	case tagInteger32:
		n := res.Get("value").Int()
		if n < math.MinInt32 || n > math.MaxInt32 {
			return Value{}, protocolErrorf("decode", "int32 out of range: %d", n)
		}
		return Integer32(int32(n)), nil

	case tagCounter32, tagGauge32, tagTimeTicks:
		n := res.Get("value").Uint()
		if n > math.MaxUint32 {
			return Value{}, protocolErrorf("decode", "%s out of range: %d", tag, n)
		}
		switch tag {
		case tagCounter32:
			return Counter32(uint32(n)), nil
		case tagGauge32:
			return Gauge32(uint32(n)), nil
		default:
			return TimeTicks(uint32(n)), nil
		}

	case tagIPAddress:
		return ParseIPAddress(res.Get("value").String())

	case tagOpaque:
		if raw := res.Get("raw"); raw.Exists() {
			payload, err := base64.StdEncoding.DecodeString(raw.String())
			if err != nil {
				return Value{}, protocolErrorf("decode", "opaque payload: %s", err)
			}
			return OpaqueBytes(payload), nil
		}
		inner, err := decodeValue(res.Get("value"))
		if err != nil {
			return Value{}, err
		}
		if inner.Absent() {
			return Value{}, protocolErrorf("decode", "opaque wraps no value")
		}
		return Opaque(inner), nil

	case tagCounter64:
		return Counter64(res.Get("value").Uint()), nil

	default:
		return Value{}, protocolErrorf("decode", "unrecognized value tag %q", tag)
	}
}

// valueToPDU converts a Value into the gosnmp PDU written to the device.
// It is total over the Value variants: everything it does not recognize is
// rejected explicitly, never guessed at.
func valueToPDU(oid string, v Value) (gosnmp.SnmpPDU, error) {
	pdu := gosnmp.SnmpPDU{Name: oid}
	switch v.typ {
	case TypeOctetString:
		pdu.Type = gosnmp.OctetString
		pdu.Value = v.raw
	case TypeObjectIdentifier:
		pdu.Type = gosnmp.ObjectIdentifier
		pdu.Value = v.str
	case TypeInteger32:
		pdu.Type = gosnmp.Integer
		pdu.Value = int(v.i32)
	case TypeCounter32:
		pdu.Type = gosnmp.Counter32
		pdu.Value = v.u32
	case TypeGauge32:
		pdu.Type = gosnmp.Gauge32
		pdu.Value = v.u32
	case TypeTimeTicks:
		pdu.Type = gosnmp.TimeTicks
		pdu.Value = v.u32
	case TypeIPAddress:
		pdu.Type = gosnmp.IPAddress
		pdu.Value = net.IP(v.raw).String()
	case TypeOpaque:
		if v.wrapped != nil {
			// gosnmp writes opaque payloads as raw bytes only; a nested
			// value has no BER rendering here.
			return gosnmp.SnmpPDU{}, protocolErrorf("encode", "nested opaque value cannot be written to the device")
		}
		pdu.Type = gosnmp.Opaque
		pdu.Value = v.raw
	case TypeCounter64:
		pdu.Type = gosnmp.Counter64
		pdu.Value = v.u64
	case 0:
		return gosnmp.SnmpPDU{}, protocolErrorf("encode", "absent value cannot be written to the device")
	default:
		return gosnmp.SnmpPDU{}, protocolErrorf("encode", "unrecognized value type %s", v.typ)
	}
	return pdu, nil
}

// valueFromPDU converts a gosnmp PDU received from the device into a Value.
// The three device-side "no value" conditions (noSuchObject, noSuchInstance,
// endOfMibView) and explicit null all map to the absent marker. Unrecognized
// ASN.1 tags are rejected explicitly.
func valueFromPDU(pdu gosnmp.SnmpPDU) (Value, error) {
	switch pdu.Type {
	case gosnmp.Null, gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView:
		return Value{}, nil

	case gosnmp.OctetString:
		switch payload := pdu.Value.(type) {
		case []byte:
			return OctetString(payload), nil
		case string:
			return OctetString([]byte(payload)), nil
		}
		return Value{}, protocolErrorf("decode", "octet-string pdu holds %T", pdu.Value)

	case gosnmp.ObjectIdentifier:
		s, ok := pdu.Value.(string)
		if !ok {
			return Value{}, protocolErrorf("decode", "oid pdu holds %T", pdu.Value)
		}
		return ObjectIdentifier(s)

	case gosnmp.Integer:
		n, ok := pduInt64(pdu.Value)
		if !ok || n < math.MinInt32 || n > math.MaxInt32 {
			return Value{}, protocolErrorf("decode", "integer pdu out of range: %v", pdu.Value)
		}
		return Integer32(int32(n)), nil

	case gosnmp.Counter32, gosnmp.Gauge32, gosnmp.TimeTicks:
		n, ok := pduUint64(pdu.Value)
		if !ok || n > math.MaxUint32 {
			return Value{}, protocolErrorf("decode", "%v pdu out of range: %v", pdu.Type, pdu.Value)
		}
		switch pdu.Type {
		case gosnmp.Counter32:
			return Counter32(uint32(n)), nil
		case gosnmp.Gauge32:
			return Gauge32(uint32(n)), nil
		default:
			return TimeTicks(uint32(n)), nil
		}

	case gosnmp.IPAddress:
		s, ok := pdu.Value.(string)
		if !ok {
			return Value{}, protocolErrorf("decode", "ip-address pdu holds %T", pdu.Value)
		}
		return ParseIPAddress(s)

	case gosnmp.Opaque:
		payload, ok := pdu.Value.([]byte)
		if !ok {
			return Value{}, protocolErrorf("decode", "opaque pdu holds %T", pdu.Value)
		}
		return OpaqueBytes(payload), nil

	case gosnmp.Counter64:
		n, ok := pduUint64(pdu.Value)
		if !ok {
			return Value{}, protocolErrorf("decode", "counter64 pdu holds %T", pdu.Value)
		}
		return Counter64(n), nil

	default:
		return Value{}, protocolErrorf("decode", "unrecognized pdu type 0x%x", int(pdu.Type))
	}
}

func pduInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint32:
		return int64(n), true
	default:
		return 0, false
	}
}

func pduUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint:
		return uint64(n), true
	case uint8:
		return uint64(n), true
	case uint16:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	case int:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	default:
		return 0, false
	}
}
