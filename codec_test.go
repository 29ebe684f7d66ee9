// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2026 Peter Nørlund

package snmp

import (
	"errors"
	"testing"

	"github.com/gosnmp/gosnmp"
	"github.com/tidwall/gjson"
)

func mustValue(t *testing.T, v Value, err error) Value {
	t.Helper()
	if err != nil {
		t.Fatalf("building value: %v", err)
	}
	return v
}

func TestValueCodecRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		v    Value
	}{
		{"absent", Value{}},
		{"octet-string", OctetString([]byte("hello\nworld\x00"))},
		{"empty octet-string", OctetString(nil)},
		{"int32 negative", Integer32(-2147483648)},
		{"counter32 max", Counter32(4294967295)},
		{"gauge32", Gauge32(100)},
		{"timeticks", TimeTicks(8675309)},
		{"counter64 beyond 32 bits", Counter64(18446744073709551615)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			enc, err := encodeValue(tc.v)
			if err != nil {
				t.Fatalf("encode failed: %v", err)
			}
			got, err := decodeValue(gjson.Parse(enc))
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if !got.Equal(tc.v) {
				t.Errorf("round trip = %v, want %v", got, tc.v)
			}
		})
	}
}

func TestValueCodecRoundTripStructured(t *testing.T) {
	rawOID, err := ObjectIdentifier("1.3.6.1.4.1.9")
	oid := mustValue(t, rawOID, err)
	rawIP, err := ParseIPAddress("203.0.113.77")
	ip := mustValue(t, rawIP, err)

	for _, v := range []Value{
		oid,
		ip,
		Opaque(Counter64(1 << 50)),
		Opaque(Opaque(Integer32(3))),
		OpaqueBytes([]byte{0x44, 0x07}),
	} {
		enc, err := encodeValue(v)
		if err != nil {
			t.Fatalf("encode %s failed: %v", v.Type(), err)
		}
		got, err := decodeValue(gjson.Parse(enc))
		if err != nil {
			t.Fatalf("decode %s failed: %v", v.Type(), err)
		}
		if !got.Equal(v) {
			t.Errorf("round trip %s = %v, want %v", v.Type(), got, v)
		}
	}
}

func TestValueCodecAbsentIsNull(t *testing.T) {
	enc, err := encodeValue(Value{})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if enc != "null" {
		t.Errorf("absent encodes as %q, want null", enc)
	}
}

func TestDecodeValueRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown tag", `{"tag":"float","value":1.5}`},
		{"missing tag", `{"value":1}`},
		{"not an object", `42`},
		{"int32 overflow", `{"tag":"int32","value":2147483648}`},
		{"counter32 overflow", `{"tag":"counter32","value":4294967296}`},
		{"bad base64", `{"tag":"octet-string","value":"!!!"}`},
		{"bad oid", `{"tag":"oid","value":"1.3.x"}`},
		{"bad ip", `{"tag":"ip-address","value":"999.1.1.1"}`},
		{"opaque wrapping null", `{"tag":"opaque","value":null}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeValue(gjson.Parse(tc.doc))
			if err == nil {
				t.Fatalf("decodeValue accepted %s", tc.doc)
			}
			var e *Error
			if !errors.As(err, &e) || e.Kind != ErrorProtocol {
				t.Errorf("error = %v, want protocol kind", err)
			}
		})
	}
}

func TestValueFromPDU(t *testing.T) {
	tests := []struct {
		name string
		pdu  gosnmp.SnmpPDU
		want Value
	}{
		{"noSuchObject", gosnmp.SnmpPDU{Type: gosnmp.NoSuchObject}, Value{}},
		{"noSuchInstance", gosnmp.SnmpPDU{Type: gosnmp.NoSuchInstance}, Value{}},
		{"endOfMibView", gosnmp.SnmpPDU{Type: gosnmp.EndOfMibView}, Value{}},
		{"null", gosnmp.SnmpPDU{Type: gosnmp.Null}, Value{}},
		{"octets", gosnmp.SnmpPDU{Type: gosnmp.OctetString, Value: []byte("sw1")}, OctetString([]byte("sw1"))},
		{"octets as string", gosnmp.SnmpPDU{Type: gosnmp.OctetString, Value: "sw1"}, OctetString([]byte("sw1"))},
		{"integer", gosnmp.SnmpPDU{Type: gosnmp.Integer, Value: int(-7)}, Integer32(-7)},
		{"counter32", gosnmp.SnmpPDU{Type: gosnmp.Counter32, Value: uint(42)}, Counter32(42)},
		{"timeticks", gosnmp.SnmpPDU{Type: gosnmp.TimeTicks, Value: uint32(100)}, TimeTicks(100)},
		{"counter64", gosnmp.SnmpPDU{Type: gosnmp.Counter64, Value: uint64(1) << 40}, Counter64(1 << 40)},
		{"opaque", gosnmp.SnmpPDU{Type: gosnmp.Opaque, Value: []byte{1, 2}}, OpaqueBytes([]byte{1, 2})},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := valueFromPDU(tc.pdu)
			if err != nil {
				t.Fatalf("valueFromPDU failed: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Errorf("valueFromPDU = %v, want %v", got, tc.want)
			}
		})
	}

	if _, err := valueFromPDU(gosnmp.SnmpPDU{Type: gosnmp.OpaqueFloat, Value: float32(1)}); err == nil {
		t.Error("valueFromPDU accepted an unsupported pdu type")
	}
	if _, err := valueFromPDU(gosnmp.SnmpPDU{Type: gosnmp.Integer, Value: int64(1) << 40}); err == nil {
		t.Error("valueFromPDU accepted an out-of-range integer")
	}
}

func TestValueToPDU(t *testing.T) {
	pdu, err := valueToPDU("1.3.6.1.2.1.1.5.0", OctetString([]byte("core-sw")))
	if err != nil {
		t.Fatalf("valueToPDU failed: %v", err)
	}
	if pdu.Name != "1.3.6.1.2.1.1.5.0" || pdu.Type != gosnmp.OctetString {
		t.Errorf("pdu = %+v", pdu)
	}

	if _, err := valueToPDU("1.3.6", Value{}); err == nil {
		t.Error("valueToPDU accepted the absent marker")
	}
	if _, err := valueToPDU("1.3.6", Opaque(Integer32(1))); err == nil {
		t.Error("valueToPDU accepted a nested opaque value")
	}
	if _, err := valueToPDU("1.3.6", OpaqueBytes([]byte{1})); err != nil {
		t.Errorf("valueToPDU rejected a raw opaque payload: %v", err)
	}
}
