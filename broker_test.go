// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2026 Peter Nørlund

package snmp

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gosnmp/gosnmp"
)

// requestScript renders a sequence of request frames as a pipe stream.
func requestScript(t *testing.T, reqs ...*Request) string {
	t.Helper()
	var sb strings.Builder
	for _, req := range reqs {
		frame, err := encodeRequest(req)
		if err != nil {
			t.Fatalf("encoding request: %v", err)
		}
		sb.WriteString(frame)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// readResponses decodes every frame the broker wrote.
func readResponses(t *testing.T, out string) []*Response {
	t.Helper()
	var resps []*Response
	fr := newFrameReader(strings.NewReader(out))
	for {
		frame, err := fr.read()
		if err != nil {
			return resps
		}
		resp, err := decodeResponse(frame)
		if err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		resps = append(resps, resp)
	}
}

func TestBrokerServeGet(t *testing.T) {
	conn := &fakeConn{
		get: func(oids []string) (*gosnmp.SnmpPacket, error) {
			return &gosnmp.SnmpPacket{Variables: []gosnmp.SnmpPDU{
				{Name: "." + oids[0], Type: gosnmp.OctetString, Value: []byte("IOS XE 17.9")},
			}}, nil
		},
	}
	in := requestScript(t,
		&Request{ID: 1, Method: MethodGet, OIDs: []string{"1.3.6.1.2.1.1.1.0", "1.3.6.1.2.1.1.9.0"}})
	var out strings.Builder

	broker := NewBroker(newTestSession(conn), strings.NewReader(in), &out)
	if err := broker.Serve(context.Background()); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}

	resps := readResponses(t, out.String())
	if len(resps) != 1 {
		t.Fatalf("got %d responses, want 1", len(resps))
	}
	resp := resps[0]
	if resp.ID != 1 || resp.Err != nil {
		t.Fatalf("response = %+v", resp)
	}
	if resp.Binds.Len() != 2 {
		t.Fatalf("binds = %d, want one entry per requested oid", resp.Binds.Len())
	}
	if v := resp.Binds.Value("1.3.6.1.2.1.1.1.0"); string(v.Bytes()) != "IOS XE 17.9" {
		t.Errorf("sysDescr = %v", v)
	}
	if !resp.Binds.Value("1.3.6.1.2.1.1.9.0").Absent() {
		t.Error("unanswered oid is not absent")
	}
}

func TestBrokerServeEmptySet(t *testing.T) {
	conn := &fakeConn{}
	in := requestScript(t, &Request{ID: 7, Method: MethodSet})
	var out strings.Builder

	broker := NewBroker(newTestSession(conn), strings.NewReader(in), &out)
	if err := broker.Serve(context.Background()); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}

	resps := readResponses(t, out.String())
	if len(resps) != 1 || !resps[0].OK || resps[0].ID != 7 {
		t.Fatalf("responses = %+v", resps)
	}
	if conn.setCalls != 0 {
		t.Error("empty set contacted the device")
	}
}

func TestBrokerServeErrorThenContinues(t *testing.T) {
	conn := &fakeConn{
		get: func(oids []string) (*gosnmp.SnmpPacket, error) {
			return &gosnmp.SnmpPacket{}, nil
		},
	}
	in := requestScript(t,
		&Request{ID: 1, Method: MethodGet, OIDs: []string{"bad-oid"}},
		&Request{ID: 2, Method: MethodGet, OIDs: []string{"1.3.6.1.2.1.1.1.0"}})
	var out strings.Builder

	broker := NewBroker(newTestSession(conn), strings.NewReader(in), &out)
	if err := broker.Serve(context.Background()); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}

	resps := readResponses(t, out.String())
	if len(resps) != 2 {
		t.Fatalf("got %d responses, a failed request must not end the loop", len(resps))
	}
	if resps[0].ID != 1 || resps[0].Err == nil || resps[0].Err.Kind != ErrorProtocol {
		t.Errorf("first response = %+v, want a protocol error", resps[0])
	}
	if resps[1].ID != 2 || resps[1].Err != nil {
		t.Errorf("second response = %+v, want success", resps[1])
	}
}

func TestBrokerServeUndecodableFrame(t *testing.T) {
	var out strings.Builder
	broker := NewBroker(newTestSession(&fakeConn{}), strings.NewReader("{\"oids\":[]}\n"), &out)

	err := broker.Serve(context.Background())
	var e *Error
	if !errors.As(err, &e) || e.Kind != ErrorProtocol {
		t.Fatalf("Serve = %v, want a protocol error", err)
	}
	if out.Len() != 0 {
		t.Errorf("broker answered an unattributable frame: %q", out.String())
	}
}

func TestBrokerServeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out strings.Builder
	broker := NewBroker(newTestSession(&fakeConn{}), strings.NewReader(""), &out)
	if err := broker.Serve(ctx); err == nil {
		t.Fatal("Serve ignored a cancelled context")
	}
}

func TestBrokerServeDeviceError(t *testing.T) {
	conn := &fakeConn{
		set: func([]gosnmp.SnmpPDU) (*gosnmp.SnmpPacket, error) {
			return &gosnmp.SnmpPacket{Error: gosnmp.NotWritable, ErrorIndex: 1}, nil
		},
	}
	in := requestScript(t, &Request{ID: 3, Method: MethodSet, Binds: []VarBind{
		{OID: "1.3.6.1.2.1.1.5.0", Value: OctetString([]byte("x"))},
	}})
	var out strings.Builder

	broker := NewBroker(newTestSession(conn), strings.NewReader(in), &out)
	if err := broker.Serve(context.Background()); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}

	resps := readResponses(t, out.String())
	if len(resps) != 1 || resps[0].Err == nil {
		t.Fatalf("responses = %+v, want one error response", resps)
	}
	if resps[0].Err.Kind != ErrorDevice {
		t.Errorf("kind = %s, want device", resps[0].Err.Kind)
	}
	if !strings.Contains(resps[0].Err.Message, "notWritable") {
		t.Errorf("message = %q", resps[0].Err.Message)
	}
}
