// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2026 Peter Nørlund

package snmp

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// MaxFrameSize caps a single RPC frame. A request pipe delivering a longer
// line is treated as a protocol failure.
const MaxFrameSize = 4 * 1024 * 1024

// Method is the closed set of RPC operations a worker can request. An
// unknown method name on the wire is a decode-time protocol error, not a
// runtime lookup failure.
type Method int

const (
	// MethodGet reads one or more OIDs in a single device exchange
	MethodGet Method = iota + 1

	// MethodSet writes a set of bindings in a single device exchange
	MethodSet

	// MethodWalk enumerates the subtree below a root OID
	MethodWalk
)

// String returns the wire name of the method.
func (m Method) String() string {
	switch m {
	case MethodGet:
		return "get"
	case MethodSet:
		return "set"
	case MethodWalk:
		return "walk"
	default:
		return "unknown"
	}
}

func parseMethod(s string) (Method, bool) {
	switch s {
	case "get":
		return MethodGet, true
	case "set":
		return MethodSet, true
	case "walk":
		return MethodWalk, true
	default:
		return 0, false
	}
}

// Request is one RPC request. The ID is caller-assigned and echoed verbatim
// in the matching Response.
type Request struct {
	// ID correlates the request with its response
	ID uint64

	// Method selects the operation
	Method Method

	// OIDs carries the read targets for MethodGet
	OIDs []string

	// Binds carries the write bindings for MethodSet
	Binds []VarBind

	// Root carries the subtree root for MethodWalk
	Root string
}

// Response is one RPC response: the echoed ID plus either a result or an
// error, never both.
type Response struct {
	// ID echoes the request ID verbatim
	ID uint64

	// Binds holds the result mapping for get and walk responses
	Binds *Bindings

	// OK reports success for set responses
	OK bool

	// Err holds the failure crossing the RPC boundary, if any
	Err *Error
}

// encodeRequest renders a request as one JSON frame (without the trailing
// delimiter).
func encodeRequest(req *Request) (string, error) {
	doc, _ := sjson.Set("", "id", req.ID)
	doc, _ = sjson.Set(doc, "method", req.Method.String())

	switch req.Method {
	case MethodGet:
		doc, _ = sjson.Set(doc, "oids", req.OIDs)
	case MethodSet:
		doc, _ = sjson.SetRaw(doc, "binds", "[]")
		for _, vb := range req.Binds {
			val, err := encodeValue(vb.Value)
			if err != nil {
				return "", err
			}
			obj, _ := sjson.Set("", "oid", vb.OID)
			obj, _ = sjson.SetRaw(obj, "value", val)
			doc, _ = sjson.SetRaw(doc, "binds.-1", obj)
		}
	case MethodWalk:
		doc, _ = sjson.Set(doc, "root", req.Root)
	default:
		return "", protocolErrorf("encode", "unrecognized method %d", int(req.Method))
	}
	return doc, nil
}

// decodeRequest parses one request frame. Any failure here is a protocol
// error: the broker cannot answer a request it cannot attribute to an ID
// and method, so these terminate its loop.
func decodeRequest(frame []byte) (*Request, error) {
	if !gjson.ValidBytes(frame) {
		return nil, protocolErrorf("decode", "malformed request frame")
	}
	doc := gjson.ParseBytes(frame)

	id := doc.Get("id")
	if !id.Exists() || id.Type != gjson.Number {
		return nil, protocolErrorf("decode", "request frame has no id")
	}
	method, ok := parseMethod(doc.Get("method").String())
	if !ok {
		return nil, protocolErrorf("decode", "unrecognized method %q", doc.Get("method").String())
	}

	req := &Request{ID: id.Uint(), Method: method}
	switch method {
	case MethodGet:
		for _, oid := range doc.Get("oids").Array() {
			req.OIDs = append(req.OIDs, oid.String())
		}
	case MethodSet:
		var decodeErr error
		doc.Get("binds").ForEach(func(_, entry gjson.Result) bool {
			oid := entry.Get("oid").String()
			if oid == "" {
				decodeErr = protocolErrorf("decode", "set binding has no oid")
				return false
			}
			val, err := decodeValue(entry.Get("value"))
			if err != nil {
				decodeErr = err
				return false
			}
			req.Binds = append(req.Binds, VarBind{OID: oid, Value: val})
			return true
		})
		if decodeErr != nil {
			return nil, decodeErr
		}
	case MethodWalk:
		req.Root = doc.Get("root").String()
	}
	return req, nil
}

// encodeResponse renders a response as one JSON frame.
func encodeResponse(resp *Response) (string, error) {
	doc, _ := sjson.Set("", "id", resp.ID)

	if resp.Err != nil {
		doc, _ = sjson.Set(doc, "error.kind", resp.Err.Kind.String())
		doc, _ = sjson.Set(doc, "error.op", resp.Err.Op)
		doc, _ = sjson.Set(doc, "error.message", resp.Err.Message)
		return doc, nil
	}

	if resp.Binds != nil {
		doc, _ = sjson.SetRaw(doc, "binds", "[]")
		var encodeErr error
		resp.Binds.Each(func(oid string, v Value) bool {
			val, err := encodeValue(v)
			if err != nil {
				encodeErr = err
				return false
			}
			obj, _ := sjson.Set("", "oid", oid)
			obj, _ = sjson.SetRaw(obj, "value", val)
			doc, _ = sjson.SetRaw(doc, "binds.-1", obj)
			return true
		})
		if encodeErr != nil {
			return "", encodeErr
		}
		return doc, nil
	}

	doc, _ = sjson.Set(doc, "ok", resp.OK)
	return doc, nil
}

// decodeResponse parses one response frame on the worker side.
func decodeResponse(frame []byte) (*Response, error) {
	if !gjson.ValidBytes(frame) {
		return nil, protocolErrorf("decode", "malformed response frame")
	}
	doc := gjson.ParseBytes(frame)

	id := doc.Get("id")
	if !id.Exists() || id.Type != gjson.Number {
		return nil, protocolErrorf("decode", "response frame has no id")
	}
	resp := &Response{ID: id.Uint()}

	if errObj := doc.Get("error"); errObj.Exists() {
		kind, ok := parseErrorKind(errObj.Get("kind").String())
		if !ok {
			return nil, protocolErrorf("decode", "unrecognized error kind %q", errObj.Get("kind").String())
		}
		resp.Err = &Error{
			Kind:    kind,
			Op:      errObj.Get("op").String(),
			Message: errObj.Get("message").String(),
		}
		return resp, nil
	}

	if binds := doc.Get("binds"); binds.Exists() {
		resp.Binds = NewBindings()
		var decodeErr error
		binds.ForEach(func(_, entry gjson.Result) bool {
			oid := entry.Get("oid").String()
			if oid == "" {
				decodeErr = protocolErrorf("decode", "response binding has no oid")
				return false
			}
			val, err := decodeValue(entry.Get("value"))
			if err != nil {
				decodeErr = err
				return false
			}
			resp.Binds.Add(oid, val)
			return true
		})
		if decodeErr != nil {
			return nil, decodeErr
		}
		return resp, nil
	}

	resp.OK = doc.Get("ok").Bool()
	return resp, nil
}

// frameReader recovers discrete newline-delimited frames from a byte
// stream. JSON string escaping guarantees an encoded frame never embeds the
// delimiter.
type frameReader struct {
	scanner *bufio.Scanner
}

func newFrameReader(r io.Reader) *frameReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), MaxFrameSize)
	return &frameReader{scanner: scanner}
}

// read returns the next frame, io.EOF at end of stream, a protocol error
// for an oversized frame, and a transport error for anything else.
func (fr *frameReader) read() ([]byte, error) {
	for fr.scanner.Scan() {
		line := fr.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		return line, nil
	}
	if err := fr.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, protocolErrorf("read", "frame exceeds %d bytes", MaxFrameSize)
		}
		return nil, transportErrorf("read", err, "reading frame: %s", err)
	}
	return nil, io.EOF
}

// frameWriter writes delimiter-terminated frames.
type frameWriter struct {
	w io.Writer
}

func (fw frameWriter) write(frame string) error {
	if strings.ContainsRune(frame, '\n') {
		return protocolErrorf("write", "frame embeds the delimiter")
	}
	if _, err := io.WriteString(fw.w, frame+"\n"); err != nil {
		return transportErrorf("write", err, "writing frame: %s", err)
	}
	return nil
}
