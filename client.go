// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2026 Peter Nørlund

package snmp

import (
	"io"
	"os"
	"sort"
	"strconv"
)

// Environment variables carrying the inherited pipe descriptor numbers to a
// worker process. Both must name valid open descriptors when the worker
// starts.
const (
	// EnvFDIn is the descriptor the worker reads responses from
	EnvFDIn = "SNMP_FD_IN"

	// EnvFDOut is the descriptor the worker writes requests to
	EnvFDOut = "SNMP_FD_OUT"
)

// Client is the worker-side proxy. It is strictly synchronous: one request
// in flight, the full round trip awaited before the next. Every failure is
// returned as *Error, so workers decide success or failure without parsing
// message text.
type Client struct {
	reader *frameReader
	writer frameWriter
	logger Logger
	nextID uint64
}

// NewClient creates a client over the pipe descriptors named by SNMP_FD_IN
// and SNMP_FD_OUT. Use the Pipes option to supply the pipe pair directly
// (tests, in-process workers).
//
// Example:
//
//	client, err := snmp.NewClient()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	values, err := client.Get("1.3.6.1.2.1.1.1.0")
func NewClient(opts ...func(*Client)) (*Client, error) {
	c := &Client{logger: &NoOpLogger{}}
	for _, opt := range opts {
		opt(c)
	}

	if c.reader == nil || c.writer.w == nil {
		in, err := fdFromEnv(EnvFDIn)
		if err != nil {
			return nil, err
		}
		out, err := fdFromEnv(EnvFDOut)
		if err != nil {
			return nil, err
		}
		c.reader = newFrameReader(os.NewFile(uintptr(in), EnvFDIn))
		c.writer = frameWriter{w: os.NewFile(uintptr(out), EnvFDOut)}
	}
	return c, nil
}

func fdFromEnv(name string) (int, error) {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return 0, configErrorf("client", "%s is not set; was this process started by the control plane?", name)
	}
	fd, err := strconv.Atoi(raw)
	if err != nil || fd < 0 {
		return 0, configErrorf("client", "%s holds %q, not a descriptor number", name, raw)
	}
	return fd, nil
}

// Get reads one or more OIDs in a single device exchange. The result holds
// one entry per distinct requested OID, keyed by its canonical form;
// duplicates collapse into a single entry. OIDs the device reported no
// value for map to the absent marker.
func (c *Client) Get(oids ...string) (*Bindings, error) {
	if len(oids) == 0 {
		return nil, configErrorf("get", "no oids requested")
	}
	canon := make([]string, len(oids))
	for i, oid := range oids {
		var err error
		if canon[i], err = CanonicalOID(oid); err != nil {
			return nil, asError("get", err)
		}
	}

	resp, err := c.call(&Request{Method: MethodGet, OIDs: canon})
	if err != nil {
		return nil, err
	}
	if resp.Binds == nil {
		return nil, protocolErrorf("get", "response carries no bindings")
	}
	return resp.Binds, nil
}

// Set writes all bindings in one device exchange. An empty mapping succeeds
// without contacting the device. Device-level atomicity is assumed.
func (c *Client) Set(binds map[string]Value) error {
	oids := make([]string, 0, len(binds))
	for oid := range binds {
		oids = append(oids, oid)
	}
	sort.Strings(oids)

	ordered := make([]VarBind, 0, len(binds))
	for _, oid := range oids {
		canon, err := CanonicalOID(oid)
		if err != nil {
			return asError("set", err)
		}
		ordered = append(ordered, VarBind{OID: canon, Value: binds[oid]})
	}

	resp, err := c.call(&Request{Method: MethodSet, Binds: ordered})
	if err != nil {
		return err
	}
	if !resp.OK {
		return protocolErrorf("set", "response reports neither success nor error")
	}
	return nil
}

// Walk enumerates the subtree below root and returns the mapping keyed by
// OID suffix relative to root.
func (c *Client) Walk(root string) (*Bindings, error) {
	canon, err := CanonicalOID(root)
	if err != nil {
		return nil, asError("walk", err)
	}

	resp, err := c.call(&Request{Method: MethodWalk, Root: canon})
	if err != nil {
		return nil, err
	}
	if resp.Binds == nil {
		return nil, protocolErrorf("walk", "response carries no bindings")
	}
	return resp.Binds, nil
}

// call performs one blocking round trip.
func (c *Client) call(req *Request) (*Response, error) {
	c.nextID++
	req.ID = c.nextID

	frame, err := encodeRequest(req)
	if err != nil {
		return nil, asError(req.Method.String(), err)
	}
	if err := c.writer.write(frame); err != nil {
		return nil, asError(req.Method.String(), err)
	}
	c.logger.Debug("request sent", "id", req.ID, "method", req.Method.String())

	reply, err := c.reader.read()
	if err == io.EOF {
		return nil, transportErrorf(req.Method.String(), io.EOF, "broker closed the response pipe")
	}
	if err != nil {
		return nil, asError(req.Method.String(), err)
	}

	resp, err := decodeResponse(reply)
	if err != nil {
		return nil, asError(req.Method.String(), err)
	}
	if resp.ID != req.ID {
		return nil, protocolErrorf(req.Method.String(), "response id %d does not match request id %d", resp.ID, req.ID)
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return resp, nil
}
