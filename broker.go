// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2026 Peter Nørlund

package snmp

import (
	"context"
	"io"
)

// Broker services one RPC pipe pair against one session. It answers every
// recoverable failure with an error response and keeps serving; only an
// unrecoverable transport or decode failure on the pipe ends its loop,
// leaving any remaining requests unanswered. That is the designed shutdown
// path: the peer closing its end of the pipe is the one cancellation
// signal.
type Broker struct {
	session *Session
	reader  *frameReader
	writer  frameWriter
	logger  Logger
}

// NewBroker creates a broker reading requests from in and writing responses
// to out.
//
// Example:
//
//	broker := snmp.NewBroker(session, requestPipe, responsePipe,
//	    snmp.BrokerLogger(logger))
//	err := broker.Serve(ctx)
func NewBroker(session *Session, in io.Reader, out io.Writer, opts ...func(*Broker)) *Broker {
	b := &Broker{
		session: session,
		reader:  newFrameReader(in),
		writer:  frameWriter{w: out},
		logger:  &NoOpLogger{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Serve runs the request loop until the peer closes the request pipe
// (returning nil) or an unrecoverable pipe failure occurs (returning the
// failure). Exactly one request is in flight at a time; the peer awaits the
// full round trip before sending the next.
func (b *Broker) Serve(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return asError("serve", err)
		}

		frame, err := b.reader.read()
		if err == io.EOF {
			b.logger.Debug("request pipe closed, broker done")
			return nil
		}
		if err != nil {
			b.logger.Error("request pipe failed", "error", err.Error())
			return err
		}

		req, err := decodeRequest(frame)
		if err != nil {
			// A frame without a usable id and method cannot be answered;
			// this terminates the loop rather than guessing.
			b.logger.Error("undecodable request frame", "error", err.Error())
			return err
		}

		resp := executeRequest(b.session, req)
		if resp.Err != nil {
			b.logger.Warn("request failed",
				"id", req.ID,
				"method", req.Method.String(),
				"kind", resp.Err.Kind.String(),
				"error", resp.Err.Message)
		} else {
			b.logger.Debug("request served", "id", req.ID, "method", req.Method.String())
		}

		if err := b.writeResponse(resp); err != nil {
			b.logger.Error("response pipe failed", "error", err.Error())
			return err
		}
	}
}

func (b *Broker) writeResponse(resp *Response) error {
	frame, err := encodeResponse(resp)
	if err != nil {
		// The result itself would not encode; answer with the failure so
		// the caller is not left blocking.
		frame, err = encodeResponse(&Response{ID: resp.ID, Err: asError("encode", err)})
		if err != nil {
			return err
		}
	}
	return b.writer.write(frame)
}

// executeRequest runs one RPC request against the session and folds any
// failure into the response. The request ID is echoed verbatim.
func executeRequest(session *Session, req *Request) *Response {
	resp := &Response{ID: req.ID}
	switch req.Method {
	case MethodGet:
		binds, err := session.Get(req.OIDs)
		if err != nil {
			resp.Err = asError("get", err)
			return resp
		}
		resp.Binds = binds
	case MethodSet:
		if err := session.Set(req.Binds); err != nil {
			resp.Err = asError("set", err)
			return resp
		}
		resp.OK = true
	case MethodWalk:
		binds, err := session.Walk(req.Root)
		if err != nil {
			resp.Err = asError("walk", err)
			return resp
		}
		resp.Binds = binds
	default:
		resp.Err = protocolErrorf(req.Method.String(), "unrecognized method")
	}
	return resp
}
