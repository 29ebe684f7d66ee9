// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2026 Peter Nørlund

package snmp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Dispatcher supervises one worker process: it wires the RPC pipe pair into
// the worker's descriptor table, relays worker output line by line, and
// serves the worker's RPC requests against one session.
//
// All per-worker state is owned by the event loop in Run; goroutines feeding
// it only ever send on channels. Requests still unanswered when the worker
// exits are abandoned, never answered late.
type Dispatcher struct {
	session *Session
	logger  Logger
	stdout  io.Writer
	stderr  io.Writer
}

// NewDispatcher creates a dispatcher serving requests against the given
// session.
//
// Example:
//
//	dispatcher := snmp.NewDispatcher(session,
//	    snmp.DispatcherLogger(logger))
//	exit, err := dispatcher.Run(ctx, exec.Command("./worker"))
func NewDispatcher(session *Session, opts ...func(*Dispatcher)) *Dispatcher {
	d := &Dispatcher{
		session: session,
		logger:  &NoOpLogger{},
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// frameEvent is one decoded request, or the failure that ended the request
// pipe.
type frameEvent struct {
	req *Request
	err error
}

// Run starts the worker and serves it until it exits, returning its exit
// status. The worker inherits the response pipe and the request pipe as
// extra descriptors, numbered in SNMP_FD_IN and SNMP_FD_OUT.
//
// Cancelling ctx kills the worker and abandons its output streams; Run
// still collects the exit status before returning.
func (d *Dispatcher) Run(ctx context.Context, cmd *exec.Cmd) (int, error) {
	respRead, respWrite, err := os.Pipe()
	if err != nil {
		return -1, transportErrorf("dispatch", err, "creating response pipe: %s", err)
	}
	reqRead, reqWrite, err := os.Pipe()
	if err != nil {
		respRead.Close()
		respWrite.Close()
		return -1, transportErrorf("dispatch", err, "creating request pipe: %s", err)
	}

	// Extra files occupy descriptors 3 and up in the child.
	inFD := 3 + len(cmd.ExtraFiles)
	outFD := inFD + 1
	cmd.ExtraFiles = append(cmd.ExtraFiles, respRead, reqWrite)
	env := cmd.Env
	if env == nil {
		env = os.Environ()
	}
	cmd.Env = append(env,
		fmt.Sprintf("%s=%d", EnvFDIn, inFD),
		fmt.Sprintf("%s=%d", EnvFDOut, outFD))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		closeAll(respRead, respWrite, reqRead, reqWrite)
		return -1, transportErrorf("dispatch", err, "wiring worker stdout: %s", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		closeAll(respRead, respWrite, reqRead, reqWrite)
		return -1, transportErrorf("dispatch", err, "wiring worker stderr: %s", err)
	}

	if err := cmd.Start(); err != nil {
		closeAll(respRead, respWrite, reqRead, reqWrite)
		return -1, transportErrorf("dispatch", err, "starting worker: %s", err)
	}
	d.logger.Info("worker started", "pid", cmd.Process.Pid)

	// The child holds its own copies; closing ours makes the request pipe
	// report EOF once the worker exits.
	respRead.Close()
	reqWrite.Close()
	defer respWrite.Close()
	defer reqRead.Close()

	// abandon releases every feeding goroutine still blocked on a send.
	abandon := make(chan struct{})
	defer close(abandon)

	frames := make(chan frameEvent)
	go func() {
		fr := newFrameReader(reqRead)
		for {
			frame, err := fr.read()
			if err == io.EOF {
				close(frames)
				return
			}
			if err == nil {
				var req *Request
				req, err = decodeRequest(frame)
				if err == nil {
					select {
					case frames <- frameEvent{req: req}:
						continue
					case <-abandon:
						return
					}
				}
			}
			select {
			case frames <- frameEvent{err: err}:
			case <-abandon:
			}
			return
		}
	}()

	outLines := pumpLines(stdout, abandon)
	errLines := pumpLines(stderr, abandon)
	completions := make(chan *Response)

	writer := frameWriter{w: respWrite}
	inflight := make(map[uint64]struct{})
	rpcDead := false
	done := ctx.Done()
	var runErr error

	// The loop runs until both output streams end: that, not the request
	// pipe, marks the worker as finished.
	for outLines != nil || errLines != nil {
		select {
		case <-done:
			done = nil
			runErr = asError("dispatch", ctx.Err())
			d.logger.Warn("context cancelled, killing worker", "pid", cmd.Process.Pid)
			cmd.Process.Kill()
			// The worker's descendants survive the kill and can hold the
			// output write ends open. Closing our read ends unblocks the
			// line pumps so the loop is not held hostage by orphans.
			stdout.Close()
			stderr.Close()

		case line, ok := <-outLines:
			if !ok {
				outLines = nil
				continue
			}
			fmt.Fprintln(d.stdout, line)

		case line, ok := <-errLines:
			if !ok {
				errLines = nil
				continue
			}
			fmt.Fprintln(d.stderr, line)

		case ev, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			if ev.err != nil {
				// An unattributable frame cannot be answered; close the
				// response pipe so a blocked worker notices.
				d.logger.Error("request pipe failed", "error", ev.err.Error())
				rpcDead = true
				respWrite.Close()
				continue
			}
			req := ev.req
			inflight[req.ID] = struct{}{}
			d.logger.Debug("request issued", "id", req.ID, "method", req.Method.String())
			go func(req *Request) {
				resp := executeRequest(d.session, req)
				select {
				case completions <- resp:
				case <-abandon:
				}
			}(req)

		case resp := <-completions:
			if _, ok := inflight[resp.ID]; !ok {
				continue
			}
			delete(inflight, resp.ID)
			if rpcDead {
				continue
			}
			if resp.Err != nil {
				d.logger.Warn("request failed",
					"id", resp.ID,
					"kind", resp.Err.Kind.String(),
					"error", resp.Err.Message)
			} else {
				d.logger.Debug("request served", "id", resp.ID)
			}
			if err := d.writeResponse(writer, resp); err != nil {
				d.logger.Error("response pipe failed", "error", err.Error())
				rpcDead = true
			}
		}
	}

	if n := len(inflight); n > 0 {
		d.logger.Warn("abandoning unanswered requests", "count", n)
	}

	exit := 0
	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exit = exitErr.ExitCode()
		} else if runErr == nil {
			runErr = transportErrorf("dispatch", err, "collecting worker: %s", err)
		}
	}
	d.logger.Info("worker exited", "pid", cmd.Process.Pid, "status", exit)
	return exit, runErr
}

func (d *Dispatcher) writeResponse(writer frameWriter, resp *Response) error {
	frame, err := encodeResponse(resp)
	if err != nil {
		frame, err = encodeResponse(&Response{ID: resp.ID, Err: asError("encode", err)})
		if err != nil {
			return err
		}
	}
	return writer.write(frame)
}

// pumpLines relays a worker output stream line by line. The channel closes
// when the stream ends; read failures on a dying worker's pipe end the
// stream the same way.
func pumpLines(r io.Reader, abandon <-chan struct{}) chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), MaxFrameSize)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-abandon:
				return
			}
		}
	}()
	return lines
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		f.Close()
	}
}
