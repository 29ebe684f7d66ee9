// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2026 Peter Nørlund

package snmp

import "io"

// Prompt sets the function used to obtain secrets missing from the
// configuration. The default reads from the terminal without echo.
func Prompt(fn PromptFunc) func(*Registry) {
	return func(r *Registry) {
		r.prompt = fn
	}
}

// Dialer sets the function used to open device transports. The default
// dials the device over UDP.
func Dialer(fn DialFunc) func(*Registry) {
	return func(r *Registry) {
		r.dial = fn
	}
}

// RegistryLogger sets the logger used by the registry and every session it
// creates. The default discards all log messages.
func RegistryLogger(logger Logger) func(*Registry) {
	return func(r *Registry) {
		r.logger = logger
	}
}

// BrokerLogger sets the logger used by the broker. The default discards all
// log messages.
func BrokerLogger(logger Logger) func(*Broker) {
	return func(b *Broker) {
		b.logger = logger
	}
}

// ClientLogger sets the logger used by the client. The default discards all
// log messages.
func ClientLogger(logger Logger) func(*Client) {
	return func(c *Client) {
		c.logger = logger
	}
}

// Pipes supplies the client's pipe pair directly instead of inheriting
// descriptors through the environment: responses are read from in, requests
// written to out.
func Pipes(in io.Reader, out io.Writer) func(*Client) {
	return func(c *Client) {
		c.reader = newFrameReader(in)
		c.writer = frameWriter{w: out}
	}
}

// DispatcherLogger sets the logger used by the dispatcher. The default
// discards all log messages.
func DispatcherLogger(logger Logger) func(*Dispatcher) {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// Stdout sets the destination for worker standard-output lines. The default
// is the process's own standard output.
func Stdout(w io.Writer) func(*Dispatcher) {
	return func(d *Dispatcher) {
		d.stdout = w
	}
}

// Stderr sets the destination for worker standard-error lines. The default
// is the process's own standard error.
func Stderr(w io.Writer) func(*Dispatcher) {
	return func(d *Dispatcher) {
		d.stderr = w
	}
}
