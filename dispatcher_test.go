// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2026 Peter Nørlund

package snmp

import (
	"context"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gosnmp/gosnmp"
)

func shWorker(t *testing.T, script string) *exec.Cmd {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("worker scripts need a POSIX shell")
	}
	return exec.Command("/bin/sh", "-c", script)
}

func TestDispatcherRelaysOutputAndExit(t *testing.T) {
	var stdout, stderr strings.Builder
	dispatcher := NewDispatcher(newTestSession(&fakeConn{}),
		Stdout(&stdout), Stderr(&stderr))

	exit, err := dispatcher.Run(context.Background(),
		shWorker(t, `echo out-line; echo err-line >&2; exit 4`))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if exit != 4 {
		t.Errorf("exit = %d, want 4", exit)
	}
	if stdout.String() != "out-line\n" {
		t.Errorf("stdout = %q", stdout.String())
	}
	if stderr.String() != "err-line\n" {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestDispatcherServesRequests(t *testing.T) {
	conn := &fakeConn{
		get: func(oids []string) (*gosnmp.SnmpPacket, error) {
			return &gosnmp.SnmpPacket{Variables: []gosnmp.SnmpPDU{
				{Name: "." + oids[0], Type: gosnmp.OctetString, Value: []byte("IOS XE")},
			}}, nil
		},
	}

	// The pipe pair lands on descriptors 3 and 4, as announced in
	// SNMP_FD_IN and SNMP_FD_OUT.
	script := `
[ "$SNMP_FD_IN" = 3 ] || exit 9
[ "$SNMP_FD_OUT" = 4 ] || exit 9
printf '{"id":1,"method":"get","oids":["1.3.6.1.2.1.1.1.0"]}\n' >&4
head -n 1 <&3
`
	var stdout strings.Builder
	dispatcher := NewDispatcher(newTestSession(conn), Stdout(&stdout))

	exit, err := dispatcher.Run(context.Background(), shWorker(t, script))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if exit != 0 {
		t.Fatalf("exit = %d, worker output %q", exit, stdout.String())
	}

	resp, err := decodeResponse([]byte(strings.TrimSpace(stdout.String())))
	if err != nil {
		t.Fatalf("worker relayed %q: %v", stdout.String(), err)
	}
	if resp.ID != 1 || resp.Err != nil {
		t.Fatalf("response = %+v", resp)
	}
	if v := resp.Binds.Value("1.3.6.1.2.1.1.1.0"); string(v.Bytes()) != "IOS XE" {
		t.Errorf("sysDescr = %v", v)
	}
	if conn.getCalls != 1 {
		t.Errorf("device exchanges = %d, want 1", conn.getCalls)
	}
}

func TestDispatcherAnswersBadRequest(t *testing.T) {
	script := `
printf '{"id":1,"method":"get","oids":["not-an-oid"]}\n' >&4
head -n 1 <&3
`
	var stdout strings.Builder
	dispatcher := NewDispatcher(newTestSession(&fakeConn{}), Stdout(&stdout))

	exit, err := dispatcher.Run(context.Background(), shWorker(t, script))
	if err != nil || exit != 0 {
		t.Fatalf("Run = %d, %v (output %q)", exit, err, stdout.String())
	}

	resp, err := decodeResponse([]byte(strings.TrimSpace(stdout.String())))
	if err != nil {
		t.Fatalf("worker relayed %q: %v", stdout.String(), err)
	}
	if resp.Err == nil || resp.Err.Kind != ErrorProtocol {
		t.Errorf("response = %+v, want a protocol error answer", resp)
	}
}

func TestDispatcherKillsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var stdout strings.Builder
	dispatcher := NewDispatcher(newTestSession(&fakeConn{}), Stdout(&stdout))

	start := time.Now()
	_, err := dispatcher.Run(ctx, shWorker(t, `sleep 30`))
	if err == nil {
		t.Fatal("Run ignored the cancelled context")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Run took %v after cancellation", elapsed)
	}
}

func TestDispatcherCancelWithOrphans(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var stdout strings.Builder
	dispatcher := NewDispatcher(newTestSession(&fakeConn{}), Stdout(&stdout))

	// The backgrounded child inherits the output pipes and outlives the
	// killed shell; Run must not wait for it.
	start := time.Now()
	_, err := dispatcher.Run(ctx, shWorker(t, `sleep 30 & wait`))
	if err == nil {
		t.Fatal("Run ignored the cancelled context")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Run took %v, blocked on an orphaned child", elapsed)
	}
}

func TestDispatcherStartFailure(t *testing.T) {
	dispatcher := NewDispatcher(newTestSession(&fakeConn{}))
	_, err := dispatcher.Run(context.Background(), exec.Command("/nonexistent/worker"))
	if err == nil {
		t.Fatal("Run started a nonexistent worker")
	}
}
