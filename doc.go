// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2026 Peter Nørlund

// Package snmp lets many short-lived worker processes issue typed SNMP
// read/modify operations against one long-lived, authenticated management
// session on a network device.
//
// A control-plane process owns the session through a Registry, spawns worker
// processes with a pair of inherited pipe descriptors, and runs a Dispatcher
// (or a plain Broker) to service the workers' RPC requests against the
// device. Workers use Client, which locates its pipes through the SNMP_FD_IN
// and SNMP_FD_OUT environment variables, and never authenticate or talk to
// the device themselves.
//
// # Control plane
//
//	cfg, err := snmp.LoadConfig("device.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	registry := snmp.NewRegistry(cfg)
//	session, err := registry.GetOrCreate(snmp.Endpoint{Host: cfg.Host, Port: cfg.Port})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	dispatcher := snmp.NewDispatcher(session)
//	exit, err := dispatcher.Run(ctx, exec.Command("./worker"))
//
// # Worker
//
//	client, err := snmp.NewClient()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	values, err := client.Get("1.3.6.1.2.1.1.5.0")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(values.Value("1.3.6.1.2.1.1.5.0"))
//
//	err = client.Set(map[string]snmp.Value{
//	    "1.3.6.1.2.1.1.5.0": snmp.OctetString([]byte("core-sw-1")),
//	})
//
//	table, err := client.Walk("1.3.6.1.2.1.2.2.1.1")
//
// All worker-facing failures surface as a single *Error type carrying a
// human-readable message, so callers make a binary success/fail decision
// without parsing message text.
//
// # Device protocol
//
// The device side speaks standard SNMP Get/Set/GetBulk over UDP through
// gosnmp, under community-based (v1/v2c) or USM (v3) authentication.
// Credential material comes from a Config consumed by ResolveCredentials;
// missing secrets are prompted for interactively, exactly once when a shared
// dual-use key is configured.
//
// # References
//
//   - gosnmp: https://github.com/gosnmp/gosnmp
//   - gjson: https://github.com/tidwall/gjson
//   - sjson: https://github.com/tidwall/sjson
package snmp
