// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2026 Peter Nørlund

package snmp

import (
	"strings"

	"github.com/gosnmp/gosnmp"
)

// walkSubtree enumerates the subtree below root by issuing bulk reads (no
// non-repeaters) from a cursor that starts at root. Result keys are the OID
// suffix relative to root.
//
// For each returned var-bind in order: an OID outside the subtree means the
// subtree ended, and that boundary entry is discarded. Otherwise the entry
// is stored and the cursor advances to it. An empty bulk reply also ends
// the walk.
//
// root must already be canonical. The caller holds the session lock.
func walkSubtree(conn DeviceConn, root string, maxRepetitions uint32) (*Bindings, error) {
	if maxRepetitions == 0 {
		maxRepetitions = DefaultMaxRepetitions
	}
	prefix := root + "."
	result := NewBindings()
	cursor := root

	for {
		packet, err := conn.GetBulk([]string{cursor}, 0, maxRepetitions)
		if err != nil {
			return nil, transportErrorf("walk", err, "%s", err)
		}
		if packet.Error != gosnmp.NoError {
			return nil, deviceErrorf("walk", "device status %s at index %d", deviceStatusText(packet.Error), packet.ErrorIndex)
		}
		if len(packet.Variables) == 0 {
			return result, nil
		}

		for _, pdu := range packet.Variables {
			if pdu.Type == gosnmp.EndOfMibView {
				return result, nil
			}
			oid, err := CanonicalOID(pdu.Name)
			if err != nil {
				return nil, err
			}
			if oid == root {
				// The root itself carries no relative suffix; advance past it.
				cursor = oid
				continue
			}
			if !strings.HasPrefix(oid, prefix) {
				return result, nil
			}
			value, err := valueFromPDU(pdu)
			if err != nil {
				return nil, err
			}
			result.Add(strings.TrimPrefix(oid, prefix), value)
			cursor = oid
		}
	}
}
