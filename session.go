// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2026 Peter Nørlund

package snmp

import (
	"net"
	"strconv"
	"sync"

	"github.com/gosnmp/gosnmp"
)

// Endpoint identifies one device management endpoint. Sessions are cached
// by the exact (host, port) pair; no normalization is attempted.
type Endpoint struct {
	Host string
	Port uint16
}

// String returns the host:port form of the endpoint.
func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
}

// DeviceConn is the slice of the device-protocol engine the session layer
// depends on. *gosnmp.GoSNMP satisfies it; tests substitute fakes.
type DeviceConn interface {
	Get(oids []string) (*gosnmp.SnmpPacket, error)
	Set(pdus []gosnmp.SnmpPDU) (*gosnmp.SnmpPacket, error)
	GetBulk(oids []string, nonRepeaters uint8, maxRepetitions uint32) (*gosnmp.SnmpPacket, error)
}

// DialFunc opens a device-protocol engine for an endpoint. The default
// dials gosnmp over UDP; tests inject fakes.
type DialFunc func(ep Endpoint, creds Credentials, cfg Config) (DeviceConn, error)

// Session is one authenticated management session: endpoint, credential and
// the open engine handle. It is created lazily per endpoint, shared by
// every worker spawned against that endpoint, and lives for the control-
// plane process lifetime; there is no explicit teardown.
type Session struct {
	// Endpoint is the device this session is bound to
	Endpoint Endpoint

	creds   Credentials
	cfg     Config
	dial    DialFunc
	logger  Logger
	maxReps uint32

	// mu serializes device exchanges: the engine handle carries one
	// request-id sequence and one UDP socket.
	mu        sync.Mutex
	conn      DeviceConn
	connected bool
}

// dialDevice opens a gosnmp engine for the endpoint. Timeout and retry
// policy live entirely in the engine; the broker adds none of its own.
func dialDevice(ep Endpoint, creds Credentials, cfg Config) (DeviceConn, error) {
	engine := &gosnmp.GoSNMP{
		Target:  ep.Host,
		Port:    ep.Port,
		Timeout: cfg.Timeout,
		Retries: cfg.Retries,
		MaxOids: gosnmp.MaxOids,
	}
	if creds.Community != "" {
		engine.Version = gosnmp.Version2c
		engine.Community = creds.Community
	} else {
		engine.Version = gosnmp.Version3
		engine.SecurityModel = gosnmp.UserSecurityModel
		engine.MsgFlags = creds.msgFlags()
		engine.SecurityParameters = &gosnmp.UsmSecurityParameters{
			UserName:                 creds.Username,
			AuthenticationProtocol:   creds.AuthProtocol,
			AuthenticationPassphrase: creds.AuthKey,
			PrivacyProtocol:          creds.PrivProtocol,
			PrivacyPassphrase:        creds.PrivKey,
			AuthoritativeEngineID:    creds.EngineID,
		}
	}
	if err := engine.Connect(); err != nil {
		return nil, transportErrorf("connect", err, "opening transport to %s: %s", ep, err)
	}
	return engine, nil
}

// ensureConnected opens the engine on first use. Caller holds s.mu.
func (s *Session) ensureConnected() error {
	if s.connected {
		return nil
	}
	s.logger.Debug("opening device transport", "endpoint", s.Endpoint.String())
	conn, err := s.dial(s.Endpoint, s.creds, s.cfg)
	if err != nil {
		return err
	}
	s.conn = conn
	s.connected = true
	s.logger.Info("device transport open", "endpoint", s.Endpoint.String())
	return nil
}

// Get reads the given OIDs in one device exchange and returns one entry per
// distinct requested OID, keyed by its canonical form and in request order.
// OIDs that canonicalize to the same form collapse into a single entry at
// their first position. OIDs the device reported no value for map to the
// absent marker.
func (s *Session) Get(oids []string) (*Bindings, error) {
	canon := make([]string, len(oids))
	for i, oid := range oids {
		c, err := CanonicalOID(oid)
		if err != nil {
			return nil, err
		}
		canon[i] = c
	}

	result := NewBindings()
	for _, oid := range canon {
		result.Add(oid, Value{})
	}
	if len(canon) == 0 {
		return result, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureConnected(); err != nil {
		return nil, err
	}

	packet, err := s.conn.Get(canon)
	if err != nil {
		return nil, transportErrorf("get", err, "%s", err)
	}
	if packet.Error != gosnmp.NoError {
		return nil, deviceErrorf("get", "device status %s at index %d", deviceStatusText(packet.Error), packet.ErrorIndex)
	}

	for _, pdu := range packet.Variables {
		name, err := CanonicalOID(pdu.Name)
		if err != nil {
			return nil, err
		}
		if _, ok := result.Get(name); !ok {
			s.logger.Warn("device answered with unrequested oid", "oid", name)
			continue
		}
		value, err := valueFromPDU(pdu)
		if err != nil {
			return nil, err
		}
		result.Add(name, value)
	}
	return result, nil
}

// Set writes all bindings in one device exchange. Device-level atomicity is
// assumed, not independently verified. An empty binding set succeeds
// without contacting the device.
func (s *Session) Set(binds []VarBind) error {
	if len(binds) == 0 {
		return nil
	}

	pdus := make([]gosnmp.SnmpPDU, 0, len(binds))
	for _, vb := range binds {
		oid, err := CanonicalOID(vb.OID)
		if err != nil {
			return err
		}
		pdu, err := valueToPDU(oid, vb.Value)
		if err != nil {
			return err
		}
		pdus = append(pdus, pdu)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureConnected(); err != nil {
		return err
	}

	packet, err := s.conn.Set(pdus)
	if err != nil {
		return transportErrorf("set", err, "%s", err)
	}
	if packet.Error != gosnmp.NoError {
		return deviceErrorf("set", "device status %s at index %d", deviceStatusText(packet.Error), packet.ErrorIndex)
	}
	return nil
}

// Walk enumerates the subtree below root with repeated bulk reads and
// returns the accumulated mapping keyed by OID suffix relative to root.
//
// No upper bound on round trips is enforced; a device returning
// non-increasing OIDs can keep the walk running indefinitely.
func (s *Session) Walk(root string) (*Bindings, error) {
	canon, err := CanonicalOID(root)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureConnected(); err != nil {
		return nil, err
	}
	return walkSubtree(s.conn, canon, s.maxReps)
}

// deviceStatusText renders a device error-status code.
func deviceStatusText(status gosnmp.SNMPError) string {
	switch status {
	case gosnmp.TooBig:
		return "tooBig"
	case gosnmp.NoSuchName:
		return "noSuchName"
	case gosnmp.BadValue:
		return "badValue"
	case gosnmp.ReadOnly:
		return "readOnly"
	case gosnmp.GenErr:
		return "genErr"
	case gosnmp.NoAccess:
		return "noAccess"
	case gosnmp.WrongType:
		return "wrongType"
	case gosnmp.WrongLength:
		return "wrongLength"
	case gosnmp.WrongEncoding:
		return "wrongEncoding"
	case gosnmp.WrongValue:
		return "wrongValue"
	case gosnmp.NoCreation:
		return "noCreation"
	case gosnmp.InconsistentValue:
		return "inconsistentValue"
	case gosnmp.ResourceUnavailable:
		return "resourceUnavailable"
	case gosnmp.CommitFailed:
		return "commitFailed"
	case gosnmp.UndoFailed:
		return "undoFailed"
	case gosnmp.AuthorizationError:
		return "authorizationError"
	case gosnmp.NotWritable:
		return "notWritable"
	case gosnmp.InconsistentName:
		return "inconsistentName"
	default:
		return strconv.Itoa(int(status))
	}
}

// Registry is the process-scoped cache of authenticated sessions, keyed by
// exact endpoint. It is append-only: sessions live until the control-plane
// process exits, with no eviction and no explicit close.
type Registry struct {
	cfg    Config
	prompt PromptFunc
	dial   DialFunc
	logger Logger

	mu       sync.Mutex
	creds    *Credentials
	sessions map[string]*Session
}

// NewRegistry creates a session registry for the given device
// configuration.
//
// Credentials are resolved once, on the first cache miss, and shared by
// every session the registry creates. Options:
//
//	registry := snmp.NewRegistry(cfg,
//	    snmp.Prompt(myPrompt),
//	    snmp.RegistryLogger(snmp.NewDefaultLogger(snmp.LogLevelInfo)),
//	)
func NewRegistry(cfg Config, opts ...func(*Registry)) *Registry {
	r := &Registry{
		cfg:      cfg.withDefaults(),
		prompt:   TerminalPrompt,
		dial:     dialDevice,
		logger:   &NoOpLogger{},
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetOrCreate returns the cached session for the endpoint, creating it on
// first use. Credential resolution happens at most once per registry; the
// transport itself opens lazily on the session's first device exchange.
func (r *Registry) GetOrCreate(ep Endpoint) (*Session, error) {
	if ep.Port == 0 {
		ep.Port = r.cfg.Port
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := ep.String()
	if session, ok := r.sessions[key]; ok {
		return session, nil
	}

	if r.creds == nil {
		creds, err := ResolveCredentials(r.cfg, r.prompt)
		if err != nil {
			return nil, err
		}
		r.creds = &creds
	}

	session := &Session{
		Endpoint: ep,
		creds:    *r.creds,
		cfg:      r.cfg,
		dial:     r.dial,
		logger:   r.logger,
		maxReps:  r.cfg.MaxRepetitions,
	}
	r.sessions[key] = session
	r.logger.Info("session created", "endpoint", key)
	return session, nil
}
