// Package server wires the listeners, TLS, auth, throttle gates, work
// queue, and worker pool into the running relay described in
// spec.md §4.9 and §5.
package server

import (
	"crypto/tls"
	"net"
	"os"

	"go.uber.org/zap"

	"remonitor/auth"
	"remonitor/bus"
	"remonitor/clients"
	"remonitor/codec"
	"remonitor/config"
	"remonitor/connection"
	"remonitor/monitors"
	"remonitor/queue"
	"remonitor/throttle"
	"remonitor/utils"
)

type role int

const (
	roleClient role = iota
	roleMonitor
)

type transport int

const (
	transportTCP transport = iota
	transportUDS
)

// job is one accepted, not-yet-handled socket, tagged with the
// pipeline it came from. All four acceptor pipelines share a single
// job queue; spec.md §5 names the work queue as one MPSC channel.
type job struct {
	conn      net.Conn
	role      role
	transport transport
}

// Server holds everything the running relay needs: configuration, the
// broadcast bus, the two TCP throttle gates, the shared work queue,
// and one Clients/Monitors registry pair per worker.
type Server struct {
	cfg *config.Config
	bus *bus.Bus

	tlsConfig *tls.Config

	clientGate  *throttle.Gate
	monitorGate *throttle.Gate

	workQueue *queue.Unbounded[job]

	clientsRegistries  []*clients.Registry
	monitorsRegistries []*monitors.Registry
}

// New builds a Server ready to Serve. TLS is loaded unconditionally;
// pfx_cert_path is a mandatory config field regardless of which
// transports are enabled.
func New(cfg *config.Config) (*Server, error) {
	tlsConfig, err := loadTLSConfig(cfg.PfxCertPath, cfg.PfxPass)
	if err != nil {
		return nil, err
	}

	b := bus.New()

	s := &Server{
		cfg:                cfg,
		bus:                b,
		tlsConfig:          tlsConfig,
		clientGate:         throttle.NewGate(),
		monitorGate:        throttle.NewGate(),
		workQueue:          queue.NewUnbounded[job](),
		clientsRegistries:  make([]*clients.Registry, cfg.ThreadCount),
		monitorsRegistries: make([]*monitors.Registry, cfg.ThreadCount),
	}
	for i := 0; i < cfg.ThreadCount; i++ {
		s.clientsRegistries[i] = clients.New(b)
		s.monitorsRegistries[i] = monitors.New(b)
	}
	return s, nil
}

// Serve binds every configured listener, starts the worker pool, and
// blocks forever servicing connections.
func (s *Server) Serve() error {
	if s.cfg.UseTCP() {
		tcpClientLn, err := net.Listen("tcp", s.cfg.TCPClientHost)
		if err != nil {
			return err
		}
		tcpMonitorLn, err := net.Listen("tcp", s.cfg.TCPMonitorHost)
		if err != nil {
			return err
		}
		go s.acceptTCP(tcpClientLn, roleClient, s.clientGate)
		go s.acceptTCP(tcpMonitorLn, roleMonitor, s.monitorGate)
		utils.Logger.Info("tcp listeners bound",
			zap.String("client", s.cfg.TCPClientHost),
			zap.String("monitor", s.cfg.TCPMonitorHost))
	}

	if s.cfg.UseUDS() {
		udsClientLn, err := bindUDS(s.cfg.UDSClientPath)
		if err != nil {
			return err
		}
		udsMonitorLn, err := bindUDS(s.cfg.UDSMonitorPath)
		if err != nil {
			return err
		}
		go s.acceptUDS(udsClientLn, roleClient)
		go s.acceptUDS(udsMonitorLn, roleMonitor)
		utils.Logger.Info("uds listeners bound",
			zap.String("client", s.cfg.UDSClientPath),
			zap.String("monitor", s.cfg.UDSMonitorPath))
	}

	for i := 0; i < s.cfg.ThreadCount; i++ {
		go s.worker(i)
	}

	select {}
}

// bindUDS unlinks any stale socket file and binds a fresh one, per
// spec.md §6 ("UDS paths are unlinked and recreated on each start").
func bindUDS(path string) (net.Listener, error) {
	_ = os.Remove(path)
	return net.Listen("unix", path)
}

func (s *Server) acceptTCP(ln net.Listener, r role, gate *throttle.Gate) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			utils.Logger.Error("tcp accept failed", zap.Error(err))
			continue
		}
		key, keyErr := connection.ThrottleKey(conn)
		if !gate.Admit(key, keyErr) {
			conn.Close()
			continue
		}
		s.workQueue.Push(job{conn: conn, role: r, transport: transportTCP})
	}
}

func (s *Server) acceptUDS(ln net.Listener, r role) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			utils.Logger.Error("uds accept failed", zap.Error(err))
			continue
		}
		s.workQueue.Push(job{conn: conn, role: r, transport: transportUDS})
	}
}

// worker dequeues jobs and drives each through TLS (TCP only), auth
// (TCP only), and installation into this worker's Clients or Monitors
// registry; the per-worker "TLS - Auth - ..." tail from spec.md §2.
func (s *Server) worker(i int) {
	cr := s.clientsRegistries[i]
	mr := s.monitorsRegistries[i]
	for {
		j, ok := s.workQueue.Pop()
		if !ok {
			return
		}
		s.handle(j, cr, mr)
	}
}

func (s *Server) handle(j job, cr *clients.Registry, mr *monitors.Registry) {
	conn := j.conn

	// c is created once per connection and threaded through auth into
	// the Monitors installation step, so any bytes it already buffered
	// past the auth frames (pipelined application data) are not lost
	// when the connection changes hands. Clients take no codec: their
	// inbound bytes are read only to detect close.
	c := codec.NewLineCodec()

	if j.transport == transportTCP {
		tlsConn := tls.Server(conn, s.tlsConfig)
		if err := tlsConn.Handshake(); err != nil {
			utils.Logger.Warn("tls handshake failed", zap.Error(err))
			conn.Close()
			return
		}
		conn = tlsConn

		gate := s.clientGate
		if j.role == roleMonitor {
			gate = s.monitorGate
		}

		if err := auth.Run(conn, s.cfg, gate, c); err != nil {
			conn.Close()
			return
		}
	}

	wc := connection.New(conn)
	switch j.role {
	case roleClient:
		cr.Install(wc)
	case roleMonitor:
		mr.Install(wc, c)
	}
}
