package transport

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"agentgw/internal/agent"
	"agentgw/internal/logging"
)

// admissionRate and admissionBurst configure the global connection
// admission limiter (§4.7: 10 connections/second, burst 10, default).
const (
	admissionRate  = 10
	admissionBurst = 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server accepts WebSocket chat connections: HMAC handshake auth, a global
// admission rate limiter, and one session per accepted connection.
type Server struct {
	Addr        string
	Secret      string
	EnableTLS   bool
	TLSCertPath string
	TLSKeyPath  string

	Agent   *agent.Agent
	limiter *rate.Limiter
}

// NewServer constructs a Server. The admission limiter is a fixed 10/s
// burst-10 token bucket per the spec default.
func NewServer(addr, secret string, enableTLS bool, certPath, keyPath string, ag *agent.Agent) *Server {
	return &Server{
		Addr:        addr,
		Secret:      secret,
		EnableTLS:   enableTLS,
		TLSCertPath: certPath,
		TLSKeyPath:  keyPath,
		Agent:       ag,
		limiter:     rate.NewLimiter(rate.Limit(admissionRate), admissionBurst),
	}
}

// ListenAndServe blocks serving WebSocket connections on Addr, optionally
// over TLS when EnableTLS is set.
func (s *Server) ListenAndServe() error {
	httpServer := &http.Server{
		Addr:    s.Addr,
		Handler: http.HandlerFunc(s.handleUpgrade),
	}
	if s.EnableTLS {
		return httpServer.ListenAndServeTLS(s.TLSCertPath, s.TLSKeyPath)
	}
	return httpServer.ListenAndServe()
}

// TLSConfig builds the tls.Config from the configured cert/key pair, for
// callers (e.g. the control plane) that share the same TLS material.
func (s *Server) TLSConfig() (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(s.TLSCertPath, s.TLSKeyPath)
	if err != nil {
		return nil, err
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	log := logging.Component("transport")

	// Admission control: excess connections are dropped without a
	// handshake, silent to the client (AdmissionError, §7).
	if !s.limiter.Allow() {
		log.Debug().Msg("connection_admission_dropped")
		if hj, ok := w.(http.Hijacker); ok {
			if c, _, err := hj.Hijack(); err == nil {
				_ = c.Close()
			}
		}
		return
	}

	if err := verifyHandshake(r, s.Secret, time.Now()); err != nil {
		log.Debug().Err(err).Msg("handshake_rejected")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("upgrade_failed")
		return
	}

	sess := newSession(conn, s.Agent)
	go sess.run()
}
