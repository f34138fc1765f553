package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"rondo/internal/ban"
	"rondo/internal/constants"
	"rondo/internal/device"
	"rondo/internal/gate"
	"rondo/internal/presence"
	"rondo/internal/security"
	"rondo/internal/utils"
)

type Server struct {
	Registry *presence.Registry
	BanStore ban.Store
	Bans     *ban.Directory
	Gate     *gate.Gate
	Devices  device.Store
	Clock    clock.Clock

	ConnLimiter *security.ConnectionLimiter
	Audit       *security.AuditLogger

	Port       string
	StatusBind string
	apiKeyHash string

	clients   map[string]*client
	clientsMu sync.RWMutex
}

func NewServer() (*Server, error) {
	devices, err := device.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize device store: %w", err)
	}

	banStore, err := ban.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ban store: %w", err)
	}

	auditLogger, err := security.GetAuditLogger()
	if err != nil {
		log.Printf("Warning: Failed to initialize audit logger: %v", err)
	}

	policy, err := gate.ParseFailPolicy(utils.GetEnv("RONDO_GATE_FAIL_POLICY", "open"))
	if err != nil {
		return nil, fmt.Errorf("invalid RONDO_GATE_FAIL_POLICY: %w", err)
	}

	clk := clock.New()
	refreshInterval := utils.GetEnvDuration("RONDO_BAN_REFRESH_INTERVAL", constants.BanRefreshInterval)
	bans := ban.NewDirectory(banStore, clk, refreshInterval)

	s := &Server{
		Registry:    presence.NewRegistry(),
		BanStore:    banStore,
		Bans:        bans,
		Gate:        gate.New(bans, policy, auditLogger),
		Devices:     devices,
		Clock:       clk,
		ConnLimiter: security.NewConnectionLimiter(constants.MaxConnectionsPerIP),
		Audit:       auditLogger,
		clients:     make(map[string]*client),
	}

	if apiKey := utils.GetEnv("RONDO_API_KEY", ""); apiKey != "" {
		s.apiKeyHash = utils.HashSHA256(apiKey)
	}

	return s, nil
}

func (s *Server) Run() {
	s.Port = utils.GetEnv("PORT", constants.DefaultPort)
	s.StatusBind = utils.GetEnv("RONDO_STATUS_BIND", constants.DefaultStatusBind)
	certFile := utils.GetEnv("RONDO_CERT_FILE", "certs/server.crt")
	keyFile := utils.GetEnv("RONDO_KEY_FILE", "certs/server.key")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.Bans.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc(constants.EndpointRegister, s.HandleRegister)
	mux.HandleFunc(constants.EndpointWebSocket, s.HandleWebSocket)

	var handler http.Handler = mux
	handler = RecoveryMiddleware(handler)
	handler = CorsMiddleware(handler)
	handler = security.SecurityHeaders(handler)

	enableTLS := utils.GetEnv("RONDO_ENABLE_TLS", "false") == "true"
	useTLS := false
	if enableTLS {
		if _, err := os.Stat(certFile); err == nil {
			if _, err := os.Stat(keyFile); err == nil {
				useTLS = true
			}
		}
		if !useTLS {
			log.Printf("Warning: RONDO_ENABLE_TLS is true but certs not found at %s", certFile)
		}
	}

	var h2Handler http.Handler
	if useTLS {
		h2Handler = handler
	} else {
		h2Handler = h2c.NewHandler(handler, &http2.Server{})
	}

	public := &http.Server{
		Addr:              ":" + s.Port,
		Handler:           h2Handler,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	status := s.startStatusServer()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if useTLS {
		log.Printf("🔒 HTTPS enabled (HTTP/2)")
		go func() {
			if err := public.ListenAndServeTLS(certFile, keyFile); err != nil && err != http.ErrServerClosed {
				log.Fatalf("HTTPS server error: %v", err)
			}
		}()
	} else {
		log.Printf("🌐 HTTP mode (HTTP/2 enabled)")
		go func() {
			if err := public.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("HTTP server error: %v", err)
			}
		}()
	}

	log.Printf("🚀 rondo signaling server starting on :%s", s.Port)

	<-sigChan
	log.Println("🛑 Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer shutdownCancel()

	if err := public.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	if status != nil {
		if err := status.Shutdown(shutdownCtx); err != nil {
			log.Printf("Status server forced to shutdown: %v", err)
		}
	}

	s.Cleanup()
	log.Println("✅ Server stopped")
}

// startStatusServer binds the read-only status API on its own listener.
// Deny-by-default: without a configured API key there is nothing to
// attribute requests to, so the listener does not come up at all.
func (s *Server) startStatusServer() *http.Server {
	if s.apiKeyHash == "" {
		log.Printf("⚠️  RONDO_API_KEY not set, status API disabled")
		return nil
	}

	status := &http.Server{
		Addr:         s.StatusBind,
		Handler:      s.statusHandler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := status.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Status server error: %v", err)
		}
	}()

	log.Printf("📊 Status API listening on %s", s.StatusBind)
	return status
}

func (s *Server) Cleanup() {
	s.closeClients()
	s.Devices.Close()
	s.BanStore.Close()
	if s.Audit != nil {
		s.Audit.Close()
	}
}
