// Package health exposes the supervisor state over the standard gRPC
// health checking protocol.
package health

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/apk/ubik/pkg/lib/job"
)

const (
	EnvAddress = "UBIK_HEALTH_ADDRESS"
	EnvTLSKey  = "UBIK_TLS_KEY"
	EnvTLSCert = "UBIK_TLS_CERT"
	EnvCACert  = "UBIK_CA_TLS_CERT"
)

// Server serves grpc.health.v1.Health and server reflection.
type Server struct {
	lis    net.Listener
	s      *grpc.Server
	hs     *grpchealth.Server
	logger *slog.Logger

	// services is written by Register only, before the supervisor runs.
	services map[*job.Job]string
}

type Option func(*options)

type options struct {
	logger *slog.Logger
	tls    *tls.Config
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTLS requires clients to present a certificate signed by the
// configured CA, carrying a SPIFFE ID.
func WithTLS(cfg *tls.Config) Option {
	return func(o *options) {
		o.tls = cfg
	}
}

// New listens on addr, either "unix:/path/to/socket" or a TCP host:port.
func New(addr string, opts ...Option) (*Server, error) {
	network, address := splitAddress(addr)
	if network == "unix" {
		// A socket left behind by a previous run.
		if err := os.Remove(address); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}
	lis, err := net.Listen(network, address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	return NewWithListener(lis, opts...), nil
}

// NewWithListener builds a server on an existing listener.
func NewWithListener(lis net.Listener, opts ...Option) *Server {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	var serverOpts []grpc.ServerOption
	if o.tls != nil {
		serverOpts = append(serverOpts,
			grpc.Creds(credentials.NewTLS(o.tls)),
			grpc.UnaryInterceptor(requireSpiffeIdUnary(o.logger)),
			grpc.StreamInterceptor(requireSpiffeIdStream(o.logger)),
		)
	}
	s := grpc.NewServer(serverOpts...)
	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)

	return &Server{lis: lis, s: s, hs: hs, logger: o.logger}
}

func splitAddress(addr string) (network, address string) {
	if strings.HasPrefix(addr, "unix:") {
		path := strings.TrimPrefix(addr, "unix:")
		return "unix", strings.TrimPrefix(path, "//")
	}
	return "tcp", addr
}

// Serve blocks serving on the listener.
func (srv *Server) Serve() error {
	return srv.s.Serve(srv.lis)
}

// Addr returns the network address the server is bound to.
func (srv *Server) Addr() net.Addr { return srv.lis.Addr() }

// Stop reports NOT_SERVING to watchers and closes the server.
func (srv *Server) Stop() {
	srv.hs.Shutdown()
	srv.s.Stop()
}
