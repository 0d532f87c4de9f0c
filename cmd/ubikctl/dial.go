package main

import (
	"crypto/tls"
	"os"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/apk/ubik/pkg/lib/health"
)

const defaultAddress = "localhost:50151"

func dial() (*grpc.ClientConn, error) {
	addr := os.Getenv("UBIK_ADDRESS")
	if strings.TrimSpace(addr) == "" {
		addr = defaultAddress
	}

	creds, err := transportCredentials()
	if err != nil {
		return nil, err
	}
	return grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
}

// transportCredentials uses mTLS when the TLS variables are set and a
// plaintext connection otherwise.
func transportCredentials() (credentials.TransportCredentials, error) {
	env, err := health.LoadTLSEnv()
	if err != nil {
		return nil, err
	}
	if env == nil {
		return insecure.NewCredentials(), nil
	}

	cert, err := env.KeyPair()
	if err != nil {
		return nil, err
	}
	pool, err := env.CAPool()
	if err != nil {
		return nil, err
	}

	return credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS13,
	}), nil
}

func grpcCode(err error) codes.Code {
	st, ok := status.FromError(err)
	if !ok {
		return codes.Unknown
	}
	return st.Code()
}
