package health

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
)

// TLSEnv holds the PEM contents of the mTLS variables. Server and client
// read them the same way: a blank or whitespace-only variable is unset.
type TLSEnv struct {
	Key  string
	Cert string
	CA   string
}

// LoadTLSEnv returns nil when none of the TLS variables is set, and an
// error when only some are.
func LoadTLSEnv() (*TLSEnv, error) {
	env := &TLSEnv{
		Key:  os.Getenv(EnvTLSKey),
		Cert: os.Getenv(EnvTLSCert),
		CA:   os.Getenv(EnvCACert),
	}
	set := 0
	for _, v := range []string{env.Key, env.Cert, env.CA} {
		if strings.TrimSpace(v) != "" {
			set++
		}
	}
	switch set {
	case 0:
		return nil, nil
	case 3:
		return env, nil
	default:
		return nil, fmt.Errorf("incomplete TLS environment; require all of %s, %s, %s", EnvTLSKey, EnvTLSCert, EnvCACert)
	}
}

// KeyPair parses the certificate and key.
func (e *TLSEnv) KeyPair() (tls.Certificate, error) {
	cert, err := tls.X509KeyPair([]byte(e.Cert), []byte(e.Key))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to load key pair: %w", err)
	}
	return cert, nil
}

// CAPool parses the CA certificate.
func (e *TLSEnv) CAPool() (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	if ok := pool.AppendCertsFromPEM([]byte(e.CA)); !ok {
		return nil, fmt.Errorf("failed to append CA certificate to pool")
	}
	return pool, nil
}

// TLSConfigFromEnv builds the server mTLS configuration from the
// environment. It returns nil when none of the variables is set.
func TLSConfigFromEnv() (*tls.Config, error) {
	env, err := LoadTLSEnv()
	if env == nil || err != nil {
		return nil, err
	}

	cert, err := env.KeyPair()
	if err != nil {
		return nil, err
	}
	caPool, err := env.CAPool()
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      caPool,
		ClientCAs:    caPool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// IsTLSVariable reports whether the environment entry "KEY=value" holds
// TLS material.
func IsTLSVariable(entry string) bool {
	key, _, _ := strings.Cut(entry, "=")
	return key == EnvTLSKey || key == EnvTLSCert || key == EnvCACert
}
