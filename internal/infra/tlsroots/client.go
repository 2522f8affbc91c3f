package tlsroots

import (
	"crypto/tls"
	"errors"
	"log/slog"
)

// Config describes the TLS side of a client connection.
type Config struct {
	// Enabled turns TLS on.
	Enabled bool `koanf:"enabled"`

	// CAFile and CADir add trusted roots on top of the system store.
	CAFile string `koanf:"ca_file"`
	CADir  string `koanf:"ca_dir"`

	// CertFile and KeyFile hold the client certificate, reloaded on change.
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`

	// ServerName overrides the name verified against the server certificate.
	ServerName string `koanf:"server_name"`

	// InsecureSkipVerify disables server verification. Testing only.
	InsecureSkipVerify bool `koanf:"insecure_skip_verify"`
}

// ClientConfig builds the tls.Config described by cfg. It returns a nil
// config when TLS is disabled. stop releases the certificate watcher and
// is never nil.
func ClientConfig(cfg Config, logger *slog.Logger) (tc *tls.Config, stop func(), err error) {
	stop = func() {}
	if !cfg.Enabled {
		return nil, stop, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	pool := NewPool()
	if cfg.CAFile != "" {
		if err := pool.AddCertFile(cfg.CAFile); err != nil {
			return nil, stop, err
		}
	}
	if cfg.CADir != "" {
		n, err := pool.AddCertDir(cfg.CADir)
		if err != nil {
			logger.Warn("some CA files were skipped", "dir", cfg.CADir, "added", n, "error", err)
		}
	}

	tc = &tls.Config{
		RootCAs:            pool.Pool(),
		ServerName:         cfg.ServerName,
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // opt-in for test setups
		MinVersion:         tls.VersionTLS12,
	}

	if cfg.CertFile == "" && cfg.KeyFile == "" {
		return tc, stop, nil
	}
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, stop, errors.New("tlsroots: cert_file and key_file must be set together")
	}

	w, err := NewWatcher(cfg.CertFile, cfg.KeyFile, WithLogger(logger))
	if err != nil {
		return nil, stop, err
	}
	w.StartAsync()
	tc.GetClientCertificate = w.GetClientCertificate
	return tc, w.Stop, nil
}
