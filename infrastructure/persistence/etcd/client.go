package etcd

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	pkgerrors "docprobe/pkg/errors"
	"docprobe/pkg/utils"

	"go.etcd.io/etcd/client/pkg/v3/transport"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

var (
	defaultDialTimeout = 10 * time.Second
	keepaliveTime      = 30 * time.Second
	keepaliveTimeout   = 10 * time.Second
)

// ClientOptions describes how to reach the etcd cluster
type ClientOptions struct {
	// Endpoints is a comma separated list of URLs.
	Endpoints string
	// Credential is "username:password"; empty disables auth.
	Credential    string
	CertFile      string
	KeyFile       string
	TrustedCAFile string
	DialTimeout   time.Duration
}

// NewClient connects to etcd and verifies the first endpoint answers
func NewClient(ctx context.Context, opts ClientOptions, logger *zap.Logger) (*clientv3.Client, error) {
	var endpoints []string
	for _, ep := range strings.Split(opts.Endpoints, ",") {
		if ep = strings.TrimSpace(ep); ep != "" {
			endpoints = append(endpoints, ep)
		}
	}
	if len(endpoints) == 0 {
		return nil, pkgerrors.NewValidationError("no etcd endpoints specified")
	}

	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}

	cfg := clientv3.Config{
		Endpoints:            endpoints,
		DialTimeout:          dialTimeout,
		DialKeepAliveTime:    keepaliveTime,
		DialKeepAliveTimeout: keepaliveTimeout,
		Logger:               logger,
	}

	if opts.CertFile != "" || opts.KeyFile != "" || opts.TrustedCAFile != "" {
		tlsCfg, err := tlsConfig(opts)
		if err != nil {
			return nil, err
		}
		cfg.TLS = tlsCfg
	}

	if opts.Credential != "" {
		parts := utils.SplitCredential(opts.Credential)
		if len(parts) < 2 || parts[0] == "" {
			return nil, pkgerrors.NewValidationError("etcd credential must be username:password").
				WithCode(pkgerrors.CodeBadCredentials)
		}
		cfg.Username = parts[0]
		cfg.Password = strings.Join(parts[1:], ":")
	}

	client, err := clientv3.New(cfg)
	if err != nil {
		return nil, translateError("Connect", endpoints[0], err)
	}

	statusCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if _, err := client.Status(statusCtx, endpoints[0]); err != nil {
		client.Close()
		return nil, translateError("Status", endpoints[0], err)
	}

	return client, nil
}

func tlsConfig(opts ClientOptions) (*tls.Config, error) {
	info := transport.TLSInfo{
		CertFile:      opts.CertFile,
		KeyFile:       opts.KeyFile,
		TrustedCAFile: opts.TrustedCAFile,
	}
	cfg, err := info.ClientConfig()
	if err != nil {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("invalid etcd TLS configuration: %v", err)).WithCause(err)
	}
	return cfg, nil
}
