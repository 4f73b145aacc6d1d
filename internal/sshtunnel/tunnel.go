package sshtunnel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Config describes connection parameters for the SSH hop in front of the
// source database.
type Config struct {
	User     string        // remote user (required)
	Host     string        // remote host or host:port (required)
	KeyPath  string        // path to private key; if empty, DefaultKeyPaths will be tried and agent auth is allowed as fallback
	Insecure bool          // if true, skip host key verification (StrictHostKeyChecking=no analogue)
	Timeout  time.Duration // dial timeout; if 0, DefaultTimeout
}

// DefaultTimeout used when Config.Timeout==0.
const DefaultTimeout = 10 * time.Second

// DefaultKeyPaths tried when Config.KeyPath is empty.
var DefaultKeyPaths = []string{
	os.Getenv("HOME") + "/.ssh/id_ed25519",
	os.Getenv("HOME") + "/.ssh/id_rsa",
	os.Getenv("HOME") + "/.ssh/id_ecdsa",
}

// Tunnel is a local TCP listener whose connections are all forwarded to one
// fixed remote address over a shared SSH connection. Close must be called
// when no longer needed.
type Tunnel struct {
	client *ssh.Client
	ln     net.Listener
	remote string

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// Open dials the SSH host and starts a listener on 127.0.0.1 with a
// kernel-assigned port. remoteAddr is the database address as seen from the
// SSH host. Returns the tunnel and the local port to connect to.
func Open(ctx context.Context, cfg Config, remoteAddr string) (*Tunnel, int, error) {
	if cfg.User == "" || cfg.Host == "" {
		return nil, 0, fmt.Errorf("ssh: User and Host required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	authMethods, err := authMethodsForKey(cfg.KeyPath)
	if err != nil {
		return nil, 0, err
	}

	sshCfg := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback(cfg.Insecure),
		Timeout:         cfg.Timeout,
	}

	// allow host:port in Host; default 22 if missing
	addr := cfg.Host
	if !hasPort(addr) {
		addr = addr + ":22"
	}

	slog.Debug("ssh dial", "addr", addr, "user", cfg.User)

	connCh := make(chan *ssh.Client, 1)
	errCh := make(chan error, 1)
	go func() {
		c, err := ssh.Dial("tcp", addr, sshCfg)
		if err != nil {
			errCh <- err
			return
		}
		connCh <- c
	}()

	var client *ssh.Client
	select {
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	case err := <-errCh:
		return nil, 0, err
	case client = <-connCh:
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		_ = client.Close()
		return nil, 0, fmt.Errorf("ssh tunnel: listen: %w", err)
	}

	t := &Tunnel{client: client, ln: ln, remote: remoteAddr}
	t.wg.Add(1)
	go t.acceptLoop()

	port := ln.Addr().(*net.TCPAddr).Port
	slog.Info("ssh tunnel ready", "local", ln.Addr().String(), "remote", remoteAddr, "via", addr)
	return t, port, nil
}

// Addr returns the local listener address (127.0.0.1:port).
func (t *Tunnel) Addr() string { return t.ln.Addr().String() }

// Close stops the listener, tears down the SSH connection and waits for
// in-flight forwards to drain. Safe to call twice.
func (t *Tunnel) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	err := t.ln.Close()
	if cerr := t.client.Close(); err == nil {
		err = cerr
	}
	t.wg.Wait()
	return err
}

func (t *Tunnel) acceptLoop() {
	defer t.wg.Done()
	for {
		local, err := t.ln.Accept()
		if err != nil {
			// listener closed
			return
		}
		t.wg.Add(1)
		go t.forward(local)
	}
}

// forward opens the remote side and shovels bytes both ways. The outbound
// half signals EOF to the server via CloseWrite so the response can still
// stream back after the client stops sending.
func (t *Tunnel) forward(local net.Conn) {
	defer t.wg.Done()
	defer func() { _ = local.Close() }()

	remote, err := t.client.Dial("tcp", t.remote)
	if err != nil {
		slog.Warn("ssh tunnel: remote dial", "remote", t.remote, "err", err)
		return
	}
	defer func() { _ = remote.Close() }()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		_, _ = io.Copy(remote, local)
		if cw, ok := remote.(interface{ CloseWrite() error }); ok {
			_ = cw.CloseWrite()
		}
	}()
	_, _ = io.Copy(local, remote)
}

// ----------------- helpers ------------------

func hasPort(addr string) bool {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return true
		}
		if addr[i] == ']' { // IPv6 literals
			return false
		}
	}
	return false
}

func hostKeyCallback(insecure bool) ssh.HostKeyCallback {
	if insecure {
		return ssh.InsecureIgnoreHostKey()
	}

	// use standard OpenSSH known_hosts file
	knownPath := filepath.Join(os.Getenv("HOME"), ".ssh", "known_hosts")
	cb, err := knownhosts.New(knownPath)
	if err != nil {
		slog.Warn("ssh: cannot load known_hosts, falling back to insecure", "err", err)
		return ssh.InsecureIgnoreHostKey()
	}
	return cb
}

func authMethodsForKey(keyPath string) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if keyPath != "" {
		key, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("ssh: read key %s: %w", keyPath, err)
		}
		signer, err := signerFromKey(key)
		if err != nil {
			return nil, err
		}
		methods = append(methods, ssh.PublicKeys(signer))
	} else {
		// try default keys
		for _, p := range DefaultKeyPaths {
			if _, err := os.Stat(p); err == nil {
				key, err := os.ReadFile(p)
				if err != nil {
					continue
				}
				signer, err := signerFromKey(key)
				if err != nil {
					continue
				}
				methods = append(methods, ssh.PublicKeys(signer))
			}
		}
	}

	// agent
	if a, err := sshAgent(); err == nil && a != nil {
		methods = append(methods, ssh.PublicKeysCallback(a.Signers))
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("ssh: no auth methods found (provide key or ensure agent running)")
	}
	return methods, nil
}

func signerFromKey(key []byte) (ssh.Signer, error) {
	// support encrypted keys (promptless) – fail if passphrase protected
	signer, err := ssh.ParsePrivateKey(key)
	if err == nil {
		return signer, nil
	}
	return nil, fmt.Errorf("ssh: parse key: %w", err)
}

// sshAgent tries to connect to ssh-agent and return its client.
func sshAgent() (agent.Agent, error) {
	env := os.Getenv("SSH_AUTH_SOCK")
	if env == "" {
		return nil, fmt.Errorf("SSH_AUTH_SOCK not set")
	}
	conn, err := net.Dial("unix", env)
	if err != nil {
		return nil, err
	}
	return agent.NewClient(conn), nil
}
