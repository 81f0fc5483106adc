// Package sshconn wraps the SSH transport: authenticated connections
// with fail-closed host key checking, bounded remote command execution,
// and agent identity management.
package sshconn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/okano/skiff/internal/domain/entities"
)

const defaultConnectTimeout = 15 * time.Second

// Config describes one SSH destination.
type Config struct {
	Host           string
	Port           int
	User           string
	KnownHostsPath string
	ConnectTimeout time.Duration
}

func (c Config) addr() string {
	port := c.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// NewSigner parses decrypted key material into an SSH signer.
func NewSigner(material *entities.PrivateKeyMaterial) (ssh.Signer, error) {
	signer, err := ssh.ParsePrivateKey(material.PEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return signer, nil
}

// Client is an authenticated SSH connection to one host.
type Client struct {
	ssh  *ssh.Client
	addr string
}

// Dial opens an authenticated connection. Host keys are checked against
// the known-hosts file only: an unknown or mismatched host key fails the
// connection, there is no prompting in a pipeline.
func Dial(ctx context.Context, cfg Config, auth []ssh.AuthMethod) (*Client, error) {
	hostKeyCallback, err := knownhosts.New(cfg.KnownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts from %s: %w", cfg.KnownHostsPath, err)
	}

	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = defaultConnectTimeout
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.addr())
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.addr(), err)
	}

	clientConfig := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, cfg.addr(), clientConfig)
	if err != nil {
		//nolint:errcheck // connection is already failed
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s failed: %w", cfg.addr(), err)
	}

	return &Client{ssh: ssh.NewClient(sshConn, chans, reqs), addr: cfg.addr()}, nil
}

// Raw exposes the underlying connection for protocol subsystems (SFTP).
func (c *Client) Raw() *ssh.Client {
	return c.ssh
}

// Close tears down the connection.
func (c *Client) Close() error {
	return c.ssh.Close()
}

// ExecResult contains the result of one remote command.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Run executes one command on the remote host, bounded by timeout. A
// non-zero exit, a dropped connection, or a timeout comes back as a
// RemoteExecError; the partial result is returned alongside it.
func (c *Client) Run(ctx context.Context, command string, timeout time.Duration) (*ExecResult, error) {
	startTime := time.Now()
	result := &ExecResult{}

	session, err := c.ssh.NewSession()
	if err != nil {
		return result, &entities.RemoteExecError{Command: command, Err: fmt.Errorf("failed to open session: %w", err)}
	}
	//nolint:errcheck // Defer close
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-runCtx.Done():
		//nolint:errcheck // session is being abandoned
		session.Close()
		result.Duration = time.Since(startTime)
		result.ExitCode = -1
		return result, &entities.RemoteExecError{
			Command: command,
			Err:     fmt.Errorf("command did not finish within %v: %w", timeout, runCtx.Err()),
		}
	case err = <-done:
	}

	result.Duration = time.Since(startTime)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitStatus()
			return result, &entities.RemoteExecError{
				Command:  command,
				ExitCode: result.ExitCode,
				Stderr:   result.Stderr,
			}
		}
		result.ExitCode = -1
		return result, &entities.RemoteExecError{Command: command, Err: err}
	}

	result.ExitCode = 0
	return result, nil
}

// IsTransientDialError reports whether a dial failure is worth retrying:
// timeouts and refused or unreachable destinations. Authentication and
// host key failures are never transient.
func IsTransientDialError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH)
}
