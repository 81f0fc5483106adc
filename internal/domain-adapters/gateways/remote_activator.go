package gateways

import (
	"context"

	"golang.org/x/crypto/ssh"

	"github.com/okano/skiff/internal/domain/entities"
	"github.com/okano/skiff/internal/domain/interfaces"
	"github.com/okano/skiff/internal/external-adapters/sshconn"
)

// RemoteActivator restarts the deployed service with one fixed command
// over an authenticated session. By the time it runs the code is already
// on disk, so every failure here is a RemoteExecError: operators retry
// the restart, not the sync.
type RemoteActivator struct {
	target         *entities.Target
	knownHostsPath string
	logger         interfaces.Logger
}

// NewRemoteActivator creates a new activator
func NewRemoteActivator(target *entities.Target, knownHostsPath string, logger interfaces.Logger) *RemoteActivator {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &RemoteActivator{target: target, knownHostsPath: knownHostsPath, logger: logger}
}

// Activate runs the restart command, bounded by the service timeout.
func (a *RemoteActivator) Activate(ctx context.Context, cred *entities.CredentialHandle) error {
	signer, err := sshconn.NewSigner(cred.Material)
	if err != nil {
		return &entities.RemoteExecError{Command: a.target.Service.RestartCommand, Err: err}
	}

	client, err := sshconn.Dial(ctx, sshconn.Config{
		Host:           a.target.Host,
		Port:           a.target.Port,
		User:           a.target.User,
		KnownHostsPath: a.knownHostsPath,
		ConnectTimeout: a.target.ConnectTimeout,
	}, []ssh.AuthMethod{ssh.PublicKeys(signer)})
	if err != nil {
		return &entities.RemoteExecError{Command: a.target.Service.RestartCommand, Err: err}
	}
	//nolint:errcheck // Defer close
	defer client.Close()

	result, err := client.Run(ctx, a.target.Service.RestartCommand, a.target.Service.Timeout)
	if err != nil {
		return err
	}

	a.logger.Info("service restarted",
		interfaces.F("command", a.target.Service.RestartCommand),
		interfaces.F("duration", result.Duration))
	return nil
}
