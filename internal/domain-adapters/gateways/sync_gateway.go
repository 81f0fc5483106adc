package gateways

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/crypto/ssh"

	"github.com/okano/skiff/internal/domain/entities"
	"github.com/okano/skiff/internal/domain/interfaces"
	"github.com/okano/skiff/internal/external-adapters/sftpsync"
	"github.com/okano/skiff/internal/external-adapters/sshconn"
)

// Transient dial failures get a bounded retry; anything else fails the
// transfer immediately.
const (
	dialMaxRetries  = 2
	dialBackoffBase = 2 * time.Second
)

// SyncGateway transfers the resolved file set to the target over SFTP.
type SyncGateway struct {
	target         *entities.Target
	sourceRoot     string
	targetFilePath string
	knownHostsPath string
	resolver       *TransferSetResolver
	mirror         *sftpsync.Mirror
	logger         interfaces.Logger
}

// NewSyncGateway creates a new sync gateway. targetFilePath is the
// deploy target file the run was loaded from; it joins the exclusion
// policy alongside the configured credential paths.
func NewSyncGateway(target *entities.Target, sourceRoot, targetFilePath, knownHostsPath string, logger interfaces.Logger) *SyncGateway {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &SyncGateway{
		target:         target,
		sourceRoot:     sourceRoot,
		targetFilePath: targetFilePath,
		knownHostsPath: knownHostsPath,
		resolver:       NewTransferSetResolver(logger),
		mirror:         sftpsync.NewMirror(logger),
		logger:         logger,
	}
}

// Sync resolves the transfer set and mirrors it to the remote path.
// Every failure comes back as a TransferError: the remote tree must not
// be treated as live.
func (g *SyncGateway) Sync(ctx context.Context, cred *entities.CredentialHandle) (*entities.SyncStats, error) {
	sensitive := entities.SensitivePathExclusions(g.sourceRoot, g.targetFilePath, g.target.Credential)
	policy := entities.NewExclusionPolicy(append(sensitive, g.target.Exclude...))
	set, err := g.resolver.Resolve(g.sourceRoot, policy)
	if err != nil {
		return nil, &entities.TransferError{Host: g.target.Host, Err: err}
	}
	g.logger.Info("transfer set resolved",
		interfaces.F("files", len(set.Files)),
		interfaces.F("excluded_patterns", len(policy.Patterns)))

	signer, err := sshconn.NewSigner(cred.Material)
	if err != nil {
		return nil, &entities.TransferError{Host: g.target.Host, Err: err}
	}

	client, err := dialWithRetry(ctx, sshconn.Config{
		Host:           g.target.Host,
		Port:           g.target.Port,
		User:           g.target.User,
		KnownHostsPath: g.knownHostsPath,
		ConnectTimeout: g.target.ConnectTimeout,
	}, []ssh.AuthMethod{ssh.PublicKeys(signer)}, g.logger)
	if err != nil {
		return nil, &entities.TransferError{Host: g.target.Host, Err: err}
	}
	//nolint:errcheck // Defer close
	defer client.Close()

	sftpClient, err := sftpsync.Open(client.Raw())
	if err != nil {
		return nil, &entities.TransferError{Host: g.target.Host, Err: err}
	}
	//nolint:errcheck // Defer close
	defer sftpClient.Close()

	stats, err := g.mirror.Push(ctx, sftpClient, set, g.target.RemotePath)
	if err != nil {
		return stats, &entities.TransferError{Host: g.target.Host, Err: err}
	}

	g.logger.Info("sync complete",
		interfaces.F("uploaded", stats.Uploaded),
		interfaces.F("skipped", stats.Skipped),
		interfaces.F("bytes", stats.Bytes))
	return stats, nil
}

// dialWithRetry retries transient network failures with bounded
// exponential backoff. Authentication and host key failures are final on
// the first attempt.
func dialWithRetry(ctx context.Context, cfg sshconn.Config, auth []ssh.AuthMethod, logger interfaces.Logger) (*sshconn.Client, error) {
	backoff := retry.WithMaxRetries(dialMaxRetries, retry.NewExponential(dialBackoffBase))

	var client *sshconn.Client
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		c, dialErr := sshconn.Dial(ctx, cfg, auth)
		if dialErr != nil {
			if sshconn.IsTransientDialError(dialErr) {
				logger.Warn("transient dial failure, retrying", interfaces.F("error", dialErr))
				return retry.RetryableError(dialErr)
			}
			return dialErr
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}
