package entities

import "fmt"

// DecryptionError reports that the encrypted key blob could not be turned
// into usable private key material: wrong key or IV, corrupted ciphertext,
// or a blob whose signature did not verify. It always aborts the run before
// any network action.
type DecryptionError struct {
	Reason string
	Err    error
}

func (e *DecryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decryption failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decryption failed: %s", e.Reason)
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// Kind returns the failure classification for this error.
func (e *DecryptionError) Kind() FailureKind { return FailureDecryption }

// TrustSetupError reports a filesystem failure while installing the key
// file or appending known-hosts entries to the trust store.
type TrustSetupError struct {
	Path string
	Err  error
}

func (e *TrustSetupError) Error() string {
	return fmt.Sprintf("trust setup failed for %s: %v", e.Path, e.Err)
}

func (e *TrustSetupError) Unwrap() error { return e.Err }

// Kind returns the failure classification for this error.
func (e *TrustSetupError) Kind() FailureKind { return FailureTrustSetup }

// TransferError reports a failed file transfer. The remote tree must be
// treated as not live: activation is never attempted after one of these.
type TransferError struct {
	Host string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer to %s failed: %v", e.Host, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// Kind returns the failure classification for this error.
func (e *TransferError) Kind() FailureKind { return FailureTransfer }

// RemoteExecError reports that the remote activation command failed after
// a successful transfer. The synced tree is on disk; only the restart has
// to be retried.
type RemoteExecError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *RemoteExecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("remote command %q failed: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("remote command %q exited %d: %s", e.Command, e.ExitCode, e.Stderr)
}

func (e *RemoteExecError) Unwrap() error { return e.Err }

// Kind returns the failure classification for this error.
func (e *RemoteExecError) Kind() FailureKind { return FailureRemoteExec }
