package entities

// EncryptedKeyBlob is the at-rest-encrypted deploy key committed to the
// repository. The symmetric key and IV that unlock it arrive out-of-band
// through the environment and are never part of the blob.
type EncryptedKeyBlob struct {
	Ciphertext []byte
}

// PrivateKeyMaterial is the decrypted deploy key. It lives for one
// pipeline run only.
type PrivateKeyMaterial struct {
	PEM []byte
}

// Zero overwrites the key bytes in place. The slice stays allocated but
// no longer holds key material.
func (m *PrivateKeyMaterial) Zero() {
	for i := range m.PEM {
		m.PEM[i] = 0
	}
}

// KnownHostsEntry binds a remote host to its public key line in the
// trust store. Entries are appended before the first connection attempt;
// connections against unknown hosts fail closed.
type KnownHostsEntry struct {
	Line string
}

// CredentialHandle scopes provisioned credential material to a single
// run. Release undoes every side effect of provisioning in reverse
// order and zeroes the in-memory key; the orchestrator calls it on every
// exit path, including failure.
type CredentialHandle struct {
	KeyPath  string
	Material *PrivateKeyMaterial

	releasers []func() error
}

// OnRelease registers a cleanup step. Steps run in reverse registration
// order, mirroring the order of the side effects they undo.
func (h *CredentialHandle) OnRelease(f func() error) {
	h.releasers = append(h.releasers, f)
}

// Release runs all registered cleanup steps and zeroes the key material.
// Every step runs even if an earlier one fails; the first error wins.
func (h *CredentialHandle) Release() error {
	var first error
	for i := len(h.releasers) - 1; i >= 0; i-- {
		if err := h.releasers[i](); err != nil && first == nil {
			first = err
		}
	}
	h.releasers = nil
	if h.Material != nil {
		h.Material.Zero()
	}
	return first
}
