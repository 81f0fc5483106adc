package sshconn

import (
	"fmt"
	"net"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/okano/skiff/internal/domain/entities"
)

// AgentIdentity is a deploy key loaded into a running SSH agent. It is
// scoped to one pipeline run: Remove takes the identity out of the agent
// again so no unlocked key material outlives the run.
type AgentIdentity struct {
	conn   net.Conn
	client agent.Agent
	pub    ssh.PublicKey
}

// LoadIntoAgent adds the key to the agent listening on socketPath. The
// lifetime is a second line of defense: the agent expires the identity
// on its own even if Remove is never reached.
func LoadIntoAgent(socketPath string, material *entities.PrivateKeyMaterial, comment string, lifetimeSecs uint32) (*AgentIdentity, error) {
	rawKey, err := ssh.ParseRawPrivateKey(material.PEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(material.PEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ssh agent: %w", err)
	}

	client := agent.NewClient(conn)
	if err := client.Add(agent.AddedKey{
		PrivateKey:   rawKey,
		Comment:      comment,
		LifetimeSecs: lifetimeSecs,
	}); err != nil {
		//nolint:errcheck // connection is being abandoned
		conn.Close()
		return nil, fmt.Errorf("failed to add key to agent: %w", err)
	}

	return &AgentIdentity{conn: conn, client: client, pub: signer.PublicKey()}, nil
}

// Remove unloads the identity from the agent and closes the connection.
func (a *AgentIdentity) Remove() error {
	//nolint:errcheck // Defer close
	defer a.conn.Close()
	if err := a.client.Remove(a.pub); err != nil {
		return fmt.Errorf("failed to remove key from agent: %w", err)
	}
	return nil
}
