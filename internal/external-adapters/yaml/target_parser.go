// Package yaml provides YAML-based deploy target parsing and repository
// implementations.
package yaml

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/okano/skiff/internal/domain/entities"
)

// Defaults applied when the target file leaves a field out.
const (
	defaultPort           = 22
	defaultCommandTimeout = 60 * time.Second
	defaultConnectTimeout = 15 * time.Second
)

// yamlTarget represents the raw YAML structure
type yamlTarget struct {
	Branch                string         `yaml:"branch"`
	Host                  string         `yaml:"host"`
	Port                  int            `yaml:"port"`
	User                  string         `yaml:"user"`
	RemotePath            string         `yaml:"remote_path"`
	RestartCommand        string         `yaml:"restart_command"`
	CommandTimeoutSeconds int            `yaml:"command_timeout_seconds"`
	ConnectTimeoutSeconds int            `yaml:"connect_timeout_seconds"`
	Credential            yamlCredential `yaml:"credential"`
	KnownHosts            []string       `yaml:"known_hosts"`
	Exclude               []string       `yaml:"exclude"`
}

type yamlCredential struct {
	BlobPath       string `yaml:"blob_path"`
	SignaturePath  string `yaml:"signature_path"`
	KeyringPath    string `yaml:"keyring_path"`
	InstallPath    string `yaml:"install_path"`
	KnownHostsPath string `yaml:"known_hosts_path"`
}

// TargetParser parses YAML deploy target files
type TargetParser struct{}

// NewTargetParser creates a new YAML parser
func NewTargetParser() *TargetParser {
	return &TargetParser{}
}

// ParseFile parses a deploy target from a file path.
func (p *TargetParser) ParseFile(filePath string) (*entities.Target, error) {
	//nolint:gosec // G304: filePath is operator-provided configuration
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read target file: %w", err)
	}
	return p.Parse(data)
}

// Parse parses a deploy target from raw YAML, applying defaults and
// validating required fields.
func (p *TargetParser) Parse(data []byte) (*entities.Target, error) {
	var raw yamlTarget
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse target YAML: %w", err)
	}

	target := &entities.Target{
		Branch:     raw.Branch,
		Host:       raw.Host,
		Port:       raw.Port,
		User:       raw.User,
		RemotePath: raw.RemotePath,
		Service: entities.RemoteServiceHandle{
			RestartCommand: raw.RestartCommand,
			Timeout:        defaultCommandTimeout,
		},
		Credential: entities.CredentialConfig{
			BlobPath:       raw.Credential.BlobPath,
			SignaturePath:  raw.Credential.SignaturePath,
			KeyringPath:    raw.Credential.KeyringPath,
			InstallPath:    raw.Credential.InstallPath,
			KnownHostsPath: raw.Credential.KnownHostsPath,
		},
		Exclude:        raw.Exclude,
		ConnectTimeout: defaultConnectTimeout,
	}

	if target.Port == 0 {
		target.Port = defaultPort
	}
	if raw.CommandTimeoutSeconds > 0 {
		target.Service.Timeout = time.Duration(raw.CommandTimeoutSeconds) * time.Second
	}
	if raw.ConnectTimeoutSeconds > 0 {
		target.ConnectTimeout = time.Duration(raw.ConnectTimeoutSeconds) * time.Second
	}
	for _, line := range raw.KnownHosts {
		target.KnownHosts = append(target.KnownHosts, entities.KnownHostsEntry{Line: line})
	}

	if err := target.Validate(); err != nil {
		return nil, err
	}
	return target, nil
}
