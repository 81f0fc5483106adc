package yaml

import (
	"testing"
)

// FuzzTargetParser tests the YAML parser against random/malformed inputs
// to detect crashes, panics, or unexpected behavior.
//
// Run with: go test -fuzz=FuzzTargetParser -fuzztime=30s
func FuzzTargetParser(f *testing.F) {
	// Seed corpus with valid YAML examples
	f.Add([]byte(`branch: main
host: app.example.com
user: deploy
remote_path: /srv/app
restart_command: sudo systemctl restart app
credential:
  blob_path: .deploy/id_deploy.enc
`))

	f.Add([]byte(`branch: main
host: app.example.com
port: 2222
user: deploy
remote_path: /srv/app
restart_command: sudo systemctl restart app.service
command_timeout_seconds: 120
connect_timeout_seconds: 30
credential:
  blob_path: .deploy/id_deploy.enc
  signature_path: .deploy/id_deploy.enc.sig
  keyring_path: .deploy/operators.asc
  install_path: /home/deploy/.ssh/id_skiff
  known_hosts_path: /home/deploy/.ssh/known_hosts
known_hosts:
  - "app.example.com ssh-ed25519 AAAA"
exclude:
  - tests
  - alembic
  - "*.pyc"
`))

	// Seed with edge cases
	f.Add([]byte(``))                              // Empty input
	f.Add([]byte(`branch: ""` + "\n"))             // Empty branch
	f.Add([]byte(`{}`))                            // Empty JSON-style YAML
	f.Add([]byte(`[]`))                            // Array instead of object
	f.Add([]byte(`branch: main\n  bad`))           // Invalid indentation
	f.Add([]byte(`branch: main\nbranch: develop`)) // Duplicate keys
	f.Add([]byte(`port: not-a-number`))            // Wrong scalar type
	f.Add([]byte(`known_hosts: scalar`))           // Wrong collection type

	parser := NewTargetParser()

	f.Fuzz(func(_ *testing.T, data []byte) {
		// The parser should handle any input without crashing
		// We don't care if it returns an error - just that it doesn't panic
		_, _ = parser.Parse(data)
	})
}
