package meshconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadValid(t *testing.T) {
	path := writeTemp(t, `
node_id: gateway-a
listen_address: "0.0.0.0:8443"
cert_path: /etc/mesh/a.crt
key_path: /etc/mesh/a.key
ca_path: /etc/mesh/ca.crt
peers:
  - node_id: gateway-b
    address: "10.0.0.2:8443"
  - node_id: gateway-c
    address: "10.0.0.3:8443"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gateway-a", cfg.NodeID)
	assert.Len(t, cfg.Peers, 2)
}

func TestLoadRejectsDuplicatePeer(t *testing.T) {
	path := writeTemp(t, `
node_id: gateway-a
listen_address: "0.0.0.0:8443"
cert_path: a.crt
key_path: a.key
ca_path: ca.crt
peers:
  - node_id: gateway-b
    address: "10.0.0.2:8443"
  - node_id: gateway-b
    address: "10.0.0.9:8443"
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "duplicate peer")
}

func TestLoadRejectsSelfAsPeer(t *testing.T) {
	path := writeTemp(t, `
node_id: gateway-a
listen_address: "0.0.0.0:8443"
cert_path: a.crt
key_path: a.key
ca_path: ca.crt
peers:
  - node_id: gateway-a
    address: "10.0.0.2:8443"
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "contains self")
}

func TestLoadRejectsBadAddress(t *testing.T) {
	path := writeTemp(t, `
node_id: gateway-a
listen_address: "not-a-host-port"
cert_path: a.crt
key_path: a.key
ca_path: ca.crt
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
