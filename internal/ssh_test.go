package internal

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sshConfig = `# lab machines
Host atlas-01
    HostName 10.0.0.11
    User ops
    IdentityFile ~/.ssh/id_atlas

Host *.internal
    User nobody

Include conf.d/*

Host atlas-02
    HostName 10.0.0.12
    Port 2222
    IdentityFile /tmp/stolen_key
`

func TestParseSSHConfig(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/home/tester/.ssh/config", []byte(sshConfig), 0o600))
	require.NoError(t, afero.WriteFile(fsys, "/home/tester/.ssh/conf.d/extra",
		[]byte("Host atlas-03\n  HostName 10.0.0.13\n  Include ../config\n"), 0o600))

	hosts, err := ParseSSHConfig(fsys, "")
	require.NoError(t, err)
	require.Len(t, hosts, 3)

	assert.Equal(t, SSHHost{Name: "atlas-01", Hostname: "10.0.0.11", User: "ops", Port: "22",
		IdentityFile: "/home/tester/.ssh/id_atlas"}, hosts[0])
	assert.Equal(t, "atlas-03", hosts[1].Name)
	assert.Equal(t, "10.0.0.13", hosts[1].Hostname)
	assert.Equal(t, "2222", hosts[2].Port)
	assert.Empty(t, hosts[2].IdentityFile)
}

func TestParseSSHConfig_Missing(t *testing.T) {
	_, err := ParseSSHConfig(afero.NewMemMapFs(), "/nowhere/config")
	assert.Error(t, err)
}

func TestLookupSSHHost(t *testing.T) {
	hosts := []SSHHost{{Name: "atlas-01", Hostname: "10.0.0.11"}}
	assert.Equal(t, "10.0.0.11", LookupSSHHost(hosts, "atlas-01").Hostname)
	assert.Equal(t, SSHHost{Name: "10.0.0.99", Hostname: "10.0.0.99", Port: "22"}, LookupSSHHost(hosts, "10.0.0.99"))
}

func TestIsAllowedCommand(t *testing.T) {
	allowed := []string{"npu-smi info", "npu-smi info -t product -i 3", "ascend-dmi -i --format json", "ascend-dmi -v", "hostname"}
	for _, cmd := range allowed {
		assert.True(t, isAllowedCommand(cmd), cmd)
	}
	denied := []string{"rm -rf /", "hostname; reboot", "npu-smix info", "npu-smi info && reboot", "ascend-dmi -v $(id)", "nvidia-smi", ""}
	for _, cmd := range denied {
		assert.False(t, isAllowedCommand(cmd), cmd)
	}
}

func TestValidUsername(t *testing.T) {
	assert.True(t, validUsername("ops-user.1"))
	assert.False(t, validUsername(""))
	assert.False(t, validUsername("ops;rm"))
}

// fakeAgent accepts one connection on a unix socket and closes done once the
// client side hangs up.
func fakeAgent(t *testing.T) (socket string, done <-chan struct{}) {
	t.Helper()
	socket = filepath.Join(t.TempDir(), "agent.sock")
	ln, err := net.Listen("unix", socket)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	closed := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = io.Copy(io.Discard, conn)
		close(closed)
	}()
	return socket, closed
}

func closedPort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	require.NoError(t, ln.Close())
	return port
}

func TestDialSSH_ReleasesAgentOnFailure(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".ssh"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".ssh", "known_hosts"), nil, 0o600))
	t.Setenv("HOME", home)

	socket, done := fakeAgent(t)
	t.Setenv("SSH_AUTH_SOCK", socket)

	host := SSHHost{Name: "atlas-01", Hostname: "127.0.0.1", Port: closedPort(t), User: "ops"}
	_, err := DialSSH(context.Background(), host, time.Second)
	require.Error(t, err)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("agent connection left open after a failed dial")
	}
}

func TestSSHClient_CloseReleasesAgent(t *testing.T) {
	ours, theirs := net.Pipe()
	c := &SSHClient{agent: ours}

	require.NoError(t, c.Close())
	_, err := theirs.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)

	// closing twice is harmless
	assert.NoError(t, c.Close())
}
