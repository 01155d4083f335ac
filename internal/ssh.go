package internal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/wmc1992/npustat/internal/npu/base"
)

// SSHHost is one concrete Host block from an OpenSSH client config.
type SSHHost struct {
	Name         string
	Hostname     string
	User         string
	Port         string
	IdentityFile string
}

type SSHClient struct {
	client *ssh.Client
	host   SSHHost
	agent  net.Conn // nil without an agent
}

// ParseSSHConfig reads the OpenSSH client config at path, following Include
// directives. Wildcard Host patterns are skipped. An empty path means
// ~/.ssh/config.
func ParseSSHConfig(fsys afero.Fs, path string) ([]SSHHost, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = filepath.Join(home, ".ssh", "config")
	}
	p := &sshConfigParser{fs: fsys, home: home, visited: map[string]bool{}}
	return p.parse(path)
}

// LookupSSHHost returns the named host from the config, or a bare host using
// the name as address when the config has no entry for it.
func LookupSSHHost(hosts []SSHHost, name string) SSHHost {
	for _, h := range hosts {
		if h.Name == name {
			return h
		}
	}
	return SSHHost{Name: name, Hostname: name, Port: "22"}
}

type sshConfigParser struct {
	fs      afero.Fs
	home    string
	visited map[string]bool
}

func (p *sshConfigParser) parse(path string) ([]SSHHost, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if p.visited[abs] {
		return nil, nil
	}
	p.visited[abs] = true

	f, err := p.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var (
		hosts   []SSHHost
		current *SSHHost
	)
	flush := func() {
		if current != nil && !strings.ContainsAny(current.Name, "*?") {
			hosts = append(hosts, *current)
		}
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		key := strings.ToLower(parts[0])
		value := strings.Join(parts[1:], " ")

		switch {
		case key == "include":
			hosts = append(hosts, p.include(path, value)...)
		case key == "host":
			flush()
			current = &SSHHost{Name: value, Port: "22"}
		case current == nil:
		case key == "hostname":
			current.Hostname = value
		case key == "user":
			current.User = value
		case key == "port":
			current.Port = value
		case key == "identityfile":
			current.IdentityFile = p.expand(value)
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return hosts, nil
}

func (p *sshConfigParser) include(from, pattern string) []SSHHost {
	pattern = p.expand(pattern)
	if pattern == "" {
		return nil
	}
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(filepath.Dir(from), pattern)
	}
	matches, err := afero.Glob(p.fs, pattern)
	if err != nil {
		return nil
	}
	var hosts []SSHHost
	for _, m := range matches {
		included, err := p.parse(m)
		if err != nil {
			continue
		}
		hosts = append(hosts, included...)
	}
	return hosts
}

// expand resolves ~/ and relative paths against ~/.ssh. Absolute paths are
// only accepted under ~/.ssh or /etc/ssh; anything else comes back empty.
func (p *sshConfigParser) expand(path string) string {
	if path == "" || strings.Contains(path, "..") {
		return ""
	}
	sshDir := filepath.Join(p.home, ".ssh")
	switch {
	case strings.HasPrefix(path, "~/"):
		return filepath.Join(p.home, path[2:])
	case filepath.IsAbs(path):
		clean := filepath.Clean(path)
		if strings.HasPrefix(clean, sshDir) || strings.HasPrefix(clean, "/etc/ssh") {
			return clean
		}
		return ""
	default:
		return filepath.Join(sshDir, path)
	}
}

func hostKeyCallback() (ssh.HostKeyCallback, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("unable to get user home directory: %w", err)
	}
	knownHostsPath := filepath.Join(home, ".ssh", "known_hosts")

	check, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to load known_hosts: %w", err)
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := check(hostname, remote, key)
		var keyErr *knownhosts.KeyError
		switch {
		case err == nil:
			return nil
		case errors.As(err, &keyErr) && len(keyErr.Want) > 0:
			return fmt.Errorf("host key verification failed: host key has changed for %s, remove the old key from %s if you trust this host", hostname, knownHostsPath)
		case errors.As(err, &keyErr):
			return fmt.Errorf("host key verification failed: %s is not in %s, run 'ssh %s' once to accept its key", hostname, knownHostsPath, hostname)
		default:
			return fmt.Errorf("host key verification failed: %w", err)
		}
	}, nil
}

func validUsername(user string) bool {
	if user == "" || len(user) > 32 {
		return false
	}
	for _, r := range user {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '-' || r == '.') {
			return false
		}
	}
	return true
}

// authMethods returns the usable methods and the agent connection backing
// one of them, if any. The caller owns the connection.
func authMethods(host SSHHost) ([]ssh.AuthMethod, net.Conn) {
	var (
		methods   []ssh.AuthMethod
		agentConn net.Conn
	)

	// identity file from the config first, then the agent, then default keys
	if host.IdentityFile != "" {
		if m, err := publicKeyAuth(host.IdentityFile); err == nil {
			methods = append(methods, m)
		}
	}
	if m, conn, err := agentAuth(); err == nil {
		methods = append(methods, m)
		agentConn = conn
	}
	if home, err := os.UserHomeDir(); err == nil {
		for _, name := range []string{"id_ed25519", "id_ecdsa", "id_rsa"} {
			path := filepath.Join(home, ".ssh", name)
			if path == host.IdentityFile {
				continue
			}
			if m, err := publicKeyAuth(path); err == nil {
				methods = append(methods, m)
			}
		}
	}
	return methods, agentConn
}

func publicKeyAuth(path string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	// encrypted keys fail here and are left to the agent
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, err
	}
	return ssh.PublicKeys(signer), nil
}

func agentAuth() (ssh.AuthMethod, net.Conn, error) {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" || !filepath.IsAbs(socket) {
		return nil, nil, fmt.Errorf("SSH_AUTH_SOCK not set or invalid")
	}
	conn, err := net.Dial("unix", filepath.Clean(socket))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to SSH agent: %w", err)
	}
	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers), conn, nil
}

// DialSSH connects to host using the config's identity, the agent or the
// default keys, verifying the host key against known_hosts.
func DialSSH(ctx context.Context, host SSHHost, timeout time.Duration) (*SSHClient, error) {
	if host.Hostname == "" {
		host.Hostname = host.Name
	}
	if host.User == "" {
		if u := os.Getenv("USER"); validUsername(u) {
			host.User = u
		}
	}
	if host.Port == "" {
		host.Port = "22"
	}
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}

	callback, err := hostKeyCallback()
	if err != nil {
		return nil, fmt.Errorf("failed to setup host key verification: %w", err)
	}
	methods, agentConn := authMethods(host)
	if len(methods) == 0 {
		return nil, fmt.Errorf("no authentication methods available")
	}
	closeAgent := func() {
		if agentConn != nil {
			agentConn.Close()
		}
	}
	config := &ssh.ClientConfig{
		User:            host.User,
		Auth:            methods,
		HostKeyCallback: callback,
		Timeout:         timeout,
	}

	addr := net.JoinHostPort(host.Hostname, host.Port)
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		closeAgent()
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		closeAgent()
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return &SSHClient{client: ssh.NewClient(c, chans, reqs), host: host, agent: agentConn}, nil
}

var allowedRemoteCommands = []string{
	"npu-smi ",
	"ascend-dmi ",
}

func isAllowedCommand(cmd string) bool {
	cmd = strings.TrimSpace(cmd)
	if strings.ContainsAny(cmd, ";&|`$<>()\n") {
		return false
	}
	if cmd == "hostname" {
		return true
	}
	for _, prefix := range allowedRemoteCommands {
		if strings.HasPrefix(cmd, prefix) {
			return true
		}
	}
	return false
}

// Run executes one allowed command in a new session. Cancelling ctx closes
// the session.
func (c *SSHClient) Run(ctx context.Context, cmd string) (string, error) {
	if !isAllowedCommand(cmd) {
		return "", fmt.Errorf("command not in allowed list: %s", cmd)
	}
	session, err := c.client.NewSession()
	if err != nil {
		return "", &base.CommandError{Command: cmd, Err: err}
	}
	defer session.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			session.Close()
		case <-done:
		}
	}()

	var stdout, stderr strings.Builder
	session.Stdout = &stdout
	session.Stderr = &stderr
	err = session.Run(cmd)
	if ctx.Err() != nil {
		return "", base.Unavailable(cmd, ctx.Err())
	}
	var exitErr *ssh.ExitError
	switch {
	case err == nil:
		return stdout.String(), nil
	case errors.As(err, &exitErr) && exitErr.ExitStatus() == 127:
		return "", base.Unavailable(cmd, err)
	default:
		return stdout.String(), &base.CommandError{Command: cmd, Output: stderr.String(), Err: err}
	}
}

// Runner adapts the client to the backends, bounding every command by timeout.
func (c *SSHClient) Runner(timeout time.Duration) base.RunCmdFunc {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return func(ctx context.Context, cmd string) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return c.Run(ctx, cmd)
	}
}

func (c *SSHClient) Host() SSHHost { return c.host }

// Close ends the SSH connection and releases the agent connection.
func (c *SSHClient) Close() error {
	var err error
	if c.client != nil {
		err = c.client.Close()
	}
	if c.agent != nil {
		err = multierr.Append(err, c.agent.Close())
		c.agent = nil
	}
	return err
}
