package connect

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/nodewatch/nodewatch/internal/credential"
	"github.com/nodewatch/nodewatch/internal/model"
)

// ErrNoCredential: the node has no credential reference, which SSH requires.
var ErrNoCredential = errors.New("connect: node has no credential")

type sshConnector struct {
	creds   Credentials
	timeout time.Duration
	port    int
}

func (c *sshConnector) Connect(ctx context.Context, target model.Node) (Result, error) {
	if target.CredentialID == "" {
		return Result{}, fmt.Errorf("%w: node %d", ErrNoCredential, target.ID)
	}
	host, err := targetHost(&target)
	if err != nil {
		return Result{}, err
	}

	cred, err := c.creds.Get(target.CredentialID)
	if err != nil {
		return Result{}, fmt.Errorf("connect: credential %s: %w", target.CredentialID, err)
	}
	defer cred.Wipe()

	auth, err := authMethods(&cred.Secret)
	if err != nil {
		return Result{}, err
	}

	cfg := &ssh.ClientConfig{
		User: cred.Secret.User,
		Auth: auth,
		// Operator tool connecting to hosts it already monitors; host
		// keys are not pinned.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.timeout,
	}

	address := net.JoinHostPort(host, strconv.Itoa(c.port))

	start := time.Now()
	conn, err := dialSSH(ctx, address, cfg)
	if err != nil {
		return Result{}, fmt.Errorf("connect: ssh %s: %w", address, err)
	}
	latency := time.Since(start)
	banner := string(conn.ServerVersion())
	conn.Close()

	if err := c.creds.MarkUsed(target.CredentialID); err != nil {
		return Result{}, fmt.Errorf("connect: mark credential used: %w", err)
	}

	return newResult(KindSSH, address, banner, latency), nil
}

// dialSSH performs the TCP dial under ctx, then the SSH handshake under the
// client config's own timeout.
func dialSSH(ctx context.Context, address string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	d := net.Dialer{Timeout: cfg.Timeout}
	raw, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	conn, chans, reqs, err := ssh.NewClientConn(raw, address, cfg)
	if err != nil {
		raw.Close()
		return nil, err
	}
	return ssh.NewClient(conn, chans, reqs), nil
}

// authMethods converts a stored secret into SSH authentication methods.
func authMethods(sec *credential.Secret) ([]ssh.AuthMethod, error) {
	switch sec.Kind {
	case credential.KindPassword:
		return []ssh.AuthMethod{ssh.Password(string(sec.Password))}, nil

	case credential.KindKeyFile:
		pem, err := os.ReadFile(sec.Path)
		if err != nil {
			return nil, fmt.Errorf("connect: read key file: %w", err)
		}
		return signerMethods(pem, sec.Passphrase)

	case credential.KindKeyData:
		return signerMethods(sec.KeyBytes, sec.Passphrase)

	case credential.KindDefault:
		// Ambient auth: nothing stored, let the server offer none-auth.
		return nil, nil

	default:
		return nil, fmt.Errorf("connect: unsupported secret kind %q", sec.Kind)
	}
}

func signerMethods(pem, passphrase []byte) ([]ssh.AuthMethod, error) {
	var (
		signer ssh.Signer
		err    error
	)
	if len(passphrase) > 0 {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, passphrase)
	} else {
		signer, err = ssh.ParsePrivateKey(pem)
	}
	if err != nil {
		return nil, fmt.Errorf("connect: parse private key: %w", err)
	}
	return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
}
