package connect

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/nodewatch/nodewatch/internal/credential"
	"github.com/nodewatch/nodewatch/internal/model"
)

type fakeCreds struct {
	cred   credential.Credential
	err    error
	marked []string
}

func (f *fakeCreds) Get(id string) (credential.Credential, error) {
	if f.err != nil {
		return credential.Credential{}, f.err
	}
	return f.cred, nil
}

func (f *fakeCreds) MarkUsed(id string) error {
	f.marked = append(f.marked, id)
	return nil
}

func tcpNode(host string, port int) model.Node {
	return model.Node{ID: 1, Name: "n", Detail: model.TCPNodeDetail(host, port, 2)}
}

func TestFactory_For(t *testing.T) {
	f := NewFactory(Config{})
	for _, kind := range []Kind{KindHTTP, KindSSH, KindPing, KindTCP} {
		if _, err := f.For(kind); err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
	}
	if _, err := f.For(Kind("Telnet")); err == nil {
		t.Fatal("unknown kind must fail")
	}
}

func TestTargetHost(t *testing.T) {
	cases := []struct {
		name   string
		detail model.NodeDetail
		want   string
	}{
		{"http", model.HTTPNodeDetail("https://api.example.test:8443/health", 200), "api.example.test"},
		{"ping", model.PingNodeDetail("192.0.2.7", 1, 2), "192.0.2.7"},
		{"tcp", model.TCPNodeDetail("db.example.test", 5432, 2), "db.example.test"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := model.Node{Detail: tc.detail}
			got, err := targetHost(&n)
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Fatalf("host = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestHTTPConnector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, _ := NewFactory(Config{Timeout: 5 * time.Second}).For(KindHTTP)
	res, err := c.Connect(context.Background(), model.Node{
		ID: 1, Detail: model.HTTPNodeDetail(srv.URL, 200),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != KindHTTP || res.Address != srv.URL {
		t.Fatalf("result: %+v", res)
	}
	if res.SessionID == "" {
		t.Fatal("no session id")
	}

	// Wrong target type is rejected before any network activity.
	if _, err := c.Connect(context.Background(), tcpNode("x", 1)); err == nil {
		t.Fatal("tcp node through http connector must fail")
	}
}

func TestTCPConnector(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	host, portStr, _ := net.SplitHostPort(l.Addr().String())
	port, _ := strconv.Atoi(portStr)

	c, _ := NewFactory(Config{Timeout: 2 * time.Second}).For(KindTCP)
	res, err := c.Connect(context.Background(), tcpNode(host, port))
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != KindTCP {
		t.Fatalf("result: %+v", res)
	}

	l.Close()
	if _, err := c.Connect(context.Background(), tcpNode(host, port)); err == nil {
		t.Fatal("closed port must fail")
	}
}

func TestSSHConnector_RequiresCredential(t *testing.T) {
	c, _ := NewFactory(Config{Credentials: &fakeCreds{}}).For(KindSSH)
	_, err := c.Connect(context.Background(), tcpNode("127.0.0.1", 22))
	if !errors.Is(err, ErrNoCredential) {
		t.Fatalf("err = %v", err)
	}
}

func TestAuthMethods(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatal(err)
	}
	keyPEM := pem.EncodeToMemory(block)

	cases := []struct {
		name    string
		secret  credential.Secret
		methods int
		wantErr bool
	}{
		{"password", credential.Secret{Kind: credential.KindPassword, User: "u", Password: []byte("pw")}, 1, false},
		{"key data", credential.Secret{Kind: credential.KindKeyData, User: "u", KeyBytes: keyPEM}, 1, false},
		{"default is ambient", credential.Secret{Kind: credential.KindDefault, User: "u"}, 0, false},
		{"garbage key", credential.Secret{Kind: credential.KindKeyData, User: "u", KeyBytes: []byte("nope")}, 0, true},
		{"unknown kind", credential.Secret{Kind: "Kerberos"}, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := authMethods(&tc.secret)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tc.methods {
				t.Fatalf("methods = %d, want %d", len(got), tc.methods)
			}
		})
	}
}

// startSSHServer runs a minimal password-auth SSH listener for one handshake.
func startSSHServer(t *testing.T, user, password string) string {
	t.Helper()

	_, hostPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	hostSigner, err := ssh.NewSignerFromKey(hostPriv)
	if err != nil {
		t.Fatal(err)
	}

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(meta ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if meta.User() == user && string(pass) == password {
				return nil, nil
			}
			return nil, errors.New("denied")
		},
	}
	cfg.AddHostKey(hostSigner)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })

	go func() {
		for {
			raw, err := l.Accept()
			if err != nil {
				return
			}
			go func(raw net.Conn) {
				defer raw.Close()
				conn, chans, reqs, err := ssh.NewServerConn(raw, cfg)
				if err != nil {
					return
				}
				go ssh.DiscardRequests(reqs)
				for ch := range chans {
					ch.Reject(ssh.UnknownChannelType, "test server")
				}
				conn.Close()
			}(raw)
		}
	}()

	return l.Addr().String()
}

func TestSSHConnector_PasswordHandshake(t *testing.T) {
	addr := startSSHServer(t, "ops", "sesame")
	host, portStr, _ := net.SplitHostPort(addr)
	port, _ := strconv.Atoi(portStr)

	creds := &fakeCreds{cred: credential.Credential{
		ID:     "cred_0011223344556677",
		Secret: credential.Secret{Kind: credential.KindPassword, User: "ops", Password: []byte("sesame")},
	}}

	c, _ := NewFactory(Config{
		Credentials: creds,
		Timeout:     2 * time.Second,
		SSHPort:     port,
	}).For(KindSSH)

	n := tcpNode(host, port)
	n.CredentialID = "cred_0011223344556677"

	res, err := c.Connect(context.Background(), n)
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != KindSSH {
		t.Fatalf("result: %+v", res)
	}
	if !strings.HasPrefix(res.Detail, "SSH-2.0") {
		t.Fatalf("banner: %q", res.Detail)
	}
	if len(creds.marked) != 1 || creds.marked[0] != "cred_0011223344556677" {
		t.Fatalf("mark-used calls: %v", creds.marked)
	}
}

func TestSSHConnector_WrongPassword(t *testing.T) {
	addr := startSSHServer(t, "ops", "sesame")
	host, portStr, _ := net.SplitHostPort(addr)
	port, _ := strconv.Atoi(portStr)

	creds := &fakeCreds{cred: credential.Credential{
		ID:     "cred_0011223344556677",
		Secret: credential.Secret{Kind: credential.KindPassword, User: "ops", Password: []byte("wrong")},
	}}

	c, _ := NewFactory(Config{Credentials: creds, Timeout: 2 * time.Second, SSHPort: port}).For(KindSSH)

	n := tcpNode(host, port)
	n.CredentialID = "cred_0011223344556677"

	if _, err := c.Connect(context.Background(), n); err == nil {
		t.Fatal("wrong password must fail the handshake")
	}
	if len(creds.marked) != 0 {
		t.Fatal("failed connect must not mark the credential used")
	}
}
