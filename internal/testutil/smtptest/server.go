// Package smtptest runs an in-process SMTP server for tests.
package smtptest

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"io"
	"math/big"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// Message 服务器收到的一封邮件
type Message struct {
	From string
	To   []string
	Data []byte

	// TLS 投递时连接是否已加密（隐式 TLS 或 STARTTLS）
	TLS bool
	// Username 通过 AUTH PLAIN 登录的用户，未认证时为空
	Username string
}

// Option 配置测试服务器
type Option func(*Server)

// WithImplicitTLS 连接建立即进行 TLS 握手（SMTPS）
func WithImplicitTLS() Option {
	return func(s *Server) { s.implicitTLS = true }
}

// WithSTARTTLS 通告 STARTTLS 扩展
func WithSTARTTLS() Option {
	return func(s *Server) { s.startTLS = true }
}

// WithAuth 要求以给定凭据进行 AUTH PLAIN 后才能投递
func WithAuth(username, password string) Option {
	return func(s *Server) {
		s.username = username
		s.password = password
	}
}

// Server 包装 go-smtp 服务器，记录收到的邮件
type Server struct {
	srv *smtp.Server
	ln  net.Listener

	implicitTLS bool
	startTLS    bool
	username    string
	password    string
	certPool    *x509.CertPool

	mu         sync.Mutex
	messages   []Message
	rejectRcpt bool
}

// NewServer 在随机端口上启动，测试结束自动关闭
func NewServer(t testing.TB, opts ...Option) *Server {
	t.Helper()

	s := &Server{}
	for _, opt := range opts {
		opt(s)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	srv := smtp.NewServer(&backend{server: s})
	srv.Domain = "localhost"
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.MaxMessageBytes = 32 << 20
	srv.AllowInsecureAuth = true

	if s.implicitTLS || s.startTLS {
		tlsConfig, pool, err := selfSignedTLS()
		if err != nil {
			_ = ln.Close()
			t.Fatalf("failed to create certificate: %v", err)
		}
		s.certPool = pool
		if s.implicitTLS {
			ln = tls.NewListener(ln, tlsConfig)
		} else {
			srv.TLSConfig = tlsConfig
		}
	}

	s.srv = srv
	s.ln = ln
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })
	return s
}

// Host 监听地址
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.ln.Addr().String())
	return host
}

// Port 监听端口
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.ln.Addr().String())
	n, _ := strconv.Atoi(port)
	return n
}

// ClientTLSConfig 信任服务器自签名证书的客户端配置，未启用 TLS 时返回 nil
func (s *Server) ClientTLSConfig() *tls.Config {
	if s.certPool == nil {
		return nil
	}
	return &tls.Config{
		RootCAs:    s.certPool,
		ServerName: s.Host(),
		MinVersion: tls.VersionTLS12,
	}
}

// RejectRecipients 之后的 RCPT 命令均返回 550
func (s *Server) RejectRecipients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectRcpt = true
}

// Messages 已接收邮件的副本
func (s *Server) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Server) rejecting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rejectRcpt
}

func (s *Server) record(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
}

type backend struct {
	server *Server
}

func (b *backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &session{server: b.server, conn: c}, nil
}

// session 实现 smtp.Session 与 smtp.AuthSession
type session struct {
	server   *Server
	conn     *smtp.Conn
	username string
	current  Message
}

func (s *session) AuthMechanisms() []string {
	if s.server.username == "" {
		return nil
	}
	return []string{sasl.Plain}
}

func (s *session) Auth(mech string) (sasl.Server, error) {
	if mech != sasl.Plain {
		return nil, smtp.ErrAuthUnsupported
	}
	return sasl.NewPlainServer(func(identity, username, password string) error {
		if username != s.server.username || password != s.server.password {
			return smtp.ErrAuthFailed
		}
		s.username = username
		return nil
	}), nil
}

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	if s.server.username != "" && s.username == "" {
		return smtp.ErrAuthRequired
	}
	s.current = Message{From: from}
	return nil
}

func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	if s.server.rejecting() {
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 1, 1},
			Message:      "mailbox unavailable",
		}
	}
	s.current.To = append(s.current.To, to)
	return nil
}

func (s *session) Data(r io.Reader) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	_, encrypted := s.conn.TLSConnectionState()

	msg := s.current
	msg.Data = buf.Bytes()
	msg.TLS = encrypted
	msg.Username = s.username
	s.server.record(msg)
	return nil
}

func (s *session) Reset() {
	s.current = Message{}
}

func (s *session) Logout() error {
	return nil
}

// selfSignedTLS 生成仅对 127.0.0.1 与 localhost 有效的临时证书
func selfSignedTLS() (*tls.Config, *x509.CertPool, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "smtptest"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		DNSNames:              []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, err
	}

	pool := x509.NewCertPool()
	pool.AddCert(cert)

	return &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key, Leaf: cert}},
		MinVersion:   tls.VersionTLS12,
	}, pool, nil
}
