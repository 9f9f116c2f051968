package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"testing"
	"time"

	"github.com/anoixa/photo-mailer/internal/testutil/smtptest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jpegStub = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01, 0x01, 0x00, 0x00, 0xFF, 0xD9}

func testConfig(server *smtptest.Server) Config {
	return Config{
		Host:      server.Host(),
		Port:      server.Port(),
		From:      "noreply@example.com",
		FromName:  "Photo Desk",
		TLSPolicy: "none",
		Timeout:   5 * time.Second,
		Locale:    "en",
	}
}

func testNotification() Notification {
	return Notification{
		To:          "a@example.com",
		Nickname:    "Alice",
		Photo:       jpegStub,
		Filename:    "selfie.jpg",
		ContentType: "image/jpeg",
	}
}

func TestNewSMTPMailer_Validation(t *testing.T) {
	_, err := NewSMTPMailer(Config{From: "noreply@example.com"})
	assert.Error(t, err)

	_, err = NewSMTPMailer(Config{Host: "smtp.example.com"})
	assert.ErrorIs(t, err, ErrMissingSender)

	_, err = NewSMTPMailer(Config{Host: "smtp.example.com", From: "noreply@example.com", TLSPolicy: "bogus"})
	assert.Error(t, err)

	for _, policy := range []string{"", "opportunistic", "mandatory", "none", "STARTTLS"} {
		_, err = NewSMTPMailer(Config{Host: "smtp.example.com", From: "noreply@example.com", TLSPolicy: policy})
		assert.NoError(t, err, policy)
	}
}

func TestClientOptions(t *testing.T) {
	implicit, err := clientOptions(Config{Port: 465, TLSPolicy: "bogus"})
	require.NoError(t, err, "port 465 ignores the STARTTLS policy")
	assert.Len(t, implicit, 2)

	withAuth, err := clientOptions(Config{Port: 587, Username: "user", Password: "secret", Timeout: time.Second})
	require.NoError(t, err)
	assert.Len(t, withAuth, 6)

	implicitPolicy, err := clientOptions(Config{Port: 2465, TLSPolicy: "implicit", InsecureSkipVerify: true})
	require.NoError(t, err)
	assert.Len(t, implicitPolicy, 3)
}

func TestClientTLSConfig(t *testing.T) {
	assert.Nil(t, clientTLSConfig(Config{Host: "smtp.example.com"}))

	insecure := clientTLSConfig(Config{Host: "smtp.example.com", InsecureSkipVerify: true})
	require.NotNil(t, insecure)
	assert.True(t, insecure.InsecureSkipVerify)
	assert.Equal(t, "smtp.example.com", insecure.ServerName)

	custom := &tls.Config{MinVersion: tls.VersionTLS13}
	cloned := clientTLSConfig(Config{Host: "relay.internal", TLSConfig: custom})
	require.NotNil(t, cloned)
	assert.Equal(t, "relay.internal", cloned.ServerName)
	assert.Equal(t, uint16(tls.VersionTLS13), cloned.MinVersion)
	assert.Empty(t, custom.ServerName, "caller's config is not modified")
}

func TestCompose(t *testing.T) {
	mailer, err := NewSMTPMailer(Config{
		Host:     "smtp.example.com",
		From:     "noreply@example.com",
		FromName: "Photo Desk",
		Locale:   "en",
	})
	require.NoError(t, err)

	msg, err := mailer.Compose(testNotification())
	require.NoError(t, err)

	rcpts, err := msg.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com"}, rcpts)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)

	parsed, err := smtptest.Message{Data: buf.Bytes()}.Parse()
	require.NoError(t, err)
	assert.Equal(t, "Your Deepfake photo", parsed.Subject)
	assert.Contains(t, parsed.Text(), "Hi Alice,")
	assert.Contains(t, parsed.Text(), "Photo Desk")

	attachments := parsed.Attachments()
	require.Len(t, attachments, 1)
	assert.Equal(t, "selfie.jpg", attachments[0].Filename)
	assert.Equal(t, "image/jpeg", attachments[0].ContentType)
	assert.Equal(t, jpegStub, attachments[0].Body)
}

func TestCompose_DefaultLocale(t *testing.T) {
	mailer, err := NewSMTPMailer(Config{Host: "smtp.example.com", From: "noreply@example.com"})
	require.NoError(t, err)

	msg, err := mailer.Compose(testNotification())
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)

	parsed, err := smtptest.Message{Data: buf.Bytes()}.Parse()
	require.NoError(t, err)
	assert.Equal(t, "您的 Deepfake 照片", parsed.Subject)
	assert.Contains(t, parsed.Text(), "這是您上傳的照片")
	// 未配置发件人名称时落款使用发件地址
	assert.Contains(t, parsed.Text(), "noreply@example.com")
}

func TestCompose_InvalidRecipient(t *testing.T) {
	mailer, err := NewSMTPMailer(Config{Host: "smtp.example.com", From: "noreply@example.com"})
	require.NoError(t, err)

	n := testNotification()
	n.To = "not an address"
	_, err = mailer.Compose(n)
	assert.Error(t, err)
}

func TestSend(t *testing.T) {
	server := smtptest.NewServer(t)
	mailer, err := NewSMTPMailer(testConfig(server))
	require.NoError(t, err)

	require.NoError(t, mailer.Send(context.Background(), testNotification()))

	messages := server.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "noreply@example.com", messages[0].From)
	assert.Equal(t, []string{"a@example.com"}, messages[0].To)
	assert.False(t, messages[0].TLS)
	assert.Empty(t, messages[0].Username)

	parsed, err := messages[0].Parse()
	require.NoError(t, err)
	attachments := parsed.Attachments()
	require.Len(t, attachments, 1)
	assert.Len(t, attachments[0].Body, 17)
	assert.Equal(t, jpegStub, attachments[0].Body)
}

func TestSend_RecipientRejected(t *testing.T) {
	server := smtptest.NewServer(t)
	server.RejectRecipients()

	mailer, err := NewSMTPMailer(testConfig(server))
	require.NoError(t, err)

	err = mailer.Send(context.Background(), testNotification())
	assert.Error(t, err)
	assert.Empty(t, server.Messages())
}

func TestSend_ImplicitTLSWithAuth(t *testing.T) {
	server := smtptest.NewServer(t, smtptest.WithImplicitTLS(), smtptest.WithAuth("mailer", "s3cret"))

	cfg := testConfig(server)
	cfg.TLSPolicy = "implicit"
	cfg.TLSConfig = server.ClientTLSConfig()
	cfg.Username = "mailer"
	cfg.Password = "s3cret"
	mailer, err := NewSMTPMailer(cfg)
	require.NoError(t, err)

	require.NoError(t, mailer.Send(context.Background(), testNotification()))

	messages := server.Messages()
	require.Len(t, messages, 1)
	assert.True(t, messages[0].TLS)
	assert.Equal(t, "mailer", messages[0].Username)
	assert.Equal(t, []string{"a@example.com"}, messages[0].To)

	parsed, err := messages[0].Parse()
	require.NoError(t, err)
	attachments := parsed.Attachments()
	require.Len(t, attachments, 1)
	assert.Equal(t, jpegStub, attachments[0].Body)
}

func TestSend_MandatorySTARTTLSWithAuth(t *testing.T) {
	server := smtptest.NewServer(t, smtptest.WithSTARTTLS(), smtptest.WithAuth("mailer", "s3cret"))

	cfg := testConfig(server)
	cfg.TLSPolicy = "mandatory"
	cfg.TLSConfig = server.ClientTLSConfig()
	cfg.Username = "mailer"
	cfg.Password = "s3cret"
	mailer, err := NewSMTPMailer(cfg)
	require.NoError(t, err)

	require.NoError(t, mailer.Send(context.Background(), testNotification()))

	messages := server.Messages()
	require.Len(t, messages, 1)
	assert.True(t, messages[0].TLS)
	assert.Equal(t, "mailer", messages[0].Username)
}

func TestSend_MandatoryWithoutSTARTTLS(t *testing.T) {
	server := smtptest.NewServer(t)

	cfg := testConfig(server)
	cfg.TLSPolicy = "mandatory"
	mailer, err := NewSMTPMailer(cfg)
	require.NoError(t, err)

	assert.Error(t, mailer.Send(context.Background(), testNotification()))
	assert.Empty(t, server.Messages())
}

func TestSend_WrongPassword(t *testing.T) {
	server := smtptest.NewServer(t, smtptest.WithImplicitTLS(), smtptest.WithAuth("mailer", "s3cret"))

	cfg := testConfig(server)
	cfg.TLSPolicy = "implicit"
	cfg.TLSConfig = server.ClientTLSConfig()
	cfg.Username = "mailer"
	cfg.Password = "wrong"
	mailer, err := NewSMTPMailer(cfg)
	require.NoError(t, err)

	assert.Error(t, mailer.Send(context.Background(), testNotification()))
	assert.Empty(t, server.Messages())
}

func TestSend_UntrustedCertificate(t *testing.T) {
	server := smtptest.NewServer(t, smtptest.WithImplicitTLS())

	cfg := testConfig(server)
	cfg.TLSPolicy = "implicit"
	mailer, err := NewSMTPMailer(cfg)
	require.NoError(t, err)

	assert.Error(t, mailer.Send(context.Background(), testNotification()))
	assert.Empty(t, server.Messages())

	cfg.InsecureSkipVerify = true
	mailer, err = NewSMTPMailer(cfg)
	require.NoError(t, err)
	require.NoError(t, mailer.Send(context.Background(), testNotification()))
	assert.Len(t, server.Messages(), 1)
}

func TestSend_ConnectionRefused(t *testing.T) {
	server := smtptest.NewServer(t)
	cfg := testConfig(server)
	cfg.Port = 1

	mailer, err := NewSMTPMailer(cfg)
	require.NoError(t, err)

	err = mailer.Send(context.Background(), testNotification())
	assert.Error(t, err)
}

func TestCompose_FallbackFilenameAndType(t *testing.T) {
	mailer, err := NewSMTPMailer(Config{Host: "smtp.example.com", From: "noreply@example.com", Locale: "en"})
	require.NoError(t, err)

	n := testNotification()
	n.Filename = ""
	n.ContentType = ""
	msg, err := mailer.Compose(n)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)

	parsed, err := smtptest.Message{Data: buf.Bytes()}.Parse()
	require.NoError(t, err)
	attachments := parsed.Attachments()
	require.Len(t, attachments, 1)
	assert.Equal(t, "uploaded_photo", attachments[0].Filename)
	assert.Equal(t, "image/jpeg", attachments[0].ContentType)
}
