// Package smtpmail sends mail over a user's own SMTP submission account.
package smtpmail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	maildomain "tradework-backend/internal/mail/domain"
)

// Settings holds one user's SMTP submission configuration. Password is
// already decrypted by the caller.
type Settings struct {
	Host      string
	Port      int
	Username  string
	Password  string
	Secure    bool // implicit TLS when true, STARTTLS otherwise
	FromName  string
	FromEmail string
}

// Send builds a MIME message and submits it over the configured transport.
func Send(ctx context.Context, cfg Settings, msg *maildomain.OutgoingMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := buildMessage(cfg, msg)
	if err != nil {
		return fmt.Errorf("failed to build message: %w", err)
	}

	client, err := dial(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	if err := client.Mail(cfg.FromEmail); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open data writer: %w", err)
	}
	if _, err := writer.Write(body); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}

	return client.Quit()
}

// Verify dials the server and authenticates without sending anything.
// Used when a user saves SMTP settings so bad credentials fail fast.
func Verify(ctx context.Context, cfg Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	client, err := dial(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	return client.Quit()
}

func dial(cfg Settings) (*smtp.Client, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	tlsConfig := &tls.Config{ServerName: cfg.Host}

	if cfg.Secure {
		conn, err := tls.DialWithDialer(&net.Dialer{Timeout: 10 * time.Second}, "tcp", addr, tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to connect with TLS: %w", err)
		}
		client, err := smtp.NewClient(conn, cfg.Host)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to create SMTP client: %w", err)
		}
		return client, nil
	}

	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}
	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(tlsConfig); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to start TLS: %w", err)
		}
	}
	return client, nil
}

// IsAuthError reports whether err looks like rejected credentials rather
// than a transport problem.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		switch protoErr.Code {
		case 530, 534, 535:
			return true
		}
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "authentication failed") ||
		strings.Contains(lower, "invalid credentials") ||
		strings.Contains(lower, "username and password not accepted")
}

func buildMessage(cfg Settings, msg *maildomain.OutgoingMessage) ([]byte, error) {
	var buf bytes.Buffer

	var header mail.Header
	header.SetDate(time.Now())
	header.SetAddressList("From", []*mail.Address{{Name: cfg.FromName, Address: cfg.FromEmail}})
	header.SetAddressList("To", []*mail.Address{{Address: msg.To}})
	header.SetSubject(msg.Subject)
	if msg.ReplyTo != "" {
		header.SetAddressList("Reply-To", []*mail.Address{{Address: msg.ReplyTo}})
	}

	mw, err := mail.CreateWriter(&buf, header)
	if err != nil {
		return nil, err
	}

	inline, err := mw.CreateInline()
	if err != nil {
		return nil, err
	}
	if msg.Text != "" {
		var th mail.InlineHeader
		th.Set("Content-Type", "text/plain; charset=utf-8")
		part, err := inline.CreatePart(th)
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(part, msg.Text); err != nil {
			return nil, err
		}
		_ = part.Close()
	}
	var hh mail.InlineHeader
	hh.Set("Content-Type", "text/html; charset=utf-8")
	part, err := inline.CreatePart(hh)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(part, msg.HTML); err != nil {
		return nil, err
	}
	_ = part.Close()
	_ = inline.Close()

	for _, a := range msg.Attachments {
		var ah mail.AttachmentHeader
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		ah.Set("Content-Type", contentType)
		ah.SetFilename(a.Filename)
		attachment, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, err
		}
		if _, err := attachment.Write(a.Content); err != nil {
			return nil, err
		}
		_ = attachment.Close()
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
