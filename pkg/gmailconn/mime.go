package gmailconn

import (
	"bytes"
	"encoding/base64"
	"fmt"

	maildomain "tradework-backend/internal/mail/domain"
)

const (
	mixedBoundary = "mixed_9f86d081"
	altBoundary   = "alt_9f86d081"
)

// BuildRawMessage assembles an RFC-822 message for the Gmail raw-send API:
// multipart/mixed wrapping a multipart/alternative text+HTML body plus one
// base64 part per attachment, or just the alternative part when there are
// no attachments. The whole document is base64url-encoded without padding.
func BuildRawMessage(fromEmail string, msg *maildomain.OutgoingMessage) string {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("From: %s\r\n", fromEmail))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", msg.To))
	if msg.ReplyTo != "" {
		buf.WriteString(fmt.Sprintf("Reply-To: %s\r\n", msg.ReplyTo))
	}
	// RFC 2047 encoding keeps non-ASCII subjects intact.
	encodedSubject := fmt.Sprintf("=?utf-8?B?%s?=", base64.StdEncoding.EncodeToString([]byte(msg.Subject)))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", encodedSubject))
	buf.WriteString("MIME-Version: 1.0\r\n")

	if len(msg.Attachments) > 0 {
		buf.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=\"%s\"\r\n\r\n", mixedBoundary))
		buf.WriteString(fmt.Sprintf("--%s\r\n", mixedBoundary))
		writeAlternative(&buf, msg)
		for _, a := range msg.Attachments {
			writeAttachment(&buf, a)
		}
		buf.WriteString(fmt.Sprintf("--%s--\r\n", mixedBoundary))
	} else {
		writeAlternative(&buf, msg)
	}

	return base64.RawURLEncoding.EncodeToString(buf.Bytes())
}

func writeAlternative(buf *bytes.Buffer, msg *maildomain.OutgoingMessage) {
	buf.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", altBoundary))

	if msg.Text != "" {
		buf.WriteString(fmt.Sprintf("--%s\r\n", altBoundary))
		buf.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
		buf.WriteString(msg.Text)
		buf.WriteString("\r\n")
	}

	buf.WriteString(fmt.Sprintf("--%s\r\n", altBoundary))
	buf.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	buf.WriteString(msg.HTML)
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s--\r\n", altBoundary))
}

func writeAttachment(buf *bytes.Buffer, a maildomain.Attachment) {
	contentType := a.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	buf.WriteString(fmt.Sprintf("--%s\r\n", mixedBoundary))
	buf.WriteString(fmt.Sprintf("Content-Type: %s; name=\"%s\"\r\n", contentType, a.Filename))
	buf.WriteString("Content-Transfer-Encoding: base64\r\n")
	buf.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=\"%s\"\r\n\r\n", a.Filename))

	encoded := base64.StdEncoding.EncodeToString(a.Content)
	// Wrap base64 at 76 characters per RFC 2045.
	for i := 0; i < len(encoded); i += 76 {
		end := i + 76
		if end > len(encoded) {
			end = len(encoded)
		}
		buf.WriteString(encoded[i:end] + "\r\n")
	}
}
