package email

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
	"time"

	"newsly/internal/core"
)

// Sender delivers one rendered message. The pipeline depends on this
// interface; SMTPSender is the production implementation.
type Sender interface {
	Send(to, subject, htmlBody, textBody string) error
}

// SMTPSender sends mail over SMTP with PLAIN auth and STARTTLS where the
// server offers it (smtp.SendMail negotiates both).
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
	fromName string
}

// NewSMTPSender builds a sender. Host, username, password and from address
// are required.
func NewSMTPSender(host string, port int, username, password, from, fromName string) (*SMTPSender, error) {
	if host == "" || username == "" || password == "" {
		return nil, core.NewError(core.KindConfigError, "SMTP host, username and password are required")
	}
	if from == "" {
		from = username
	}
	if port <= 0 {
		port = 587
	}
	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		fromName: fromName,
	}, nil
}

// Send delivers a multipart/alternative message with the plaintext part
// first and the HTML part last, per MIME preference order.
func (s *SMTPSender) Send(to, subject, htmlBody, textBody string) error {
	msg := buildMessage(s.fromAddress(), to, subject, htmlBody, textBody)
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	auth := smtp.PlainAuth("", s.username, s.password, s.host)
	if err := smtp.SendMail(addr, auth, s.from, []string{to}, msg); err != nil {
		return core.WrapError(core.KindMailError, "sending mail failed", err)
	}
	return nil
}

func (s *SMTPSender) fromAddress() string {
	if s.fromName == "" {
		return s.from
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.fromName), s.from)
}

// buildMessage assembles the RFC 2045 multipart/alternative payload. Both
// parts are base64-encoded so Korean text survives 7-bit relays.
func buildMessage(from, to, subject, htmlBody, textBody string) []byte {
	boundary := fmt.Sprintf("newsly-%d", time.Now().UnixNano())

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	b.WriteString("\r\n")

	writePart(&b, boundary, "text/plain", textBody)
	writePart(&b, boundary, "text/html", htmlBody)
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}

func writePart(b *strings.Builder, boundary, contentType, body string) {
	fmt.Fprintf(b, "--%s\r\n", boundary)
	fmt.Fprintf(b, "Content-Type: %s; charset=utf-8\r\n", contentType)
	b.WriteString("Content-Transfer-Encoding: base64\r\n")
	b.WriteString("\r\n")
	b.WriteString(wrapBase64(base64.StdEncoding.EncodeToString([]byte(body))))
	b.WriteString("\r\n")
}

// wrapBase64 folds the encoding at 76 columns per RFC 2045.
func wrapBase64(s string) string {
	const lineLen = 76
	var b strings.Builder
	for len(s) > lineLen {
		b.WriteString(s[:lineLen])
		b.WriteString("\r\n")
		s = s[lineLen:]
	}
	b.WriteString(s)
	return b.String()
}
