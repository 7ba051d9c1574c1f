package alert

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"html"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/onionwatch/internal/model"
)

// DefaultSMTPPort is the submission port used with STARTTLS.
const DefaultSMTPPort = 587

// EmailConfig holds the SMTP settings of the email channel.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// To is a comma-separated recipient list.
	To string
}

// EmailChannel sends alerts over SMTP with STARTTLS and PLAIN auth.
type EmailChannel struct {
	cfg        EmailConfig
	recipients []string
	now        func() time.Time
}

// NewEmailChannel creates an email channel. Host, credentials and at least
// one recipient are required.
func NewEmailChannel(cfg EmailConfig) (*EmailChannel, error) {
	if cfg.Host == "" || cfg.Username == "" || cfg.Password == "" || cfg.To == "" {
		return nil, fmt.Errorf("email: %w", ErrIncompleteConfig)
	}
	recipients := ParseRecipients(cfg.To)
	if len(recipients) == 0 {
		return nil, fmt.Errorf("email: %w", ErrNoRecipients)
	}
	if cfg.Port <= 0 {
		cfg.Port = DefaultSMTPPort
	}
	if cfg.From == "" {
		cfg.From = "onionwatch@localhost"
	}
	return &EmailChannel{cfg: cfg, recipients: recipients, now: time.Now}, nil
}

// ParseRecipients splits a comma-separated address list, dropping blanks.
func ParseRecipients(list string) []string {
	var out []string
	for _, r := range strings.Split(list, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// Name implements Channel.
func (e *EmailChannel) Name() string { return ChannelEmail }

// Recipients returns the parsed recipient list.
func (e *EmailChannel) Recipients() []string {
	return append([]string(nil), e.recipients...)
}

// Send implements Channel.
func (e *EmailChannel) Send(ctx context.Context, msg Message) error {
	data, err := e.compose(msg)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect to smtp server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, e.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: e.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
		return fmt.Errorf("smtp starttls: %w", err)
	}
	if err := client.Auth(smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(e.cfg.From); err != nil {
		return fmt.Errorf("smtp sender: %w", err)
	}
	for _, rcpt := range e.recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp recipient %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close message: %w", err)
	}
	return client.Quit()
}

// compose renders msg as a multipart/alternative message with a plain text
// part and an HTML part.
func (e *EmailChannel) compose(msg Message) ([]byte, error) {
	boundary, err := newBoundary()
	if err != nil {
		return nil, err
	}
	plain := msg.PlainBody()

	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", e.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.recipients, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Title))
	fmt.Fprintf(&b, "Date: %s\r\n", e.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(crlf(plain))
	b.WriteString("\r\n\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(crlf(htmlBody(msg.Title, plain, msg.Level)))
	b.WriteString("\r\n\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return b.Bytes(), nil
}

func htmlBody(title, plain string, level model.RiskLevel) string {
	color, ok := levelColor[level]
	if !ok {
		color = "#6b7280"
	}
	return fmt.Sprintf(`<div style="font-family:Arial,sans-serif;max-width:600px;margin:0 auto">
<div style="background:%s;color:#fff;padding:16px;border-radius:8px 8px 0 0"><h2 style="margin:0">%s</h2></div>
<div style="background:#f9f9f9;padding:16px;border:1px solid #ddd;border-radius:0 0 8px 8px"><pre style="font-size:14px;white-space:pre-wrap">%s</pre></div>
<p style="font-size:11px;color:#999;margin-top:8px">onionwatch threat intelligence</p>
</div>`, color, html.EscapeString(title), html.EscapeString(plain))
}

func crlf(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\n", "\r\n")
}

func newBoundary() (string, error) {
	var buf [12]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("generate mime boundary: %w", err)
	}
	return "onionwatch_" + hex.EncodeToString(buf[:]), nil
}
