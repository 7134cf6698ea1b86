package smtp

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"smartflow/internal/adapters/config"
	"smartflow/internal/domain/notification"
	"smartflow/pkg/errors"
	"smartflow/pkg/logger"
)

// Compile-time check
var _ notification.Notifier = (*Mailer)(nil)

// Mailer delivers alert messages over SMTP with STARTTLS
type Mailer struct {
	cfg config.SMTPConfig
	log *logger.Logger
}

// NewMailer creates a new SMTP mailer
func NewMailer(cfg config.SMTPConfig, log *logger.Logger) *Mailer {
	return &Mailer{cfg: cfg, log: log}
}

var bodyTemplate = template.Must(template.New("alert").Parse(`<html>
<body style="font-family: Arial, sans-serif; color: #1a1a2e;">
  <h2 style="color: #e94560;">Unusual Options Activity</h2>
  <p>{{.Summary}}</p>
  <table style="border-collapse: collapse;" cellpadding="6">
    <tr><td><b>Symbol</b></td><td>{{.Activity.Symbol}} ({{.Activity.CompanyName}})</td></tr>
    <tr><td><b>Contract</b></td><td>{{.Activity.ContractSymbol}}</td></tr>
    <tr><td><b>Type</b></td><td>{{.Activity.OptionType}}</td></tr>
    <tr><td><b>Strike</b></td><td>${{.Activity.Strike}}</td></tr>
    <tr><td><b>Expiry</b></td><td>{{.Activity.ExpiryDate.Format "2006-01-02"}}</td></tr>
    <tr><td><b>Volume</b></td><td>{{.Activity.Volume}}</td></tr>
    <tr><td><b>Open Interest</b></td><td>{{.Activity.OpenInterest}}</td></tr>
    <tr><td><b>Volume/OI</b></td><td>{{printf "%.2f" .Activity.VolumeOIRatio}}</td></tr>
    <tr><td><b>Last Price</b></td><td>${{.Activity.LastPrice}}</td></tr>
    <tr><td><b>Premium</b></td><td>${{.Activity.PremiumEstimate}}</td></tr>
    <tr><td><b>Underlying</b></td><td>${{.Activity.CurrentPrice}}</td></tr>
  </table>
  <p style="color: #888; font-size: 12px;">Detected at {{.DetectedAt.Format "2006-01-02 15:04:05 MST"}}</p>
</body>
</html>`))

// Send delivers one alert message to a recipient address.
// Missing credentials surface as ErrNotConfigured, transport failures
// as ErrDeliveryFailed. Neither aborts the caller's scan.
func (m *Mailer) Send(ctx context.Context, destination string, msg notification.Message) error {
	if !m.cfg.Configured() {
		return errors.Wrap(errors.ErrNotConfigured, "smtp credentials missing")
	}

	var html bytes.Buffer
	if err := bodyTemplate.Execute(&html, msg); err != nil {
		return errors.Wrap(err, "render email body")
	}

	raw := m.buildMessage(destination, msg.Subject, html.String(), msg.Summary)

	if err := m.send(ctx, destination, raw); err != nil {
		m.log.Warnw("Email delivery failed",
			"to", destination,
			"symbol", msg.Activity.Symbol,
			"error", err,
		)
		return errors.Wrap(errors.ErrDeliveryFailed, err.Error())
	}

	m.log.Infow("Alert email sent", "to", destination, "symbol", msg.Activity.Symbol)
	return nil
}

// buildMessage assembles a multipart/alternative MIME message with
// base64-encoded parts so long HTML lines stay within RFC 5322 limits.
func (m *Mailer) buildMessage(to, subject, htmlBody, textBody string) string {
	boundary := generateBoundary()

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s <%s>\r\n", m.cfg.FromName, m.cfg.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary))
	msg.WriteString("\r\n")

	msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	msg.WriteString("Content-Transfer-Encoding: base64\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(encodeBase64WithLineBreaks(textBody))
	msg.WriteString("\r\n")

	msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("Content-Transfer-Encoding: base64\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(encodeBase64WithLineBreaks(htmlBody))
	msg.WriteString("\r\n")

	msg.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
	return msg.String()
}

// send connects, upgrades to TLS via STARTTLS, authenticates and writes
// the message. The context only gates entry; net/smtp itself has no
// context support.
func (m *Mailer) send(ctx context.Context, to, raw string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	client, err := smtp.Dial(m.cfg.Addr())
	if err != nil {
		return fmt.Errorf("connect to smtp server: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
			return fmt.Errorf("start tls: %w", err)
		}
	}

	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}

	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("start data: %w", err)
	}
	if _, err := w.Write([]byte(raw)); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data writer: %w", err)
	}

	return client.Quit()
}

func generateBoundary() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "smartflow_boundary"
	}
	return fmt.Sprintf("smartflow_%x", b)
}

// encodeBase64WithLineBreaks wraps base64 output at 76 characters per
// RFC 2045.
func encodeBase64WithLineBreaks(content string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(content))

	var result strings.Builder
	const lineLen = 76

	for i := 0; i < len(encoded); i += lineLen {
		end := i + lineLen
		if end > len(encoded) {
			end = len(encoded)
		}
		result.WriteString(encoded[i:end])
		if end < len(encoded) {
			result.WriteString("\r\n")
		}
	}

	return result.String()
}
