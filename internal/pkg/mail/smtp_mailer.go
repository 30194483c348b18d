package mail

import (
	"fmt"
	"log"
	"net/smtp"

	"github.com/draftdeck/storefront/internal/pkg/env"
)

// SMTPMailer sends emails via SMTP
func SendMail(to string, subject string, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := env.GetEnv("SMTP_SENDER", "")

	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Printf("SMTP_SENDER not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := smtp.SendMail(addr, auth, sender, []string{to}, msg)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
	} else {
		log.Printf("Email sent to %s via %s", to, addr)
	}
	return err
}

// SendLicenseMail emails an issued license key with activation instructions.
// It is the fallback channel when a Discord DM cannot be delivered.
func SendLicenseMail(to, licenseKey string) error {
	subject := "Your DraftDeck license key"
	body := fmt.Sprintf(
		"<p>Thank you for subscribing to DraftDeck!</p>"+
			"<p><strong>License Key:</strong> <code>%s</code></p>"+
			"<p>Activate it in your Discord server with <code>/admin activate %s</code>. "+
			"Your license works on up to 3 Discord servers.</p>",
		licenseKey, licenseKey,
	)
	return SendMail(to, subject, body)
}
