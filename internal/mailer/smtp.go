package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	gomail "github.com/wneessen/go-mail"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string

	// From address, e.g. "Teamforge <no-reply@teamforge.dev>"
	From string

	// AppName and FrontendURL are used to build mail bodies and links
	AppName     string
	FrontendURL string
}

// SMTPMailer sends account mail over SMTP
type SMTPMailer struct {
	client *gomail.Client
	cfg    SMTPConfig
}

func NewSMTP(cfg SMTPConfig) (*SMTPMailer, error) {
	client, err := gomail.NewClient(cfg.Host,
		gomail.WithPort(cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Username),
		gomail.WithPassword(cfg.Password),
	)
	if err != nil {
		return nil, fmt.Errorf("error while creating smtp client. Err: %w", err)
	}

	return &SMTPMailer{client: client, cfg: cfg}, nil
}

func (m *SMTPMailer) SendVerification(ctx context.Context, recipient string, username string, token string) error {
	body, err := renderMail(verificationTemplate, mailData{
		AppName:  m.cfg.AppName,
		Username: username,
		Link:     fmt.Sprintf("%s/verify/%s", m.cfg.FrontendURL, token),
	})
	if err != nil {
		return err
	}

	return m.send(ctx, recipient, "Confirm your account", body)
}

func (m *SMTPMailer) SendPasswordReset(ctx context.Context, recipient string, username string, token string) error {
	body, err := renderMail(resetTemplate, mailData{
		AppName:  m.cfg.AppName,
		Username: username,
		Link:     fmt.Sprintf("%s/reset/%s", m.cfg.FrontendURL, token),
	})
	if err != nil {
		return err
	}

	return m.send(ctx, recipient, "Password reset", body)
}

func (m *SMTPMailer) send(ctx context.Context, recipient string, subject string, body string) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("bad from address. Err: %w", err)
	}
	if err := msg.To(recipient); err != nil {
		return fmt.Errorf("bad recipient address. Err: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, body)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("error while sending mail. Err: %w", err)
	}

	return nil
}

type mailData struct {
	AppName  string
	Username string
	Link     string
}

func renderMail(tmpl *template.Template, data mailData) (string, error) {
	buf := &bytes.Buffer{}
	if err := tmpl.Execute(buf, data); err != nil {
		return "", fmt.Errorf("error while rendering mail body. Err: %w", err)
	}
	return buf.String(), nil
}

var verificationTemplate = template.Must(template.New("verification").Parse(`<html>
<body>
  <p>Hi {{.Username}},</p>
  <p>Welcome to {{.AppName}}. To start creating forms and teams, please confirm your email:</p>
  <p><a href="{{.Link}}">Confirm my email</a></p>
  <p>You didn't create this account? Contact us to fix it.</p>
</body>
</html>
`))

var resetTemplate = template.Must(template.New("reset").Parse(`<html>
<body>
  <p>Hi {{.Username}},</p>
  <p>You've asked for a password reset. To restore your password, click the following link:</p>
  <p><a href="{{.Link}}">Reset my password</a></p>
  <p>You didn't ask for this? Ignore the message. Never send this link to anyone.</p>
</body>
</html>
`))
