package services

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"strconv"

	"gopkg.in/gomail.v2"
)

// Notifier delivers templated messages to customers. Callers treat
// delivery as fire-and-forget: failures are logged, never surfaced.
type Notifier interface {
	SendTemplatedEmail(to, subject, templateName string, model map[string]interface{}) error
}

// EmailService sends templated emails over SMTP
type EmailService struct {
	host      string
	port      int
	user      string
	password  string
	from      string
	templates map[string]*template.Template
}

const paymentConfirmationTemplate = `
<p>Hi {{.Name}},</p>
<p>We received your payment of {{.Amount}} toward <strong>{{.FoodPack}}</strong>.</p>
<p>Total saved so far: {{.AmountPaid}} of {{.TotalAmount}}.</p>
{{if .Completed}}<p>Congratulations, your plan is now complete!</p>{{end}}
<p>Thank you for saving with us.</p>
`

const installmentReminderTemplate = `
<p>Hi {{.Name}},</p>
<p>A reminder that your installment of {{.Amount}} for <strong>{{.FoodPack}}</strong> is due on {{.DueDate}}.</p>
<p>Pay on time to keep your savings plan on track.</p>
`

const planCreatedTemplate = `
<p>Hi {{.Name}},</p>
<p>Your savings plan for <strong>{{.FoodPack}}</strong> has been created.</p>
<p>You will pay {{.InstallmentCount}} installments of about {{.InstallmentAmount}} each, starting {{.StartDate}}.</p>
`

func NewEmailService() *EmailService {
	port, err := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if err != nil {
		port = 587
	}

	templates := map[string]*template.Template{
		"payment_confirmation": template.Must(template.New("payment_confirmation").Parse(paymentConfirmationTemplate)),
		"installment_reminder": template.Must(template.New("installment_reminder").Parse(installmentReminderTemplate)),
		"plan_created":         template.Must(template.New("plan_created").Parse(planCreatedTemplate)),
	}

	return &EmailService{
		host:      os.Getenv("SMTP_HOST"),
		port:      port,
		user:      os.Getenv("SMTP_USER"),
		password:  os.Getenv("SMTP_PASS"),
		from:      os.Getenv("EMAIL_FROM"),
		templates: templates,
	}
}

// SendTemplatedEmail renders a named template with the model and sends it
func (s *EmailService) SendTemplatedEmail(to, subject, templateName string, model map[string]interface{}) error {
	if s.host == "" || s.user == "" || s.password == "" {
		return fmt.Errorf("SMTP credentials not fully configured")
	}

	tmpl, ok := s.templates[templateName]
	if !ok {
		return fmt.Errorf("unknown email template: %s", templateName)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, model); err != nil {
		return fmt.Errorf("failed to render template %s: %w", templateName, err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body.String())

	d := gomail.NewDialer(s.host, s.port, s.user, s.password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}
