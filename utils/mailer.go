package utils

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"gopkg.in/gomail.v2"
)

// Email is one outbound message
type Email struct {
	From     string
	FromName string
	To       string
	Subject  string
	HTML     string
	Text     string
}

// Mailer dispatches a single email and returns the provider message ID.
// State advancement in the scheduler happens only after Send reports success.
type Mailer interface {
	Send(email Email) (string, error)
}

// SMTPMailer sends through a plain SMTP relay
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
}

func NewSMTPMailer(host string, port int, username, password string) *SMTPMailer {
	return &SMTPMailer{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
	}
}

func (m *SMTPMailer) Send(email Email) (string, error) {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", email.From, email.FromName)
	msg.SetHeader("To", email.To)
	msg.SetHeader("Subject", email.Subject)
	if email.Text != "" {
		msg.SetBody("text/plain", email.Text)
		msg.AddAlternative("text/html", email.HTML)
	} else {
		msg.SetBody("text/html", email.HTML)
	}

	messageID := uuid.New().String()
	msg.SetHeader("Message-ID", fmt.Sprintf("<%s@%s>", messageID, m.Host))

	dialer := gomail.NewDialer(m.Host, m.Port, m.Username, m.Password)
	if err := dialer.DialAndSend(msg); err != nil {
		return "", fmt.Errorf("failed to send email to %s: %w", email.To, err)
	}
	return messageID, nil
}

const resendEndpoint = "https://api.resend.com/emails"

// ResendMailer sends through the Resend HTTP API with a bearer-token credential
type ResendMailer struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
	client   *fasthttp.Client
}

func NewResendMailer(apiKey string, timeout time.Duration) *ResendMailer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ResendMailer{
		APIKey:   apiKey,
		Endpoint: resendEndpoint,
		Timeout:  timeout,
		client: &fasthttp.Client{
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
	}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
}

type resendResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

func (m *ResendMailer) Send(email Email) (string, error) {
	from := email.From
	if email.FromName != "" {
		from = fmt.Sprintf("%s <%s>", email.FromName, email.From)
	}

	body, err := json.Marshal(resendRequest{
		From:    from,
		To:      []string{email.To},
		Subject: email.Subject,
		HTML:    email.HTML,
		Text:    email.Text,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode email payload: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(m.Endpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+m.APIKey)
	req.SetBody(body)

	// Bounded so one slow dispatch cannot stall a whole batch
	if err := m.client.DoTimeout(req, resp, m.Timeout); err != nil {
		return "", fmt.Errorf("failed to send email to %s: %w", email.To, err)
	}

	var parsed resendResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil && resp.StatusCode() < 300 {
		return "", fmt.Errorf("failed to decode provider response: %w", err)
	}

	if resp.StatusCode() >= 300 {
		if parsed.Message != "" {
			return "", fmt.Errorf("provider rejected email to %s: %s", email.To, parsed.Message)
		}
		return "", fmt.Errorf("provider rejected email to %s: status %d", email.To, resp.StatusCode())
	}
	return parsed.ID, nil
}
