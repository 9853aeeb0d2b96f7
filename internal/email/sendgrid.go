package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/atlastravel/backoffice-backend/pkg/config"
	pkgerrors "github.com/atlastravel/backoffice-backend/pkg/errors"
	"github.com/atlastravel/backoffice-backend/pkg/logger"
)

const mailSendPath = "/v3/mail/send"

// SendgridTransport delivers messages through the SendGrid v3 mail send API.
type SendgridTransport struct {
	apiKey      string
	baseURL     string
	defaultFrom string
	httpClient  *http.Client
	logg        *logger.Logger
}

// NewSendgridTransport validates the SendGrid credentials and builds the transport.
func NewSendgridTransport(cfg config.SendgridConfig, logg *logger.Logger) (*SendgridTransport, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("sendgrid api key is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("sendgrid base url is required")
	}
	return &SendgridTransport{
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		defaultFrom: cfg.DefaultFrom,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		logg:        logg,
	}, nil
}

type sgAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgPersonalization struct {
	To []sgAddress `json:"to"`
}

type sgMailRequest struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
}

// Send posts the message to SendGrid. The provider message id comes back in
// the X-Message-Id response header on a 202.
func (t *SendgridTransport) Send(ctx context.Context, msg Message) (string, error) {
	if strings.TrimSpace(msg.To) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "recipient email is required")
	}
	from := msg.From
	if from == "" {
		from = t.defaultFrom
	}

	payload := sgMailRequest{
		Personalizations: []sgPersonalization{{To: []sgAddress{{Email: msg.To, Name: msg.ToName}}}},
		From:             sgAddress{Email: from, Name: msg.FromName},
		Subject:          msg.Subject,
	}
	// SendGrid requires text/plain before text/html when both are present.
	if msg.Text != "" {
		payload.Content = append(payload.Content, sgContent{Type: "text/plain", Value: msg.Text})
	}
	if msg.HTML != "" {
		payload.Content = append(payload.Content, sgContent{Type: "text/html", Value: msg.HTML})
	}
	if len(payload.Content) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "message body is required")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding mail request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+mailSendPath, bytes.NewReader(body))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building mail request")
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sendgrid request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted {
		return resp.Header.Get("X-Message-Id"), nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if t.logg != nil {
		t.logg.Warn(t.logg.WithFields(ctx, map[string]any{
			"status": resp.StatusCode,
			"body":   string(respBody),
		}), "sendgrid rejected mail request")
	}
	return "", mapSendgridStatus(resp.StatusCode, respBody)
}

func mapSendgridStatus(status int, body []byte) error {
	msg := fmt.Sprintf("sendgrid returned %d", status)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return pkgerrors.New(pkgerrors.CodeDependency, msg).WithDetails(string(body))
	case status == http.StatusTooManyRequests:
		return pkgerrors.New(pkgerrors.CodeDependency, msg).WithDetails(string(body))
	case status >= 400 && status < 500:
		// a malformed request will not succeed on retry
		return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(string(body))
	default:
		return pkgerrors.New(pkgerrors.CodeDependency, msg).WithDetails(string(body))
	}
}
