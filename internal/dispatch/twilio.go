package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// TwilioWhatsAppClient implements ChannelProvider over the Twilio messages
// API, delivering via WhatsApp. The channel identity is the subscriber's
// phone number in E.164 form.
type TwilioWhatsAppClient struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
}

func NewTwilioWhatsAppClient(accountSID, authToken, from, baseURL string) *TwilioWhatsAppClient {
	return &TwilioWhatsAppClient{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

func (c *TwilioWhatsAppClient) Send(ctx context.Context, identity, message string) error {
	form := url.Values{}
	form.Set("From", whatsappAddr(c.from))
	form.Set("To", whatsappAddr(identity))
	form.Set("Body", message)

	reqURL := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}
	return nil
}

func whatsappAddr(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}
