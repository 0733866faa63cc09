package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"ms-registration/internal/config"
)

// WhatsAppClient sends text messages through the WhatsApp Business Cloud
// API. When credentials are missing it reports itself disabled and every
// send is a silent no-op.
type WhatsAppClient struct {
	accessToken   string
	phoneNumberID string
	baseURL       string
	http          *http.Client
}

func NewWhatsAppClient(cfg config.WhatsAppConfig) *WhatsAppClient {
	return &WhatsAppClient{
		accessToken:   cfg.AccessToken,
		phoneNumberID: cfg.PhoneNumberID,
		baseURL:       cfg.APIBaseURL,
		http:          &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *WhatsAppClient) Enabled() bool {
	return c.accessToken != "" && c.phoneNumberID != ""
}

type whatsAppMessage struct {
	MessagingProduct string           `json:"messaging_product"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Text             whatsAppTextBody `json:"text"`
}

type whatsAppTextBody struct {
	Body string `json:"body"`
}

func (c *WhatsAppClient) SendText(to, message string) error {
	if !c.Enabled() {
		return nil
	}

	payload := whatsAppMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             whatsAppTextBody{Body: message},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("whatsapp api status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
