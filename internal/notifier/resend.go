// Package notifier sends new-listing summary emails through the Resend API.
// Sends are best-effort: the ingestion run treats failures as non-fatal.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mkjeldsen/dba-watcher/internal/models"
	"github.com/mkjeldsen/dba-watcher/internal/util"
)

const defaultEndpoint = "https://api.resend.com/emails"

// previewLimit bounds how many listings the email body spells out.
const previewLimit = 5

type Client struct {
	apiKey   string
	from     string
	appURL   string
	endpoint string
	client   *http.Client
}

// New creates a Resend email client. An empty apiKey disables sending;
// Send then becomes a silent no-op, mirroring how deployments without
// email credentials behave.
func New(apiKey, from, appURL string) *Client {
	return &Client{
		apiKey:   apiKey,
		from:     from,
		appURL:   appURL,
		endpoint: defaultEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type resendPayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// SendNewListings sends one summary email covering all new listings for a
// target. label is the originating query or pinned URL.
func (c *Client) SendNewListings(ctx context.Context, to, label string, listings []models.Listing) error {
	if c.apiKey == "" {
		return nil
	}
	if len(listings) == 0 {
		return nil
	}

	payload := resendPayload{
		From:    c.from,
		To:      to,
		Subject: subject(label, len(listings)),
		Text:    c.body(label, listings),
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	// These listings get exactly one notification attempt, so a transient
	// Resend failure is worth one bounded retry round.
	return util.RetryWithBackoff(ctx, 2, func(int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payloadBytes))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("resend status: %s, body: %s", resp.Status, string(bodyBytes))
	})
}

func subject(label string, count int) string {
	if count == 1 {
		return fmt.Sprintf("1 new: %q on dba.dk", label)
	}
	return fmt.Sprintf("%d new listings: %q on dba.dk", count, label)
}

func (c *Client) body(label string, listings []models.Listing) string {
	preview := listings
	if len(preview) > previewLimit {
		preview = preview[:previewLimit]
	}

	var b bytes.Buffer
	plural := "s"
	if len(listings) == 1 {
		plural = ""
	}
	fmt.Fprintf(&b, "%d new listing%s for %q on dba.dk:\n\n", len(listings), plural, label)

	for _, l := range preview {
		price := "Price not listed"
		if l.Price != nil {
			price = fmt.Sprintf("%s %s", util.FormatPrice(*l.Price), l.Currency)
		}
		fmt.Fprintf(&b, "• %s — %s\n  %s\n\n", l.Title, price, l.URL)
	}

	if overflow := len(listings) - len(preview); overflow > 0 {
		fmt.Fprintf(&b, "…and %d more.\n\n", overflow)
	}

	fmt.Fprintf(&b, "View all: %s\n", c.appURL)
	return b.String()
}
