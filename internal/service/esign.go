package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dealroom/deal-server-go/internal/util"
)

const (
	providerMaxDocumentBytes = 25 << 20
)

// ProviderInvite is the provider's correlation handle for one signing
// request. Both fields are mandatory: a deal must never reach "sent" without
// a way for the signer to get to the signing page.
type ProviderInvite struct {
	InvitationID string `json:"invitationId"`
	SignURL      string `json:"signUrl"`
}

// ESignProvider abstracts the external e-signature service.
type ESignProvider interface {
	UploadDocument(ctx context.Context, document []byte, filename string) (*ProviderInvite, error)
	GetStatus(ctx context.Context, invitationID string) (string, error)
	DownloadSigned(ctx context.Context, invitationID string) ([]byte, error)
	VerifyWebhookSignature(rawBody []byte, signatureHeader string) bool
	Name() string
}

// ESignClient talks to the e-signature provider's HTTP API.
type ESignClient struct {
	name          string
	baseURL       string
	apiKey        string
	webhookSecret string
	client        *http.Client
}

func NewESignClient(name, baseURL, apiKey, webhookSecret string, timeout time.Duration) *ESignClient {
	return &ESignClient{
		name:          name,
		baseURL:       strings.TrimRight(baseURL, "/"),
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *ESignClient) Name() string {
	return c.name
}

// UploadDocument sends the unsigned PDF to the provider and creates a
// signing invite. Fails loudly unless the provider returns both an
// invitation id and a sign URL.
func (c *ESignClient) UploadDocument(ctx context.Context, document []byte, filename string) (*ProviderInvite, error) {
	if len(document) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	if len(document) > providerMaxDocumentBytes {
		return nil, fmt.Errorf("document exceeds %d bytes", providerMaxDocumentBytes)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("document", filename)
	if err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := part.Write(document); err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/documents", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		log.Error().
			Err(err).
			Str("filename", filename).
			Dur("elapsed", elapsed).
			Msg("provider document upload failed")
		return nil, fmt.Errorf("upload document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().
			Int("status", resp.StatusCode).
			Str("filename", filename).
			Dur("elapsed", elapsed).
			Msg("provider rejected document upload")
		return nil, fmt.Errorf("upload document: provider returned status %d", resp.StatusCode)
	}

	var invite ProviderInvite
	if err := json.NewDecoder(resp.Body).Decode(&invite); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}

	if invite.InvitationID == "" || invite.SignURL == "" {
		return nil, fmt.Errorf("upload document: provider response missing invitation id or sign url")
	}

	log.Info().
		Str("invitationId", invite.InvitationID).
		Dur("elapsed", elapsed).
		Msg("document uploaded to e-sign provider")

	return &invite, nil
}

// GetStatus returns the provider's raw status string for an invitation.
func (c *ESignClient) GetStatus(ctx context.Context, invitationID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/invitations/%s", c.baseURL, invitationID), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("get invitation status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("get invitation status: provider returned status %d", resp.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode status response: %w", err)
	}

	return body.Status, nil
}

// DownloadSigned fetches the final signed artifact for an invitation.
func (c *ESignClient) DownloadSigned(ctx context.Context, invitationID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/invitations/%s/document", c.baseURL, invitationID), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download signed document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download signed document: provider returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, providerMaxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read signed document: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("download signed document: empty body")
	}
	if len(data) > providerMaxDocumentBytes {
		return nil, fmt.Errorf("download signed document: exceeds %d bytes", providerMaxDocumentBytes)
	}

	log.Info().
		Str("invitationId", invitationID).
		Int("bytes", len(data)).
		Dur("elapsed", time.Since(start)).
		Msg("signed document downloaded")

	return data, nil
}

// VerifyWebhookSignature checks the HMAC-SHA256 of the exact raw bytes
// received. The body must never be re-serialized before verification. An
// optional "sha256=" prefix on the header is accepted.
func (c *ESignClient) VerifyWebhookSignature(rawBody []byte, signatureHeader string) bool {
	if c.webhookSecret == "" {
		return false
	}

	sig := strings.TrimSpace(signatureHeader)
	if sig == "" {
		return false
	}
	if strings.HasPrefix(strings.ToLower(sig), "sha256=") {
		sig = sig[len("sha256="):]
	}

	computed := util.HmacSHA256(c.webhookSecret, rawBody)
	return util.ConstantTimeEqual(computed, strings.ToLower(sig))
}
