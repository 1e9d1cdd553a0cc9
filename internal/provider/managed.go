// internal/provider/managed.go
//
// Managed-email-service driver.
//
// Context
// -------
// The managed service is addressed by a connection string of the form
// `endpoint=https://…;accesskey=<base64>` and an HMAC-SHA256 signed REST
// call.  The signature covers the verb, the path and query, a UTC date,
// the host, and the SHA-256 of the body, in the service's standard
// SignedHeaders order (x-ms-date;host;x-ms-content-sha256).
package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const managedAPIVersion = "2023-03-31"

type managedSender struct {
	endpoint  *url.URL
	accessKey []byte
	parseErr  error
	client    *http.Client
}

func newManagedSender(conn string) *managedSender {
	s := &managedSender{client: &http.Client{Timeout: 30 * time.Second}}

	var endpoint, key string
	for _, seg := range strings.Split(conn, ";") {
		k, v, ok := strings.Cut(seg, "=")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "endpoint":
			endpoint = strings.TrimSpace(v)
		case "accesskey":
			// The key itself may contain '='; Cut keeps the remainder intact.
			key = strings.TrimSpace(v)
		}
	}
	if endpoint == "" || key == "" {
		s.parseErr = fmt.Errorf("managed email: connection string missing endpoint or accesskey")
		return s
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		s.parseErr = fmt.Errorf("managed email: bad endpoint: %w", err)
		return s
	}
	decoded, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		s.parseErr = fmt.Errorf("managed email: access key is not base64: %w", err)
		return s
	}

	s.endpoint = u
	s.accessKey = decoded
	return s
}

func (s *managedSender) Send(ctx context.Context, msg Message) error {
	if s.parseErr != nil {
		return s.parseErr
	}

	payload := map[string]any{
		"senderAddress": msg.From,
		"recipients": map[string]any{
			"to": []map[string]string{{"address": msg.To}},
		},
		"content": map[string]string{
			"subject":   msg.Subject,
			"plainText": msg.Text,
			"html":      msg.HTML,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("managed email: encode: %w", err)
	}

	pathAndQuery := "/emails:send?api-version=" + managedAPIVersion
	reqURL := s.endpoint.Scheme + "://" + s.endpoint.Host + pathAndQuery

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("managed email: request: %w", err)
	}

	date := time.Now().UTC().Format(http.TimeFormat)
	contentHash := sha256.Sum256(body)
	contentHashB64 := base64.StdEncoding.EncodeToString(contentHash[:])

	stringToSign := strings.Join([]string{
		http.MethodPost,
		pathAndQuery,
		date + ";" + s.endpoint.Host + ";" + contentHashB64,
	}, "\n")
	mac := hmac.New(sha256.New, s.accessKey)
	mac.Write([]byte(stringToSign))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-ms-date", date)
	req.Header.Set("x-ms-content-sha256", contentHashB64)
	req.Header.Set("Authorization",
		"HMAC-SHA256 SignedHeaders=x-ms-date;host;x-ms-content-sha256&Signature="+signature)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("managed email: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("managed email: service returned %d: %s", resp.StatusCode, detail)
	}
	return nil
}
