package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SSEOptions configures an SSE attachment.
type SSEOptions struct {
	URL string
	// TokenSecret, when set, mints a short-lived HS256 bearer token
	// per connection instead of sending a static credential.
	TokenSecret string
	// Subject identifies the conversation in the minted token.
	Subject string
	// Headers are added verbatim to the request.
	Headers map[string]string
}

// SSESource attaches to a text/event-stream endpoint and forwards the
// raw body bytes. The SSE framing is left intact: the downstream
// normalizer owns the "data:" envelope, so this source must not
// interpret it.
type SSESource struct {
	*ReaderSource
	resp *http.Response
}

// OpenSSE connects and starts streaming. The request is canceled when
// ctx is, which surfaces downstream as a closed chunk channel.
func OpenSSE(ctx context.Context, opts SSEOptions) (*SSESource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if opts.TokenSecret != "" {
		token, err := mintBearerToken(opts.TokenSecret, opts.Subject)
		if err != nil {
			return nil, fmt.Errorf("mint bearer token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect to stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("stream endpoint returned %s", resp.Status)
	}

	return &SSESource{
		ReaderSource: NewReaderSource(ctx, resp.Body),
		resp:         resp,
	}, nil
}

// Close aborts the HTTP stream.
func (s *SSESource) Close() error {
	s.ReaderSource.Close()
	return s.resp.Body.Close()
}

// mintBearerToken signs a short-lived HS256 token. Ten minutes matches
// the upstream's maximum accepted lifetime; the backdated IssuedAt
// absorbs clock skew between us and the trace server.
func mintBearerToken(secret, subject string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now.Add(-60 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		Issuer:    "tracewire",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
