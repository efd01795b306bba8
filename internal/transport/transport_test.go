package transport

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestReaderSourceDeliversAllBytes(t *testing.T) {
	input := strings.Repeat("data: {\"type\":\"token\",\"content\":\"x\"}\n", 300)
	src := NewReaderSource(context.Background(), strings.NewReader(input))
	defer src.Close()

	var got bytes.Buffer
	for chunk := range src.Chunks() {
		got.Write(chunk)
	}
	if got.String() != input {
		t.Errorf("byte mismatch: got %d bytes, want %d", got.Len(), len(input))
	}

	select {
	case <-src.Done():
	case <-time.After(time.Second):
		t.Error("source did not signal done")
	}
	select {
	case err := <-src.Errors():
		t.Errorf("unexpected error %v", err)
	default:
	}
}

type failingReader struct{ fed bool }

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.fed {
		r.fed = true
		return copy(p, "partial"), nil
	}
	return 0, errors.New("connection reset")
}

func TestReaderSourceSurfacesReadError(t *testing.T) {
	src := NewReaderSource(context.Background(), &failingReader{})
	defer src.Close()

	var got bytes.Buffer
	for chunk := range src.Chunks() {
		got.Write(chunk)
	}
	if got.String() != "partial" {
		t.Errorf("pre-error bytes %q", got.String())
	}

	select {
	case err := <-src.Errors():
		if err == nil || err.Error() != "connection reset" {
			t.Errorf("error %v", err)
		}
	case <-time.After(time.Second):
		t.Error("expected read error delivered")
	}
}

func TestReaderSourceCloseStopsLoop(t *testing.T) {
	// Close during a long read must still end the stream cleanly.
	pr := strings.NewReader(strings.Repeat("x", 1<<20))
	src := NewReaderSource(context.Background(), pr)
	src.Close()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-src.Chunks():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("chunk channel never closed after Close")
		}
	}
}

func TestMintBearerToken(t *testing.T) {
	secret := "top-secret"
	signed, err := mintBearerToken(secret, "conv-42")
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := jwt.ParseWithClaims(signed, &jwt.RegisteredClaims{}, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	claims := parsed.Claims.(*jwt.RegisteredClaims)
	if claims.Subject != "conv-42" {
		t.Errorf("subject %q", claims.Subject)
	}
	if claims.Issuer != "tracewire" {
		t.Errorf("issuer %q", claims.Issuer)
	}
	if claims.ExpiresAt == nil || time.Until(claims.ExpiresAt.Time) > 10*time.Minute {
		t.Errorf("expiry %v", claims.ExpiresAt)
	}
	// IssuedAt is backdated to absorb clock skew.
	if claims.IssuedAt == nil || !claims.IssuedAt.Time.Before(time.Now()) {
		t.Errorf("issued at %v", claims.IssuedAt)
	}
}
