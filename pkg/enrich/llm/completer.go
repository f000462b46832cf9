// Package llm implements the enrichment task processor on top of chat
// completion APIs.
package llm

import (
	"context"
	"strings"

	"golang.org/x/time/rate"
)

// Image is an inline image sent along with a prompt.
type Image struct {
	MimeType string
	Data     string // base64, no data URL prefix
}

// DataURL renders the image as a data URL.
func (i Image) DataURL() string {
	return "data:" + i.MimeType + ";base64," + i.Data
}

// ParseDataURL splits a "data:<mime>;base64,<data>" string.
func ParseDataURL(s string) (Image, bool) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return Image{}, false
	}
	meta, data, ok := strings.Cut(rest, ",")
	if !ok {
		return Image{}, false
	}
	mime, _, _ := strings.Cut(meta, ";")
	return Image{MimeType: mime, Data: data}, true
}

// Request is one completion call.
type Request struct {
	Prompt      string
	Images      []Image
	JSON        bool
	Temperature float64
}

// Completer sends a prompt to a model and returns its text reply.
type Completer interface {
	Complete(ctx context.Context, apiKey string, req Request) (string, error)
}

// Limited throttles a Completer. The external service is paid per call.
type Limited struct {
	Completer Completer
	Limiter   *rate.Limiter
}

// NewLimited allows r calls per second with the given burst.
func NewLimited(c Completer, r float64, burst int) *Limited {
	if burst < 1 {
		burst = 1
	}
	return &Limited{Completer: c, Limiter: rate.NewLimiter(rate.Limit(r), burst)}
}

func (l *Limited) Complete(ctx context.Context, apiKey string, req Request) (string, error) {
	if err := l.Limiter.Wait(ctx); err != nil {
		return "", err
	}
	return l.Completer.Complete(ctx, apiKey, req)
}
