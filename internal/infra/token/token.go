// Package token resolves the bearer token sent to the Jaspel backend.
package token

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/net/html"

	"github.com/yakey01/dokterku-sub007/internal/infra/transport"
)

// Source yields a token, or false when it has none.
type Source interface {
	Token(ctx context.Context) (string, bool)
}

// Chain consults its sources in order and returns the first non-empty token.
type Chain []Source

func (c Chain) Token(ctx context.Context) (string, bool) {
	for _, s := range c {
		if s == nil {
			continue
		}
		if tok, ok := s.Token(ctx); ok && tok != "" {
			return tok, true
		}
	}
	return "", false
}

// Static is a fixed token.
type Static string

func (s Static) Token(context.Context) (string, bool) {
	tok := strings.TrimSpace(string(s))
	return tok, tok != ""
}

// Env reads the first set environment variable among its names.
type Env []string

func (e Env) Token(context.Context) (string, bool) {
	for _, name := range e {
		if tok := strings.TrimSpace(os.Getenv(name)); tok != "" {
			return tok, true
		}
	}
	return "", false
}

// File reads a token from a file on every call, so rotated tokens are picked up.
type File string

func (f File) Token(context.Context) (string, bool) {
	if f == "" {
		return "", false
	}
	b, err := os.ReadFile(string(f))
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Failed to read token file", "path", string(f), "error", err)
		}
		return "", false
	}
	tok := strings.TrimSpace(string(b))
	return tok, tok != ""
}

// PageField fetches an HTML page and extracts a token embedded in it, either as
// <meta name="..." content="..."> or as <input name="..." value="...">.
type PageField struct {
	Requester transport.Requester
	URL       string
	Name      string
}

func (p PageField) Token(ctx context.Context) (string, bool) {
	if p.Requester == nil || p.URL == "" || p.Name == "" {
		return "", false
	}
	resp, err := p.Requester.Get(ctx, p.URL, map[string]string{"Accept": "text/html"})
	if err != nil {
		slog.Debug("Failed to fetch token page", "url", p.URL, "error", err)
		return "", false
	}
	if !resp.OK() {
		return "", false
	}
	tok := ExtractField(resp.Body, p.Name)
	return tok, tok != ""
}

// ExtractField scans an HTML document for a meta or input field called name and
// returns its value.
func ExtractField(doc []byte, name string) string {
	z := html.NewTokenizer(bytes.NewReader(doc))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			t := z.Token()
			var valueAttr string
			switch t.Data {
			case "meta":
				valueAttr = "content"
			case "input":
				valueAttr = "value"
			default:
				continue
			}
			if attr(t, "name") != name {
				continue
			}
			if v := strings.TrimSpace(attr(t, valueAttr)); v != "" {
				return v
			}
		}
	}
}

func attr(t html.Token, key string) string {
	for _, a := range t.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
