package token

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yakey01/dokterku-sub007/internal/infra/transport"
)

type pageRequester struct {
	status int
	body   string
	err    error
}

func (p pageRequester) Get(context.Context, string, map[string]string) (*transport.Response, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &transport.Response{Status: p.status, Body: []byte(p.body)}, nil
}

func TestChain_FirstNonEmpty(t *testing.T) {
	t.Setenv("JASPEL_TEST_TOKEN_A", "")
	t.Setenv("JASPEL_TEST_TOKEN_B", " from-env ")

	dir := t.TempDir()
	path := filepath.Join(dir, "token")
	require.NoError(t, os.WriteFile(path, []byte("from-file\n"), 0o600))

	chain := Chain{
		Env{"JASPEL_TEST_TOKEN_A"},
		File(filepath.Join(dir, "missing")),
		nil,
		Env{"JASPEL_TEST_TOKEN_A", "JASPEL_TEST_TOKEN_B"},
		File(path),
	}
	tok, ok := chain.Token(context.Background())
	require.True(t, ok)
	assert.Equal(t, "from-env", tok)

	tok, ok = Chain{File(path), Static("static")}.Token(context.Background())
	require.True(t, ok)
	assert.Equal(t, "from-file", tok)

	_, ok = Chain{Static("  "), Env{"JASPEL_TEST_TOKEN_A"}}.Token(context.Background())
	assert.False(t, ok)
}

func TestExtractField(t *testing.T) {
	doc := []byte(`<!doctype html><html><head>
		<meta charset="utf-8">
		<meta name="csrf-token" content="csrf-123">
		<meta name="api-token" content=" tok-456 ">
	</head><body><form><input type="hidden" name="_token" value="form-789"/></form></body></html>`)

	assert.Equal(t, "tok-456", ExtractField(doc, "api-token"))
	assert.Equal(t, "csrf-123", ExtractField(doc, "csrf-token"))
	assert.Equal(t, "form-789", ExtractField(doc, "_token"))
	assert.Equal(t, "", ExtractField(doc, "missing"))
}

func TestPageField(t *testing.T) {
	page := `<html><head><meta name="api-token" content="page-token"></head></html>`

	tok, ok := PageField{Requester: pageRequester{status: 200, body: page}, URL: "http://x/", Name: "api-token"}.
		Token(context.Background())
	require.True(t, ok)
	assert.Equal(t, "page-token", tok)

	_, ok = PageField{Requester: pageRequester{status: 302, body: page}, URL: "http://x/", Name: "api-token"}.
		Token(context.Background())
	assert.False(t, ok)

	_, ok = PageField{Requester: pageRequester{err: errors.New("down")}, URL: "http://x/", Name: "api-token"}.
		Token(context.Background())
	assert.False(t, ok)
}
