package fetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<html><head><title>Go 1.22 Release Notes</title><script>var x = 1;</script></head>
<body>
<nav><a href="/">Home</a></nav>
<h1>Go 1.22</h1>
<p>Loop variables   are now per-iteration.</p>
<p>Loop variables   are now per-iteration.</p>
<ul><li>range over int</li></ul>
<table><tr><th>Version</th><th>Date</th></tr><tr><td>1.22</td><td>Feb 2024</td></tr></table>
<footer>copyright</footer>
</body></html>`

func TestFetchExtractsReadableText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, page)
	}))
	defer srv.Close()

	res, err := New(srv.Client()).Tool().Execute(context.Background(), map[string]any{"url": srv.URL + "/notes"})
	require.NoError(t, err)

	assert.Equal(t, "# Go 1.22\n\nLoop variables are now per-iteration.\n\n- range over int\n\n| Version | Date |\n| 1.22 | Feb 2024 |", res.Text)
	require.Len(t, res.References, 1)
	assert.Equal(t, "Go 1.22 Release Notes", res.References[0].Title)
	assert.Equal(t, srv.URL+"/notes", res.References[0].URL)
	assert.NotContains(t, res.Text, "copyright")
	assert.NotContains(t, res.Text, "var x")
}

func TestFetchPlainTextAndTruncation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, strings.Repeat("a", 50))
	}))
	defer srv.Close()

	f := New(srv.Client())
	f.MaxChars = 10
	res, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "aaaaaaaaaa\n\n[truncated]", res.Text)
	assert.Equal(t, strings.TrimPrefix(srv.URL, "http://"), res.References[0].Title)
}

func TestFetchRejectsBadInput(t *testing.T) {
	f := New(nil)
	for _, u := range []string{"", "ftp://example.com", "not a url", "/relative"} {
		_, err := f.Fetch(context.Background(), u)
		assert.Error(t, err, u)
	}
}

func TestFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	_, err := New(srv.Client()).Fetch(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "http 404")
}
