package translate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gtx", r.URL.Query().Get("client"))
		assert.Equal(t, "en", r.URL.Query().Get("sl"))
		assert.Equal(t, "ko", r.URL.Query().Get("tl"))
		assert.Equal(t, "hospice care", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`[[["호스피스 ","hospice ",null],["케어","care",null]],null,"en"]`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	out, err := c.Translate(context.Background(), "hospice care", "en", "ko")
	require.NoError(t, err)
	assert.Equal(t, "호스피스 케어", out)
}

func TestTranslateEmptyText(t *testing.T) {
	c := NewClient(WithBaseURL("http://unused.invalid"))
	out, err := c.Translate(context.Background(), "  ", "en", "ko")
	require.NoError(t, err)
	assert.Equal(t, "  ", out)
}

func TestTranslateErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Translate(context.Background(), "text", "en", "ko")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestParseResponseMalformed(t *testing.T) {
	_, err := parseResponse([]byte(`{"not":"an array"}`))
	assert.Error(t, err)

	_, err = parseResponse([]byte(`[]`))
	assert.Error(t, err)
}
