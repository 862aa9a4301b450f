package backend

import (
	"context"
	"errors"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func TestClient_GetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/courses/c1", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","title":"Go"}`))
	}))
	defer srv.Close()

	c := NewClient(&Config{BaseURL: srv.URL + "/"})
	var out record
	err := c.GetJSON(WithToken(context.Background(), "tok"), "/courses/c1", &out)
	require.NoError(t, err)
	assert.Equal(t, record{ID: "c1", Title: "Go"}, out)
}

func TestClient_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	c := NewClient(&Config{BaseURL: srv.URL})
	err := c.GetJSON(context.Background(), "/progress", &record{})

	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
	assert.Equal(t, http.StatusBadGateway, StatusCode(err))
	assert.Contains(t, err.Error(), "upstream down")
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(&Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	err := c.GetJSON(context.Background(), "/slow", nil)

	var ne *NetworkError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, 0, ne.StatusCode)
	assert.Equal(t, http.MethodGet, ne.Op)
}

func TestClient_PostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := ioutil.ReadAll(r.Body)
		assert.JSONEq(t, `{"id":"x","title":"posted"}`, string(body))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(&Config{BaseURL: srv.URL})
	out := &record{ID: "untouched"}
	require.NoError(t, c.PostJSON(context.Background(), "/things", &record{ID: "x", Title: "posted"}, out))
	assert.Equal(t, "untouched", out.ID)
}

func TestClient_PutMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Ana", r.FormValue("name"))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		content, _ := ioutil.ReadAll(file)
		assert.Equal(t, "avatar.png", header.Filename)
		assert.Equal(t, []byte{1, 2, 3}, content)
		w.Write([]byte(`{"id":"u1","title":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(&Config{BaseURL: srv.URL})
	var out record
	err := c.PutMultipart(context.Background(), "/users/u1",
		map[string]string{"name": "Ana"},
		&FilePart{Field: "file", FileName: "avatar.png", Content: []byte{1, 2, 3}},
		&out)
	require.NoError(t, err)
	assert.Equal(t, "u1", out.ID)
}
