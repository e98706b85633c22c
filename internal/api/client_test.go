package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(server.URL)
	require.NoError(t, err)
	return c
}

func TestNewDefaults(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)
	require.Equal(t, DefaultBaseURL, c.BaseURL())
	require.Zero(t, c.httpClient.Timeout)
}

func TestNewTrimsTrailingSlash(t *testing.T) {
	c, err := New("http://backend:8000/")
	require.NoError(t, err)
	require.Equal(t, "http://backend:8000", c.BaseURL())
}

func TestNewRejectsNonHTTPScheme(t *testing.T) {
	_, err := New("ftp://backend")
	require.Error(t, err)
}

func TestUploadDocumentSendsMultipartFile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/upload/pdf", r.URL.Path)

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, err := io.ReadAll(file)
		require.NoError(t, err)

		require.Equal(t, "notes.pdf", header.Filename)
		require.Equal(t, "application/pdf", header.Header.Get("Content-Type"))
		require.Equal(t, "%PDF-1.4", string(data))

		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Successfully processed notes.pdf"})
	})

	resp, err := c.UploadDocument(context.Background(), "notes.pdf", "application/pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	require.Equal(t, "Successfully processed notes.pdf", resp.Message)
}

func TestSubmitURLSendsJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/process/url", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "https://example.com/doc", body["url"])

		_ = json.NewEncoder(w).Encode(map[string]string{"message": "ok"})
	})

	resp, err := c.SubmitURL(context.Background(), "https://example.com/doc")
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Message)
}

func TestSubmitQueryReturnsAnswer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/query", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "hello", body["query"])

		_ = json.NewEncoder(w).Encode(map[string]string{"answer": "hi"})
	})

	resp, err := c.SubmitQuery(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, "hi", resp.Text())
}

func TestSubmitQueryTypedPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"type":"quiz","content":"Quiz ready","questions":[{"question":"2+2?","answer":"4"}]}`))
	})

	resp, err := c.SubmitQuery(context.Background(), "make a quiz")
	require.NoError(t, err)
	require.Equal(t, "quiz", resp.Type)
	require.Equal(t, "Quiz ready", resp.Text())
	require.Len(t, resp.Questions, 1)
	require.Equal(t, "4", resp.Questions[0].Answer)
}

func TestCheckAnswer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/quiz/check", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "2+2?", body["question"])
		require.Equal(t, "4", body["user_answer"])
		require.Equal(t, "4", body["correct_answer"])

		_, _ = w.Write([]byte(`{"is_correct":true,"feedback":"Well done"}`))
	})

	fb, err := c.CheckAnswer(context.Background(), "2+2?", "4", "4")
	require.NoError(t, err)
	require.True(t, fb.IsCorrect)
	require.Equal(t, "Well done", fb.Feedback)
}

func TestNonSuccessStatusIsHTTPStatusError(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"detail":"boom"}`, http.StatusInternalServerError)
	})

	_, err := c.SubmitQuery(context.Background(), "hello")
	require.Error(t, err)

	var statusErr *HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusInternalServerError, statusErr.HTTPStatusCode())
	require.Contains(t, statusErr.Body, "boom")
	require.Equal(t, 1, calls, "failed calls must not be retried")
}

func TestTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c, err := New(server.URL)
	require.NoError(t, err)
	server.Close()

	_, err = c.SubmitURL(context.Background(), "https://example.com")
	require.Error(t, err)

	var statusErr *HTTPStatusError
	require.False(t, errors.As(err, &statusErr))
}

func TestMalformedResponseFails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	})

	_, err := c.SubmitQuery(context.Background(), "hello")
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode")
}

func TestEmptySuccessBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	resp, err := c.SubmitURL(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.Empty(t, resp.Message)
}

func TestCanceledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"answer":"late"}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.SubmitQuery(ctx, "hello")
	require.ErrorIs(t, err, context.Canceled)
}
