package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/detector"
	"github.com/nvr-ai/go-detect/metrics"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

type fakeLabeler struct {
	mu     sync.Mutex
	calls  [][]byte
	result *detector.Result
	err    error
	ctxErr error
}

func (f *fakeLabeler) Detect(ctx context.Context, data []byte) (*detector.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, data)
	if _, ok := ctx.Deadline(); !ok {
		f.ctxErr = errors.New("no deadline")
	}
	return f.result, f.err
}

func labels(names ...string) *detector.Result {
	return &detector.Result{Output: &postprocess.Output{Labels: names, Count: len(names)}}
}

func testConfig() config.ServerConfig {
	return config.ServerConfig{Address: ":0", BodyLimit: "1M", RequestTimeout: time.Second}
}

func uploadRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/file", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHello(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	s := New(testConfig(), &fakeLabeler{}, log, nil)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello World!", decode(t, rec)["message"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestUpload_Success(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	labeler := &fakeLabeler{result: labels("pizza", "rice")}
	s := New(testConfig(), labeler, log, nil)

	rec := serve(s, uploadRequest(t, UploadField, "lunch.jpg", []byte("jpeg bytes")))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, StatusSuccess, body["status"])
	assert.Equal(t, []interface{}{"pizza", "rice"}, body["result"])

	require.Len(t, labeler.calls, 1)
	assert.Equal(t, []byte("jpeg bytes"), labeler.calls[0])
	assert.NoError(t, labeler.ctxErr, "request timeout should reach the labeler")
}

func TestUpload_EmptyResult(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	s := New(testConfig(), &fakeLabeler{result: labels()}, log, nil)

	rec := serve(s, uploadRequest(t, UploadField, "empty.jpg", []byte("jpeg bytes")))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"Success","result":[]}`, rec.Body.String())
}

func TestUpload_Failures(t *testing.T) {
	tests := []struct {
		name    string
		labeler *fakeLabeler
		req     func(t *testing.T) *http.Request
		called  bool
	}{
		{
			name:    "missing file field",
			labeler: &fakeLabeler{},
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "document", "lunch.jpg", []byte("x"))
			},
		},
		{
			name:    "undecodable image",
			labeler: &fakeLabeler{err: detector.NewInputError(errors.New("unsupported image format"))},
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, UploadField, "notes.txt", []byte("hello"))
			},
			called: true,
		},
		{
			name:    "shape mismatch",
			labeler: &fakeLabeler{err: errors.Wrap(postprocess.ErrShapeMismatch, "got [1 84 8400]")},
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, UploadField, "lunch.jpg", []byte("x"))
			},
			called: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, _ := logtest.NewNullLogger()
			s := New(testConfig(), tt.labeler, log, nil)

			rec := serve(s, tt.req(t))
			require.Equal(t, http.StatusInternalServerError, rec.Code)

			body := decode(t, rec)
			assert.Equal(t, StatusFailed, body["status"])
			assert.NotEmpty(t, body["message"])
			assert.Equal(t, tt.called, len(tt.labeler.calls) > 0)
		})
	}
}

func TestUpload_ConfigurationErrorLogged(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	labeler := &fakeLabeler{err: errors.Wrap(postprocess.ErrShapeMismatch, "got [1 84 8400]")}
	s := New(testConfig(), labeler, log, nil)

	serve(s, uploadRequest(t, UploadField, "lunch.jpg", []byte("x")))

	var found bool
	for _, entry := range hook.AllEntries() {
		if entry.Data["fatal_config"] == true {
			found = true
		}
	}
	assert.True(t, found)
}

func TestUpload_PersistsFile(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	cfg := testConfig()
	cfg.UploadDir = filepath.Join(t.TempDir(), "uploads")
	s := New(cfg, &fakeLabeler{result: labels("egg")}, log, nil)

	rec := serve(s, uploadRequest(t, UploadField, "../../breakfast.jpg", []byte("egg bytes")))
	require.Equal(t, http.StatusOK, rec.Code)

	data, err := os.ReadFile(filepath.Join(cfg.UploadDir, "breakfast.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte("egg bytes"), data)
}

func TestUpload_BodyLimit(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	cfg := testConfig()
	cfg.BodyLimit = "1K"
	labeler := &fakeLabeler{result: labels("egg")}
	s := New(cfg, labeler, log, nil)

	rec := serve(s, uploadRequest(t, UploadField, "big.jpg", bytes.Repeat([]byte{1}, 4096)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, labeler.calls)
}

func TestUpload_BodyLimitChunked(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	cfg := testConfig()
	cfg.BodyLimit = "1K"
	labeler := &fakeLabeler{result: labels("egg")}
	s := New(cfg, labeler, log, nil)

	// No Content-Length: the limit is only hit while the form is parsed.
	req := uploadRequest(t, UploadField, "big.jpg", bytes.Repeat([]byte{1}, 4096))
	req.ContentLength = -1
	req.TransferEncoding = []string{"chunked"}

	rec := serve(s, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, labeler.calls)
}

func TestUpload_MissingFieldKeepsCause(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	s := New(testConfig(), &fakeLabeler{result: labels("egg")}, log, nil)

	rec := serve(s, uploadRequest(t, "image", "a.jpg", []byte{1, 2, 3}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decode(t, rec)["message"], "image not found: ")

	var entry *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "image not found" {
			entry = e
		}
	}
	require.NotNil(t, entry)
	err, ok := entry.Data[logrus.ErrorKey].(error)
	require.True(t, ok)
	assert.True(t, errors.Is(err, http.ErrMissingFile), "got %v", err)
}

func TestHealthAndMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := metrics.NewDetectorMetrics(registry)
	require.NoError(t, err)
	m.RecordRequest(metrics.StatusSuccess)

	log, _ := logtest.NewNullLogger()
	s := New(testConfig(), &fakeLabeler{}, log, registry)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `detect_requests_total{status="success"} 1`)
}
