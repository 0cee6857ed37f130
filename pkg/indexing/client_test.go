package indexing_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"classdoc-go/internal/config"
	"classdoc-go/pkg/indexing"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate ...func(*config.IndexingConfig)) indexing.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.IndexingConfig{
		BaseURL:         srv.URL,
		Timeout:         5 * time.Second,
		StatusEndpoint:  "/status",
		ProcessEndpoint: "/process-pdf",
		QueryEndpoint:   "/query",
		CompareEndpoint: "/compare-pdfs",
		DeleteEndpoint:  "/delete",
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return indexing.NewClient(cfg)
}

func TestStatusEscapesNameAndDecodes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/status/unit 1.pdf", r.URL.Path)
		_, _ = w.Write([]byte(`{"is_processed": true, "type": "teacher"}`))
	})

	status, err := client.Status(context.Background(), "unit 1.pdf")

	require.NoError(t, err)
	require.True(t, status.IsProcessed)
	require.Equal(t, "teacher", status.Type)
}

func TestSubmitGenericEndpointSendsRoleFields(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/process-pdf", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "true", r.FormValue("is_teacher"))
		require.Equal(t, "7", r.FormValue("class_id"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		content, _ := io.ReadAll(file)
		require.Equal(t, "syllabus.pdf", header.Filename)
		require.Equal(t, "%PDF-1.4", string(content))
		w.WriteHeader(http.StatusOK)
	})

	err := client.Submit(context.Background(), indexing.SubmitRequest{
		FileName:  "syllabus.pdf",
		Content:   []byte("%PDF-1.4"),
		IsTeacher: true,
		ClassID:   "7",
	})

	require.NoError(t, err)
}

func TestSubmitRoleEndpointSendsOnlyFile(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/process-student-document", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Empty(t, r.FormValue("is_teacher"))
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}, func(cfg *config.IndexingConfig) {
		cfg.StudentEndpoint = "/process-student-document"
	})

	err := client.Submit(context.Background(), indexing.SubmitRequest{FileName: "alice.pdf", Content: []byte("%PDF")})

	require.NoError(t, err)
}

func TestNon2xxCarriesDetailVerbatim(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail": "รองรับเฉพาะไฟล์ PDF เท่านั้น"}`))
	})

	err := client.Submit(context.Background(), indexing.SubmitRequest{FileName: "a.pdf", Content: []byte("x")})

	var ie *indexing.Error
	require.ErrorAs(t, err, &ie)
	require.Equal(t, http.StatusBadRequest, ie.StatusCode)
	require.Equal(t, "รองรับเฉพาะไฟล์ PDF เท่านั้น", indexing.Detail(err))
}

func TestNonStringDetailIsKeptAsJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":[{"loc":["body","question"],"msg":"field required"}]}`))
	})

	_, err := client.Query(context.Background(), indexing.QueryRequest{FileName: "a.pdf"})

	require.Contains(t, indexing.Detail(err), "field required")
}

func TestQueryAndCompare(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/query":
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "What is osmosis?", body["question"])
			require.Equal(t, "bio.pdf", body["filename"])
			_, _ = w.Write([]byte(`{"response": "Diffusion of water."}`))
		case "/compare-pdfs":
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Nil(t, body["question"])
			require.Contains(t, body, "custom_prompt")
			_, _ = w.Write([]byte(`{"comparison_result": "Student covers 2 of 3 points."}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	answer, err := client.Query(context.Background(), indexing.QueryRequest{Question: "What is osmosis?", FileName: "bio.pdf"})
	require.NoError(t, err)
	require.Equal(t, "Diffusion of water.", answer)

	comparison, err := client.Compare(context.Background(), indexing.CompareRequest{TeacherFile: "key.pdf", StudentFile: "alice.pdf"})
	require.NoError(t, err)
	require.Equal(t, "Student covers 2 of 3 points.", comparison)
}

func TestDelete(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/delete/key.pdf", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.Delete(context.Background(), "key.pdf"))
	require.True(t, called)
}

func TestTransportFailure(t *testing.T) {
	client := indexing.NewClient(config.IndexingConfig{BaseURL: "http://127.0.0.1:1", StatusEndpoint: "/status", Timeout: time.Second})

	_, err := client.Status(context.Background(), "a.pdf")

	require.Error(t, err)
	var ie *indexing.Error
	require.False(t, errors.As(err, &ie))
}
