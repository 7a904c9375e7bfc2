package notion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/screenpilot/cv-ranker/internal/candidate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordedRequest struct {
	method string
	path   string
	body   map[string]interface{}
}

// newTestServer records API requests and replies per-path from responses.
func newTestServer(t *testing.T, responses map[string]interface{}) (*Client, *[]recordedRequest) {
	t.Helper()

	var requests []recordedRequest

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{method: r.Method, path: r.URL.Path}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}
		requests = append(requests, rec)

		resp, ok := responses[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message": "no such endpoint"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := New(zap.NewNop(), "secret-token", "db-123")
	client.APIURL = server.URL

	return client, &requests
}

func testAssessment() *candidate.Assessment {
	return &candidate.Assessment{
		Name:               "Jane Doe",
		Email:              "jane@x.com",
		Phone:              "+1 555 0100",
		Gender:             "Female",
		LinkedinURL:        "https://www.linkedin.com/in/janedoe",
		DateOfBirth:        candidate.Unknown,
		YearsOfExperience:  9,
		Summary:            "Nine years of backend work.",
		ProfessionalSkills: []string{"Go", "PostgreSQL"},
		PersonalSkills:     []string{"Communication"},
		SourceFile:         "/jobs/backend/CVs/jane_doe.pdf",
		PositionTitle:      "Backend Engineer",
		Location:           "Berlin",
		MatchScore:         87,
		Ranking:            candidate.RankingHighFit,
		RankingReason:      "Strong overlap.",
		ProcessedAt:        time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC),
		Status:             candidate.StatusTodo,
	}
}

func TestVerify(t *testing.T) {
	client, requests := newTestServer(t, map[string]interface{}{
		"/v1/users/me":         map[string]interface{}{"id": "user-1"},
		"/v1/databases/db-123": map[string]interface{}{"id": "db-123"},
	})

	require.NoError(t, client.Verify(context.Background()))
	require.Len(t, *requests, 2)
	assert.Equal(t, "/v1/users/me", (*requests)[0].path)
	assert.Equal(t, "/v1/databases/db-123", (*requests)[1].path)
}

func TestVerifyBadToken(t *testing.T) {
	client, _ := newTestServer(t, map[string]interface{}{})

	err := client.Verify(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verifying notion token")
}

func TestFindByKeyFound(t *testing.T) {
	client, requests := newTestServer(t, map[string]interface{}{
		"/v1/databases/db-123/query": map[string]interface{}{
			"results": []interface{}{
				map[string]interface{}{"id": "page-42"},
			},
		},
	})

	id, err := client.FindByKey(context.Background(), "Jane Doe", "jane@x.com")
	require.NoError(t, err)
	assert.Equal(t, "page-42", id)

	require.Len(t, *requests, 1)
	filter, ok := (*requests)[0].body["filter"].(map[string]interface{})
	require.True(t, ok, "query must carry a filter")
	and, ok := filter["and"].([]interface{})
	require.True(t, ok)
	assert.Len(t, and, 2, "both halves of the natural key must be in the filter")
}

func TestFindByKeyNotFound(t *testing.T) {
	client, _ := newTestServer(t, map[string]interface{}{
		"/v1/databases/db-123/query": map[string]interface{}{
			"results": []interface{}{},
		},
	})

	id, err := client.FindByKey(context.Background(), "Jane Doe", "jane@x.com")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestFindByKeyEmptyKey(t *testing.T) {
	client, _ := newTestServer(t, map[string]interface{}{})

	_, err := client.FindByKey(context.Background(), "  ", "")
	require.Error(t, err)
}

func TestCreatePage(t *testing.T) {
	client, requests := newTestServer(t, map[string]interface{}{
		"/v1/pages": map[string]interface{}{"id": "page-1"},
	})

	id, err := client.CreatePage(context.Background(), testAssessment(), "")
	require.NoError(t, err)
	assert.Equal(t, "page-1", id)

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, http.MethodPost, req.method)

	props, ok := req.body["properties"].(map[string]interface{})
	require.True(t, ok)

	status, ok := props["Status"].(map[string]interface{})
	require.True(t, ok, "insert must set the initial workflow status")
	assert.Equal(t,
		map[string]interface{}{"name": "Todo"},
		status["status"],
	)

	assert.Contains(t, props, "Email")
	assert.NotContains(t, props, "DOB", "unknown optionals must be omitted")
	assert.NotContains(t, props, "CV File", "no attachment without an upload id")
}

func TestUpdatePageLeavesStatusAlone(t *testing.T) {
	client, requests := newTestServer(t, map[string]interface{}{
		"/v1/pages/page-42": map[string]interface{}{"id": "page-42"},
	})

	require.NoError(t, client.UpdatePage(context.Background(), "page-42", testAssessment(), ""))

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, http.MethodPatch, req.method)

	props, ok := req.body["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.NotContains(t, props, "Status", "update must not regress a reviewed record")
}

func TestUploadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jane_doe.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fake"), 0o644))

	client, requests := newTestServer(t, map[string]interface{}{
		"/v1/file_uploads":               map[string]interface{}{"id": "upload-7"},
		"/v1/file_uploads/upload-7/send": map[string]interface{}{"id": "upload-7"},
	})

	id, err := client.UploadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "upload-7", id)

	require.Len(t, *requests, 2)
	assert.Equal(t, "jane_doe.pdf", (*requests)[0].body["filename"])
	assert.Equal(t, "application/pdf", (*requests)[0].body["content_type"])
}

func TestUploadFileUppercaseExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jane_doe.PDF")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fake"), 0o644))

	client, requests := newTestServer(t, map[string]interface{}{
		"/v1/file_uploads":               map[string]interface{}{"id": "upload-8"},
		"/v1/file_uploads/upload-8/send": map[string]interface{}{"id": "upload-8"},
	})

	_, err := client.UploadFile(context.Background(), path)
	require.NoError(t, err)

	// Extension dispatch is case-insensitive, like the extractor's.
	require.Len(t, *requests, 2)
	assert.Equal(t, "jane_doe.PDF", (*requests)[0].body["filename"])
	assert.Equal(t, "application/pdf", (*requests)[0].body["content_type"])
}

func TestBadStatusCarriesAPIMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message": "Name is not a property that exists"}`))
	}))
	t.Cleanup(server.Close)

	client := New(zap.NewNop(), "secret-token", "db-123")
	client.APIURL = server.URL

	_, err := client.CreatePage(context.Background(), testAssessment(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Name is not a property that exists")
}

func TestRequestHeaders(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)

	client := New(zap.NewNop(), "secret-token", "db-123")
	client.APIURL = server.URL

	require.NoError(t, client.getJSON(context.Background(), server.URL+"/v1/users/me", nil))
	assert.Equal(t, "Bearer secret-token", got.Get("Authorization"))
	assert.Equal(t, apiVersion, got.Get("Notion-Version"))
	assert.Equal(t, userAgent, got.Get("User-Agent"))
}
