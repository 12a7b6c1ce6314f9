package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/shelfscore/backend/config"
	"github.com/shelfscore/backend/internal/infrastructure/store"
	"github.com/shelfscore/backend/internal/usecase"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	// Set Gin to test mode once for all tests
	gin.SetMode(gin.TestMode)

	exitCode := m.Run()

	os.Exit(exitCode)
}

// setupTestRouter wires the full stack against a throwaway database.
// The source set is empty, so every barcode lookup exhausts the
// waterfall.
func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"*"},
		},
	}

	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	resolution := usecase.NewResolutionService(db.Products(), usecase.SourceSet{}, usecase.ResolutionConfig{}, nil)
	validator := usecase.NewScoreValidator(usecase.ValidatorConfig{})
	consensus := usecase.NewConsensusService(db.Consensus(), usecase.ConsensusConfig{})
	privacy := usecase.NewPrivacyEncoder(usecase.PrivacyEncoderConfig{})
	scans := usecase.NewScanService(resolution, validator, consensus, db.Ledger(), privacy, nil)

	return SetupRouter(cfg, NewHandler(scans, resolution, db.Ledger()))
}

func TestHealthCheckEndpoint(t *testing.T) {
	t.Run("returns healthy status", func(t *testing.T) {
		router := setupTestRouter(t)

		req, _ := http.NewRequest("GET", "/health", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}

		var response map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if response["status"] != "healthy" {
			t.Errorf("status = %v, want healthy", response["status"])
		}
		if response["service"] != "shelfscore-backend" {
			t.Errorf("service = %v, want shelfscore-backend", response["service"])
		}
	})
}

func TestResolveEndpoint(t *testing.T) {
	t.Run("name-only request yields an identity", func(t *testing.T) {
		router := setupTestRouter(t)

		payload := `{"productName":"Choco Bar","brand":"SweetCo"}`
		req, _ := http.NewRequest("POST", "/api/v1/resolve", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d (body: %s)", w.Code, http.StatusOK, w.Body.String())
		}

		var response struct {
			Identity struct {
				IdentityKey string `json:"identityKey"`
			} `json:"identity"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		want := usecase.ResolveIdentity("Choco Bar", "SweetCo").IdentityKey
		if response.Identity.IdentityKey != want {
			t.Errorf("identityKey = %q, want %q", response.Identity.IdentityKey, want)
		}
	})

	t.Run("unresolvable barcode yields 404", func(t *testing.T) {
		router := setupTestRouter(t)

		payload := `{"barcode":"0000000000000"}`
		req, _ := http.NewRequest("POST", "/api/v1/resolve", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("empty request is rejected", func(t *testing.T) {
		router := setupTestRouter(t)

		req, _ := http.NewRequest("POST", "/api/v1/resolve", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

func TestScanLifecycle(t *testing.T) {
	router := setupTestRouter(t)

	post := func(t *testing.T, payload string) *httptest.ResponseRecorder {
		t.Helper()
		req, _ := http.NewRequest("POST", "/api/v1/scans", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("missing evaluation is rejected", func(t *testing.T) {
		w := post(t, `{"userId":"u1","productName":"Choco Bar"}`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	var scanID, identityKey string

	t.Run("records a scan", func(t *testing.T) {
		w := post(t, `{
			"userId": "u1",
			"productName": "Choco Bar",
			"brand": "SweetCo",
			"evaluation": {"score": 85, "violations": [{"name": "palm_oil", "points": -10}]},
			"location": {"lat": 40.0, "lon": -73.0}
		}`)
		if w.Code != http.StatusCreated {
			t.Fatalf("Status = %d, want %d (body: %s)", w.Code, http.StatusCreated, w.Body.String())
		}

		var response struct {
			ScanID   string  `json:"scanId"`
			Score    int     `json:"score"`
			Verdict  string  `json:"verdict"`
			Identity struct {
				IdentityKey string `json:"identityKey"`
			} `json:"identity"`
			Geo *struct {
				Geohash string `json:"geohash"`
			} `json:"geo"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if response.Score != 85 || response.Verdict != "acceptable" {
			t.Errorf("score/verdict = %d/%s, want 85/acceptable", response.Score, response.Verdict)
		}
		if response.Geo == nil || len(response.Geo.Geohash) != 6 {
			t.Errorf("geo = %+v, want 6-char geohash", response.Geo)
		}
		scanID = response.ScanID
		identityKey = response.Identity.IdentityKey
	})

	t.Run("consensus is served but not yet trustworthy", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/api/v1/consensus/"+identityKey, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		var response struct {
			Trustworthy bool `json:"trustworthy"`
			Consensus   struct {
				SampleCount int `json:"sampleCount"`
			} `json:"consensus"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if response.Trustworthy {
			t.Error("single sample should not be trustworthy")
		}
		if response.Consensus.SampleCount != 1 {
			t.Errorf("sampleCount = %d, want 1", response.Consensus.SampleCount)
		}
	})

	t.Run("stats reflect the scan", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/api/v1/stats", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		var response struct {
			TotalEvents   int `json:"totalEvents"`
			CurrentStreak int `json:"currentStreak"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if response.TotalEvents != 1 || response.CurrentStreak != 1 {
			t.Errorf("stats = %+v, want one event and a one-day streak", response)
		}
	})

	t.Run("scan appears in the user listing", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/api/v1/users/u1/scans", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		var response struct {
			Scans []struct {
				ScanID string `json:"scanId"`
			} `json:"scans"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if len(response.Scans) != 1 || response.Scans[0].ScanID != scanID {
			t.Errorf("scans = %+v, want the recorded scan", response.Scans)
		}
	})

	t.Run("hide removes the scan from the listing", func(t *testing.T) {
		req, _ := http.NewRequest("DELETE", "/api/v1/scans/"+scanID, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Fatalf("Status = %d, want %d", w.Code, http.StatusNoContent)
		}

		req, _ = http.NewRequest("GET", "/api/v1/users/u1/scans", nil)
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)

		var response struct {
			Scans []json.RawMessage `json:"scans"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if len(response.Scans) != 0 {
			t.Errorf("scans = %d, want 0 after hide", len(response.Scans))
		}
	})

	t.Run("hiding an unknown scan yields 404", func(t *testing.T) {
		req, _ := http.NewRequest("DELETE", "/api/v1/scans/does-not-exist", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

func TestConsensusNotFound(t *testing.T) {
	router := setupTestRouter(t)

	req, _ := http.NewRequest("GET", "/api/v1/consensus/0123456789abcdef", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
