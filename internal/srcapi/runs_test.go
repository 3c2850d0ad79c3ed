package srcapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

// runsServer serves a synthetic verified-run dataset with the same
// pagination contract as the real API, including the offset ceiling.
func runsServer(t *testing.T, total int) (*httptest.Server, *int) {
	t.Helper()
	maxOffsetSeen := 0

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/runs" {
			http.NotFound(w, r)
			return
		}
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		direction := r.URL.Query().Get("direction")
		if offset > maxOffsetSeen {
			maxOffsetSeen = offset
		}
		if offset >= offsetCeiling {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		type wireRun struct {
			ID string `json:"id"`
		}
		page := make([]wireRun, 0, pageSize)
		for i := 0; i < pageSize; i++ {
			var idx int
			if direction == "desc" {
				idx = total - 1 - offset - i
				if idx < 0 {
					break
				}
			} else {
				idx = offset + i
				if idx >= total {
					break
				}
			}
			page = append(page, wireRun{ID: fmt.Sprintf("run%05d", idx)})
		}

		resp := map[string]any{
			"data":       page,
			"pagination": map[string]int{"size": len(page)},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, &maxOffsetSeen
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return NewClient(ClientOptions{
		BaseURL:            baseURL,
		CacheDir:           t.TempDir(),
		MinRequestInterval: time.Microsecond,
		MaxRetryElapsed:    time.Nanosecond,
	})
}

func assertUniqueComplete(t *testing.T, runs []Run, total int) {
	t.Helper()
	if len(runs) != total {
		t.Fatalf("got %d runs, want %d", len(runs), total)
	}
	seen := make(map[string]bool, len(runs))
	for _, r := range runs {
		if seen[r.ID] {
			t.Fatalf("duplicate run id %s", r.ID)
		}
		seen[r.ID] = true
	}
}

func TestFetchAllRunsBelowCeiling(t *testing.T) {
	const total = 450
	srv, _ := runsServer(t, total)
	client := newTestClient(t, srv.URL)

	runs, err := client.FetchAllRuns(context.Background(), RunsQuery{UserID: "u1"})
	if err != nil {
		t.Fatalf("fetch all runs: %v", err)
	}
	assertUniqueComplete(t, runs, total)
	if runs[0].ID != "run00000" || runs[total-1].ID != fmt.Sprintf("run%05d", total-1) {
		t.Fatalf("unexpected retrieval order: first=%s last=%s", runs[0].ID, runs[total-1].ID)
	}
}

func TestFetchAllRunsAboveCeilingSwitchesDirection(t *testing.T) {
	const total = 10100
	srv, maxOffset := runsServer(t, total)
	client := newTestClient(t, srv.URL)

	runs, err := client.FetchAllRuns(context.Background(), RunsQuery{GameID: "g1"})
	if err != nil {
		t.Fatalf("fetch all runs: %v", err)
	}
	assertUniqueComplete(t, runs, total)
	if *maxOffset >= offsetCeiling {
		t.Fatalf("client requested offset %d at or past the ceiling", *maxOffset)
	}
}

func TestFetchAllRunsExactlyAtCeiling(t *testing.T) {
	const total = offsetCeiling
	srv, _ := runsServer(t, total)
	client := newTestClient(t, srv.URL)

	runs, err := client.FetchAllRuns(context.Background(), RunsQuery{GameID: "g1"})
	if err != nil {
		t.Fatalf("fetch all runs: %v", err)
	}
	assertUniqueComplete(t, runs, total)
}

func TestFetchAllRunsKeepsPartialResultsOnTransientFailure(t *testing.T) {
	var requests int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests > 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		page := make([]map[string]string, pageSize)
		for i := range page {
			page[i] = map[string]string{"id": fmt.Sprintf("run%05d", i)}
		}
		resp := map[string]any{
			"data":       page,
			"pagination": map[string]int{"size": pageSize},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := newTestClient(t, srv.URL)
	runs, err := client.FetchAllRuns(context.Background(), RunsQuery{UserID: "u1"})
	if err != nil {
		t.Fatalf("transient failure must not surface: %v", err)
	}
	if len(runs) != pageSize {
		t.Fatalf("got %d runs, want the %d accumulated before the failure", len(runs), pageSize)
	}
}

func TestFetchAllRunsSurfacesClientErrors(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := newTestClient(t, srv.URL)
	if _, err := client.FetchAllRuns(context.Background(), RunsQuery{UserID: "u1"}); err == nil {
		t.Fatalf("expected a 4xx to be fatal")
	}
}

func TestFetchAllRunsRejectsAmbiguousQuery(t *testing.T) {
	client := newTestClient(t, "http://unused.invalid")
	if _, err := client.FetchAllRuns(context.Background(), RunsQuery{}); err == nil {
		t.Fatalf("expected empty query to be rejected")
	}
	if _, err := client.FetchAllRuns(context.Background(), RunsQuery{UserID: "u", GameID: "g"}); err == nil {
		t.Fatalf("expected user+game query to be rejected")
	}
}
