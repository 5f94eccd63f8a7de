package syncserver

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/romasoletskyi/looped/internal/graph"
	"github.com/romasoletskyi/looped/internal/logger"
	"github.com/romasoletskyi/looped/internal/metrics"
)

func testServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	db := graph.New()
	s := New(db, logger.New("SYNC", "error"), metrics.New(), nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func TestHandleGet_ReturnsTotalCloneAndRegistersPeer(t *testing.T) {
	s, ts := testServer(t)
	s.database.InsertTextsAt("hello", []string{"hello"})

	resp, err := http.Get(ts.URL + "/database")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	clone, err := graph.ParseDatabase(body)
	if err != nil {
		t.Fatalf("ParseDatabase error: %v", err)
	}
	client := graph.New()
	client.Updated("server")
	client.Merge(clone)
	if !client.Equal(s.database) {
		t.Error("GET response merged into a fresh graph should equal the live database")
	}

	if len(s.database.Peers()) != 1 {
		t.Errorf("peers after GET = %v, want exactly one registered peer", s.database.Peers())
	}
}

func TestHandlePost_MergesAndReturnsDiff(t *testing.T) {
	_, ts := testServer(t)

	client := graph.New()
	client.Updated("server")
	client.InsertTextsAt("", []string{"hi there"})

	resp, err := http.Post(ts.URL+"/database", "application/json", strings.NewReader(client.String()))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	diff, err := graph.ParseDatabase(body)
	if err != nil {
		t.Fatalf("ParseDatabase error: %v", err)
	}
	if diff.PhraseCount() == 0 {
		t.Error("server's first-ever diff should at least carry the sentinel root")
	}
}

// TestHandlePost_InvalidBodyStillReturnsDiff asserts the DeltaParseFailure
// behavior: an unparsable delta skips the merge but the server still answers
// with its outgoing difference so the client can retry, instead of dropping
// the response.
func TestHandlePost_InvalidBodyStillReturnsDiff(t *testing.T) {
	s, ts := testServer(t)
	s.database.InsertTextsAt("", []string{"hello"})

	resp, err := http.Post(ts.URL+"/database", "application/json", strings.NewReader("not json"))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	diff, err := graph.ParseDatabase(body)
	if err != nil {
		t.Fatalf("ParseDatabase error: %v (response body should still be a valid diff)", err)
	}
	if diff.PhraseCount() == 0 {
		t.Error("diff returned after a parse failure should still carry the server's outstanding phrases")
	}

	snap := s.metrics.Snapshot()
	if snap.Merge.Errors != 1 {
		t.Errorf("MergeErrorsTotal = %d, want 1", snap.Merge.Errors)
	}
}

func TestHandleDatabase_UnsupportedMethod(t *testing.T) {
	_, ts := testServer(t)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/database", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestHandleUnknownPath_404(t *testing.T) {
	_, ts := testServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

// TestSyncRoundTrip_ColdJoinConverges exercises the full client/server wire
// path: a fresh client clones the server, then posts its own contribution
// back, converging both sides.
func TestSyncRoundTrip_ColdJoinConverges(t *testing.T) {
	s, ts := testServer(t)
	s.database.InsertTextsAt("hello", []string{"hello"})

	getResp, err := http.Get(ts.URL + "/database")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	body, _ := io.ReadAll(getResp.Body)
	getResp.Body.Close()

	clone, err := graph.ParseDatabase(body)
	if err != nil {
		t.Fatalf("ParseDatabase error: %v", err)
	}
	client := graph.New()
	client.Updated("server")
	client.Merge(clone)
	client.Updated("server")
	client.InsertTextsAt("hi there", []string{"hi there"})

	postResp, err := http.Post(ts.URL+"/database", "application/json", strings.NewReader(client.Difference("server").String()))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer postResp.Body.Close()
	diffBody, _ := io.ReadAll(postResp.Body)
	diff, err := graph.ParseDatabase(diffBody)
	if err != nil {
		t.Fatalf("ParseDatabase diff error: %v", err)
	}
	client.Merge(diff)

	if !client.Equal(s.database) {
		t.Error("client did not converge with server after GET+POST round trip")
	}
}

