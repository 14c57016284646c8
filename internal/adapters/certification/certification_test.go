package certification

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCertifiedRuns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cms-service-dqm/CAF/certification/Collisions24/certified.json" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"200": [[1, 50]], "100": [[1, 10]]}`))
	}))
	defer srv.Close()

	c := New(srv.URL + "/cms-service-dqm/CAF/certification")
	runs, err := c.CertifiedRuns(context.Background(), "Collisions24/certified.json")
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0] != 100 || runs[1] != 200 {
		t.Errorf("runs: %v", runs)
	}
}

func TestCertifiedRunsBadDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not-a-run": []}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	if _, err := c.CertifiedRuns(context.Background(), "bad.json"); err == nil {
		t.Fatal("expected an error")
	}
}
