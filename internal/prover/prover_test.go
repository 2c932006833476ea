package prover

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_Execute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/execute" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing/incorrect auth header: %s", r.Header.Get("Authorization"))
		}
		var req ExecuteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.ProgramID != "prog-1" {
			t.Errorf("program id = %s, want prog-1", req.ProgramID)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ExecuteResult{Output: [32]byte{1, 2, 3}})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", "prog-1")
	out, err := client.Execute(context.Background(), ExecuteRequest{
		ReceiptData: []byte("receipt"),
		LineNumbers: []uint32{20, 21, 25, 27, 29},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Output[0] != 1 || out.Output[1] != 2 || out.Output[2] != 3 {
		t.Errorf("unexpected output: %v", out.Output)
	}
}

func TestClient_Execute_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", "prog-1")
	if _, err := client.Execute(context.Background(), ExecuteRequest{}); err == nil {
		t.Error("expected an error from a 500 response")
	}
}
