package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"terramorph.dev/internal/protocol"
	"terramorph.dev/internal/sim/terrain"
)

func TestCommandHandler_MapsErrorsToCodes(t *testing.T) {
	cmdCh := make(chan command, 1)
	stopCh := make(chan struct{})
	h := commandHandler(cmdCh, stopCh, func([]byte) func() error {
		return func() error { return terrain.ErrOutOfBounds }
	})
	go func() {
		cmd := <-cmdCh
		cmd.resp <- cmd.run()
	}()

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/v1/mutate", strings.NewReader("{}")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Code != protocol.ErrOutOfBounds {
		t.Fatalf("code = %q, want %q", resp.Code, protocol.ErrOutOfBounds)
	}
	if resp.Message == "" {
		t.Fatal("error body has no message")
	}
}

func TestCommandHandler_RejectsAfterStop(t *testing.T) {
	cmdCh := make(chan command) // no consumer: the loop already exited
	stopCh := make(chan struct{})
	close(stopCh)
	h := commandHandler(cmdCh, stopCh, func([]byte) func() error {
		return func() error { return nil }
	})

	done := make(chan int, 1)
	go func() {
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodPost, "/v1/mutate", strings.NewReader("{}")))
		done <- rec.Code
	}()
	select {
	case code := <-done:
		if code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler still blocked after shutdown")
	}
}
