//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestProbes(t *testing.T) {
	for _, path := range []string{"/livez", "/readyz"} {
		t.Run(path, func(t *testing.T) {
			body := expect[healthResponse](t, http.StatusOK, http.MethodGet, path, "", nil)
			if body.Status != "ok" {
				t.Fatalf("expected status ok, got %q (%v)", body.Status, body.Checks)
			}
		})
	}
}
