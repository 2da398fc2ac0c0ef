package security

import (
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		if _, err := io.ReadAll(r.Body); err != nil {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
})

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rr.Body.String())
	}
	return body.Error.Code
}

func TestCSRF(t *testing.T) {
	handler := CSRF{AccessCookie: "access_token"}.Middleware(ok)

	cases := []struct {
		name   string
		mutate func(*http.Request)
		want   int
		code   string
	}{
		{name: "no cookie auth", mutate: func(*http.Request) {}, want: http.StatusOK},
		{name: "bearer", mutate: func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer abc")
			r.AddCookie(&http.Cookie{Name: "access_token", Value: "abc"})
		}, want: http.StatusOK},
		{name: "cookie without token", mutate: func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: "access_token", Value: "abc"})
		}, want: http.StatusForbidden, code: "CSRF_REQUIRED"},
		{name: "cookie mismatch", mutate: func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: "access_token", Value: "abc"})
			r.AddCookie(&http.Cookie{Name: "X-CSRF-Token", Value: "one"})
			r.Header.Set("X-CSRF-Token", "two")
		}, want: http.StatusForbidden, code: "CSRF_MISMATCH"},
		{name: "cookie match", mutate: func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: "access_token", Value: "abc"})
			r.AddCookie(&http.Cookie{Name: "X-CSRF-Token", Value: "same"})
			r.Header.Set("X-CSRF-Token", "same")
		}, want: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/checkout/pay", nil)
			tc.mutate(req)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rr.Code)
			}
			if tc.code != "" && errorCode(t, rr) != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, rr.Body.String())
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "abc"})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("safe methods must pass, got %d", rr.Code)
	}
}

func TestBodyLimit(t *testing.T) {
	handler := BodyLimit{Max: 8}.Middleware(ok)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small")))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("far too large")))
	if rr.Code != http.StatusRequestEntityTooLarge || errorCode(t, rr) != "PAYLOAD_TOO_LARGE" {
		t.Fatalf("expected declared oversize body rejected, got %d %s", rr.Code, rr.Body.String())
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("far too large"))
	req.ContentLength = -1
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected undeclared oversize body to fail the read, got %d", rr.Code)
	}
}

func TestHeaders(t *testing.T) {
	handler := Headers{HSTSMaxAge: 600}.Middleware(ok)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products", nil))
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("expected nosniff")
	}
	if rr.Header().Get("Cache-Control") != "" || rr.Header().Get("Strict-Transport-Security") != "" {
		t.Fatalf("unexpected headers %v", rr.Header())
	}

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer abc")
	req.TLS = &tls.ConnectionState{}
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Fatal("expected no-store for authenticated responses")
	}
	if rr.Header().Get("Strict-Transport-Security") != "max-age=600" {
		t.Fatalf("unexpected hsts %q", rr.Header().Get("Strict-Transport-Security"))
	}
}
