package resolver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/example/agencybot/internal/logging"
)

func testProber() *Prober {
	return NewProber(2*time.Second, 1000, logging.New("error"))
}

func validPage(title string) string {
	return fmt.Sprintf("<html><head><title>%s</title></head><body>%s</body></html>",
		title, strings.Repeat("agency application form content ", 64))
}

func TestProbeCommonPathsFirstValidWins(t *testing.T) {
	var hits []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, r.URL.Path)
		switch r.URL.Path {
		case "/application":
			fmt.Fprint(w, validPage("Apply to us"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	got := testProber().ProbeCommonPaths(context.Background(), srv.URL)
	assert.Equal(t, srv.URL+"/application", got)
	// /apply misses first, /application hits, probing stops there.
	assert.Equal(t, []string{"/apply", "/application"}, hits)
}

func TestProbeCommonPathsSkipsSoft404Title(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/apply" {
			fmt.Fprint(w, validPage("404 Not Found"))
			return
		}
		if r.URL.Path == "/join" {
			fmt.Fprint(w, validPage("Join the agency"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	got := testProber().ProbeCommonPaths(context.Background(), srv.URL)
	assert.Equal(t, srv.URL+"/join", got)
}

func TestProbeCommonPathsSkipsStubPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 200 but far below the content threshold.
		fmt.Fprint(w, "<html><title>ok</title></html>")
	}))
	defer srv.Close()

	got := testProber().ProbeCommonPaths(context.Background(), srv.URL)
	assert.Equal(t, srv.URL, got)
}

func TestProbeCommonPathsAllMissReturnsBase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	base := srv.URL + "/"
	got := testProber().ProbeCommonPaths(context.Background(), base)
	// Base comes back unchanged, trailing slash and all.
	assert.Equal(t, base, got)
}

func TestProbeCommonPathsUnreachableHost(t *testing.T) {
	got := testProber().ProbeCommonPaths(context.Background(), "http://127.0.0.1:1")
	assert.Equal(t, "http://127.0.0.1:1", got)
}
