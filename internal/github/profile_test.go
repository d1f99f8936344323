package github

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/moxopixel/moxo-backend/internal/cache"
	"github.com/moxopixel/moxo-backend/internal/fetch"
)

func newProfileFixture(t *testing.T, routes map[string]routeResponse) (*ProfileService, *routeTransport) {
	t.Helper()

	store, err := cache.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	transport := newRouteTransport("fake", routes)
	fetcher, err := fetch.NewFetcher(transport, transport, quietLogger())
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}

	svc, err := NewProfileService(ProfileOptions{
		Store:     store,
		Fetcher:   fetcher,
		APIBase:   "https://api.github.com",
		User:      "emil",
		UserAgent: "test-agent",
		TTL:       time.Hour,
		Logger:    quietLogger(),
	})
	if err != nil {
		t.Fatalf("new profile service: %v", err)
	}
	return svc, transport
}

func TestGetUserLiveThenCached(t *testing.T) {
	svc, transport := newProfileFixture(t, map[string]routeResponse{
		"/users/emil/repos": {status: 200, body: `[]`},
		"/users/emil":       {status: 200, body: `{"login":"emil"}`},
	})

	first := svc.GetUser(context.Background())
	if !first.Success || first.Source != SourceLive {
		t.Fatalf("expected live success, got %+v", first)
	}

	second := svc.GetUser(context.Background())
	if !second.Success || second.Source != SourceCache {
		t.Fatalf("expected cache hit, got %+v", second)
	}
	if string(second.Data) != `{"login":"emil"}` {
		t.Fatalf("cached data mismatch: %s", string(second.Data))
	}
	if transport.calls["/users/emil"] != 1 {
		t.Fatalf("expected one upstream fetch, got %d", transport.calls["/users/emil"])
	}
}

func TestGetAllPartialFailure(t *testing.T) {
	// user 挂掉、repos 正常：聚合结果不能丢掉成功的一半。
	svc, _ := newProfileFixture(t, map[string]routeResponse{
		"/users/emil/repos": {status: 200, body: `[{"name":"widget"}]`},
		"/users/emil":       {err: errors.New("connection refused")},
	})

	all := svc.GetAll(context.Background())
	if all.Success {
		t.Fatalf("expected aggregate failure")
	}
	if all.User.Success {
		t.Fatalf("expected user side to fail")
	}
	if all.User.Error == "" {
		t.Fatalf("user failure missing error message")
	}
	if !all.Repos.Success {
		t.Fatalf("repos side lost: %+v", all.Repos)
	}
	if string(all.Repos.Data) != `[{"name":"widget"}]` {
		t.Fatalf("repos data mismatch: %s", string(all.Repos.Data))
	}
}

func TestGetAllBothSucceed(t *testing.T) {
	svc, _ := newProfileFixture(t, map[string]routeResponse{
		"/users/emil/repos": {status: 200, body: `[]`},
		"/users/emil":       {status: 200, body: `{"login":"emil"}`},
	})

	all := svc.GetAll(context.Background())
	if !all.Success {
		t.Fatalf("expected aggregate success, got %+v", all)
	}
	if !all.User.Success || !all.Repos.Success {
		t.Fatalf("expected both sides to succeed")
	}
}

func TestGetReposInvalidJSONNotCached(t *testing.T) {
	svc, transport := newProfileFixture(t, map[string]routeResponse{
		"/users/emil/repos": {status: 200, body: `not json`},
	})

	if result := svc.GetRepos(context.Background()); result.Success {
		t.Fatalf("expected failure for invalid JSON")
	}
	if result := svc.GetRepos(context.Background()); result.Success {
		t.Fatalf("expected failure for invalid JSON")
	}
	if transport.calls["/users/emil/repos"] != 2 {
		t.Fatalf("invalid payload must not be cached, got %d calls", transport.calls["/users/emil/repos"])
	}
}

func TestClearAllForcesRefetch(t *testing.T) {
	svc, transport := newProfileFixture(t, map[string]routeResponse{
		"/users/emil/repos": {status: 200, body: `[]`},
		"/users/emil":       {status: 200, body: `{"login":"emil"}`},
	})

	svc.GetAll(context.Background())
	if err := svc.ClearAll(context.Background()); err != nil {
		t.Fatalf("clear all: %v", err)
	}
	svc.GetAll(context.Background())

	if transport.calls["/users/emil"] != 2 {
		t.Fatalf("expected refetch after clear, got %d", transport.calls["/users/emil"])
	}
	if transport.calls["/users/emil/repos"] != 2 {
		t.Fatalf("expected repos refetch after clear, got %d", transport.calls["/users/emil/repos"])
	}
}
