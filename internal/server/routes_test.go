package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/moxopixel/moxo-backend/internal/github"
	"github.com/moxopixel/moxo-backend/internal/images"
)

type fakeReadme struct {
	lastOwner string
	lastRepo  string
	cleared   int
	result    github.ReadmeResult
}

func (f *fakeReadme) GetReadme(ctx context.Context, owner, repo string) github.ReadmeResult {
	f.lastOwner, f.lastRepo = owner, repo
	return f.result
}

func (f *fakeReadme) ClearCache(ctx context.Context, owner, repo string) error {
	f.cleared++
	return nil
}

type fakeProfile struct {
	userCalls  int
	repoCalls  int
	allCalls   int
	clearCalls int
}

func (f *fakeProfile) GetUser(ctx context.Context) github.ProfileResult {
	f.userCalls++
	return github.ProfileResult{Success: true, Source: github.SourceLive}
}

func (f *fakeProfile) GetRepos(ctx context.Context) github.ProfileResult {
	f.repoCalls++
	return github.ProfileResult{Success: true, Source: github.SourceCache}
}

func (f *fakeProfile) GetAll(ctx context.Context) github.AllResult {
	f.allCalls++
	return github.AllResult{Success: true}
}

func (f *fakeProfile) ClearAll(ctx context.Context) error {
	f.clearCalls++
	return nil
}

type fakeConverter struct {
	path string
	err  error
}

func (f *fakeConverter) GetOrCreate(ctx context.Context, src string) (string, error) {
	return f.path, f.err
}

type fakeLister struct {
	listing images.Listing
	err     error
}

func (f *fakeLister) List(page int) (images.Listing, error) {
	return f.listing, f.err
}

type appFixture struct {
	app       *fiber.App
	readme    *fakeReadme
	profile   *fakeProfile
	converter *fakeConverter
	lister    *fakeLister
}

func newTestApp(t *testing.T) *appFixture {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	fx := &appFixture{
		readme:    &fakeReadme{result: github.ReadmeResult{Success: true, Content: "<h1>ok</h1>", Source: github.SourceLive}},
		profile:   &fakeProfile{},
		converter: &fakeConverter{},
		lister:    &fakeLister{},
	}

	app, err := NewApp(AppOptions{
		Logger:    logger,
		Readme:    fx.readme,
		Profile:   fx.profile,
		Converter: fx.converter,
		Lister:    fx.lister,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	fx.app = app
	return fx
}

func TestHealthz(t *testing.T) {
	fx := newTestApp(t)

	resp, err := fx.app.Test(httptest.NewRequest("GET", "/healthz", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("missing X-Request-ID header")
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestReadmeMissingURL(t *testing.T) {
	fx := newTestApp(t)

	resp, err := fx.app.Test(httptest.NewRequest("GET", "/readme-cache", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "No repository URL provided" {
		t.Fatalf("unexpected error message: %v", body["error"])
	}
}

func TestReadmeQueryParam(t *testing.T) {
	fx := newTestApp(t)

	req := httptest.NewRequest("GET", "/readme-cache?repo_url=https://github.com/moxopixel/site", nil)
	resp, err := fx.app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if fx.readme.lastOwner != "moxopixel" || fx.readme.lastRepo != "site" {
		t.Fatalf("unexpected parse: %s/%s", fx.readme.lastOwner, fx.readme.lastRepo)
	}

	var result github.ReadmeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !result.Success || result.Content != "<h1>ok</h1>" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestReadmePostBody(t *testing.T) {
	fx := newTestApp(t)

	payload := strings.NewReader(`{"repo_url":"moxopixel/portfolio"}`)
	req := httptest.NewRequest("POST", "/readme-cache", payload)
	req.Header.Set("Content-Type", "application/json")

	resp, err := fx.app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if fx.readme.lastOwner != "moxopixel" || fx.readme.lastRepo != "portfolio" {
		t.Fatalf("unexpected parse: %s/%s", fx.readme.lastOwner, fx.readme.lastRepo)
	}
}

func TestReadmeInvalidURL(t *testing.T) {
	fx := newTestApp(t)

	resp, err := fx.app.Test(httptest.NewRequest("GET", "/readme-cache?repo_url=justoneword", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "Invalid GitHub URL format" {
		t.Fatalf("unexpected error message: %v", body["error"])
	}
}

func TestReadmeClearCache(t *testing.T) {
	fx := newTestApp(t)

	req := httptest.NewRequest("GET", "/readme-cache?repo_url=moxopixel/site&clear_cache=true", nil)
	if _, err := fx.app.Test(req); err != nil {
		t.Fatalf("request: %v", err)
	}
	if fx.readme.cleared != 1 {
		t.Fatalf("expected one cache clear, got %d", fx.readme.cleared)
	}
}

func TestProfileTypeRouting(t *testing.T) {
	fx := newTestApp(t)

	cases := []struct {
		url string
	}{
		{"/profile-cache?type=user"},
		{"/profile-cache?type=repos"},
		{"/profile-cache?type=all"},
		{"/profile-cache"},
	}
	for _, tc := range cases {
		resp, err := fx.app.Test(httptest.NewRequest("GET", tc.url, nil))
		if err != nil {
			t.Fatalf("request %s: %v", tc.url, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("%s: unexpected status %d", tc.url, resp.StatusCode)
		}
	}

	if fx.profile.userCalls != 1 || fx.profile.repoCalls != 1 || fx.profile.allCalls != 2 {
		t.Fatalf("unexpected dispatch: user=%d repos=%d all=%d",
			fx.profile.userCalls, fx.profile.repoCalls, fx.profile.allCalls)
	}
}

func TestProfilePostBodyType(t *testing.T) {
	fx := newTestApp(t)

	payload := strings.NewReader(`{"type":"repos"}`)
	req := httptest.NewRequest("POST", "/profile-cache", payload)
	req.Header.Set("Content-Type", "application/json")

	if _, err := fx.app.Test(req); err != nil {
		t.Fatalf("request: %v", err)
	}
	if fx.profile.repoCalls != 1 {
		t.Fatalf("expected repos dispatch, got user=%d repos=%d all=%d",
			fx.profile.userCalls, fx.profile.repoCalls, fx.profile.allCalls)
	}
}

func TestProfileClearCache(t *testing.T) {
	fx := newTestApp(t)

	req := httptest.NewRequest("GET", "/profile-cache?clear_cache=true", nil)
	if _, err := fx.app.Test(req); err != nil {
		t.Fatalf("request: %v", err)
	}
	if fx.profile.clearCalls != 1 {
		t.Fatalf("expected one clear, got %d", fx.profile.clearCalls)
	}
}

func TestConvertImageSuccess(t *testing.T) {
	fx := newTestApp(t)

	derived := filepath.Join(t.TempDir(), "photo.webp")
	if err := os.WriteFile(derived, []byte("webp-data"), 0o644); err != nil {
		t.Fatalf("write derived: %v", err)
	}
	fx.converter.path = derived

	resp, err := fx.app.Test(httptest.NewRequest("GET", "/convert-image?src=dump/photo.png", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/webp" {
		t.Fatalf("unexpected content type: %q", ct)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(data) != "webp-data" {
		t.Fatalf("unexpected body: %q", data)
	}
}

func TestConvertImageFailure(t *testing.T) {
	fx := newTestApp(t)
	fx.converter.err = &images.ConversionError{Source: "dump/broken.png", Err: errors.New("decode failed")}

	resp, err := fx.app.Test(httptest.NewRequest("GET", "/convert-image?src=dump/broken.png", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(data) != "Failed to convert image to WebP." {
		t.Fatalf("unexpected body: %q", data)
	}
}

func TestConvertImageMissingSrc(t *testing.T) {
	fx := newTestApp(t)

	resp, err := fx.app.Test(httptest.NewRequest("GET", "/convert-image", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestListImages(t *testing.T) {
	fx := newTestApp(t)
	fx.lister.listing = images.Listing{
		Images: []string{"a.jpg", "b.png"},
		Pagination: images.Pagination{
			CurrentPage: 1, TotalPages: 1, ImagesPerPage: 12, TotalImages: 2,
		},
	}

	resp, err := fx.app.Test(httptest.NewRequest("GET", "/list-images?page=1", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var listing images.Listing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(listing.Images) != 2 || listing.Pagination.TotalImages != 2 {
		t.Fatalf("unexpected listing: %+v", listing)
	}
}

func TestListImagesError(t *testing.T) {
	fx := newTestApp(t)
	fx.lister.err = errors.New("dir gone")

	resp, err := fx.app.Test(httptest.NewRequest("GET", "/list-images", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestBasePathPrefix(t *testing.T) {
	fx := newTestApp(t)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	app, err := NewApp(AppOptions{
		Logger:    logger,
		Readme:    fx.readme,
		Profile:   fx.profile,
		Converter: fx.converter,
		Lister:    fx.lister,
		BasePath:  "/moxo",
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/moxo/healthz", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("unexpected status under prefix: %d", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/healthz", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 off-prefix, got %d", resp.StatusCode)
	}
}

func TestNewAppRequiresDeps(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	if _, err := NewApp(AppOptions{Logger: logger}); err == nil {
		t.Fatalf("expected error for missing providers")
	}
	if _, err := NewApp(AppOptions{}); err == nil {
		t.Fatalf("expected error for missing logger")
	}
}

func TestParseRepoURL(t *testing.T) {
	cases := []struct {
		in        string
		owner     string
		repo      string
		expectErr bool
	}{
		{"https://github.com/moxopixel/site", "moxopixel", "site", false},
		{"https://github.com/moxopixel/site/", "moxopixel", "site", false},
		{"https://github.com/moxopixel/site/tree/main", "moxopixel", "site", false},
		{"http://github.com/moxopixel/site", "moxopixel", "site", false},
		{"moxopixel/site", "moxopixel", "site", false},
		{"https://github.com/onlyowner", "", "", true},
		{"", "", "", true},
		{"//", "", "", true},
	}

	for _, tc := range cases {
		owner, repo, err := parseRepoURL(tc.in)
		if tc.expectErr {
			if err == nil {
				t.Fatalf("%q: expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tc.in, err)
		}
		if owner != tc.owner || repo != tc.repo {
			t.Fatalf("%q: got %s/%s want %s/%s", tc.in, owner, repo, tc.owner, tc.repo)
		}
	}
}
