package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/anubis/internal/docservice"
	"github.com/starford/anubis/internal/lang"
	"github.com/starford/anubis/internal/metrics"
	"github.com/starford/anubis/internal/models"
	"github.com/starford/anubis/internal/render"
	"github.com/starford/anubis/internal/sse"
	"github.com/starford/anubis/internal/store"
)

// testService builds a rendered store and wraps it in a docservice.
// templateDir, if non-empty, overrides the built-in templates.
func testService(t *testing.T, templateDir string) *docservice.Service {
	t.Helper()
	tpl, err := render.LoadTemplates(templateDir)
	if err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}

	st := store.New()
	rs := lang.Default()["rs"]
	st.Insert(models.Block{
		Info:    models.BlockInfo{Name: "Intro"},
		Content: []models.BlockContent{models.Markdown("Welcome aboard "), models.Link("Setup"), models.Embed("Shared")},
	}, rs)
	st.Insert(models.Block{
		Info:    models.BlockInfo{Name: "Shared"},
		Content: []models.BlockContent{models.Markdown("shared words")},
	}, rs)
	st.Insert(models.Block{
		Info:    models.BlockInfo{Name: "My Block"},
		Content: []models.BlockContent{models.Markdown("spaced name")},
	}, rs)
	st.Insert(models.Block{
		Info:    models.BlockInfo{Name: "Loop"},
		Content: []models.BlockContent{models.Embed("Loop")},
	}, rs)

	r := render.NewResolver(st, render.NewGoMarkdown(), tpl, render.ServeLinks("/"))
	for _, n := range []string{"Intro", "Shared", "My Block"} {
		if _, err := r.Render(n); err != nil {
			t.Fatalf("Render(%s): %v", n, err)
		}
	}
	return docservice.New(st, docservice.Options{Templates: tpl, BaseURL: "/"})
}

// testEnv mounts the site and API routers the way the server does.
func testEnv(t *testing.T, authToken string) (*docservice.Service, http.Handler) {
	t.Helper()
	svc := testService(t, "")
	return svc, mount(svc, authToken != "", authToken, nil)
}

func mount(svc *docservice.Service, authEnabled bool, token string, sseHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Mount("/api", NewRouter(svc, authEnabled, token, sseHandler))
	r.Mount("/", NewSiteRouter(svc, metrics.New()))
	return r
}

func get(t *testing.T, h http.Handler, path string, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHome(t *testing.T) {
	_, router := testEnv(t, "")
	w := get(t, router, "/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `<a href="/Intro">Intro</a>`) {
		t.Errorf("landing page missing Intro link: %s", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
}

func TestPage(t *testing.T) {
	_, router := testEnv(t, "")
	w := get(t, router, "/Intro", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	for _, want := range []string{"Welcome aboard", `<a href="/Setup">Setup</a>`, "shared words"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestPage_EncodedName(t *testing.T) {
	_, router := testEnv(t, "")
	w := get(t, router, "/My%20Block", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "spaced name") {
		t.Error("page body missing content")
	}
}

func TestPage_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	for _, p := range []string{"/Nobody", "/Setup"} {
		w := get(t, router, p, "")
		if w.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", p, w.Code)
		}
	}
}

func TestPage_RenderFailureIsServerError(t *testing.T) {
	_, router := testEnv(t, "")
	w := get(t, router, "/Loop", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("/Loop status = %d, want 500", w.Code)
	}
	if body := w.Body.String(); strings.Contains(body, "recursive") || strings.Contains(body, "render") {
		t.Errorf("error detail leaked: %q", body)
	}
}

func TestPage_TemplateFailureHidesDetail(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "page.html"), []byte(`{{.Missing.Field}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	svc := testService(t, dir)
	router := mount(svc, false, "", nil)

	w := get(t, router, "/Intro", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if strings.Contains(w.Body.String(), "Missing") {
		t.Errorf("error detail leaked: %q", w.Body.String())
	}
}

func TestSiteGraphEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	w := get(t, router, "/get/graph", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp GraphResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Nodes) != 5 {
		t.Errorf("nodes = %v", resp.Nodes)
	}
	if len(resp.Edges) != 3 {
		t.Errorf("edges = %v", resp.Edges)
	}
}

func TestListBlocks(t *testing.T) {
	_, router := testEnv(t, "")
	w := get(t, router, "/api/blocks", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp BlockListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 4 || len(resp.Blocks) != 4 {
		t.Errorf("unexpected list: %+v", resp)
	}
}

func TestGetBlock(t *testing.T) {
	_, router := testEnv(t, "")
	w := get(t, router, "/api/blocks/Intro", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var detail BlockDetail
	if err := json.Unmarshal(w.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if detail.Name != "Intro" || len(detail.Content) != 3 || detail.Language != "rust" {
		t.Errorf("unexpected detail: %+v", detail)
	}
}

func TestGetBlock_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	w := get(t, router, "/api/blocks/Nobody", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestConnectionsEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	w := get(t, router, "/api/blocks/Setup/connections", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ConnectionsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Connections) != 1 || resp.Connections[0].Name != "Intro" || resp.Connections[0].Kind != "link" {
		t.Errorf("unexpected connections: %+v", resp)
	}

	w = get(t, router, "/api/blocks/Nobody/connections", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown name status = %d, want 404", w.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	w := get(t, router, "/api/search?q=aboard", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp SearchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Name != "Intro" {
		t.Errorf("unexpected results: %+v", resp.Results)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")
	w := get(t, router, "/api/search", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	w := get(t, router, "/api/blocks", "secret123")
	if w.Code != http.StatusOK {
		t.Errorf("authed = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	w := get(t, router, "/api/blocks", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	w := get(t, router, "/api/blocks", "wrong")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_QueryToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	w := get(t, router, "/api/blocks?access_token=secret123", "")
	if w.Code != http.StatusOK {
		t.Errorf("query token = %d, want 200", w.Code)
	}
	w = get(t, router, "/api/blocks?access_token=nope", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong query token = %d, want 401", w.Code)
	}
	if got := w.Header().Get("WWW-Authenticate"); !strings.HasPrefix(got, "Bearer") {
		t.Errorf("WWW-Authenticate = %q", got)
	}
}

func TestAuthMiddleware_NonBearerScheme(t *testing.T) {
	_, router := testEnv(t, "secret123")
	req := httptest.NewRequest(http.MethodGet, "/api/blocks?access_token=secret123", nil)
	req.Header.Set("Authorization", "Basic c2VjcmV0MTIz")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("basic auth = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_SiteStaysPublic(t *testing.T) {
	_, router := testEnv(t, "secret123")
	w := get(t, router, "/Intro", "")
	if w.Code != http.StatusOK {
		t.Errorf("site page with auth enabled = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

func TestSSEEvents_AuthProtected(t *testing.T) {
	b := sse.NewBroker(time.Second)
	defer b.Close()
	router := mount(testService(t, ""), true, "secret", b)

	w := get(t, router, "/api/events", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	b := sse.NewBroker(time.Second)
	defer b.Close()
	router := mount(testService(t, ""), true, "tok", b)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
}
