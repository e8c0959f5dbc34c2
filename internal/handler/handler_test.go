package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/icapexam/internal/auth"
	"github.com/pavelanni/icapexam/internal/chapter"
	"github.com/pavelanni/icapexam/internal/evaluator"
	appI18n "github.com/pavelanni/icapexam/internal/i18n"
	"github.com/pavelanni/icapexam/internal/model"
	"github.com/pavelanni/icapexam/internal/ocr"
	"github.com/pavelanni/icapexam/internal/store"
)

type testEnv struct {
	router http.Handler
	store  *store.Store
}

type fakeOCR struct {
	text string
	got  []byte
}

func (f *fakeOCR) Extract(_ context.Context, r io.Reader) (string, error) {
	f.got, _ = io.ReadAll(r)
	return f.text, nil
}

type panicRemote struct{}

func (panicRemote) Grade(context.Context, model.Submission) (string, error) {
	panic("grader exploded")
}

func newTestEnv(t *testing.T, extractor ocr.Extractor, staticDir string, opts ...evaluator.Option) *testEnv {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := s.UpsertUser(model.User{Username: "ali", Password: "pass"}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if err := s.ImportChapters(model.DefaultChapters()); err != nil {
		t.Fatalf("seed chapters: %v", err)
	}

	authSvc := auth.New(s, s, auth.Config{AdminUsername: "admin", AdminPasswordHash: string(hash), DemoChapter: 1})
	h := New(authSvc, chapter.New(s), evaluator.New(evaluator.DefaultRules(), opts...), extractor,
		model.ServerConfig{StaticDir: staticDir})
	h.now = func() time.Time { return time.Date(2025, time.May, 1, 9, 30, 0, 0, time.UTC) }

	r := chi.NewRouter()
	r.Use(NoStore)
	r.Use(appI18n.Middleware("en"))
	h.Routes(r)
	return &testEnv{router: r, store: s}
}

func (e *testEnv) do(t *testing.T, method, path, adminToken string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if adminToken != "" {
		req.Header.Set("Admin-Token", adminToken)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s %s response %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec, out
}

func (e *testEnv) adminLogin(t *testing.T) string {
	t.Helper()
	rec, out := e.do(t, http.MethodPost, "/admin/login", "", map[string]string{"username": "admin", "password": "admin123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("admin login: status %d", rec.Code)
	}
	return out["admin_token"].(string)
}

func TestLoginAndVerify(t *testing.T) {
	env := newTestEnv(t, nil, "")

	rec, out := env.do(t, http.MethodPost, "/login", "", map[string]string{"username": "ali", "password": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d", rec.Code)
	}
	if out["success"] != false || out["message"] != "Invalid credentials" || out["token"] != nil {
		t.Errorf("bad login body = %v", out)
	}

	rec, out = env.do(t, http.MethodPost, "/login", "", map[string]string{"username": "ali", "password": "pass"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d", rec.Code)
	}
	token, _ := out["token"].(string)
	if out["success"] != true || token == "" || out["username"] != "ali" {
		t.Fatalf("login body = %v", out)
	}

	tests := []struct {
		name      string
		body      string
		wantValid bool
		wantMode  string
	}{
		{"demo chapter 1", `{"chapter": 1}`, true, "demo"},
		{"demo chapter string", `{"chapter": "1"}`, true, "demo"},
		{"demo chapter 2", `{"chapter": 2}`, false, "demo"},
		{"login any chapter", `{"token": "` + token + `", "chapter": 9}`, true, "login"},
		{"invalid token", `{"token": "nope", "chapter": 1}`, false, "invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, out := env.do(t, http.MethodPost, "/verify", "", tt.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			if out["valid"] != tt.wantValid || out["mode"] != tt.wantMode {
				t.Errorf("got %v, want valid=%v mode=%s", out, tt.wantValid, tt.wantMode)
			}
		})
	}
}

func TestGetChapter(t *testing.T) {
	env := newTestEnv(t, nil, "")

	rec, out := env.do(t, http.MethodGet, "/chapter/chapter1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if out["name"] != "Introduction to Law" {
		t.Errorf("chapter = %v", out)
	}
	if qs, _ := out["questions"].([]any); len(qs) != 2 {
		t.Errorf("questions = %v", out["questions"])
	}

	rec, out = env.do(t, http.MethodGet, "/chapter/chapter42", "", nil)
	if rec.Code != http.StatusNotFound || out["error"] != "Chapter not found" {
		t.Errorf("missing chapter: %d %v", rec.Code, out)
	}
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	env := newTestEnv(t, nil, "")
	update := map[string]any{"chapter_id": "ch9", "name": "x", "questions": []any{}}

	rec, out := env.do(t, http.MethodPost, "/admin/update-chapter", "", update)
	if rec.Code != http.StatusForbidden || out["error"] != "No admin token provided" {
		t.Errorf("no header: %d %v", rec.Code, out)
	}
	rec, out = env.do(t, http.MethodPost, "/admin/update-chapter", "guess", update)
	if rec.Code != http.StatusForbidden || out["error"] != "Admin not initialized" {
		t.Errorf("before admin login: %d %v", rec.Code, out)
	}

	token := env.adminLogin(t)
	requests := []struct {
		method, path string
		body         any
	}{
		{http.MethodPost, "/admin/update-chapter", update},
		{http.MethodPost, "/admin/add-user", map[string]string{"user": "x", "pass": "y"}},
		{http.MethodGet, "/admin/chapters", nil},
		{http.MethodDelete, "/admin/delete-chapter/chapter1", nil},
	}
	for _, rq := range requests {
		rec, out := env.do(t, rq.method, rq.path, token+"x", rq.body)
		if rec.Code != http.StatusForbidden || out["error"] != "Unauthorized" {
			t.Errorf("%s %s with wrong token: %d %v", rq.method, rq.path, rec.Code, out)
		}
	}

	if c, _ := env.store.GetChapter("ch9"); c != nil {
		t.Error("rejected update must not write")
	}
	if c, _ := env.store.GetChapter("chapter1"); c == nil {
		t.Error("rejected delete must not remove the chapter")
	}
}

func TestAdminLoginInvalidatesPreviousToken(t *testing.T) {
	env := newTestEnv(t, nil, "")

	rec, out := env.do(t, http.MethodPost, "/admin/login", "", map[string]string{"username": "admin", "password": "nope"})
	if rec.Code != http.StatusUnauthorized || out["success"] != false {
		t.Errorf("bad admin login: %d %v", rec.Code, out)
	}

	first := env.adminLogin(t)
	second := env.adminLogin(t)
	if rec, _ := env.do(t, http.MethodGet, "/admin/chapters", first, nil); rec.Code != http.StatusForbidden {
		t.Errorf("old admin token still accepted: %d", rec.Code)
	}
	if rec, _ := env.do(t, http.MethodGet, "/admin/chapters", second, nil); rec.Code != http.StatusOK {
		t.Errorf("new admin token rejected: %d", rec.Code)
	}
}

func TestChapterAdminLifecycle(t *testing.T) {
	env := newTestEnv(t, nil, "")
	token := env.adminLogin(t)

	questions := []map[string]any{
		{"id": "q1", "text": "Define agency.", "marks": 5},
		{"id": "q2", "text": "Who is a sub-agent?", "marks": 3},
	}
	for i, id := range []string{"ch9", "  ch9 "} {
		body := map[string]any{"chapter_id": id, "name": "Agency", "questions": questions}
		rec, out := env.do(t, http.MethodPost, "/admin/update-chapter", token, body)
		if rec.Code != http.StatusOK {
			t.Fatalf("update #%d: %d %v", i, rec.Code, out)
		}
		if out["success"] != true || out["updated"] != "ch9" || out["questions_count"] != float64(2) {
			t.Errorf("update #%d body = %v", i, out)
		}
		if out["message"] != "Chapter saved with 2 questions." {
			t.Errorf("message = %v", out["message"])
		}
	}

	rec, out := env.do(t, http.MethodGet, "/chapter/ch9", "", nil)
	if rec.Code != http.StatusOK || out["name"] != "Agency" {
		t.Fatalf("get ch9: %d %v", rec.Code, out)
	}
	got, _ := json.Marshal(out["questions"])
	want, _ := json.Marshal(questions)
	if string(got) != string(want) {
		t.Errorf("questions = %s, want %s", got, want)
	}

	rec, out = env.do(t, http.MethodGet, "/admin/chapters", token, nil)
	if rec.Code != http.StatusOK || out["count"] != float64(2) {
		t.Errorf("list chapters: %d %v", rec.Code, out)
	}

	rec, out = env.do(t, http.MethodDelete, "/admin/delete-chapter/ch9", token, nil)
	if rec.Code != http.StatusOK || out["deleted"] != "ch9" {
		t.Errorf("delete: %d %v", rec.Code, out)
	}
	rec, _ = env.do(t, http.MethodDelete, "/admin/delete-chapter/ch9", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestUpdateChapterValidation(t *testing.T) {
	env := newTestEnv(t, nil, "")
	token := env.adminLogin(t)

	tests := []struct {
		name string
		body any
	}{
		{"missing chapter_id", map[string]any{"name": "x", "questions": []any{}}},
		{"negative marks", map[string]any{"chapter_id": "c", "questions": []any{map[string]any{"id": "q", "text": "t", "marks": -1}}}},
		{"malformed json", `{"chapter_id": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := env.do(t, http.MethodPost, "/admin/update-chapter", token, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestAddUser(t *testing.T) {
	env := newTestEnv(t, nil, "")
	token := env.adminLogin(t)

	rec, out := env.do(t, http.MethodPost, "/admin/add-user", token, map[string]string{"user": "sara", "pass": "s3cret"})
	if rec.Code != http.StatusOK || out["added"] != "sara" {
		t.Fatalf("add-user: %d %v", rec.Code, out)
	}
	if rec, _ := env.do(t, http.MethodPost, "/login", "", map[string]string{"username": "sara", "password": "s3cret"}); rec.Code != http.StatusOK {
		t.Errorf("new user cannot log in: %d", rec.Code)
	}

	rec, _ = env.do(t, http.MethodPost, "/admin/add-user", token, map[string]string{"user": "sara"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing pass status = %d, want 400", rec.Code)
	}
}

func TestCheckToken(t *testing.T) {
	env := newTestEnv(t, nil, "")

	_, out := env.do(t, http.MethodPost, "/admin/check-token", "", nil)
	if out["token_provided"] != false || out["token_valid"] != false || out["admin_token_exists"] != false {
		t.Errorf("fresh check = %v", out)
	}

	token := env.adminLogin(t)
	_, out = env.do(t, http.MethodPost, "/admin/check-token", token, nil)
	if out["token_provided"] != true || out["token_valid"] != true || out["admin_token_exists"] != true {
		t.Errorf("valid check = %v", out)
	}
	if out["message"] != "Admin token is valid" {
		t.Errorf("message = %v", out["message"])
	}

	_, out = env.do(t, http.MethodPost, "/admin/check-token", "wrong", nil)
	if out["token_valid"] != false || out["admin_token_exists"] != true {
		t.Errorf("wrong token check = %v", out)
	}
}

func TestCheckAnswer(t *testing.T) {
	env := newTestEnv(t, nil, "")

	rec, out := env.do(t, http.MethodPost, "/check-answer", "", map[string]any{
		"answer":  "Mitochondria is the powerhouse of the cell",
		"chapter": 1,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if out["status"] != "success" || out["chapter"] != float64(1) || out["timestamp"] != "2025-05-01 09:30:00" {
		t.Errorf("body = %v", out)
	}
	result, _ := out["result"].(string)
	for _, want := range []string{"🎓 ICAP AI EXAMINER - CHAPTER 1", "FINAL SCORE: 1/10", "Topic mismatch", "📅 01 May 2025, 09:30 AM"} {
		if !strings.Contains(result, want) {
			t.Errorf("result missing %q:\n%s", want, result)
		}
	}
	verdict, _ := out["verdict"].(map[string]any)
	if verdict["score"] != "1/10" || verdict["source"] != "heuristic" {
		t.Errorf("verdict = %v", verdict)
	}
	if rec.Header().Get("Cache-Control") == "" {
		t.Error("expected no-store cache headers")
	}
}

func TestCheckAnswerNeverFails(t *testing.T) {
	tests := []struct {
		name string
		opts []evaluator.Option
		body any
	}{
		{"malformed body", nil, `{"answer": `},
		{"grader panic", []evaluator.Option{evaluator.WithRemote(panicRemote{})}, map[string]any{"answer": "contract law", "chapter": 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil, "", tt.opts...)
			rec, out := env.do(t, http.MethodPost, "/check-answer", "", tt.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if out["status"] != "processing" {
				t.Errorf("status field = %v", out["status"])
			}
			if res, _ := out["result"].(string); !strings.Contains(res, "Pending AI Analysis") {
				t.Errorf("result = %q", res)
			}
			if e, _ := out["error"].(string); e == "" || len([]rune(e)) > maxErrorLen {
				t.Errorf("error = %q", e)
			}
		})
	}
}

func TestCheckAnswerUsesOCR(t *testing.T) {
	extractor := &fakeOCR{text: "The contract act section applies in court"}
	env := newTestEnv(t, extractor, "")
	img := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png-bytes"))

	_, out := env.do(t, http.MethodPost, "/check-answer", "", map[string]any{"answer": "see image", "image": img, "chapter": "3"})
	if out["status"] != "success" {
		t.Fatalf("body = %v", out)
	}
	if string(extractor.got) != "png-bytes" {
		t.Errorf("OCR received %q", extractor.got)
	}
	verdict, _ := out["verdict"].(map[string]any)
	if verdict["score"] == "1/10" {
		t.Errorf("OCR text should raise the score, verdict = %v", verdict)
	}

	_, out = env.do(t, http.MethodPost, "/check-answer", "", map[string]any{"answer": "see image", "image": "data:image/png;base64,@@", "chapter": 3})
	if out["status"] != "success" {
		t.Errorf("bad image must not fail evaluation: %v", out)
	}
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>ICAP</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	env := newTestEnv(t, nil, dir)

	rec, _ := env.do(t, http.MethodGet, "/", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "<h1>ICAP</h1>") {
		t.Errorf("index: %d %q", rec.Code, rec.Body.String())
	}
	if rec, _ := env.do(t, http.MethodGet, "/missing.html", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing file status = %d", rec.Code)
	}
}
