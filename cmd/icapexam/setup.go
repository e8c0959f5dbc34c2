package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pavelanni/icapexam/internal/auth"
	"github.com/pavelanni/icapexam/internal/evaluator"
	"github.com/pavelanni/icapexam/internal/llm"
	"github.com/pavelanni/icapexam/internal/model"
	"github.com/pavelanni/icapexam/internal/snapshot"
	"github.com/pavelanni/icapexam/internal/store"
)

// loadDocuments imports the users and chapters documents once. The database
// is authoritative afterwards: a changed file is reported and skipped. With no
// chapters at all, the default chapter is seeded.
func loadDocuments(db *store.Store, usersPath, chaptersPath string) error {
	if err := importFile(db, usersPath, func(data []byte) (int, error) {
		var doc model.UsersDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return 0, err
		}
		return len(doc), db.ImportUsers(doc)
	}); err != nil {
		return err
	}
	if err := importFile(db, chaptersPath, func(data []byte) (int, error) {
		var doc model.ChaptersDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return 0, err
		}
		return len(doc), db.ImportChapters(doc)
	}); err != nil {
		return err
	}

	count, err := db.ChapterCount()
	if err != nil {
		return err
	}
	if count == 0 {
		if err := db.ImportChapters(model.DefaultChapters()); err != nil {
			return fmt.Errorf("seed default chapters: %w", err)
		}
		slog.Info("seeded default chapters")
	}
	return nil
}

func importFile(db *store.Store, path string, load func([]byte) (int, error)) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	hash := sha256sum(data)
	storedHash, err := db.GetImportedFileHash(path)
	if err != nil {
		return fmt.Errorf("check import status for %s: %w", path, err)
	}
	if storedHash == hash {
		slog.Debug("document unchanged, skipping", "path", path)
		return nil
	}
	if storedHash != "" {
		slog.Warn("document changed since last import, skipping; the database is authoritative", "path", path)
		return nil
	}

	n, err := load(data)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	if err := db.SetImportedFileHash(path, hash); err != nil {
		return fmt.Errorf("record import for %s: %w", path, err)
	}
	slog.Info("imported document", "path", path, "entries", n)
	return nil
}

// writeSeedDocuments creates the users and chapters files from the database on
// first run. Existing files are left alone. The written content is recorded as
// imported so the next start does not treat it as a changed document.
func writeSeedDocuments(db *store.Store, usersPath, chaptersPath string) error {
	if err := writeSeedFile(db, usersPath, func() (any, error) { return db.ExportUsers() }); err != nil {
		return err
	}
	return writeSeedFile(db, chaptersPath, func() (any, error) { return db.ExportChapters() })
}

func writeSeedFile(db *store.Store, path string, build func() (any, error)) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err == nil || !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	doc, err := build()
	if err != nil {
		return fmt.Errorf("build %s: %w", path, err)
	}
	if err := snapshot.WriteFile(path, doc, snapshot.FormatJSON); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read back %s: %w", path, err)
	}
	if err := db.SetImportedFileHash(path, sha256sum(data)); err != nil {
		return fmt.Errorf("record seed for %s: %w", path, err)
	}
	slog.Info("wrote seed document", "path", path)
	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// seedDemoUsers creates "user:password" accounts when no users exist.
func seedDemoUsers(db *store.Store, entries []string) error {
	if len(entries) == 0 {
		return nil
	}
	count, err := db.UserCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for _, e := range entries {
		username, password, ok := strings.Cut(e, ":")
		if !ok || username == "" || password == "" {
			return fmt.Errorf("demo user %q: want user:password", e)
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		if err := db.UpsertUser(model.User{Username: username, Password: hash}); err != nil {
			return fmt.Errorf("create demo user %s: %w", username, err)
		}
		slog.Info("seeded demo user", "username", username)
	}
	return nil
}

func adminPasswordHash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("admin password is required: set --admin-password flag or ICAPEXAM_ADMIN_PASSWORD env var")
	}
	return auth.HashPassword(password)
}

func adminSessions(db *store.Store, kind, tokenFile string) (auth.AdminSessions, error) {
	switch strings.ToLower(kind) {
	case "", "db":
		return db, nil
	case "memory":
		return auth.NewMemorySessions(), nil
	case "file":
		if tokenFile == "" {
			return nil, errors.New("admin-token-file is required with --admin-session=file")
		}
		return auth.NewFileSessions(tokenFile), nil
	}
	return nil, fmt.Errorf("unknown admin-session %q (want db, memory or file)", kind)
}

// newRemoteGrader builds the configured remote grader. It returns a nil
// grader when remote grading is off. The returned func releases resources.
func newRemoteGrader(ctx context.Context, v *viper.Viper, promptVariant string) (evaluator.Remote, func(), error) {
	noop := func() {}
	provider, err := llm.ResolveProvider(v.GetString("llm-provider"), v.GetString("llm-key"), v.GetString("gemini-key"))
	if err != nil {
		return nil, noop, err
	}

	switch provider {
	case llm.ProviderGemini:
		g, err := llm.NewGemini(ctx, v.GetString("gemini-key"), v.GetString("gemini-model"), promptVariant)
		if err != nil {
			return nil, noop, err
		}
		slog.Info("remote grader enabled", "provider", provider, "model", v.GetString("gemini-model"))
		return g, func() { _ = g.Close() }, nil

	case llm.ProviderOpenAI:
		c, err := llm.New(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("llm-model"), promptVariant)
		if err != nil {
			return nil, noop, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := c.Ping(pingCtx); err != nil {
			slog.Warn("LLM health check failed, answers fall back to the heuristic when it is unreachable",
				"url", v.GetString("llm-url"), "error", err)
		} else {
			slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
		}
		return c, noop, nil
	}

	slog.Info("remote grading disabled, using the local heuristic")
	return nil, noop, nil
}
