package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/icapexam/internal/auth"
	"github.com/pavelanni/icapexam/internal/chapter"
	"github.com/pavelanni/icapexam/internal/evaluator"
	"github.com/pavelanni/icapexam/internal/handler"
	appI18n "github.com/pavelanni/icapexam/internal/i18n"
	"github.com/pavelanni/icapexam/internal/llm"
	"github.com/pavelanni/icapexam/internal/llm/prompts"
	"github.com/pavelanni/icapexam/internal/model"
	"github.com/pavelanni/icapexam/internal/ocr"
	"github.com/pavelanni/icapexam/internal/snapshot"
	"github.com/pavelanni/icapexam/internal/store"
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "icapexam",
		Short: "ICAP Business Law exam practice backend",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `icapexam --port ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.String("host", "0.0.0.0", "HTTP listen host")
	f.IntP("port", "p", 5000, "HTTP listen port (or set PORT)")
	f.String("db", "icapexam.db", "SQLite database path")
	f.String("static-dir", "static", "Directory of static files served at / (empty disables)")
	f.String("users-file", "users.json", "Users document imported once on first run")
	f.String("chapters-file", "chapters.json", "Chapters document imported once on first run")
	f.String("admin-username", "admin", "Admin login name")
	f.String("admin-password", "", "Admin password (or set ICAPEXAM_ADMIN_PASSWORD)")
	f.String("admin-session", "db", "Where the admin session is kept (db, memory, file)")
	f.String("admin-token-file", "admin_token.txt", "Admin token file used with --admin-session=file")
	f.StringSlice("demo-users", nil, "Users seeded into an empty store, as user:password (repeatable)")
	f.Int("demo-chapter", 1, "Chapter number readable without logging in")
	f.String("llm-provider", string(llm.ProviderAuto), "Remote grader (auto, openai, gemini, none)")
	f.String("llm-url", "https://api.openai.com/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "", "API key for the OpenAI-compatible endpoint")
	f.String("llm-model", "gpt-4o-mini", "Model name for the OpenAI-compatible endpoint")
	f.String("gemini-key", "", "Google AI API key (or set GOOGLE_AI_KEY)")
	f.String("gemini-model", llm.DefaultGeminiModel, "Gemini model name")
	f.Duration("llm-timeout", evaluator.DefaultRemoteTimeout, "Timeout for one remote grading call")
	f.Int("llm-min-length", evaluator.DefaultMinRemoteLength, "Characters a remote grading reply must exceed to be used")
	f.String("prompt-variant", string(prompts.PromptStrict), "Grading prompt variant (strict, standard, lenient)")
	f.Bool("ocr", true, "Extract text from answer images with tesseract")
	f.String("ocr-lang", "eng", "Tesseract language")
	f.Duration("ocr-timeout", 20*time.Second, "Timeout for one OCR run")
	f.StringSlice("cors-origins", []string{"*"}, "Allowed CORS origins")
	f.StringP("lang", "l", "en", "Default language for reports (en, ru)")
	f.String("snapshot-cron", "", "Cron schedule for writing users and chapters files (empty disables)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export users|chapters",
		Short: "Export users or chapters as a JSON or YAML document",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "icapexam.db", "SQLite database path")
	f.StringP("format", "f", "json", "Output format (json, yaml)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("ICAPEXAM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// Names used by existing deployments.
	_ = v.BindEnv("port", "ICAPEXAM_PORT", "PORT")
	_ = v.BindEnv("gemini-key", "ICAPEXAM_GEMINI_KEY", "GOOGLE_AI_KEY")

	v.SetConfigName("icapexam")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/icapexam")
	v.AddConfigPath("/etc/icapexam")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := loadDocuments(db, v.GetString("users-file"), v.GetString("chapters-file")); err != nil {
		return fmt.Errorf("load documents: %w", err)
	}
	if err := seedDemoUsers(db, v.GetStringSlice("demo-users")); err != nil {
		return fmt.Errorf("seed demo users: %w", err)
	}
	if err := writeSeedDocuments(db, v.GetString("users-file"), v.GetString("chapters-file")); err != nil {
		return fmt.Errorf("write seed documents: %w", err)
	}

	adminHash, err := adminPasswordHash(v.GetString("admin-password"))
	if err != nil {
		return err
	}
	sessions, err := adminSessions(db, v.GetString("admin-session"), v.GetString("admin-token-file"))
	if err != nil {
		return err
	}
	authSvc := auth.New(db, sessions, auth.Config{
		AdminUsername:     v.GetString("admin-username"),
		AdminPasswordHash: adminHash,
		DemoChapter:       v.GetInt("demo-chapter"),
	})

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	promptVariant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
	if !prompts.IsValidVariant(promptVariant) {
		slog.Warn("invalid prompt-variant, using strict", "variant", promptVariant)
		promptVariant = string(prompts.PromptStrict)
	}
	remote, closeRemote, err := newRemoteGrader(ctx, v, promptVariant)
	if err != nil {
		return fmt.Errorf("create remote grader: %w", err)
	}
	defer closeRemote()

	evalOpts := []evaluator.Option{
		evaluator.WithTimeout(v.GetDuration("llm-timeout")),
		evaluator.WithMinRemoteLength(v.GetInt("llm-min-length")),
	}
	if remote != nil {
		evalOpts = append(evalOpts, evaluator.WithRemote(remote))
	}
	eval := evaluator.New(evaluator.DefaultRules(), evalOpts...)

	var extractor ocr.Extractor
	if v.GetBool("ocr") {
		tess := ocr.NewTesseract(v.GetString("ocr-lang"), v.GetDuration("ocr-timeout"))
		if tess.Available() {
			extractor = tess
		} else {
			slog.Warn("tesseract not installed, image answers will be graded on typed text only")
		}
	}

	serverCfg := model.ServerConfig{
		StaticDir:   v.GetString("static-dir"),
		CORSOrigins: v.GetStringSlice("cors-origins"),
	}
	h := handler.New(authSvc, chapter.New(db), eval, extractor, serverCfg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: serverCfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Admin-Token", "Accept-Language"},
		MaxAge:         300,
	}))
	r.Use(handler.NoStore)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	if spec := v.GetString("snapshot-cron"); spec != "" {
		w := snapshot.NewWriter(db, v.GetString("users-file"), v.GetString("chapters-file"), snapshot.FormatJSON)
		c, err := snapshot.Schedule(spec, w)
		if err != nil {
			return err
		}
		defer func() { <-c.Stop().Done() }()
		slog.Info("snapshots scheduled", "cron", spec)
	}

	addr := net.JoinHostPort(v.GetString("host"), strconv.Itoa(v.GetInt("port")))
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	slog.Info("starting server",
		"addr", addr,
		"static_dir", serverCfg.StaticDir,
		"remote_grader", eval.HasRemote(),
		"ocr", extractor != nil,
		"admin_session", v.GetString("admin-session"),
		"lang", lang,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	f, err := snapshot.ParseFormat(strings.ToLower(v.GetString("format")))
	if err != nil {
		return err
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var doc any
	switch args[0] {
	case "users":
		doc, err = db.ExportUsers()
	case "chapters":
		doc, err = db.ExportChapters()
	default:
		return fmt.Errorf("unknown document %q (want users or chapters)", args[0])
	}
	if err != nil {
		return fmt.Errorf("export %s: %w", args[0], err)
	}

	outPath := v.GetString("output")
	if outPath != "" && outPath != "-" {
		return snapshot.WriteFile(outPath, doc, f)
	}
	return snapshot.Encode(os.Stdout, doc, f)
}
