// Package main is the Kioku CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/kioku/internal/cli"
	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/events"
	"github.com/hyperjump/kioku/internal/extract"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/persist"
	"github.com/hyperjump/kioku/internal/search"
	"github.com/hyperjump/kioku/internal/server"
	"github.com/hyperjump/kioku/internal/store"
	"github.com/hyperjump/kioku/internal/watcher"
	"github.com/hyperjump/kioku/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kioku/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if neither
// exists, built-in defaults are used.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "add":
		runAdd()
	case "ingest":
		runIngest()
	case "persist":
		runPersist()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kioku version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (search timing, file ingestion, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	// Drain operation notifications into the debug log.
	go func() {
		for ev := range components.Emitter.Events() {
			logger.Debug("operation event",
				zap.String("op", ev.Op),
				zap.String("id", ev.ID),
				zap.Int64("elapsed_ms", ev.ElapsedMS),
				zap.Bool("success", ev.Success))
		}
	}()

	// Restore the previous snapshot, if any.
	if _, err := components.Persister.Load(context.Background()); err != nil {
		logger.Warn("snapshot restore skipped", zap.Error(err))
	}
	if cfg.Storage.AutoPersist {
		components.Persister.EnableAutoPersist(time.Duration(cfg.Storage.AutoPersistIntervalSeconds) * time.Second)
		defer components.Persister.DisableAutoPersist()
	}

	st := components.Store
	chunkSize := cfg.Search.FileChunkSize
	watchOpts := []watcher.Option{}
	if debugMode {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	watchSvc := watcher.New(
		cfg.Watch.Directories,
		cfg.Watch.Extensions,
		func(path string) {
			// Re-ingest replaces any records that came from this file before.
			st.DeleteBySource(path)
			if _, err := st.ProcessFile(context.Background(), path, chunkSize); err != nil {
				logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
			}
		},
		func(path string) {
			st.DeleteBySource(path)
		},
		watchOpts...,
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if len(cfg.Watch.Directories) > 0 {
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		watchSvc.SyncExistingFiles()
	}

	srv := server.NewServer(
		components.Engine,
		components.Store,
		components.Persister,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	if _, err := components.Persister.Save(context.Background()); err != nil {
		logger.Warn("final snapshot save failed", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the
// query to the front of the slice so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	searchArgs := searchArgsReorder(os.Args[2:])

	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPathFlag := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = search the local snapshot directly)")
	topK := fs.Int("top-k", 0, "number of results (0 = config default)")
	threshold := fs.Float64("threshold", 0, "minimum cosine similarity (0 = config default)")
	noSnippets := fs.Bool("no-snippets", false, "disable snippet generation")
	objectives := fs.String("objectives", "", "comma-separated agent objectives for context-aware reranking")
	state := fs.String("state", "", "agent state for context-aware reranking")
	outputFormat := fs.String("output", "text", "output format: text (human-readable) or json (parseable)")
	_ = fs.Parse(searchArgs)

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		fmt.Println("Usage: kioku search [flags] <query>")
		os.Exit(1)
	}

	format := cli.OutputText
	switch *outputFormat {
	case "json":
		format = cli.OutputJSON
	case "text":
		format = cli.OutputText
	default:
		fmt.Printf("Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}

	opts := search.Options{TopK: *topK, SimilarityThreshold: *threshold}
	if *noSnippets {
		f := false
		opts.GenerateSnippets = &f
	}
	var agent *models.AgentContext
	if *objectives != "" || *state != "" {
		agent = &models.AgentContext{State: *state}
		for _, o := range strings.Split(*objectives, ",") {
			if o = strings.TrimSpace(o); o != "" {
				agent.Objectives = append(agent.Objectives, o)
			}
		}
	}

	if *serverURL != "" {
		response, err := searchViaHTTP(*serverURL, queryStr, opts, agent)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Direct mode: load the snapshot and search in-process.
	cfg, _, err := loadConfig(*configPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()
	if _, err := components.Persister.Load(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load snapshot: %v\n", err)
		os.Exit(1)
	}

	var response *models.SearchResponse
	if agent != nil {
		response, err = components.Engine.SearchWithContext(context.Background(), queryStr, *agent, opts)
	} else {
		response, err = components.Engine.Search(context.Background(), queryStr, opts)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL, query string, opts search.Options, agent *models.AgentContext) (*models.SearchResponse, error) {
	payload := map[string]interface{}{
		"query":                query,
		"top_k":                opts.TopK,
		"similarity_threshold": opts.SimilarityThreshold,
	}
	if opts.GenerateSnippets != nil {
		payload["generate_snippets"] = *opts.GenerateSnippets
	}
	endpoint := serverURL + "/api/v1/search"
	if agent != nil {
		payload["context"] = agent
		endpoint = serverURL + "/api/v1/search/context"
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runAdd() {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	metaFlag := fs.String("metadata", "", "record metadata as JSON object")
	_ = fs.Parse(os.Args[2:])

	content := buildSearchQuery(fs.Args())
	if content == "" {
		fmt.Println("Usage: kioku add [flags] <content>")
		os.Exit(1)
	}
	payload := map[string]interface{}{"content": content}
	if *metaFlag != "" {
		var meta map[string]interface{}
		if err := json.Unmarshal([]byte(*metaFlag), &meta); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid metadata JSON: %v\n", err)
			os.Exit(1)
		}
		payload["metadata"] = meta
	}
	body, _ := json.Marshal(payload)
	resp, err := http.Post(*serverURL+"/api/v1/records", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Add failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Record stored: %s\n", out.ID)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	chunkSize := fs.Int("chunk-size", 0, "chunk size in characters (0 = server default)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kioku ingest [flags] <file>")
		os.Exit(1)
	}
	path, _ := filepath.Abs(fs.Arg(0))
	body, _ := json.Marshal(map[string]interface{}{"path": path, "chunk_size": *chunkSize})
	resp, err := http.Post(*serverURL+"/api/v1/ingest", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Ingest failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var out struct {
		RecordsCreated int `json:"records_created"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Ingested %s: %d record(s)\n", path, out.RecordsCreated)
}

func runPersist() {
	fs := flag.NewFlagSet("persist", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	restore := fs.Bool("restore", false, "restore the snapshot instead of saving")
	_ = fs.Parse(os.Args[2:])

	endpoint := *serverURL + "/api/v1/persist"
	if *restore {
		endpoint = *serverURL + "/api/v1/restore"
	}
	resp, err := http.Post(endpoint, "application/json", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Persist failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	fmt.Println(strings.TrimSpace(string(b)))
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Status failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var status struct {
		Records       int                    `json:"records"`
		Dimensions    int                    `json:"dimensions"`
		UptimeSeconds int64                  `json:"uptime_seconds"`
		Config        map[string]interface{} `json:"config"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("records:         %d\n", status.Records)
		fmt.Printf("dimensions:      %d\n", status.Dimensions)
		fmt.Printf("uptime_seconds:  %d\n", status.UptimeSeconds)
		if len(status.Config) > 0 {
			fmt.Println()
			fmt.Println("# configuration")
			for _, key := range []string{
				"embedding_provider", "embedding_dimensions", "top_k",
				"similarity_threshold", "file_chunk_size", "data_dir", "auto_persist",
			} {
				if v, ok := status.Config[key]; ok {
					fmt.Printf("%-21s %v\n", key+":", v)
				}
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Embedder  embedding.Embedder
	Store     *store.Store
	Engine    *search.Engine
	Persister *persist.Manager
	Emitter   *events.Emitter
}

func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func newEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		return embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
	case "onnx":
		return embedding.NewONNXEmbedder(cfg.Embedding.ModelPath, cfg.Embedding.Dimensions, cfg.Embedding.MaxTokens)
	default:
		return embedding.NewMockEmbedder(cfg.Embedding.Dimensions), nil
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	emitter := events.NewEmitter(cfg.Events.BufferSize, logger)
	cache := embedding.NewEmbeddingCache(
		cfg.Embedding.CacheSize,
		time.Duration(cfg.Embedding.CacheTTLMinutes)*time.Minute,
	)
	st := store.New(
		store.WithEmbedder(embedder),
		store.WithCache(cache),
		store.WithExtractor(extract.NewExtractor()),
		store.WithEmitter(emitter),
		store.WithLogger(logger),
	)
	engine := search.NewEngine(st, search.WithEmitter(emitter), search.WithLogger(logger))
	persister := persist.NewManager(cfg.Storage.DataDir, st,
		persist.WithLogger(logger),
		persist.WithEmitter(emitter),
	)

	return &Components{
		Embedder:  embedder,
		Store:     st,
		Engine:    engine,
		Persister: persister,
		Emitter:   emitter,
	}, nil
}

func printUsage() {
	fmt.Println(`kioku - Semantic vector store and search server

Usage:
  kioku server [flags]            Start the HTTP server
  kioku search [flags] <query>    Search stored records
  kioku add [flags] <content>     Store a text record
  kioku ingest [flags] <file>     Chunk and store a file
  kioku persist [flags]           Save (or --restore) the on-disk snapshot
  kioku status [flags]            Show record counts and configuration
  kioku version                   Show version
  kioku help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kioku/config.yaml)
  --debug            Enable debug logging (search timing, file ingestion, etc.)

Search Flags:
  --config string       Config file path (direct mode only)
  --server string       Server URL (default: http://localhost:8080). Use empty (--server "") to search the local snapshot directly.
  --top-k int           Number of results (default from config)
  --threshold float     Minimum cosine similarity (default from config)
  --no-snippets         Disable snippet generation
  --objectives string   Comma-separated agent objectives (context-aware reranking)
  --state string        Agent state (context-aware reranking)
  --output string       Output format: text or json (default: text)

Examples:
  kioku server
  kioku add "the quick brown fox jumps over the lazy dog"
  kioku add --metadata '{"context_aware":true,"topic":"demo"}' "agent notes"
  kioku search quick brown fox
  kioku search --objectives "deployment,monitoring" --state "reviewing infra" rollout plan
  kioku ingest docs/handbook.md
  kioku persist
  kioku persist --restore
  kioku status --output json`)
}
