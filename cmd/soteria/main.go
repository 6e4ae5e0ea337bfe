// Command soteria runs the threat-screening service: the detection cascade,
// the verdict cache, and the guarded proxy endpoint over a configurable
// upstream core application.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/soteria-labs/soteria/pkg/api"
	"github.com/soteria-labs/soteria/pkg/cache"
	"github.com/soteria-labs/soteria/pkg/config"
	"github.com/soteria-labs/soteria/pkg/detect"
	"github.com/soteria-labs/soteria/pkg/embed"
	"github.com/soteria-labs/soteria/pkg/shield"
)

func main() {
	configPath := flag.String("config", os.Getenv("SOTERIA_CONFIG"), "Path to YAML config file")
	highSecurity := flag.Bool("high-security", false, "Use the strict profile as the config baseline")
	coreURL := flag.String("core-url", os.Getenv("SOTERIA_CORE_URL"), "Upstream core-logic endpoint for /v1/guard")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	cfg, err := loadConfig(*configPath, *highSecurity)
	if err != nil {
		exitWith("config: " + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, cleanup, err := build(ctx, cfg, *coreURL)
	if err != nil {
		exitWith(err.Error())
	}
	defer cleanup()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen(cfg.ListenAddr) }()

	select {
	case err := <-errCh:
		if err != nil {
			exitWith("serve: " + err.Error())
		}
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown", "err", err)
		}
	}
}

func loadConfig(path string, highSecurity bool) (*config.Config, error) {
	if highSecurity && path == "" {
		return config.HighSecurity(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if highSecurity {
		strict := config.HighSecurity()
		cfg.Detection.BlockThreshold = strict.Detection.BlockThreshold
		cfg.Detection.AllowThreshold = strict.Detection.AllowThreshold
		cfg.Detection.EscalateThreshold = strict.Detection.EscalateThreshold
		cfg.Shield.Speculative = strict.Shield.Speculative
	}
	return cfg, nil
}

// build assembles the pipeline bottom-up. A malformed pattern catalog or a
// missing required artifact is fatal here, before any traffic is served.
func build(ctx context.Context, cfg *config.Config, coreURL string) (*api.Server, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	catalog := detect.DefaultCatalog()
	if cfg.Detection.CatalogPath != "" {
		loaded, err := detect.LoadCatalog(cfg.Detection.CatalogPath)
		if err != nil {
			return nil, cleanup, fmt.Errorf("pattern catalog: %w", err)
		}
		catalog = loaded
	}
	matcher := detect.NewMatcher(catalog)
	slog.Info("pattern catalog loaded", "patterns", matcher.PatternCount())

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, cleanup, err
	}
	if closer, ok := embedder.(*embed.Local); ok {
		cleanups = append(cleanups, func() { closer.Close() })
	}

	anomaly, err := buildAnomaly(ctx, cfg, embedder)
	if err != nil {
		return nil, cleanup, err
	}

	reasoner, err := buildReasoner(cfg)
	if err != nil {
		return nil, cleanup, err
	}

	router := detect.NewRouter(embedder, anomaly, reasoner, detect.RouterConfig{
		BlockThreshold:   cfg.Detection.BlockThreshold,
		AllowThreshold:   cfg.Detection.AllowThreshold,
		ReasoningTimeout: cfg.ReasoningTimeout(),
	})
	arbiter := detect.NewArbiter(detect.ArbiterConfig{
		EscalateThreshold: cfg.Detection.EscalateThreshold,
	})
	engine := detect.NewEngine(matcher, router, arbiter)

	var remote cache.Remote
	if cfg.Cache.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		cleanups = append(cleanups, func() { client.Close() })
		remote = cache.NewRedisRemote(client, "")
		slog.Info("tier-3 cache enabled", "addr", cfg.Cache.RedisAddr)
	}
	store := cache.NewStore(cache.Config{
		ExactCapacity:       cfg.Cache.ExactCapacity,
		SemanticCapacity:    cfg.Cache.SemanticCapacity,
		SimilarityThreshold: cfg.Cache.SimilarityThreshold,
		TTL:                 cfg.CacheTTL(),
	}, embedder, remote)

	sink, err := buildFailureSink(ctx, cfg)
	if err != nil {
		return nil, cleanup, err
	}
	if sink != nil {
		cleanups = append(cleanups, func() { sink.Close() })
	}

	sh := shield.New(engine, store, shield.NewOutputValidator(reasoner), shield.Options{
		Speculative: cfg.SpeculativeEnabled(),
		CoreTimeout: cfg.CoreTimeout(),
		Sink:        sink,
	})

	obs, err := api.SetupObservability(ctx, cfg.Observer)
	if err != nil {
		return nil, cleanup, fmt.Errorf("observability: %w", err)
	}
	cleanups = append(cleanups, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		obs.Shutdown(shutdownCtx)
	})

	var core shield.CoreLogic
	if coreURL != "" {
		core = httpCore(coreURL, cfg.CoreTimeout())
	}

	return api.NewServer(sh, core, obs), cleanup, nil
}

func buildEmbedder(cfg *config.Config) (embed.Provider, error) {
	if cfg.Embedding.ModelPath == "" {
		slog.Info("no embedding model configured; anomaly and semantic-cache layers disabled")
		return nil, nil
	}
	local, err := embed.NewLocal(embed.LocalConfig{
		ModelPath:       cfg.Embedding.ModelPath,
		OnnxLibraryPath: cfg.Embedding.OnnxLibraryPath,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding model: %w", err)
	}
	return local, nil
}

func buildAnomaly(ctx context.Context, cfg *config.Config, embedder embed.Provider) (*detect.AnomalyClassifier, error) {
	if embedder == nil {
		return nil, nil
	}

	var artifact *detect.ModelArtifact
	if cfg.Detection.ArtifactDir != "" {
		dir, err := detect.ResolveArtifactDir(cfg.Detection.ArtifactDir, cfg.Detection.ArtifactVersion)
		if err != nil {
			return nil, fmt.Errorf("anomaly artifact: %w", err)
		}
		artifact, err = detect.LoadModelArtifact(filepath.Join(dir, "model.yaml"))
		if err != nil {
			return nil, fmt.Errorf("anomaly artifact: %w", err)
		}
		slog.Info("anomaly artifact loaded", "version", artifact.Version)
	}

	var seeds *detect.SeedIndex
	if cfg.Detection.SeedDir != "" {
		idx, err := detect.NewSeedIndex(embedder)
		if err != nil {
			return nil, fmt.Errorf("seed index: %w", err)
		}
		n, err := idx.LoadDir(ctx, cfg.Detection.SeedDir)
		if err != nil {
			return nil, fmt.Errorf("seed index: %w", err)
		}
		slog.Info("seed index loaded", "seeds", n)
		seeds = idx
	}

	if artifact == nil && seeds == nil {
		slog.Info("no anomaly artifact or seeds configured; anomaly layer disabled")
		return nil, nil
	}
	return detect.NewAnomalyClassifier(artifact, seeds)
}

func buildReasoner(cfg *config.Config) (detect.Reasoner, error) {
	if cfg.Detection.ReasonerEndpoint == "" {
		slog.Info("no reasoning provider configured; cascade stops at the anomaly layer")
		return nil, nil
	}

	var exemplars *detect.ExemplarConfig
	if cfg.Detection.ArtifactDir != "" {
		dir, err := detect.ResolveArtifactDir(cfg.Detection.ArtifactDir, cfg.Detection.ArtifactVersion)
		if err == nil {
			if loaded, exErr := detect.LoadExemplarConfig(dir); exErr == nil {
				exemplars = loaded
				slog.Info("exemplar config loaded", "version", loaded.Version)
			}
		}
	}

	r, err := detect.NewHTTPReasoner(detect.HTTPReasonerConfig{
		Endpoint:  cfg.Detection.ReasonerEndpoint,
		Timeout:   cfg.ReasoningTimeout(),
		Exemplars: exemplars,
	})
	if err != nil {
		return nil, fmt.Errorf("reasoning provider: %w", err)
	}
	return r, nil
}

func buildFailureSink(ctx context.Context, cfg *config.Config) (shield.FailureSink, error) {
	if cfg.FailureLog.PostgresDSN != "" {
		sink, err := shield.NewPostgresSink(ctx, cfg.FailureLog.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failure log: %w", err)
		}
		return sink, nil
	}
	if cfg.FailureLog.Path != "" {
		sink, err := shield.NewFileSink(cfg.FailureLog.Path)
		if err != nil {
			return nil, fmt.Errorf("failure log: %w", err)
		}
		return sink, nil
	}
	return nil, nil
}

// httpCore proxies the protected application over HTTP: the request text is
// posted as-is and the response body is the generated output.
func httpCore(endpoint string, timeout time.Duration) shield.CoreLogic {
	client := detect.NewHTTPClient(timeout)
	return func(ctx context.Context, input string) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader([]byte(input)))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "text/plain")

		resp, err := client.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		if err := detect.CheckResponse(resp, "core"); err != nil {
			return "", err
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return "", err
		}
		return string(body), nil
	}
}

func exitWith(msg string) {
	slog.Error(msg)
	os.Exit(1)
}
