package embed

// local.go - Local embedding model using Hugot/ONNX
//
// Produces 384-dimensional MiniLM embeddings without any external service.
// Tries the ONNX Runtime backend first and falls back to the pure Go backend
// when the shared library is not installed.

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/options"
	"github.com/knights-analytics/hugot/pipelines"
)

const (
	// DefaultModelPath is the default location for the embedding model.
	DefaultModelPath = "./models/all-MiniLM-L6-v2"

	// LocalDimension is the output dimension for MiniLM-L6-v2.
	LocalDimension = 384
)

// LocalConfig configures the local embedder.
type LocalConfig struct {
	ModelPath       string
	OnnxLibraryPath string
	Timeout         time.Duration
}

// Local provides local embedding generation using ONNX models.
type Local struct {
	session  *hugot.Session
	pipeline *pipelines.FeatureExtractionPipeline
	mu       sync.RWMutex
	ready    bool
}

// NewLocal creates a local embedder from the given config. The model must
// already exist on disk; missing models are a startup configuration error.
func NewLocal(cfg LocalConfig) (*Local, error) {
	if cfg.ModelPath == "" {
		cfg.ModelPath = DefaultModelPath
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("embedding model path does not exist: %s", cfg.ModelPath)
	}

	e := &Local{}

	session, err := createSession(cfg.OnnxLibraryPath)
	if err != nil {
		return nil, fmt.Errorf("create embedding session: %w", err)
	}
	e.session = session

	pipeline, err := hugot.NewPipeline(session, hugot.FeatureExtractionConfig{
		ModelPath: cfg.ModelPath,
		Name:      "embedding-generator",
	})
	if err != nil {
		_ = session.Destroy()
		return nil, fmt.Errorf("create embedding pipeline: %w", err)
	}

	e.pipeline = pipeline
	e.ready = true
	log.Printf("local embedder initialized (model: %s)", cfg.ModelPath)
	return e, nil
}

func createSession(onnxLibraryPath string) (*hugot.Session, error) {
	if onnxLibraryPath != "" {
		session, err := hugot.NewORTSession(options.WithOnnxLibraryPath(onnxLibraryPath))
		if err == nil {
			log.Printf("local embedder using ONNX Runtime backend")
			return session, nil
		}
		log.Printf("ONNX Runtime unavailable for embeddings, falling back to Go backend: %v", err)
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("create Go session: %w", err)
	}
	log.Printf("local embedder using pure Go backend (slower, consider installing ONNX Runtime)")
	return session, nil
}

// Dimension returns the embedding dimension (384 for MiniLM-L6-v2).
func (e *Local) Dimension() int {
	return LocalDimension
}

// Embed generates an embedding for a single text.
func (e *Local) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.ready || e.pipeline == nil {
		return nil, ErrUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := e.pipeline.RunPipeline([]string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return result.Embeddings[0], nil
}

// Close releases the ONNX session.
func (e *Local) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ready = false
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}
