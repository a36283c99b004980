package embeddings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"
)

// DefaultHugotModel produces 384-dimensional sentence embeddings.
const DefaultHugotModel = "sentence-transformers/all-MiniLM-L6-v2"

// HugotEmbedder runs a sentence-transformers ONNX model in-process using
// hugot's pure Go backend.
type HugotEmbedder struct {
	mu         sync.Mutex
	session    *hugot.Session
	run        func([]string) ([][]float32, error)
	model      string
	dimensions int
}

// PrepareModel downloads the model into modelDir if it is not already there
// and returns the local model path.
func PrepareModel(modelName, modelDir string) (string, error) {
	modelPath := filepath.Join(modelDir, strings.ReplaceAll(modelName, "/", "_"))
	if _, err := os.Stat(modelPath); err == nil {
		return modelPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("checking model path: %w", err)
	}

	if err := os.MkdirAll(modelDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create model directory: %w", err)
	}
	opts := hugot.NewDownloadOptions()
	opts.OnnxFilePath = "onnx/model.onnx"
	downloaded, err := hugot.DownloadModel(modelName, modelDir, opts)
	if err != nil {
		return "", fmt.Errorf("failed to download model %s: %w", modelName, err)
	}
	return downloaded, nil
}

// NewHugotEmbedder loads (downloading if needed) modelName from modelDir and
// builds a feature-extraction pipeline for it.
func NewHugotEmbedder(modelName, modelDir string, dimensions int) (*HugotEmbedder, error) {
	if modelName == "" {
		modelName = DefaultHugotModel
	}
	modelPath, err := PrepareModel(modelName, modelDir)
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	pipeline, err := hugot.NewPipeline(session, hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "docqa-embedder",
	})
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create embedding pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create embedding pipeline: %w", err)
	}

	return &HugotEmbedder{
		session: session,
		run: func(texts []string) ([][]float32, error) {
			out, err := pipeline.RunPipeline(texts)
			if err != nil {
				return nil, err
			}
			return out.Embeddings, nil
		},
		model:      modelName,
		dimensions: dimensions,
	}, nil
}

func (e *HugotEmbedder) Name() string {
	return e.model
}

func (e *HugotEmbedder) Dimensions() int {
	return e.dimensions
}

// Embed runs the pipeline. Calls are serialized because a single ONNX
// session is shared.
func (e *HugotEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	vecs, err := e.run(texts)
	if err != nil {
		return nil, fmt.Errorf("hugot embedding failed: %w", err)
	}
	return vecs, nil
}

// Close releases the ONNX session.
func (e *HugotEmbedder) Close() error {
	return e.session.Destroy()
}
