package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	ErrLabelMismatch = errors.New("label count does not match model output width")
	ErrInputShape    = errors.New("model input shape does not match image size")
	ErrInputLength   = errors.New("input length does not match model input shape")
)

// Options locate the model artifacts on disk.
type Options struct {
	ModelPath    string
	MetadataPath string
	LabelsPath   string
	// OnnxLibrary overrides the onnxruntime shared library location.
	OnnxLibrary string
	ImageSize   int
}

// Server owns the ONNX session and its bound tensors. It is built once at
// startup and only read afterwards; Score serializes runs because the
// tensors are reused between calls.
type Server struct {
	Metadata Metadata
	Labels   LabelSet

	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// LoadMetadata reads and checks the model metadata against the label set and
// the expected image size.
func LoadMetadata(path string, labels LabelSet, imageSize int) (Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if metadata.InputName == "" {
		metadata.InputName = "input"
	}
	if metadata.OutputName == "" {
		metadata.OutputName = "output"
	}
	if metadata.Layout == "" {
		metadata.Layout = LayoutNHWC
	}
	if err := metadata.Validate(len(labels), imageSize); err != nil {
		return Metadata{}, err
	}
	return metadata, nil
}

func (m Metadata) Validate(numLabels, imageSize int) error {
	if m.Layout != LayoutNHWC && m.Layout != LayoutNCHW {
		return fmt.Errorf("unknown tensor layout %q", m.Layout)
	}
	if len(m.InputShape) != 4 || m.InputShape[0] != 1 {
		return fmt.Errorf("%w: want a single-image 4D input, got %v", ErrInputShape, m.InputShape)
	}

	h, w, c := m.InputShape[1], m.InputShape[2], m.InputShape[3]
	if m.Layout == LayoutNCHW {
		c, h, w = m.InputShape[1], m.InputShape[2], m.InputShape[3]
	}
	if c != 3 || h != w || int(h) != imageSize {
		return fmt.Errorf("%w: shape %v (%s), image size %d", ErrInputShape, m.InputShape, m.Layout, imageSize)
	}

	if m.OutputWidth() != numLabels {
		return fmt.Errorf("%w: %d labels, output shape %v", ErrLabelMismatch, numLabels, m.OutputShape)
	}
	return nil
}

// NewServer loads labels, metadata and the ONNX model. Any failure here is a
// deployment error and the caller is expected to stop.
func NewServer(opts Options) (*Server, error) {
	labels, err := LoadLabels(opts.LabelsPath)
	if err != nil {
		return nil, err
	}

	metadata, err := LoadMetadata(opts.MetadataPath, labels, opts.ImageSize)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, fmt.Errorf("failed to stat model: %w", err)
	}

	if opts.OnnxLibrary != "" {
		ort.SetSharedLibraryPath(opts.OnnxLibrary)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(opts.ModelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Server{
		Metadata:     metadata,
		Labels:       labels,
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Score runs the model on one preprocessed image and returns a copy of the
// per-class scores.
func (s *Server) Score(input []float32) ([]float32, error) {
	if want := s.Metadata.InputLen(); len(input) != want {
		return nil, fmt.Errorf("%w: expected %d values, got %d", ErrInputLength, want, len(input))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy(s.inputTensor.GetData(), input)
	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := s.outputTensor.GetData()
	scores := make([]float32, s.Metadata.OutputWidth())
	copy(scores, out)
	return scores, nil
}

func (s *Server) Close() {
	if s.inputTensor != nil {
		s.inputTensor.Destroy()
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
	}
	if s.session != nil {
		s.session.Destroy()
	}
	ort.DestroyEnvironment()
}
