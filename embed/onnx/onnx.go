//go:build onnx

// Package onnx embeds text locally with a sentence-transformer model
// (all-MiniLM-L6-v2 by default) through ONNX Runtime. It needs the
// exported model.onnx plus its tokenizer.json; no network calls.
package onnx

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/parleylabs/recall-go/embed"
)

const maxSeqLen = 128

// Config configures the local embedder.
type Config struct {
	// ModelPath points at the exported ONNX model file. Required.
	ModelPath string

	// TokenizerPath points at the HuggingFace tokenizer.json. Required.
	TokenizerPath string

	// SharedLibraryPath locates libonnxruntime. Defaults to the
	// ONNXRUNTIME_SHARED_LIBRARY_PATH environment variable.
	SharedLibraryPath string

	// Dimensions is the embedding size; 384 for all-MiniLM-L6-v2.
	Dimensions int
}

// Embedder runs sentence embedding inference via ONNX Runtime.
type Embedder struct {
	session    *ort.DynamicAdvancedSession
	tokenizer  *wordPieceTokenizer
	dimensions int
}

// New loads the model and tokenizer and initializes the runtime.
func New(cfg Config) (*Embedder, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("onnx: ModelPath is required")
	}
	if cfg.TokenizerPath == "" {
		return nil, fmt.Errorf("onnx: TokenizerPath is required")
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 384
	}
	if cfg.SharedLibraryPath == "" {
		cfg.SharedLibraryPath = os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")
	}
	if cfg.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.SharedLibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("onnx: initialize runtime: %w", err)
	}

	tokenizer, err := loadTokenizer(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: load tokenizer: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("onnx: create session: %w", err)
	}

	return &Embedder{
		session:    session,
		tokenizer:  tokenizer,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed tokenizes text, runs inference, and mean-pools the hidden
// states into a normalized sentence vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := e.tokenizer.tokenize(text)

	inputIDs := make([]int64, maxSeqLen)
	attentionMask := make([]int64, maxSeqLen)
	tokenTypeIDs := make([]int64, maxSeqLen)

	inputIDs[0] = int64(e.tokenizer.clsToken)
	attentionMask[0] = 1

	// Truncate to leave room for [CLS] and [SEP].
	if len(tokens) > maxSeqLen-2 {
		tokens = tokens[:maxSeqLen-2]
	}
	for i, id := range tokens {
		inputIDs[i+1] = id
		attentionMask[i+1] = 1
	}
	inputIDs[len(tokens)+1] = int64(e.tokenizer.sepToken)
	attentionMask[len(tokens)+1] = 1

	shape := ort.NewShape(1, int64(maxSeqLen))
	idsT, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("onnx: input_ids tensor: %w", err)
	}
	defer idsT.Destroy()
	maskT, err := ort.NewTensor(shape, attentionMask)
	if err != nil {
		return nil, fmt.Errorf("onnx: attention_mask tensor: %w", err)
	}
	defer maskT.Destroy()
	typeT, err := ort.NewTensor(shape, tokenTypeIDs)
	if err != nil {
		return nil, fmt.Errorf("onnx: token_type_ids tensor: %w", err)
	}
	defer typeT.Destroy()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{idsT, maskT, typeT}, outputs); err != nil {
		return nil, fmt.Errorf("onnx: inference: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	outT, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("onnx: unexpected output tensor type")
	}
	return e.pool(outT, attentionMask)
}

// pool reduces model output to one vector. A 2-D output is already
// pooled; a 3-D output gets attention-masked mean pooling.
func (e *Embedder) pool(t *ort.Tensor[float32], attentionMask []int64) ([]float32, error) {
	data := t.GetData()
	shape := t.GetShape()

	vec := make([]float32, e.dimensions)
	switch len(shape) {
	case 2:
		if len(data) < e.dimensions {
			return nil, fmt.Errorf("onnx: output dimension %d < %d", len(data), e.dimensions)
		}
		copy(vec, data[:e.dimensions])
	case 3:
		seqLen, hidden := int(shape[1]), int(shape[2])
		if shape[0] != 1 || hidden != e.dimensions {
			return nil, fmt.Errorf("onnx: unexpected output shape %v", shape)
		}
		var attended float32
		for i := 0; i < seqLen; i++ {
			if attentionMask[i] == 0 {
				continue
			}
			attended++
			off := i * hidden
			for j := 0; j < hidden; j++ {
				vec[j] += data[off+j]
			}
		}
		if attended == 0 {
			return nil, fmt.Errorf("onnx: empty attention mask")
		}
		for j := range vec {
			vec[j] /= attended
		}
	default:
		return nil, fmt.Errorf("onnx: unexpected output shape %v", shape)
	}
	return normalize(vec), nil
}

// EmbedBatch embeds each text in order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embed.BatchFromSingle(ctx, e, texts)
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int { return e.dimensions }

// Close releases the ONNX session.
func (e *Embedder) Close() error {
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	for i, v := range vec {
		vec[i] = v / norm
	}
	return vec
}

// wordPieceTokenizer is a minimal BERT WordPiece tokenizer backed by
// the vocabulary in tokenizer.json.
type wordPieceTokenizer struct {
	vocab    map[string]int
	clsToken int
	sepToken int
	unkToken int
}

func loadTokenizer(path string) (*wordPieceTokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file struct {
		Model struct {
			Vocab map[string]int `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	return &wordPieceTokenizer{
		vocab:    file.Model.Vocab,
		clsToken: 101, // [CLS]
		sepToken: 102, // [SEP]
		unkToken: 100, // [UNK]
	}, nil
}

func (t *wordPieceTokenizer) tokenize(text string) []int64 {
	var tokens []int64
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'")
		if word == "" {
			continue
		}
		if id, ok := t.vocab[word]; ok {
			tokens = append(tokens, int64(id))
			continue
		}
		for _, piece := range t.split(word) {
			if id, ok := t.vocab[piece]; ok {
				tokens = append(tokens, int64(id))
			} else {
				tokens = append(tokens, int64(t.unkToken))
			}
		}
	}
	return tokens
}

// split greedily matches the longest known prefix, falling back to
// [UNK] one byte at a time.
func (t *wordPieceTokenizer) split(word string) []string {
	var pieces []string
	start := 0
	for start < len(word) {
		matched := false
		for end := len(word); end > start; end-- {
			piece := word[start:end]
			if start > 0 {
				piece = "##" + piece
			}
			if _, ok := t.vocab[piece]; ok {
				pieces = append(pieces, piece)
				start = end
				matched = true
				break
			}
		}
		if !matched {
			pieces = append(pieces, "[UNK]")
			start++
		}
	}
	return pieces
}
