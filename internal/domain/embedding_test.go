package domain

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	result EmbeddingResult
	err    error
	got    []string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	s.got = append(s.got, text)
	if s.err != nil {
		return EmbeddingResult{}, s.err
	}
	return s.result, nil
}

func TestInstructionEmbedder_PrependsInstruction(t *testing.T) {
	stub := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{1, 2}, TotalTokens: 7}}
	emb := NewInstructionEmbedder(stub, "query: ")

	res, err := emb.Embed(context.Background(), "loan limits")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stub.got) != 1 || stub.got[0] != "query: loan limits" {
		t.Errorf("inner received %v", stub.got)
	}
	if res.TotalTokens != 7 {
		t.Errorf("tokens = %d, want 7", res.TotalTokens)
	}
}

func TestInstructionEmbedder_BatchFallsBack(t *testing.T) {
	stub := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{1}, TotalTokens: 2}}
	emb := NewInstructionEmbedder(stub, "doc: ")

	res, err := emb.BatchEmbed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 3 {
		t.Fatalf("embeddings = %d, want 3", len(res.Embeddings))
	}
	if res.TotalTokens != 6 {
		t.Errorf("tokens = %d, want 6", res.TotalTokens)
	}
	if stub.got[0] != "doc: a" || stub.got[2] != "doc: c" {
		t.Errorf("inner received %v", stub.got)
	}
}

func TestBatchFallback_PropagatesError(t *testing.T) {
	wantErr := errors.New("provider down")
	stub := &stubEmbedder{err: wantErr}

	_, err := BatchFallback(context.Background(), stub, []string{"a"})
	if !errors.Is(err, wantErr) {
		t.Errorf("error = %v, want wrapped %v", err, wantErr)
	}
}
