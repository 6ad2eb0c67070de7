package memoryengine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText_NoSentenceLost(t *testing.T) {
	text := "Alpha beta gamma. Delta epsilon. Zeta eta theta iota kappa."
	chunks := ChunkText(text, ChunkerConfig{TargetWords: 4})
	require.NotEmpty(t, chunks)

	var rejoined []string
	for _, c := range chunks {
		rejoined = append(rejoined, c.Text)
		assert.NotEmpty(t, c.Text)
	}
	joined := strings.Join(rejoined, " ")
	for _, want := range []string{"Alpha", "beta", "gamma", "Delta", "epsilon", "Zeta", "kappa"} {
		assert.Contains(t, joined, want)
	}
}

func TestChunkText_OversizedSentenceOwnChunk(t *testing.T) {
	longSentence := strings.Repeat("word ", 500) + "."
	chunks := ChunkText(longSentence, ChunkerConfig{TargetWords: 10})
	require.Len(t, chunks, 1)
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("hello world")
	b := Fingerprint("hello world")
	assert.Equal(t, a, b)

	c := Fingerprint("different")
	assert.NotEqual(t, a, c)
}

func TestBitmapRoundtrip(t *testing.T) {
	fp := Fingerprint("roundtrip me")
	bm := Bitmap(fp)
	assert.Equal(t, fp, DecodeBitmap(bm))
}

func TestMemoryIntegrity_Scenario(t *testing.T) {
	e := NewEngine()
	e.ChunkerCfg = ChunkerConfig{TargetWords: 1}
	chunks := e.StoreDocument("doc1", "A. B. C.", nil)
	require.Len(t, chunks, 3)

	res := e.VerifyAll()
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 3, res.Valid)
	assert.Equal(t, 0, res.Invalid)

	// Corrupt one chunk's text out-of-band.
	stored, ok := e.Store.Get(chunks[0].Key)
	require.True(t, ok)
	stored.Text = "corrupted"

	res2 := e.VerifyAll()
	assert.Equal(t, 2, res2.Valid)
	assert.Equal(t, 1, res2.Invalid)
	require.Len(t, res2.Errors, 1)
	assert.Equal(t, chunks[0].Key, res2.Errors[0].Key)
}

func TestAssembleContext_NoChunksReturnsMessage(t *testing.T) {
	e := NewEngine()
	ctxStr, err := e.AssembleContext(nil, "chan", "hello there")
	require.NoError(t, err)
	assert.Equal(t, "hello there", ctxStr)
}

func TestAssembleContext_WithChunks(t *testing.T) {
	e := NewEngine()
	e.StoreDocument("doc1", "The quick brown fox jumps over the lazy dog. The dog barks loudly.", nil)

	ctxStr, err := e.AssembleContext(nil, "chan", "tell me about the dog")
	require.NoError(t, err)
	assert.Contains(t, ctxStr, contextOpenTag)
	assert.Contains(t, ctxStr, contextCloseTag)
	assert.Contains(t, ctxStr, "Current request: tell me about the dog")
}

func TestRetrieve_MonotoneUnderAddition(t *testing.T) {
	e := NewEngine()
	e.StoreDocument("doc1", "Cats are great pets. Cats like to sleep all day.", nil)
	before := e.Retrieve("cats sleeping", 8)
	require.NotEmpty(t, before)
	matchKey := before[0].Key

	// Adding an unrelated chunk must not push the previously-matching chunk
	// out of the result set.
	e.StoreDocument("doc2", "Dogs are loyal companions and good friends.", nil)
	after := e.Retrieve("cats sleeping", 8)
	require.NotEmpty(t, after)

	found := false
	for _, c := range after {
		if c.Key == matchKey {
			found = true
			break
		}
	}
	assert.True(t, found)
}

func TestTurnStore_Monotonic(t *testing.T) {
	ts := NewTurnStore()
	ts.Append("chan", "u1", "user", "hi")
	ts.Append("chan", "u1", "assistant", "hello")
	turns := ts.List("chan", "u1")
	require.Len(t, turns, 2)
	assert.False(t, turns[1].Timestamp.Before(turns[0].Timestamp))
}
