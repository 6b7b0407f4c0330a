package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	type invalidation struct {
		CorpusKey string `json:"corpus_key"`
	}
	got, err := DecodeJSON[invalidation]([]byte(`{"corpus_key":"1-2-3.json"}`))
	require.NoError(t, err)
	assert.Equal(t, "1-2-3.json", got.CorpusKey)

	_, err = DecodeJSON[invalidation]([]byte(`{`))
	assert.Error(t, err)
}

func TestEncode(t *testing.T) {
	msgs, err := encode([]Event{{Key: "search", Value: map[string]int{"matches": 2}}})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "search", string(msgs[0].Key))
	assert.JSONEq(t, `{"matches":2}`, string(msgs[0].Value))

	_, err = encode([]Event{{Key: "bad", Value: make(chan int)}})
	assert.Error(t, err)
}
