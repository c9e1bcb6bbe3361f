package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayloadRepairsSplitPair(t *testing.T) {
	payload := json.RawMessage(`{"change":{"transactions":[{"o":["\ud83d","\ude00"]}]}}`)

	var decoded struct {
		Change struct {
			Transactions []struct {
				O []string `json:"o"`
			} `json:"transactions"`
		} `json:"change"`
	}
	require.NoError(t, DecodePayload(payload, &decoded))
	require.Len(t, decoded.Change.Transactions, 1)
	assert.Equal(t, []string{"", "😀"}, decoded.Change.Transactions[0].O)
}

func TestRepairSurrogatesIsCaseInsensitive(t *testing.T) {
	repaired := RepairSurrogates([]byte(`["\uD83D","\uDE00"]`))
	assert.Equal(t, `["","\uD83D\uDE00"]`, string(repaired))
}

func TestDecodePayloadRejectsUnpairedSurrogate(t *testing.T) {
	for _, payload := range []string{
		`{"a":"\ud83d"}`,
		`{"a":"\ude00x"}`,
		`["\ud83d","x"]`,
	} {
		var v any
		err := DecodePayload(json.RawMessage(payload), &v)
		assert.True(t, errors.Is(err, ErrUnpairedSurrogate), payload)
	}
}

func TestDecodePayloadKeepsValidEscapes(t *testing.T) {
	var v map[string]string
	require.NoError(t, DecodePayload(json.RawMessage(`{"a":"\\ud83d","b":"\ud83d\ude00","c":"\u00e9"}`), &v))
	assert.Equal(t, `\ud83d`, v["a"])
	assert.Equal(t, "😀", v["b"])
	assert.Equal(t, "é", v["c"])
}

func TestDecodePayloadErrors(t *testing.T) {
	var v any
	assert.Error(t, DecodePayload(nil, &v))
	assert.Error(t, DecodePayload(json.RawMessage(`{"a":`), &v))
}
