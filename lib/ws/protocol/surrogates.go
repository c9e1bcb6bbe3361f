package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

var ErrUnpairedSurrogate = errors.New("single unpaired UTF-16 surrogate in unicode escape")

// Clients split a surrogate pair across two adjacent strings: "\ud83d","\ude00".
// The high half is merged into the following string and its own string left empty.
var splitSurrogatePair = regexp.MustCompile(`(?i)"\\u(d[89ab][0-9a-f]{2})","\\u(d[c-f][0-9a-f]{2})"`)

// DecodePayload unmarshals a frame payload into v. Split surrogate pairs are merged first; a
// payload that still holds an unpaired surrogate escape is rejected.
func DecodePayload(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return errors.New("payload is missing")
	}
	if hasUnpairedSurrogate(payload) {
		payload = RepairSurrogates(payload)
		if hasUnpairedSurrogate(payload) {
			return ErrUnpairedSurrogate
		}
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("error decoding payload: %w", err)
	}
	return nil
}

// RepairSurrogates merges surrogate halves that were split into neighbouring JSON strings.
func RepairSurrogates(payload []byte) []byte {
	return splitSurrogatePair.ReplaceAll(payload, []byte(`"","\u${1}\u${2}"`))
}

func hasUnpairedSurrogate(payload []byte) bool {
	for i := 0; i < len(payload); i++ {
		if payload[i] != '\\' || i+1 >= len(payload) {
			continue
		}
		if payload[i+1] != 'u' {
			// skip the escaped character so `\\u` is not read as an escape
			i++
			continue
		}
		code, ok := escapeAt(payload, i)
		if !ok {
			i++
			continue
		}
		switch {
		case code >= 0xD800 && code <= 0xDBFF:
			low, ok := escapeAt(payload, i+6)
			if !ok || low < 0xDC00 || low > 0xDFFF {
				return true
			}
			i += 11
		case code >= 0xDC00 && code <= 0xDFFF:
			return true
		default:
			i += 5
		}
	}
	return false
}

// escapeAt reads the \uXXXX escape starting at offset i.
func escapeAt(payload []byte, i int) (uint64, bool) {
	if i+6 > len(payload) || payload[i] != '\\' || payload[i+1] != 'u' {
		return 0, false
	}
	code, err := strconv.ParseUint(string(payload[i+2:i+6]), 16, 32)
	if err != nil {
		return 0, false
	}
	return code, true
}
