package tokens

import (
	"encoding/json"
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/harun/veda/pkg/history"
)

// messageOverhead approximates the per-message framing cost providers charge
// beyond the raw content tokens.
const messageOverhead = 4

// Estimator approximates the token cost of text before a model call
type Estimator interface {
	// EstimateText returns the approximate token count for a text blob
	EstimateText(text string) int

	// EstimateMessage returns the approximate token count for a message,
	// including tool-call payloads and framing overhead
	EstimateMessage(msg history.Message) int
}

// HeuristicEstimator estimates tokens from character counts. Roughly one
// token per four characters of English text.
type HeuristicEstimator struct{}

// NewHeuristicEstimator creates a character-ratio estimator
func NewHeuristicEstimator() *HeuristicEstimator {
	return &HeuristicEstimator{}
}

// EstimateText returns the approximate token count for a text blob
func (e *HeuristicEstimator) EstimateText(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// EstimateMessage returns the approximate token count for a message
func (e *HeuristicEstimator) EstimateMessage(msg history.Message) int {
	return estimateMessage(e, msg)
}

// TiktokenEstimator estimates tokens with a BPE encoding. More accurate than
// the heuristic for OpenAI-family models.
type TiktokenEstimator struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenEstimator creates an estimator backed by the named encoding
// (for example "cl100k_base"). It fails when the encoding data is not
// available; callers should fall back to the heuristic estimator.
func NewTiktokenEstimator(encodingName string) (*TiktokenEstimator, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load encoding %s: %w", encodingName, err)
	}
	return &TiktokenEstimator{encoding: encoding}, nil
}

// EstimateText returns the token count for a text blob under the encoding
func (e *TiktokenEstimator) EstimateText(text string) int {
	if text == "" {
		return 0
	}
	return len(e.encoding.Encode(text, nil, nil))
}

// EstimateMessage returns the token count for a message under the encoding
func (e *TiktokenEstimator) EstimateMessage(msg history.Message) int {
	return estimateMessage(e, msg)
}

// estimateMessage charges content, serialized tool calls, and framing
func estimateMessage(e Estimator, msg history.Message) int {
	total := messageOverhead + e.EstimateText(msg.Content)
	for _, tc := range msg.ToolCalls {
		total += e.EstimateText(tc.Name)
		if len(tc.Parameters) > 0 {
			if data, err := json.Marshal(tc.Parameters); err == nil {
				total += e.EstimateText(string(data))
			}
		}
	}
	return total
}
