package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseReplyWithPayload(t *testing.T) {
	raw := `"It hurts right here," she says, wincing. <SCORING_DATA> {"score_update": 20, "hot_clue_status": "Found key symptom: Sudden onset."} </SCORING_DATA>`

	result := ParseReply(raw)

	assert.Equal(t, `"It hurts right here," she says, wincing.`, result.Narrative)
	assert.Equal(t, 20, result.Delta)
	assert.Equal(t, "Found key symptom: Sudden onset.", result.Feedback)
}

func TestParseReplyNoPayload(t *testing.T) {
	result := ParseReply("  I just feel really tired, doctor.  \n")

	assert.Equal(t, "I just feel really tired, doctor.", result.Narrative)
	assert.Zero(t, result.Delta)
	assert.Equal(t, FeedbackAwaiting, result.Feedback)
}

func TestParseReplyNegativeDelta(t *testing.T) {
	raw := `Why would that matter? <SCORING_DATA>{"score_update": -20, "hot_clue_status": "Irrelevant question."}</SCORING_DATA>`

	result := ParseReply(raw)

	assert.Equal(t, -20, result.Delta)
	assert.Equal(t, "Irrelevant question.", result.Feedback)
}

func TestParseReplyMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"invalid json", `She nods. <SCORING_DATA> {score_update: 20} </SCORING_DATA>`},
		{"truncated payload", `She nods. <SCORING_DATA> {"score_update": 2`},
		{"start marker only", `She nods. <SCORING_DATA>`},
		{"fractional score", `She nods. <SCORING_DATA> {"score_update": 20.5} </SCORING_DATA>`},
		{"string score", `She nods. <SCORING_DATA> {"score_update": "20"} </SCORING_DATA>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseReply(tt.raw)

			assert.Equal(t, "She nods.", result.Narrative, "narrative survives a broken payload")
			assert.Zero(t, result.Delta)
			assert.Equal(t, FeedbackParseError, result.Feedback)
		})
	}
}

func TestParseReplyPartialPayload(t *testing.T) {
	t.Run("missing score_update", func(t *testing.T) {
		result := ParseReply(`Okay. <SCORING_DATA> {"hot_clue_status": "Still probing."} </SCORING_DATA>`)
		assert.Zero(t, result.Delta)
		assert.Equal(t, "Still probing.", result.Feedback)
	})
	t.Run("missing hot_clue_status", func(t *testing.T) {
		result := ParseReply(`Okay. <SCORING_DATA> {"score_update": 30} </SCORING_DATA>`)
		assert.Equal(t, 30, result.Delta)
		assert.Equal(t, FeedbackReceived, result.Feedback)
	})
	t.Run("empty object", func(t *testing.T) {
		result := ParseReply(`Okay. <SCORING_DATA> {} </SCORING_DATA>`)
		assert.Zero(t, result.Delta)
		assert.Equal(t, FeedbackReceived, result.Feedback)
	})
}

func TestParseReplyNeverLeaksMarkers(t *testing.T) {
	raws := []string{
		`Yes. <SCORING_DATA> {"score_update": 40, "hot_clue_status": "ok"} </SCORING_DATA>`,
		`Yes. <SCORING_DATA> {"broken`,
		`Yes. <SCORING_DATA> {"score_update": 40} </SCORING_DATA> trailing chatter`,
	}
	for _, raw := range raws {
		result := ParseReply(raw)
		assert.NotContains(t, result.Narrative, ScoringDataStart)
		assert.NotContains(t, result.Narrative, ScoringDataEnd)
		assert.NotContains(t, result.Narrative, "score_update")
	}
}
