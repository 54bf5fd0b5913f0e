package core

import (
	"encoding/json"
	"regexp"
	"strings"

	"triage-sim/pkg"
)

// scoringBlockRe locates the hidden payload: the marker pair with a single
// JSON object between them, tolerating whitespace and any amount of
// preceding narrative.
var scoringBlockRe = regexp.MustCompile(`(?s)` +
	regexp.QuoteMeta(ScoringDataStart) + `\s*(\{.*?\})\s*` + regexp.QuoteMeta(ScoringDataEnd))

// scoringPayload is the typed form of the hidden JSON object.  Both fields
// are optional; anything else the AI emits is ignored.
type scoringPayload struct {
	ScoreUpdate   *int    `json:"score_update"`
	HotClueStatus *string `json:"hot_clue_status"`
}

// ParseReply splits one raw AI reply into the patient-visible narrative and
// the scoring payload.  It never fails: the AI is a best-effort text
// generator, so a broken payload degrades to "no score change" with a
// diagnostic feedback string, and the narrative is always preserved.  Marker
// text and payload JSON never leak into the narrative.
func ParseReply(raw string) pkg.ParsedTurn {
	idx := strings.Index(raw, ScoringDataStart)
	if idx < 0 {
		// No payload at all: the whole reply is narrative.
		return pkg.ParsedTurn{
			Narrative: strings.TrimSpace(raw),
			Feedback:  FeedbackAwaiting,
		}
	}

	result := pkg.ParsedTurn{
		Narrative: strings.TrimSpace(raw[:idx]),
		Feedback:  FeedbackParseError,
	}

	m := scoringBlockRe.FindStringSubmatch(raw)
	if m == nil {
		// Start marker without a matching JSON body and end marker.
		return result
	}

	var payload scoringPayload
	if err := json.Unmarshal([]byte(m[1]), &payload); err != nil {
		// Includes wrong-typed fields, e.g. a fractional score_update.
		return result
	}

	result.Feedback = FeedbackReceived
	if payload.ScoreUpdate != nil {
		result.Delta = *payload.ScoreUpdate
	}
	if payload.HotClueStatus != nil {
		result.Feedback = *payload.HotClueStatus
	}
	return result
}
