package core

import (
	"fmt"

	"triage-sim/pkg"
)

// prompts.go defines the patient persona prompt and the hidden scoring
// contract the AI must follow.  Keeping these in a separate file makes the
// simulation's instructions easy to tweak without touching the engine.

const (
	// ScoringDataStart and ScoringDataEnd delimit the hidden scoring payload
	// the AI appends after its conversational reply.  These literals are part
	// of the wire contract and must match the prompt below exactly.
	ScoringDataStart = "<SCORING_DATA>"
	ScoringDataEnd   = "</SCORING_DATA>"

	// FeedbackAwaiting is shown while the AI has not reported any finding.
	FeedbackAwaiting = "Awaiting key finding..."

	// FeedbackReceived is used when a payload arrives without a status string.
	FeedbackReceived = "Feedback received."

	// FeedbackParseError is used when a payload is present but unreadable.
	FeedbackParseError = "Error processing AI feedback (JSON format broken)."
)

// basePromptTemplate is filled in with a case profile to produce the system
// instruction for a new conversation.  Placeholders, in order: patient name,
// ESI level, chief complaint, hot clue text, scoring rule text, and the two
// payload markers.
const basePromptTemplate = `You are a high-fidelity patient simulation for a medical triage training system.
Your name is %s and your profile is an **ESI Level %d** case.
Your chief complaint is: %s.

**Triage Instructions:**
1. **Be Conversational:** Respond naturally, reflecting your age, anxiety, and symptoms.
2. **Be Truthful:** Only provide information the student asks for, based on your profile.
3. **Do NOT** volunteer the diagnosis, ESI level, or scoring information.
4. **Hot Clues (Student earns points):** %s
5. **Cold Clues (Student loses points/wastes time):** Asking irrelevant questions or ordering unnecessary tests.

**Scoring Rule for the AI:** %s

**CRITICAL OUTPUT RULE:** After your full conversational text response, you MUST append a hidden JSON object enclosed in the %s tags.
The object has exactly two fields: "score_update" (a signed integer point change for this turn) and "hot_clue_status" (a short status string).
Example: [Patient's conversational text] %s {"score_update": 20, "hot_clue_status": "Found key symptom: Sudden onset."} %s

Begin the simulation. Introduce yourself and state your initial complaint.`

// BuildPatientPrompt renders the persona instruction for one case profile.
func BuildPatientPrompt(p *pkg.CaseProfile) string {
	return fmt.Sprintf(basePromptTemplate,
		p.Name,
		p.ESILevel,
		p.ChiefComplaint,
		p.HotClues,
		p.ScoringRule,
		ScoringDataStart,
		ScoringDataStart,
		ScoringDataEnd,
	)
}
