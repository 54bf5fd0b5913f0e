package pkg

import "time"

// CaseProfile describes one patient case available in the simulation.  All
// profiles are loaded once at startup and are immutable afterwards.  The
// hot-clue and scoring-rule text is handed verbatim to the AI so it can
// self-score the student's questions.
type CaseProfile struct {
	ID             string `json:"id" mapstructure:"id"`
	Name           string `json:"name" mapstructure:"name"`
	Age            int    `json:"age" mapstructure:"age"`
	Sex            string `json:"sex" mapstructure:"sex"`
	ESILevel       int    `json:"esi_level" mapstructure:"esi_level"`
	ChiefComplaint string `json:"chief_complaint" mapstructure:"chief_complaint"`
	OpeningLine    string `json:"opening_line" mapstructure:"opening_line"`
	HotClues       string `json:"hot_clues" mapstructure:"hot_clues"`
	ScoringRule    string `json:"scoring_rule" mapstructure:"scoring_rule"`
}

// CaseSummary is the short listing form of a case shown on the case picker.
// The chief complaint is truncated for display.
type CaseSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Complaint string `json:"complaint"`
}

// ParsedTurn is the result of splitting one raw AI reply into the
// patient-visible narrative and the hidden scoring payload.  Delta is 0 when
// no well-formed payload was present.
type ParsedTurn struct {
	Narrative string
	Delta     int
	Feedback  string
}

// StartResult is returned when a new simulation session begins.  PatientText
// is the profile's configured opening line, not an AI-generated reply.
type StartResult struct {
	SessionID      string `json:"session_id"`
	PatientText    string `json:"patient_text"`
	CaseID         string `json:"case_id"`
	PatientName    string `json:"patient_name"`
	ESIGoal        int    `json:"esi_goal"`
	Age            int    `json:"age"`
	Sex            string `json:"sex"`
	ChiefComplaint string `json:"chief_complaint"`
	ArrivalTime    string `json:"arrival_time"`
	InitialScore   int    `json:"initial_score"`
}

// TurnResult is returned for each student turn.
type TurnResult struct {
	PatientText      string `json:"patient_text"`
	CurrentScore     int    `json:"current_score"`
	RealTimeFeedback string `json:"real_time_feedback"`
}

// StartRequest asks for a new session for a specific case.
type StartRequest struct {
	CaseID string `json:"case_id"`
}

// TurnRequest carries one student message into an existing session.
type TurnRequest struct {
	Message string `json:"message"`
}

// SpeechRequest asks for synthesized audio of a patient line.
type SpeechRequest struct {
	Text string `json:"text"`
}

// SpeechResponse returns synthesized audio as base64 so the browser can play
// it directly.
type SpeechResponse struct {
	AudioBase64 string `json:"audio_base64"`
	MimeType    string `json:"mime_type"`
}

// TranscriptResponse returns the text of an uploaded audio question.
type TranscriptResponse struct {
	Transcript string `json:"transcript"`
}

// ArchivedTurn is one student/patient exchange written to the instructor
// archive together with the score movement it produced.
type ArchivedTurn struct {
	ID          int64     `json:"id"`
	SessionID   string    `json:"session_id"`
	StudentText string    `json:"student_text"`
	PatientText string    `json:"patient_text"`
	ScoreDelta  int       `json:"score_delta"`
	ScoreAfter  int       `json:"score_after"`
	Feedback    string    `json:"feedback"`
	CreatedAt   time.Time `json:"created_at"`
}

// SessionPreview is returned in the instructor's list of archived sessions.
type SessionPreview struct {
	SessionID   string     `json:"session_id"`
	CaseID      string     `json:"case_id"`
	PatientName string     `json:"patient_name"`
	ESIGoal     int        `json:"esi_goal"`
	Score       int        `json:"score"`
	StartedAt   time.Time  `json:"started_at"`
	LastTurnAt  *time.Time `json:"last_turn_at,omitempty"`
}
