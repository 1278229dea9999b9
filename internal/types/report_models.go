// internal/types/report_models.go
package types

// --------------------------------------------
// Diagnostic report returned by the analysis model
// --------------------------------------------
type Report struct {
	OverallScore      int            `json:"overall_score"` // 0–100
	Stage             SalesStage     `json:"stage"`
	Outcome           Outcome        `json:"outcome"`
	CustomerSentiment Sentiment      `json:"customer_sentiment"`
	Summary           string         `json:"summary"`
	Scores            CategoryScores `json:"scores"`
	Errors            []SalesError   `json:"errors"`
	Techniques        []Technique    `json:"techniques"`
	NextSteps         []string       `json:"next_steps"`
}

// --------------------------------------------
// Category scores, each 0–10
// --------------------------------------------
type CategoryScores struct {
	Rapport           int `json:"rapport"`
	Discovery         int `json:"discovery"`
	ObjectionHandling int `json:"objection_handling"`
	Closing           int `json:"closing"`
}

type SalesError struct {
	Title      string   `json:"title"`
	Severity   Severity `json:"severity"`
	Excerpt    string   `json:"excerpt"`
	Suggestion string   `json:"suggestion"`
}

type Technique struct {
	Name     string `json:"name"`
	Applied  bool   `json:"applied"`
	Evidence string `json:"evidence"`
}

type SalesStage string

const (
	StageProspecting       SalesStage = "prospecting"
	StageQualification     SalesStage = "qualification"
	StagePresentation      SalesStage = "presentation"
	StageObjectionHandling SalesStage = "objection_handling"
	StageClosing           SalesStage = "closing"
	StageFollowUp          SalesStage = "follow_up"
)

func (s SalesStage) Valid() bool {
	switch s {
	case StageProspecting, StageQualification, StagePresentation, StageObjectionHandling, StageClosing, StageFollowUp:
		return true
	}
	return false
}

type Outcome string

const (
	OutcomeWon     Outcome = "won"
	OutcomeLost    Outcome = "lost"
	OutcomePending Outcome = "pending"
	OutcomeUnknown Outcome = "unknown"
)

func (o Outcome) Valid() bool {
	switch o {
	case OutcomeWon, OutcomeLost, OutcomePending, OutcomeUnknown:
		return true
	}
	return false
}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// --------------------------------------------
// Follow-up chat
// --------------------------------------------
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}
