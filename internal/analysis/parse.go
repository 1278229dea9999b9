package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"chat-audit-go/internal/types"
)

// wireReport mirrors types.Report with pointers so missing required fields are detectable.
type wireReport struct {
	OverallScore      *int                  `json:"overall_score"`
	Stage             *types.SalesStage     `json:"stage"`
	Outcome           *types.Outcome        `json:"outcome"`
	CustomerSentiment *types.Sentiment      `json:"customer_sentiment"`
	Summary           *string               `json:"summary"`
	Scores            *types.CategoryScores `json:"scores"`
	Errors            []types.SalesError    `json:"errors"`
	Techniques        []types.Technique     `json:"techniques"`
	NextSteps         []string              `json:"next_steps"`
}

// ParseReport pulls the first JSON object out of a model reply and validates it.
func ParseReport(raw string) (types.Report, error) {
	candidate := extractJSON(raw)
	if candidate == "" {
		return types.Report{}, malformed(errors.New("no JSON object in model output"))
	}

	var w wireReport
	if err := json.Unmarshal([]byte(candidate), &w); err != nil {
		return types.Report{}, malformed(err)
	}
	if err := w.validate(); err != nil {
		return types.Report{}, malformed(err)
	}

	r := types.Report{
		OverallScore:      *w.OverallScore,
		Stage:             *w.Stage,
		Outcome:           *w.Outcome,
		CustomerSentiment: *w.CustomerSentiment,
		Summary:           strings.TrimSpace(*w.Summary),
		Errors:            w.Errors,
		Techniques:        w.Techniques,
		NextSteps:         w.NextSteps,
	}
	if w.Scores != nil {
		r.Scores = *w.Scores
	}
	// empty arrays, not null, in API output
	if r.Errors == nil {
		r.Errors = []types.SalesError{}
	}
	if r.Techniques == nil {
		r.Techniques = []types.Technique{}
	}
	if r.NextSteps == nil {
		r.NextSteps = []string{}
	}
	return r, nil
}

func (w wireReport) validate() error {
	var missing []string
	if w.OverallScore == nil {
		missing = append(missing, "overall_score")
	}
	if w.Stage == nil {
		missing = append(missing, "stage")
	}
	if w.Outcome == nil {
		missing = append(missing, "outcome")
	}
	if w.CustomerSentiment == nil {
		missing = append(missing, "customer_sentiment")
	}
	if w.Summary == nil || strings.TrimSpace(*w.Summary) == "" {
		missing = append(missing, "summary")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	if *w.OverallScore < 0 || *w.OverallScore > 100 {
		return fmt.Errorf("overall_score %d out of range 0-100", *w.OverallScore)
	}
	if !w.Stage.Valid() {
		return fmt.Errorf("unknown stage %q", *w.Stage)
	}
	if !w.Outcome.Valid() {
		return fmt.Errorf("unknown outcome %q", *w.Outcome)
	}
	if !w.CustomerSentiment.Valid() {
		return fmt.Errorf("unknown customer_sentiment %q", *w.CustomerSentiment)
	}
	if s := w.Scores; s != nil {
		for name, v := range map[string]int{
			"rapport":            s.Rapport,
			"discovery":          s.Discovery,
			"objection_handling": s.ObjectionHandling,
			"closing":            s.Closing,
		} {
			if v < 0 || v > 10 {
				return fmt.Errorf("scores.%s %d out of range 0-10", name, v)
			}
		}
	}
	for i, e := range w.Errors {
		if !e.Severity.Valid() {
			return fmt.Errorf("errors[%d]: unknown severity %q", i, e.Severity)
		}
	}
	return nil
}

func malformed(cause error) error {
	return types.NewError(types.KindMalformedAnalysisResponse,
		fmt.Sprintf("The analysis service returned an invalid report: %v", cause), cause)
}

// extractJSON finds the first balanced JSON object in a string and returns it.
// It strips common markdown fences first.
func extractJSON(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ReplaceAll(s, "\r\n", "\n")
	for _, r := range []string{"```json", "```", "`json"} {
		s = strings.ReplaceAll(s, r, "")
	}

	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start : i+1])
			}
		}
	}

	// no balanced found
	return ""
}
