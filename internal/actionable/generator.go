package actionable

import (
	"fmt"

	"chat-audit-go/internal/aggregator"
	"chat-audit-go/internal/types"
)

type ActionCard struct {
	Insight string `json:"insight"`
	Action  string `json:"action"`
	Impact  string `json:"impact"`
}

// Generate picks the most pressing operator hint; rules are checked in priority order.
func Generate(ins aggregator.Insight) ActionCard {
	if ins.Files == 0 {
		return ActionCard{
			Insight: "No files processed",
			Action:  "Run a batch or upload conversations",
			Impact:  "None",
		}
	}

	failRate := float64(ins.Failed) / float64(ins.Files)
	if failRate >= 0.5 {
		kind, n := worstKind(ins.FailuresByKind)
		return ActionCard{
			Insight: fmt.Sprintf("%.0f%% of files failed ingestion (most often %s, %d files)", failRate*100, kind, n),
			Action:  hintFor(kind),
			Impact:  "Most uploads produce no report",
		}
	}
	if ins.MediaFailureRate >= 0.35 {
		return ActionCard{
			Insight: fmt.Sprintf("High media transcription failure rate (%.0f%%)", ins.MediaFailureRate*100),
			Action:  "Check the transcription backend keys and quota; review warnings with kind=audio/image",
			Impact:  "Voice notes and images are missing from analyses",
		}
	}
	if ins.Media.MediaSkipped > 0 && ins.Media.MediaSkipped >= ins.Media.MediaTranscribed {
		return ActionCard{
			Insight: fmt.Sprintf("%d media files skipped by the per-archive budget", ins.Media.MediaSkipped),
			Action:  "Raise ingest.max_media if latency and cost allow",
			Impact:  "Later voice notes in long chats are not analyzed",
		}
	}
	return ActionCard{
		Insight: "No strong ingestion problem detected",
		Action:  "Monitor and collect more data",
		Impact:  "Low immediate intervention",
	}
}

func worstKind(m map[types.ErrorKind]int) (types.ErrorKind, int) {
	var worst types.ErrorKind
	highest := 0
	for k, v := range m {
		if v > highest || (v == highest && k < worst) {
			highest = v
			worst = k
		}
	}
	return worst, highest
}

func hintFor(kind types.ErrorKind) string {
	switch kind {
	case types.KindUnsupportedFormat:
		return "Tell users to upload .txt or .zip chat exports, or screenshots"
	case types.KindCorruptArchive, types.KindNoTranscriptFound:
		return "Ask users to re-export the chat including the conversation text"
	case types.KindInsufficientText:
		return "Ask users for sharper, uncropped screenshots"
	case types.KindRecognitionError:
		return "Check the OCR backend availability"
	case types.KindMalformedAnalysisResponse:
		return "Check the analysis model and prompt; responses do not match the report schema"
	default:
		return "Inspect the failure logs"
	}
}
