package aggregator

import (
	"chat-audit-go/internal/processor"
	"chat-audit-go/internal/types"
)

type Insight struct {
	Files            int                      `json:"files"`
	Failed           int                      `json:"failed"`
	ByRoute          map[types.Route]int      `json:"by_route"`
	FailuresByKind   map[types.ErrorKind]int  `json:"failures_by_kind"`
	Media            types.Coverage           `json:"media"`
	MediaFailureRate float64                  `json:"media_failure_rate"`
	Analyzed         int                      `json:"analyzed"`
	AvgScore         float64                  `json:"avg_score"`
	ByStage          map[types.SalesStage]int `json:"by_stage"`
}

func Aggregate(results []processor.Result) Insight {
	ins := Insight{
		Files:          len(results),
		ByRoute:        map[types.Route]int{},
		FailuresByKind: map[types.ErrorKind]int{},
		ByStage:        map[types.SalesStage]int{},
	}
	scoreSum := 0
	for _, r := range results {
		if r.Failed() {
			ins.Failed++
			kind := r.ErrorKind
			if kind == "" {
				kind = "other"
			}
			ins.FailuresByKind[kind]++
			continue
		}
		ins.ByRoute[r.Route]++
		ins.Media.MediaFound += r.Coverage.MediaFound
		ins.Media.MediaTranscribed += r.Coverage.MediaTranscribed
		ins.Media.MediaFailed += r.Coverage.MediaFailed
		ins.Media.MediaSkipped += r.Coverage.MediaSkipped
		if r.Report != nil {
			ins.Analyzed++
			scoreSum += r.Report.OverallScore
			ins.ByStage[r.Report.Stage]++
		}
	}
	if attempted := ins.Media.MediaTranscribed + ins.Media.MediaFailed; attempted > 0 {
		ins.MediaFailureRate = float64(ins.Media.MediaFailed) / float64(attempted)
	}
	if ins.Analyzed > 0 {
		ins.AvgScore = float64(scoreSum) / float64(ins.Analyzed)
	}
	return ins
}
