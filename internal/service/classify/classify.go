package classify

import "github.com/zhouzirui/crossview/backend/internal/model/participant"

// ScoreField is the survey key holding the 1–7 agreement score.
const ScoreField = "climate_human_causation"

const (
	MinScore = 1
	MaxScore = 7
)

// Classify maps an agreement score to a group: 5 and above agree, 3 and
// below disagree, 4 is neutral. The caller validates presence and range.
func Classify(score int) participant.Group {
	switch {
	case score >= 5:
		return participant.GroupA
	case score <= 3:
		return participant.GroupB
	default:
		return participant.Neutral
	}
}
