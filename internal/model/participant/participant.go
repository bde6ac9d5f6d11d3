package participant

import "time"

// Group 是参与者在问卷中被划分的立场组。
type Group string

const (
	GroupA  Group = "groupA"
	GroupB  Group = "groupB"
	Neutral Group = "neutral"
)

// Opposite returns the group a participant is paired against. Neutral has no
// opposite and maps to itself.
func (g Group) Opposite() Group {
	switch g {
	case GroupA:
		return GroupB
	case GroupB:
		return GroupA
	default:
		return g
	}
}

// Pairable reports whether the group takes part in matchmaking.
func (g Group) Pairable() bool {
	return g == GroupA || g == GroupB
}

// Labels maps the internal groups to the names used on the wire and in
// persisted records.
type Labels struct {
	A string
	B string
}

// DefaultLabels 对应气候议题问卷的两组标签。
func DefaultLabels() Labels {
	return Labels{A: "pro_climate", B: "anti_climate"}
}

// Of returns the external label of g.
func (l Labels) Of(g Group) string {
	switch g {
	case GroupA:
		return l.A
	case GroupB:
		return l.B
	default:
		return string(Neutral)
	}
}

// Participant 问卷提交后创建，此后不再修改。
type Participant struct {
	ID             string         `json:"participantId"`
	ExternalID     string         `json:"prolificId"`
	Group          Group          `json:"group"`
	Classification string         `json:"classification"`
	Score          int            `json:"classificationScore"`
	Responses      map[string]any `json:"surveyResponses"`
	JoinedAt       time.Time      `json:"timestampJoined"`

	PersonalViews      string `json:"-"`
	InfluencingFactors string `json:"-"`
}
