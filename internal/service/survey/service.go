package survey

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/crossview/backend/internal/metrics"
	"github.com/zhouzirui/crossview/backend/internal/model/participant"
	"github.com/zhouzirui/crossview/backend/internal/service/classify"
	"github.com/zhouzirui/crossview/backend/internal/service/scheduler"
	"github.com/zhouzirui/crossview/backend/internal/store"
)

// Free-text survey answers shown to the chat partner.
const (
	PersonalViewsField      = "overall_perspective"
	InfluencingFactorsField = "opinion_influences"
)

// Redirect targets returned after a submission.
const (
	RedirectExit    = "/exit-survey"
	RedirectWaiting = "/waiting"
)

var (
	ErrInvalidSubmission = errors.New("invalid survey submission")
	ErrMissingScore      = errors.New("missing " + classify.ScoreField + " response")
)

// Submission 问卷提交内容。
type Submission struct {
	ExternalID string         `json:"externalId" validate:"omitempty,max=128"`
	Responses  map[string]any `json:"responses" validate:"required"`
}

// Result is returned to the survey page.
type Result struct {
	Success        bool   `json:"success"`
	ParticipantID  string `json:"participantId"`
	Classification string `json:"classification"`
	Redirect       string `json:"redirect"`
}

// ExitSurvey 退出问卷，按参与者 ID 存储。
type ExitSurvey struct {
	ParticipantID string         `json:"participantId" validate:"required,max=64"`
	Responses     map[string]any `json:"responses"`
	SubmittedAt   time.Time      `json:"submittedAt"`
}

type score struct {
	Value int `validate:"min=1,max=7"`
}

// Service classifies survey submissions and registers participants.
type Service struct {
	sched    *scheduler.Scheduler
	registry participant.Registry
	store    store.Store
	labels   participant.Labels
	metrics  *metrics.Metrics
	validate *validator.Validate
	log      *zap.Logger
}

// NewService wires the survey flow. Metrics and log may be nil.
func NewService(sched *scheduler.Scheduler, registry participant.Registry, st store.Store, labels participant.Labels, m *metrics.Metrics, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		sched:    sched,
		registry: registry,
		store:    st,
		labels:   labels,
		metrics:  m,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log.Named("survey"),
	}
}

// Submit validates and classifies a submission, then registers and persists
// the new participant.
func (s *Service) Submit(ctx context.Context, sub Submission) (Result, error) {
	if err := s.validate.Struct(sub); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}
	value, err := Score(sub.Responses)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}
	if err := s.validate.Struct(score{Value: value}); err != nil {
		return Result{}, fmt.Errorf("%w: %s must be between %d and %d", ErrInvalidSubmission,
			classify.ScoreField, classify.MinScore, classify.MaxScore)
	}

	group := classify.Classify(value)
	p := participant.Participant{
		ExternalID:         sub.ExternalID,
		Group:              group,
		Classification:     s.labels.Of(group),
		Score:              value,
		Responses:          sub.Responses,
		JoinedAt:           s.sched.Now(),
		PersonalViews:      text(sub.Responses, PersonalViewsField),
		InfluencingFactors: text(sub.Responses, InfluencingFactorsField),
	}

	s.sched.Do(func() {
		for {
			p.ID = newParticipantID()
			if err = s.registry.Register(p); !errors.Is(err, participant.ErrDuplicateParticipant) {
				break
			}
		}
	})
	if err != nil {
		return Result{}, err
	}

	if err := s.store.Put(ctx, store.Participants, p.ID, p); err != nil {
		s.metrics.StoreWriteFailed(store.Participants)
		s.log.Error("store_write_failed",
			zap.String("collection", store.Participants),
			zap.String("key", p.ID),
			zap.Error(err))
	}
	s.metrics.ParticipantRegistered(p.Classification)
	s.log.Info("participant_registered",
		zap.String("participant", p.ID),
		zap.String("classification", p.Classification),
		zap.Int("score", value))

	redirect := RedirectWaiting
	if group == participant.Neutral {
		redirect = RedirectExit
	}
	return Result{
		Success:        true,
		ParticipantID:  p.ID,
		Classification: p.Classification,
		Redirect:       redirect,
	}, nil
}

// SaveExitSurvey stores the exit questionnaire of a participant.
func (s *Service) SaveExitSurvey(ctx context.Context, exit ExitSurvey) error {
	if err := s.validate.Struct(exit); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}
	exit.SubmittedAt = s.sched.Now()
	if err := s.store.Put(ctx, store.ExitSurveys, exit.ParticipantID, exit); err != nil {
		s.metrics.StoreWriteFailed(store.ExitSurveys)
		return fmt.Errorf("save exit survey: %w", err)
	}
	s.log.Info("exit_survey_saved", zap.String("participant", exit.ParticipantID))
	return nil
}

// Score extracts the integer agreement score. Survey pages post it either as
// a JSON number or as a form string.
func Score(responses map[string]any) (int, error) {
	raw, ok := responses[classify.ScoreField]
	if !ok || raw == nil {
		return 0, ErrMissingScore
	}
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%s is not an integer: %v", classify.ScoreField, v)
		}
		return int(v), nil
	case int:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return 0, ErrMissingScore
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%s is not an integer: %q", classify.ScoreField, v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%s has unsupported type %T", classify.ScoreField, raw)
	}
}

func text(responses map[string]any, field string) string {
	v, _ := responses[field].(string)
	return v
}

func newParticipantID() string {
	return "p_" + uuid.NewString()[:8]
}
