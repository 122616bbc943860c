package brainy

import (
	"fmt"
	"time"
)

type Phase string

const (
	PhaseBrainstorm Phase = "BRAINSTORM"
	PhaseSketch     Phase = "SKETCH"
	PhaseShare      Phase = "SHARE"
)

type CountType string

const (
	CountNumIdeas   CountType = "NUM_IDEAS"
	CountNumVotes   CountType = "NUM_VOTES"
	CountNumPopular CountType = "NUM_POPULAR"
	CountNone       CountType = "NONE"
)

// Step is one stage of the game progression. Steps are ordered; use Index
// to compare them.
type Step string

const (
	StepGenIdea          Step = "GEN_IDEA"
	StepVoteIdea         Step = "VOTE_IDEA"
	StepReviewIdea       Step = "REVIEW_IDEA"
	StepGenSketch        Step = "GEN_SKETCH"
	StepVoteSketch       Step = "VOTE_SKETCH"
	StepReviewSketch     Step = "REVIEW_SKETCH"
	StepCreateStoryboard Step = "CREATE_STORYBOARD"
	StepViewStoryboard   Step = "VIEW_STORYBOARD"
)

type stepInfo struct {
	step     Step
	phase    Phase
	duration time.Duration
	count    CountType
}

var steps = []stepInfo{
	{StepGenIdea, PhaseBrainstorm, 120 * time.Second, CountNumIdeas},
	{StepVoteIdea, PhaseBrainstorm, 60 * time.Second, CountNumVotes},
	{StepReviewIdea, PhaseBrainstorm, 30 * time.Second, CountNumPopular},
	{StepGenSketch, PhaseSketch, 180 * time.Second, CountNumIdeas},
	{StepVoteSketch, PhaseSketch, 60 * time.Second, CountNumVotes},
	{StepReviewSketch, PhaseSketch, 30 * time.Second, CountNumPopular},
	{StepCreateStoryboard, PhaseShare, 300 * time.Second, CountNumIdeas},
	{StepViewStoryboard, PhaseShare, 0, CountNone},
}

// Steps returns every step in game order.
func Steps() []Step {
	out := make([]Step, len(steps))
	for i, s := range steps {
		out[i] = s.step
	}
	return out
}

// Index returns the position of s in game order, or -1 for an unknown step.
func (s Step) Index() int {
	for i, info := range steps {
		if info.step == s {
			return i
		}
	}
	return -1
}

func (s Step) Valid() bool { return s.Index() >= 0 }

func (s Step) info() stepInfo {
	if i := s.Index(); i >= 0 {
		return steps[i]
	}
	return stepInfo{step: s, count: CountNone}
}

func (s Step) Phase() Phase            { return s.info().phase }
func (s Step) Duration() time.Duration { return s.info().duration }
func (s Step) CountType() CountType    { return s.info().count }

// Next returns the following step. An unset step starts the game and the
// final step returns itself.
func (s Step) Next() Step {
	i := s.Index()
	switch {
	case i < 0:
		return StepGenIdea
	case i == len(steps)-1:
		return s
	default:
		return steps[i+1].step
	}
}

func ParseStep(v string) (Step, error) {
	s := Step(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown step %q", v)
	}
	return s, nil
}

// Origins returns the idea origins that are produced during phase p.
func (p Phase) Origins() []Origin {
	switch p {
	case PhaseBrainstorm:
		return []Origin{OriginBrainstorm}
	case PhaseSketch:
		return []Origin{OriginSketch}
	case PhaseShare:
		return []Origin{OriginStorySetting, OriginStorySolution, OriginStoryResolution}
	}
	return nil
}
