package brainy_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/playperu/brainy/internal/brainy"
)

func TestStepOrder(t *testing.T) {
	all := brainy.Steps()
	if len(all) != 8 {
		t.Fatalf("got %d steps, want 8", len(all))
	}
	for i, s := range all {
		if s.Index() != i {
			t.Errorf("%s index = %d, want %d", s, s.Index(), i)
		}
	}

	tests := []struct {
		step  brainy.Step
		next  brainy.Step
		phase brainy.Phase
		count brainy.CountType
	}{
		{brainy.StepGenIdea, brainy.StepVoteIdea, brainy.PhaseBrainstorm, brainy.CountNumIdeas},
		{brainy.StepVoteIdea, brainy.StepReviewIdea, brainy.PhaseBrainstorm, brainy.CountNumVotes},
		{brainy.StepReviewIdea, brainy.StepGenSketch, brainy.PhaseBrainstorm, brainy.CountNumPopular},
		{brainy.StepReviewSketch, brainy.StepCreateStoryboard, brainy.PhaseSketch, brainy.CountNumPopular},
		{brainy.StepViewStoryboard, brainy.StepViewStoryboard, brainy.PhaseShare, brainy.CountNone},
		{"", brainy.StepGenIdea, "", brainy.CountNone},
	}
	for _, tt := range tests {
		if got := tt.step.Next(); got != tt.next {
			t.Errorf("%q.Next() = %q, want %q", tt.step, got, tt.next)
		}
		if got := tt.step.Phase(); got != tt.phase {
			t.Errorf("%q.Phase() = %q, want %q", tt.step, got, tt.phase)
		}
		if got := tt.step.CountType(); got != tt.count {
			t.Errorf("%q.CountType() = %q, want %q", tt.step, got, tt.count)
		}
	}
}

func TestParseStep(t *testing.T) {
	if s, err := brainy.ParseStep("VOTE_SKETCH"); err != nil || s != brainy.StepVoteSketch {
		t.Errorf("ParseStep(VOTE_SKETCH) = %q, %v", s, err)
	}
	if _, err := brainy.ParseStep("vote_sketch"); err == nil {
		t.Error("expected error for lower-case step")
	}
}

func TestVote(t *testing.T) {
	idea := brainy.Idea{ID: "i1", Votes: 0}
	voted := idea.Vote()
	if voted.Votes != 1 {
		t.Errorf("votes = %d, want 1", voted.Votes)
	}
	if idea.Votes != 0 {
		t.Errorf("original mutated: votes = %d", idea.Votes)
	}
}

func TestStartSessionIsSticky(t *testing.T) {
	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	g := brainy.Game{}.StartSession(first)
	g = g.StartSession(first.Add(time.Hour))
	if !g.SessionStart.Equal(first) {
		t.Errorf("session start = %v, want %v", g.SessionStart, first)
	}
}

func TestStepCounts(t *testing.T) {
	fg := brainy.FullGame{
		Game: brainy.Game{ID: "g1", Step: brainy.StepGenIdea},
		Ideas: []brainy.Idea{
			{ID: "a", Origin: brainy.OriginBrainstorm, Votes: 2},
			{ID: "b", Origin: brainy.OriginBrainstorm},
			{ID: "c", Origin: brainy.OriginSketch, Votes: 1},
			{ID: "d", Origin: brainy.OriginStorySetting},
		},
	}

	tests := []struct {
		step brainy.Step
		want int
	}{
		{brainy.StepGenIdea, 2},
		{brainy.StepVoteIdea, 2},
		{brainy.StepReviewIdea, 1},
		{brainy.StepGenSketch, 1},
		{brainy.StepVoteSketch, 1},
		{brainy.StepReviewSketch, 1},
		{brainy.StepCreateStoryboard, 1},
		{brainy.StepViewStoryboard, 0},
	}
	counts := brainy.StepCounts(fg)
	for _, tt := range tests {
		if got := brainy.StepCount(fg, tt.step); got != tt.want {
			t.Errorf("StepCount(%s) = %d, want %d", tt.step, got, tt.want)
		}
		if counts[tt.step] != tt.want {
			t.Errorf("StepCounts[%s] = %d, want %d", tt.step, counts[tt.step], tt.want)
		}
	}
}

func TestCloneDoesNotShare(t *testing.T) {
	fg := brainy.FullGame{Ideas: []brainy.Idea{{ID: "a"}}}
	c := fg.Clone()
	c.Ideas[0].Title = "changed"
	if fg.Ideas[0].Title != "" {
		t.Error("clone shares idea slice")
	}
}

func TestJSONFieldNames(t *testing.T) {
	data, err := json.Marshal(brainy.Idea{ID: "i", GameID: "g", Origin: brainy.OriginSketch, Votes: 3})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"id":"i","gameId":"g","playerId":"","playerName":"","origin":"SKETCH","votes":3}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}

	var g brainy.Game
	if err := json.Unmarshal([]byte(`{"id":"g","step":"REVIEW_SKETCH","pin":1234}`), &g); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if g.Step != brainy.StepReviewSketch || g.Pin != 1234 {
		t.Errorf("got %+v", g)
	}
}
