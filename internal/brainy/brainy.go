// Package brainy defines the core domain types of the icebreaker game.
// It depends on nothing outside the standard library and does no I/O.
package brainy

import "time"

type Category string

const (
	CategoryChallenge Category = "CHALLENGE"
	CategoryLesson    Category = "LESSON"
)

// Challenge is a published game scenario. HowMightWe is only set for
// challenges and VideoURI only for lessons.
type Challenge struct {
	ID          string   `json:"id"`
	ImageURI    string   `json:"imageUri"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	HowMightWe  string   `json:"howMightWe,omitempty"`
	VideoURI    string   `json:"videoUri,omitempty"`
}

type Game struct {
	ID               string     `json:"id"`
	ChallengeID      string     `json:"challengeId"`
	CreatorID        string     `json:"creatorId"`
	Pin              int        `json:"pin"`
	SessionStart     *time.Time `json:"sessionStart"`
	Step             Step       `json:"step"`
	StoryTitle       string     `json:"storyTitle,omitempty"`
	StoryDescription string     `json:"storyDescription,omitempty"`
}

// Advance returns a copy of g moved to the next step. The last step is sticky.
func (g Game) Advance() Game {
	g.Step = g.Step.Next()
	return g
}

// StartSession returns a copy of g with the session start stamped, unless it
// was already set.
func (g Game) StartSession(now time.Time) Game {
	if g.SessionStart == nil {
		t := now.UTC()
		g.SessionStart = &t
	}
	return g
}

type PlayerSession struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	GameID   string `json:"gameId"`
	Name     string `json:"name"`
	ImageURI string `json:"imageUri,omitempty"`
}

type Origin string

const (
	OriginBrainstorm      Origin = "BRAINSTORM"
	OriginSketch          Origin = "SKETCH"
	OriginStorySetting    Origin = "STORY_SETTING"
	OriginStorySolution   Origin = "STORY_SOLUTION"
	OriginStoryResolution Origin = "STORY_RESOLUTION"
)

func (o Origin) Valid() bool {
	switch o {
	case OriginBrainstorm, OriginSketch, OriginStorySetting, OriginStorySolution, OriginStoryResolution:
		return true
	}
	return false
}

type Idea struct {
	ID         string `json:"id"`
	GameID     string `json:"gameId"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Origin     Origin `json:"origin"`
	Votes      int    `json:"votes"`
	Title      string `json:"title,omitempty"`
	ImageURI   string `json:"imageUri,omitempty"`
}

// Vote returns a copy of i with one more vote.
func (i Idea) Vote() Idea {
	i.Votes++
	return i
}
