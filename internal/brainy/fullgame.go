package brainy

// FullGame is the composite view of one game: the game record, the challenge
// it references, and every session and idea that belongs to it. Ideas of all
// origins are mixed in arrival order.
type FullGame struct {
	Game      Game            `json:"game"`
	Challenge Challenge       `json:"challenge"`
	Sessions  []PlayerSession `json:"sessions"`
	Ideas     []Idea          `json:"ideas"`
}

// Clone returns a copy of fg that shares no slices with it.
func (fg FullGame) Clone() FullGame {
	out := fg
	if fg.Game.SessionStart != nil {
		t := *fg.Game.SessionStart
		out.Game.SessionStart = &t
	}
	out.Sessions = append([]PlayerSession(nil), fg.Sessions...)
	out.Ideas = append([]Idea(nil), fg.Ideas...)
	return out
}

func (fg FullGame) IdeasByOrigin(origins ...Origin) []Idea {
	var out []Idea
	for _, idea := range fg.Ideas {
		for _, o := range origins {
			if idea.Origin == o {
				out = append(out, idea)
				break
			}
		}
	}
	return out
}

func (fg FullGame) Idea(id string) (Idea, bool) {
	for _, idea := range fg.Ideas {
		if idea.ID == id {
			return idea, true
		}
	}
	return Idea{}, false
}

func (fg FullGame) Session(id string) (PlayerSession, bool) {
	for _, s := range fg.Sessions {
		if s.ID == id {
			return s, true
		}
	}
	return PlayerSession{}, false
}

// SessionByUser returns the session the given user holds in this game.
func (fg FullGame) SessionByUser(userID string) (PlayerSession, bool) {
	for _, s := range fg.Sessions {
		if s.UserID == userID {
			return s, true
		}
	}
	return PlayerSession{}, false
}

// StepCount derives the progress counter for step from the current idea list.
// Nothing is persisted; the value is recomputed on every call.
func StepCount(fg FullGame, step Step) int {
	ideas := fg.IdeasByOrigin(step.Phase().Origins()...)

	switch step.CountType() {
	case CountNumIdeas:
		return len(ideas)
	case CountNumVotes:
		n := 0
		for _, idea := range ideas {
			n += idea.Votes
		}
		return n
	case CountNumPopular:
		n := 0
		for _, idea := range ideas {
			if idea.Votes > 0 {
				n++
			}
		}
		return n
	}
	return 0
}

// StepCounts returns StepCount for every step.
func StepCounts(fg FullGame) map[Step]int {
	out := make(map[Step]int, len(steps))
	for _, info := range steps {
		out[info.step] = StepCount(fg, info.step)
	}
	return out
}
