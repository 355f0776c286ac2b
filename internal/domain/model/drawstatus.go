package model

// DrawStatus is the lifecycle of a round's draw.
type DrawStatus string

const (
	DrawNotStarted        DrawStatus = "N"
	DrawDraft             DrawStatus = "D"
	DrawConfirmed         DrawStatus = "C"
	DrawReleasedTeamsOnly DrawStatus = "T"
	DrawReleasedFull      DrawStatus = "R"
)

var drawStatusOrder = map[DrawStatus]int{
	DrawNotStarted:        0,
	DrawDraft:             1,
	DrawConfirmed:         2,
	DrawReleasedTeamsOnly: 3,
	DrawReleasedFull:      4,
}

// Valid reports whether s is a known status.
func (s DrawStatus) Valid() bool {
	_, ok := drawStatusOrder[s]
	return ok
}

// AtLeast reports whether s is at or past o in the lifecycle.
func (s DrawStatus) AtLeast(o DrawStatus) bool {
	return drawStatusOrder[s] >= drawStatusOrder[o]
}

// Released reports whether teams can see the draw.
func (s DrawStatus) Released() bool { return s.AtLeast(DrawReleasedTeamsOnly) }

func (s DrawStatus) String() string {
	switch s {
	case DrawNotStarted:
		return "not started"
	case DrawDraft:
		return "draft"
	case DrawConfirmed:
		return "confirmed"
	case DrawReleasedTeamsOnly:
		return "released (teams only)"
	case DrawReleasedFull:
		return "released"
	}
	return "unknown"
}

// CanMoveTo reports whether the draw lifecycle allows s -> to. Confirming
// needs a draft; release states move freely among themselves once confirmed.
func (s DrawStatus) CanMoveTo(to DrawStatus) bool {
	switch to {
	case DrawConfirmed, DrawReleasedTeamsOnly, DrawReleasedFull:
		if s == DrawDraft {
			return to == DrawConfirmed
		}
		return s.AtLeast(DrawConfirmed)
	}
	return false
}
