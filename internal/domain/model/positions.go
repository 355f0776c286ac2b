package model

import "fmt"

var bpSpeakers = [2][2][2]string{
	{{"PM", "DPM"}, {"MG", "GW"}},
	{{"LO", "DLO"}, {"MO", "OW"}},
}

// SideName names the team seat at (side, seq).
func SideName(s *Settings, side, seq int, short bool) string {
	switch {
	case s.TeamsPerSide == 1 && side == 0:
		return pick(short, "Gov", "Government")
	case s.TeamsPerSide == 1 && side == 1:
		return pick(short, "Opp", "Opposition")
	case s.TeamsPerSide == 2 && side == 0 && seq == 0:
		return pick(short, "OG", "Opening Government")
	case s.TeamsPerSide == 2 && side == 1 && seq == 0:
		return pick(short, "OO", "Opening Opposition")
	case s.TeamsPerSide == 2 && side == 0 && seq == 1:
		return pick(short, "CG", "Closing Government")
	case s.TeamsPerSide == 2 && side == 1 && seq == 1:
		return pick(short, "CO", "Closing Opposition")
	}
	if side == 0 {
		return fmt.Sprintf("%s %d", pick(short, "Prop", "Proposition"), seq)
	}
	return fmt.Sprintf("%s %d", pick(short, "Opp", "Opposition"), seq)
}

// SpeakerPositionName names speech pos of the team at (side, seq).
func SpeakerPositionName(s *Settings, side, seq, pos int) string {
	if pos == s.ReplyPosition() {
		return SideName(s, side, seq, true) + " Reply"
	}
	if s.TeamsPerSide == 2 && s.SubstantiveSpeakers == 2 && side >= 0 && side < 2 && seq >= 0 && seq < 2 && pos >= 0 && pos < 2 {
		return bpSpeakers[side][seq][pos]
	}
	return fmt.Sprintf("%s %d", SideName(s, side, seq, true), pos+1)
}

func pick(short bool, a, b string) string {
	if short {
		return a
	}
	return b
}
