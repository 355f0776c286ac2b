package model

import (
	"fmt"
	"strconv"
	"strings"
)

// TeamMetric is a rankable team metric in its canonical string form.
type TeamMetric string

const (
	MetricWins                     TeamMetric = "wins"
	MetricBallots                  TeamMetric = "ballots"
	MetricTotalSpeakerScore        TeamMetric = "total_speaker_score"
	MetricAverageTotalSpeakerScore TeamMetric = "avg_total_speaker_score"
	MetricDrawStrengthByWins       TeamMetric = "draw_strength_by_wins"
	MetricDrawStrengthBySpeaks     TeamMetric = "draw_strength_by_speaks"

	nTimesPrefix = "n_times_achieved:"
)

// NTimesAchieved counts the debates in which a team took exactly k points.
func NTimesAchieved(k uint8) TeamMetric {
	return TeamMetric(nTimesPrefix + strconv.Itoa(int(k)))
}

// Achieved returns k for an NTimesAchieved metric.
func (m TeamMetric) Achieved() (uint8, bool) {
	rest, ok := strings.CutPrefix(string(m), nTimesPrefix)
	if !ok {
		return 0, false
	}
	k, err := strconv.ParseUint(rest, 10, 8)
	if err != nil || strconv.Itoa(int(k)) != rest {
		return 0, false
	}
	return uint8(k), true
}

// ParseTeamMetric parses a canonical team metric string.
func ParseTeamMetric(s string) (TeamMetric, error) {
	m := TeamMetric(s)
	switch m {
	case MetricWins, MetricBallots, MetricTotalSpeakerScore, MetricAverageTotalSpeakerScore,
		MetricDrawStrengthByWins, MetricDrawStrengthBySpeaks:
		return m, nil
	}
	if _, ok := m.Achieved(); ok {
		return m, nil
	}
	return "", fmt.Errorf("%w: team metric %q", ErrUnknownMetric, s)
}

func (m TeamMetric) MarshalText() ([]byte, error) {
	if _, err := ParseTeamMetric(string(m)); err != nil {
		return nil, err
	}
	return []byte(m), nil
}

func (m *TeamMetric) UnmarshalText(b []byte) error {
	v, err := ParseTeamMetric(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// PullupMetric orders candidates for a pull-up.
type PullupMetric string

const (
	PullupLowestRank           PullupMetric = "lowest_rank"
	PullupHighestRank          PullupMetric = "highest_rank"
	PullupRandom               PullupMetric = "random"
	PullupFewerPreviousPullups PullupMetric = "fewer_previous_pullups"
	PullupLowestDsRank         PullupMetric = "lowest_ds_rank"
	PullupLowestDsSpeaks       PullupMetric = "lowest_ds_speaks"
)

// ParsePullupMetric parses a canonical pull-up metric string.
func ParsePullupMetric(s string) (PullupMetric, error) {
	switch m := PullupMetric(s); m {
	case PullupLowestRank, PullupHighestRank, PullupRandom, PullupFewerPreviousPullups,
		PullupLowestDsRank, PullupLowestDsSpeaks:
		return m, nil
	}
	return "", fmt.Errorf("%w: pullup metric %q", ErrUnknownMetric, s)
}

func (m PullupMetric) MarshalText() ([]byte, error) {
	if _, err := ParsePullupMetric(string(m)); err != nil {
		return nil, err
	}
	return []byte(m), nil
}

func (m *PullupMetric) UnmarshalText(b []byte) error {
	v, err := ParsePullupMetric(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// SpeakerMetric ranks speakers.
type SpeakerMetric string

const (
	SpeakerAvg    SpeakerMetric = "avg"
	SpeakerTotal  SpeakerMetric = "total"
	SpeakerStdDev SpeakerMetric = "stddev"
)

// ParseSpeakerMetric parses a canonical speaker metric string.
func ParseSpeakerMetric(s string) (SpeakerMetric, error) {
	switch m := SpeakerMetric(s); m {
	case SpeakerAvg, SpeakerTotal, SpeakerStdDev:
		return m, nil
	}
	return "", fmt.Errorf("%w: speaker metric %q", ErrUnknownMetric, s)
}

func (m SpeakerMetric) MarshalText() ([]byte, error) {
	if _, err := ParseSpeakerMetric(string(m)); err != nil {
		return nil, err
	}
	return []byte(m), nil
}

func (m *SpeakerMetric) UnmarshalText(b []byte) error {
	v, err := ParseSpeakerMetric(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
