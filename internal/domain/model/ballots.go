package model

// LatestBallots keeps the highest version per (debate, judge).
func LatestBallots(all []Ballot) []Ballot {
	type key struct{ debate, judge string }
	best := make(map[key]int, len(all))
	out := make([]Ballot, 0, len(all))
	for _, b := range all {
		k := key{b.DebateID, b.JudgeID}
		if i, ok := best[k]; ok {
			if b.Version > out[i].Version {
				out[i] = b
			}
			continue
		}
		best[k] = len(out)
		out = append(out, b)
	}
	return out
}
