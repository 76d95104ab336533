package matching

// Decision reasons.
const (
	ReasonNoCandidate  = "no_candidate"
	ReasonNameFloor    = "name_below_floor"
	ReasonOverallFloor = "overall_below_floor"
	ReasonAccepted     = "accepted"
)

// Policy is the two-gate acceptance rule. Both floors are inclusive.
type Policy struct {
	NameFloor    float64 `json:"name_floor"`
	OverallFloor float64 `json:"overall_floor"`
	// AmbiguityBand is the distance below a floor, in points, at which a
	// decision is flagged for audit when the other gate passed.
	AmbiguityBand float64 `json:"ambiguity_band"`
}

// DefaultPolicy returns the standard 80/85 gates.
func DefaultPolicy() Policy {
	return Policy{NameFloor: 80, OverallFloor: 85, AmbiguityBand: 5}
}

// Decision is the outcome of applying the policy to one candidate.
type Decision struct {
	Matched       bool   `json:"matched"`
	Ambiguous     bool   `json:"ambiguous"`
	NamePassed    bool   `json:"name_passed"`
	OverallPassed bool   `json:"overall_passed"`
	Reason        string `json:"reason"`
}

// Decide applies both gates. A weak name rejects regardless of the other fields.
func (p Policy) Decide(candidate *Candidate, overallScore, nameScore float64) Decision {
	if candidate == nil {
		return Decision{Reason: ReasonNoCandidate}
	}

	d := Decision{
		NamePassed:    nameScore >= p.NameFloor,
		OverallPassed: overallScore >= p.OverallFloor,
	}
	switch {
	case !d.NamePassed:
		d.Reason = ReasonNameFloor
		d.Ambiguous = d.OverallPassed && nameScore >= p.NameFloor-p.AmbiguityBand
	case !d.OverallPassed:
		d.Reason = ReasonOverallFloor
		d.Ambiguous = overallScore >= p.OverallFloor-p.AmbiguityBand
	default:
		d.Matched = true
		d.Reason = ReasonAccepted
	}
	return d
}
