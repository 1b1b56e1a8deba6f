package domain

import (
	"fmt"
	"strings"
)

// VoteType classifies how the MPC opinion relates to the TCE report.
type VoteType string

const (
	VoteUnset              VoteType = ""
	VoteConvergent         VoteType = "convergente"
	VoteDivergent          VoteType = "divergente"
	VotePartiallyDivergent VoteType = "parcialmente divergente"
	// VoteNoMeritAnalysis: the case reached the MPC but it did not analyse the merit.
	VoteNoMeritAnalysis VoteType = "não houve análise de mérito pelo MPC"
	// VoteNotRouted: the case files never went through the MPC.
	VoteNotRouted VoteType = "autos não tramitaram pelo MPC"
)

// VoteTypes lists the selectable variants in display order.
var VoteTypes = []VoteType{
	VoteNoMeritAnalysis,
	VoteNotRouted,
	VoteConvergent,
	VoteDivergent,
	VotePartiallyDivergent,
}

// OpinionRule says whether the MPC opinion must be filled and whether the
// exported document carries an "MPC opinion" subsection.
type OpinionRule struct {
	Required bool
	// Show: always, never, or only when the opinion text is non-empty.
	Show OpinionVisibility
}

type OpinionVisibility int

const (
	ShowAlways OpinionVisibility = iota
	ShowNever
	ShowIfPresent
)

var opinionRules = map[VoteType]OpinionRule{
	VoteUnset:              {Required: false, Show: ShowAlways},
	VoteConvergent:         {Required: true, Show: ShowAlways},
	VoteDivergent:          {Required: true, Show: ShowAlways},
	VotePartiallyDivergent: {Required: true, Show: ShowAlways},
	VoteNoMeritAnalysis:    {Required: false, Show: ShowNever},
	VoteNotRouted:          {Required: false, Show: ShowIfPresent},
}

// ParseVoteType accepts a variant value, case and surrounding space insensitive.
func ParseVoteType(s string) (VoteType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return VoteUnset, nil
	}
	for v := range opinionRules {
		if strings.ToLower(string(v)) == key {
			return v, nil
		}
	}
	return "", fmt.Errorf("invalid vote type %q", s)
}

// Valid reports whether v is a known variant (including unset).
func (v VoteType) Valid() bool {
	_, ok := opinionRules[v]
	return ok
}

// OpinionRule returns the inclusion rule of the variant. Unknown values get
// the unset rule.
func (v VoteType) OpinionRule() OpinionRule {
	if r, ok := opinionRules[v]; ok {
		return r
	}
	return opinionRules[VoteUnset]
}

// IncludesOpinion reports whether an opinion with the given text is shown.
func (v VoteType) IncludesOpinion(opinion string) bool {
	switch v.OpinionRule().Show {
	case ShowAlways:
		return true
	case ShowNever:
		return false
	default:
		return strings.TrimSpace(opinion) != ""
	}
}

// Label is the human readable name.
func (v VoteType) Label() string {
	switch v {
	case VoteConvergent:
		return "Convergente"
	case VoteDivergent:
		return "Divergente"
	case VotePartiallyDivergent:
		return "Parcialmente Divergente"
	case VoteNoMeritAnalysis:
		return "Não houve análise de mérito pelo MPC"
	case VoteNotRouted:
		return "Autos não tramitaram pelo MPC"
	}
	return string(v)
}
