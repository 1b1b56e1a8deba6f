package assemble

import (
	"strings"

	"pauta/internal/domain"
)

// DefaultSummaryPageOffset is the first page number after cover and summary.
const DefaultSummaryPageOffset = 4

const noCounselor = "Sem Conselheiro"

type Summary struct {
	Groups []SummaryGroup
}

type SummaryGroup struct {
	Counselor string
	Page      int
	Entries   []SummaryEntry
}

type SummaryEntry struct {
	Position      int
	ProcessNumber string
	Page          int
}

// Lines counts group headers plus entries.
func (s Summary) Lines() int {
	n := 0
	for _, g := range s.Groups {
		n += 1 + len(g.Entries)
	}
	return n
}

// BuildSummary groups processes by counselor in first-seen order. Page
// numbers are an estimate: a counter starting at offset that advances once
// per process. Only monotonicity is guaranteed.
func BuildSummary(processes []domain.Process, offset int) Summary {
	if offset <= 0 {
		offset = DefaultSummaryPageOffset
	}
	index := map[string]int{}
	var groups []SummaryGroup
	for _, p := range processes {
		name := strings.TrimSpace(p.CounselorName)
		if name == "" {
			name = noCounselor
		}
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, SummaryGroup{Counselor: name})
		}
		groups[i].Entries = append(groups[i].Entries, SummaryEntry{
			Position:      p.Position,
			ProcessNumber: strings.TrimSpace(p.ProcessNumber),
		})
	}
	page := offset
	for gi := range groups {
		groups[gi].Page = page
		for ei := range groups[gi].Entries {
			groups[gi].Entries[ei].Page = page
			page++
		}
	}
	return Summary{Groups: groups}
}
