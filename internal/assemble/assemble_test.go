package assemble

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pauta/internal/domain"
	"pauta/internal/richtext"
)

func testAgenda() domain.Agenda {
	return domain.Agenda{ID: "ag-1", Type: "ordinária", Number: "12", Date: "2024-03-15"}
}

func proc(id string, pos int, counselor string) domain.Process {
	return domain.Process{
		ID:            id,
		AgendaID:      "ag-1",
		ProcessNumber: "P-" + id,
		CounselorName: counselor,
		Position:      pos,
		VoteType:      domain.VoteConvergent,
		Summary:       "<p>ementa " + id + "</p>",
		CreatedAt:     "2024-01-01T00:00:00Z",
	}
}

func TestBuildOrdersByPosition(t *testing.T) {
	doc, err := Build(Input{
		Agenda:    testAgenda(),
		Processes: []domain.Process{proc("c", 3, "A"), proc("a", 1, "A"), proc("b", 2, "A")},
	})
	require.NoError(t, err)
	require.Len(t, doc.Sections, 3)
	assert.Equal(t, "1 - Processo: P-a", doc.Sections[0].Heading)
	assert.Equal(t, "2 - Processo: P-b", doc.Sections[1].Heading)
	assert.Equal(t, "3 - Processo: P-c", doc.Sections[2].Heading)
}

func TestOrderTieBreak(t *testing.T) {
	x := proc("x", 1, "A")
	x.CreatedAt = "2024-01-02T00:00:00Z"
	y := proc("y", 1, "A")
	y.CreatedAt = "2024-01-01T00:00:00Z"
	z := proc("z", 1, "A")
	z.CreatedAt = "2024-01-01T00:00:00Z"

	in := []domain.Process{x, z, y}
	out := Order(in)
	assert.Equal(t, []string{"y", "z", "x"}, []string{out[0].ID, out[1].ID, out[2].ID})
	assert.Equal(t, "x", in[0].ID, "input must not be reordered")
}

func TestCover(t *testing.T) {
	cfg := domain.DocumentConfig{
		Header: domain.Letterhead{Content: "<p><strong>MPC</strong></p>", Alignment: domain.AlignLeft},
		Footer: domain.Letterhead{Content: "<p><br></p>"},
	}
	doc, err := Build(Input{Agenda: testAgenda(), Processes: []domain.Process{proc("a", 1, "A")}, Config: cfg})
	require.NoError(t, err)
	assert.Equal(t, "Pauta da Sessão Ordinária nº 12", doc.Cover.Title)
	assert.Equal(t, "15/03/2024", doc.Cover.Date)
	require.Len(t, doc.Cover.Header, 1)
	assert.True(t, doc.Cover.Header[0].Runs[0].Bold)
	assert.Equal(t, domain.AlignLeft, doc.Cover.HeaderAlignment)
	assert.Nil(t, doc.Cover.Footer)
	assert.Equal(t, domain.AlignCenter, doc.Cover.FooterAlignment)
}

func TestSessionTitle(t *testing.T) {
	assert.Equal(t, "Sessão Ordinária", SessionTitle("ordinária"))
	assert.Equal(t, "Sessão Ordinária", SessionTitle("Sessão Ordinária"))
	assert.Equal(t, "Sessão Extraordinária Administrativa", SessionTitle("SESSÃO EXTRAORDINÁRIA ADMINISTRATIVA"))
}

func TestSummaryGroupsFirstSeen(t *testing.T) {
	doc, err := Build(Input{
		Agenda: testAgenda(),
		Processes: []domain.Process{
			proc("1", 1, "A"), proc("2", 2, "B"), proc("3", 3, "A"), proc("4", 4, " "),
		},
	})
	require.NoError(t, err)
	groups := doc.Summary.Groups
	require.Len(t, groups, 3)
	assert.Equal(t, "A", groups[0].Counselor)
	assert.Equal(t, "B", groups[1].Counselor)
	assert.Equal(t, "Sem Conselheiro", groups[2].Counselor)
	require.Len(t, groups[0].Entries, 2)
	assert.Equal(t, 1, groups[0].Entries[0].Position)
	assert.Equal(t, 3, groups[0].Entries[1].Position)
	assert.Equal(t, 7, doc.Summary.Lines())

	prev := 0
	for _, g := range groups {
		for _, e := range g.Entries {
			assert.GreaterOrEqual(t, e.Page, prev)
			prev = e.Page
		}
	}
	assert.Equal(t, DefaultSummaryPageOffset, groups[0].Page)
}

func TestBuildPreconditions(t *testing.T) {
	_, err := Build(Input{Agenda: testAgenda()})
	var pe *PreconditionError
	require.ErrorAs(t, err, &pe)
	assert.True(t, errors.Is(err, ErrNoProcesses))

	bad := testAgenda()
	bad.Number = ""
	bad.Date = "15/03/2024"
	_, err = Build(Input{Agenda: bad, Processes: []domain.Process{proc("a", 1, "A")}})
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, ErrIncompleteAgenda)
	assert.Equal(t, []string{"number", "date"}, pe.Fields)

	foreign := proc("a", 1, "A")
	foreign.AgendaID = "other"
	_, err = Build(Input{Agenda: testAgenda(), Processes: []domain.Process{foreign}})
	assert.ErrorIs(t, err, ErrForeignProcess)
}

func TestViewVoteInclusion(t *testing.T) {
	with := proc("a", 1, "A")
	with.HasViewVote = true
	with.ViewVoteSummary = "<p>voto do conselheiro</p>"
	without := proc("b", 2, "A")
	without.ViewVoteSummary = "<p>ignorado</p>"

	doc, err := Build(Input{Agenda: testAgenda(), Processes: []domain.Process{with, without}})
	require.NoError(t, err)

	sub, ok := doc.Sections[0].Find(KindViewVote)
	require.True(t, ok)
	assert.Equal(t, "Voto Vista:", sub.Label)
	assert.Equal(t, "voto do conselheiro", richtext.Text(sub.Blocks))

	_, ok = doc.Sections[1].Find(KindViewVote)
	assert.False(t, ok)
}

func TestOpinionInclusionRules(t *testing.T) {
	cases := []struct {
		vote    domain.VoteType
		opinion string
		want    bool
	}{
		{domain.VoteConvergent, "<p>ok</p>", true},
		{domain.VoteDivergent, "", true},
		{domain.VoteUnset, "", true},
		{domain.VoteNoMeritAnalysis, "<p>texto</p>", false},
		{domain.VoteNotRouted, "", false},
		{domain.VoteNotRouted, "<p>texto</p>", true},
	}
	for _, tc := range cases {
		p := proc("a", 1, "A")
		p.VoteType = tc.vote
		p.MPCOpinionSummary = tc.opinion
		doc, err := Build(Input{Agenda: testAgenda(), Processes: []domain.Process{p}})
		require.NoError(t, err)
		sub, ok := doc.Sections[0].Find(KindMPCOpinion)
		assert.Equal(t, tc.want, ok, "vote %q opinion %q", tc.vote, tc.opinion)
		if ok && tc.opinion == "" {
			assert.Equal(t, domain.NotInformed, richtext.Text(sub.Blocks))
		}
	}
}

func TestSectionFieldOrder(t *testing.T) {
	p := proc("a", 1, "Fulano")
	p.ProsecutorName = "Dra. Maria"
	p.IsPGCModified = true
	p.AdditionalNotes = "<p>nota</p>"
	doc, err := Build(Input{Agenda: testAgenda(), Processes: []domain.Process{p}})
	require.NoError(t, err)

	var kinds []Kind
	for _, s := range doc.Sections[0].Subsections {
		kinds = append(kinds, s.Kind)
	}
	assert.Equal(t, []Kind{
		KindCounselor, KindProcessType, KindStakeholders, KindSummary, KindVoteType,
		KindProsecutor, KindMPCOpinion, KindTCEReport, KindPGCManifest, KindAdditionalNotes,
	}, kinds)

	pgc, _ := doc.Sections[0].Find(KindPGCManifest)
	assert.Equal(t, domain.NotInformed, richtext.Text(pgc.Blocks))
	counselor, _ := doc.Sections[0].Find(KindCounselor)
	assert.True(t, counselor.Inline)
}
