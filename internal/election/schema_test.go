package election

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPartyUnionKeepsFirstSeenOrder(t *testing.T) {
	t.Parallel()

	results := []PrecinctResult{
		{Code: "1", Parties: PartyVotes{{Name: "A", Votes: "1"}, {Name: "B", Votes: "2"}}},
		{Code: "2", Parties: PartyVotes{{Name: "B", Votes: "3"}, {Name: "C", Votes: "4"}}},
		{Code: "3", Parties: PartyVotes{{Name: "A", Votes: "5"}, {Name: "D", Votes: "6"}}},
	}

	require.Equal(t, []string{"A", "B", "C", "D"}, PartyUnion(results))
	require.Equal(t, []string{"1", "2", "3"}, SchemaDivergence(results))
}

func TestSchemaDivergenceEmptyWhenUniform(t *testing.T) {
	t.Parallel()

	parties := PartyVotes{{Name: "A", Votes: "1"}, {Name: "B", Votes: "2"}}
	results := []PrecinctResult{{Code: "1", Parties: parties}, {Code: "2", Parties: parties}}

	require.Empty(t, SchemaDivergence(results))
	require.Nil(t, PartyUnion(nil))
}

func TestPartyVotesLookup(t *testing.T) {
	t.Parallel()

	parties := PartyVotes{{Name: "A", Votes: "100"}, {Name: "B", Votes: "200"}}
	votes, ok := parties.Get("B")
	require.True(t, ok)
	require.Equal(t, "200", votes)
	_, ok = parties.Get("Z")
	require.False(t, ok)
	require.Equal(t, []string{"A", "B"}, parties.Names())
}
