package core

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func people(ids ...string) []Participant {
	out := make([]Participant, len(ids))
	for i, id := range ids {
		out[i] = Participant{ID: id, Name: "name-" + id}
	}
	return out
}

func TestComputeBalances(t *testing.T) {
	t.Run("contribution and uneven splits", func(t *testing.T) {
		got := ComputeBalances(people("A", "B"),
			[]AmountEntry{{ParticipantID: "A", Amount: Cents(10000)}},
			[]AmountEntry{{ParticipantID: "A", Amount: Cents(4000)}, {ParticipantID: "B", Amount: Cents(6000)}},
		)
		require.Len(t, got, 2)
		assert.Equal(t, Balance{ParticipantID: "A", Name: "name-A", Contributed: Cents(10000), Owed: Cents(4000), Balance: Cents(6000)}, got[0])
		assert.Equal(t, Balance{ParticipantID: "B", Name: "name-B", Contributed: Cents(0), Owed: Cents(6000), Balance: Cents(-6000)}, got[1])
	})

	t.Run("zero activity participants are kept in order", func(t *testing.T) {
		got := ComputeBalances(people("C", "A", "B"), nil, nil)
		require.Len(t, got, 3)
		for i, id := range []string{"C", "A", "B"} {
			assert.Equal(t, id, got[i].ParticipantID)
			assert.Equal(t, Money{}, got[i].Balance)
		}
	})

	t.Run("unknown participants are ignored", func(t *testing.T) {
		got := ComputeBalances(people("A"),
			[]AmountEntry{{ParticipantID: "ghost", Amount: Cents(500)}, {ParticipantID: "A", Amount: Cents(100)}},
			[]AmountEntry{{ParticipantID: "ghost", Amount: Cents(900)}},
		)
		require.Len(t, got, 1)
		assert.Equal(t, Cents(100), got[0].Contributed)
		assert.Equal(t, Cents(0), got[0].Owed)
	})

	t.Run("malformed stored amounts count as zero", func(t *testing.T) {
		got := ComputeBalances(people("A"),
			[]AmountEntry{{ParticipantID: "A", Amount: AmountFromStored(nil)}, {ParticipantID: "A", Amount: AmountFromStored("x")}, {ParticipantID: "A", Amount: AmountFromStored(int64(250))}},
			nil,
		)
		assert.Equal(t, Cents(250), got[0].Contributed)
	})

	t.Run("duplicate participant keeps first position", func(t *testing.T) {
		got := ComputeBalances(people("A", "B", "A"),
			[]AmountEntry{{ParticipantID: "A", Amount: Cents(300)}}, nil)
		require.Len(t, got, 2)
		assert.Equal(t, "A", got[0].ParticipantID)
		assert.Equal(t, Cents(300), got[0].Contributed)
	})

	t.Run("no drift over many small amounts", func(t *testing.T) {
		var contribs []AmountEntry
		for i := 0; i < 1000; i++ {
			contribs = append(contribs, AmountEntry{ParticipantID: "A", Amount: Cents(10)})
		}
		got := ComputeBalances(people("A"), contribs, []AmountEntry{{ParticipantID: "A", Amount: Cents(10000)}})
		assert.Equal(t, Cents(10000), got[0].Contributed)
		assert.Equal(t, Money{}, got[0].Balance)
	})

	t.Run("balance equals contributed minus owed", func(t *testing.T) {
		got := ComputeBalances(people("A", "B", "C"),
			[]AmountEntry{{ParticipantID: "A", Amount: Cents(1999)}, {ParticipantID: "C", Amount: Cents(1)}},
			[]AmountEntry{{ParticipantID: "A", Amount: Cents(667)}, {ParticipantID: "B", Amount: Cents(667)}, {ParticipantID: "C", Amount: Cents(666)}},
		)
		for _, b := range got {
			assert.Equal(t, b.Contributed.Cents-b.Owed.Cents, b.Balance.Cents)
		}
	})

	t.Run("folds saturate instead of wrapping", func(t *testing.T) {
		got := ComputeBalances(people("A", "B"),
			[]AmountEntry{
				{ParticipantID: "A", Amount: Cents(math.MaxInt64)},
				{ParticipantID: "A", Amount: Cents(1)},
			},
			[]AmountEntry{
				{ParticipantID: "B", Amount: Cents(math.MaxInt64)},
				{ParticipantID: "B", Amount: Cents(math.MaxInt64)},
			},
		)
		assert.Equal(t, Cents(math.MaxInt64), got[0].Contributed)
		assert.Equal(t, Cents(math.MaxInt64), got[0].Balance)
		assert.Equal(t, Cents(math.MaxInt64), got[1].Owed)
		assert.Equal(t, Cents(math.MinInt64), got[1].Balance)

		summary := Summarize(got)
		assert.Equal(t, Cents(math.MaxInt64), summary.TotalContributed)
		assert.Equal(t, Cents(math.MaxInt64), summary.TotalOwed)
	})
}

func TestComputeBalancesIsPure(t *testing.T) {
	ps := people("A", "B")
	contribs := []AmountEntry{{ParticipantID: "A", Amount: Cents(100)}}
	splits := []AmountEntry{{ParticipantID: "B", Amount: Cents(100)}}

	first := ComputeBalances(ps, contribs, splits)
	second := ComputeBalances(ps, contribs, splits)
	assert.Equal(t, first, second)
	assert.Equal(t, Cents(100), contribs[0].Amount)
}

func TestBalanceJSON(t *testing.T) {
	out, err := json.Marshal(ComputeBalances(people("A"), []AmountEntry{{ParticipantID: "A", Amount: Cents(10000)}}, []AmountEntry{{ParticipantID: "A", Amount: Cents(4000)}}))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"participant_id":"A","name":"name-A","contributed":100.00,"owed":40.00,"balance":60.00}]`, string(out))
}

func TestSummarize(t *testing.T) {
	balances := ComputeBalances(people("A", "B"),
		[]AmountEntry{{ParticipantID: "A", Amount: Cents(10000)}},
		[]AmountEntry{{ParticipantID: "A", Amount: Cents(4000)}, {ParticipantID: "B", Amount: Cents(6000)}},
	)
	s := Summarize(balances)
	assert.Equal(t, PotSummary{
		TotalContributed: Cents(10000),
		TotalOwed:        Cents(10000),
		NetBalance:       Cents(0),
		Participants:     2,
	}, s)
	assert.Equal(t, PotSummary{}, Summarize(nil))
}
