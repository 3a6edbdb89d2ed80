package core

// AmountEntry attributes an amount to a participant. Contributions and
// expense splits both reach the aggregator in this shape.
type AmountEntry struct {
	ParticipantID string `json:"participant_id"`
	Amount        Money  `json:"amount"`
}

// Balance is one participant's position in a pot.
// Positive Balance means the participant is owed money.
type Balance struct {
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
	Contributed   Money  `json:"contributed"`
	Owed          Money  `json:"owed"`
	Balance       Money  `json:"balance"`
}

// PotSummary aggregates all balances of a pot.
type PotSummary struct {
	TotalContributed Money `json:"total_contributed"`
	TotalOwed        Money `json:"total_owed"`
	NetBalance       Money `json:"net_balance"`
	Participants     int   `json:"participants"`
}

// ComputeBalances folds contributions and splits into one balance per
// participant, in the order participants are given. Entries that reference
// a participant outside the list are ignored. A participant id listed twice
// keeps its first position only.
//
// All arithmetic runs on cents; two-decimal formatting happens when a
// Money is marshalled. Folds saturate at the int64 bounds instead of
// wrapping.
func ComputeBalances(participants []Participant, contributions, splits []AmountEntry) []Balance {
	balances := make([]Balance, 0, len(participants))
	index := make(map[string]int, len(participants))

	for _, p := range participants {
		if _, seen := index[p.ID]; seen {
			continue
		}
		index[p.ID] = len(balances)
		balances = append(balances, Balance{ParticipantID: p.ID, Name: p.Name})
	}

	for _, c := range contributions {
		i, ok := index[c.ParticipantID]
		if !ok {
			continue
		}
		balances[i].Contributed = balances[i].Contributed.saturatingAdd(c.Amount)
	}

	for _, s := range splits {
		i, ok := index[s.ParticipantID]
		if !ok {
			continue
		}
		balances[i].Owed = balances[i].Owed.saturatingAdd(s.Amount)
	}

	for i := range balances {
		balances[i].Balance = balances[i].Contributed.saturatingSub(balances[i].Owed)
	}

	return balances
}

// Summarize totals a pot's balances for dashboard display.
func Summarize(balances []Balance) PotSummary {
	summary := PotSummary{Participants: len(balances)}
	for _, b := range balances {
		summary.TotalContributed = summary.TotalContributed.saturatingAdd(b.Contributed)
		summary.TotalOwed = summary.TotalOwed.saturatingAdd(b.Owed)
		summary.NetBalance = summary.NetBalance.saturatingAdd(b.Balance)
	}
	return summary
}
