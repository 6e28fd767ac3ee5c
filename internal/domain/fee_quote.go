package domain

import (
	"sort"

	"github.com/google/uuid"
)

// IllustrativeLabel marks a combined figure that is never a payable amount.
const IllustrativeLabel = "illustrative total across selected periods"

// OptionalFee is a non-required charge the member may opt into.
type OptionalFee struct {
	MembershipTypeID uuid.UUID `json:"membershipTypeId"`
	Name             string    `json:"name"`
	Amount           Amount    `json:"amount"`
	Description      string    `json:"description,omitempty"`
}

// FrequencyQuote is the binding total for one billing frequency.
type FrequencyQuote struct {
	Required Amount        `json:"required"`
	Optional []OptionalFee `json:"optional"`
}

// FeeQuote is derived per resolution pass and never stored.
type FeeQuote struct {
	Currency     string                       `json:"currency"`
	PerFrequency map[Frequency]FrequencyQuote `json:"perFrequency"`
}

// Frequencies lists the frequencies present in the quote in a stable order.
func (q FeeQuote) Frequencies() []Frequency {
	order := map[Frequency]int{FrequencyOneTime: 0, FrequencyAnnual: 1, FrequencySeasonal: 2}
	out := make([]Frequency, 0, len(q.PerFrequency))
	for f := range q.PerFrequency {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return order[out[i]] < order[out[j]] })
	return out
}

// Payable is the binding amount for one frequency including the opted-in optional fees.
func (q FeeQuote) Payable(frequency Frequency, optIns []string) Amount {
	group, ok := q.PerFrequency[frequency]
	if !ok {
		return 0
	}
	chosen := make(map[string]struct{}, len(optIns))
	for _, name := range optIns {
		chosen[name] = struct{}{}
	}
	total := group.Required
	for _, fee := range group.Optional {
		if _, ok := chosen[fee.Name]; ok {
			total = total.Add(fee.Amount)
		}
	}
	return total
}

// IllustrativeTotal is the labelled sum of required amounts across frequencies.
type IllustrativeTotal struct {
	Label  string `json:"label"`
	Amount Amount `json:"amount"`
}

// IllustrativeTotal combines the required totals of every frequency for display only.
func (q FeeQuote) IllustrativeTotal() IllustrativeTotal {
	var total Amount
	for _, group := range q.PerFrequency {
		total = total.Add(group.Required)
	}
	return IllustrativeTotal{Label: IllustrativeLabel, Amount: total}
}
