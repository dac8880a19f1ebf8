package product

import "sort"

// PromptCard is the output of one prompt-generation branch: the final image
// prompt for a single strategy slot. Cards are immutable once their branch's
// validation gate passes.
type PromptCard struct {
	SlotIndex int    `json:"slot_index" validate:"required,min=1" jsonschema:"description=Strategy slot this prompt renders,required"`
	Type      string `json:"type" validate:"required" jsonschema:"description=Shot type copied from the slot,required"`

	// ReferenceImages lists 3 product reference shots, or 4 for packaging
	// slots where a box shot is available.
	ReferenceImages []string `json:"reference_images" validate:"required,min=3,max=4" jsonschema:"description=3 to 4 reference image filenames,required"`

	Prompt string `json:"prompt" validate:"required" jsonschema:"description=Final rendering prompt text,required"`
}

// PromptSet is the fan-in aggregate: every passed branch's card, keyed and
// ordered by slot index.
type PromptSet struct {
	Cards []PromptCard `json:"prompts"`
}

// NewPromptSet builds a set from cards in arrival order, sorting by slot
// index. Aggregation is keyed by index, not arrival order.
func NewPromptSet(cards []PromptCard) *PromptSet {
	sorted := make([]PromptCard, len(cards))
	copy(sorted, cards)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].SlotIndex < sorted[j].SlotIndex
	})
	return &PromptSet{Cards: sorted}
}

// Card returns the card for a slot index, or nil.
func (ps *PromptSet) Card(slotIndex int) *PromptCard {
	for i := range ps.Cards {
		if ps.Cards[i].SlotIndex == slotIndex {
			return &ps.Cards[i]
		}
	}
	return nil
}

// Complete reports whether the set holds exactly slotCount cards with
// unique, contiguous indices 1..slotCount.
func (ps *PromptSet) Complete(slotCount int) bool {
	if len(ps.Cards) != slotCount {
		return false
	}
	seen := make(map[int]bool, slotCount)
	for _, card := range ps.Cards {
		if card.SlotIndex < 1 || card.SlotIndex > slotCount || seen[card.SlotIndex] {
			return false
		}
		seen[card.SlotIndex] = true
	}
	return true
}
