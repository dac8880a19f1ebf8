package product

// Slot categories. Required slots carry the fixed shot types every listing
// needs; strategic slots are chosen per product.
const (
	SlotCategoryRequired  = "required"
	SlotCategoryStrategic = "strategic"
)

// Strategy is the image strategy the strategy stage produces: a product
// analysis plus one slot per planned image.
type Strategy struct {
	Analysis Analysis `json:"analysis" jsonschema:"description=Product positioning analysis,required"`
	Slots    []Slot   `json:"slots" validate:"required,dive" jsonschema:"description=Ordered image slots with contiguous indices from 1,required"`
}

// Analysis is the strategy stage's reading of the product's market position.
type Analysis struct {
	UniqueSellingPoints []string `json:"unique_selling_points" jsonschema:"description=What sets the product apart"`
	TargetCustomer      string   `json:"target_customer" validate:"required" jsonschema:"description=Who the imagery should speak to,required"`
	PurchaseBarriers    []string `json:"purchase_barriers" jsonschema:"description=Hesitations the imagery should address"`
	CompetitiveGap      string   `json:"competitive_gap" jsonschema:"description=Gap in competitor imagery this plan exploits"`
	CreativeNarrative   string   `json:"creative_narrative" jsonschema:"description=Narrative thread connecting the slots"`
}

// Slot is one planned image direction.
type Slot struct {
	Index       int    `json:"index" validate:"required,min=1" jsonschema:"description=1-based slot position,required"`
	Type        string `json:"type" validate:"required" jsonschema:"description=Shot type such as hero or macro_detail,required"`
	Category    string `json:"category" validate:"required,oneof=required strategic" jsonschema:"description=Slot category,enum=required,enum=strategic,required"`
	Description string `json:"description" validate:"required" jsonschema:"description=What the image shows,required"`
	Rationale   string `json:"rationale" jsonschema:"description=Why this shot earns its slot"`

	CreativeDirection CreativeDirection `json:"creative_direction" jsonschema:"description=Art direction for the shot"`
}

// CreativeDirection is the art-direction block attached to a slot.
type CreativeDirection struct {
	StyleSeries string `json:"style_series"`
	Pose        string `json:"pose,omitempty"`
	SceneModule string `json:"scene_module"`
	Mood        string `json:"mood"`
	KeyVisual   string `json:"key_visual"`
}

// SlotByIndex returns the slot with the given 1-based index, or nil.
func (s *Strategy) SlotByIndex(index int) *Slot {
	for i := range s.Slots {
		if s.Slots[i].Index == index {
			return &s.Slots[i]
		}
	}
	return nil
}
