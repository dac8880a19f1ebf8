// Package product defines the domain documents that flow through the
// pipeline: preprocessed product data, the image strategy, per-slot prompt
// cards, and the listing copy. Struct tags carry both the JSON wire shape
// (schema generation for structured LLM output) and the validator rules the
// schema tier enforces.
package product

// Data is the structured product profile the preprocess stage extracts from
// the raw photos and the spreadsheet row.
type Data struct {
	ProductID      string  `json:"product_id" validate:"required" jsonschema:"description=Stable product identifier,required"`
	Category       string  `json:"category" validate:"required" jsonschema:"description=Product category,required"`
	Style          string  `json:"style" jsonschema:"description=Dominant design style"`
	TargetAudience string  `json:"target_audience" jsonschema:"description=Primary audience for the product"`
	Materials      []string `json:"materials" validate:"required,min=1" jsonschema:"description=Materials the product is made of,required"`
	Size           Size    `json:"product_size" jsonschema:"description=Physical dimensions and how they were obtained"`
	BasicInfo      string  `json:"basic_info" validate:"required,min=20" jsonschema:"description=Free-text product summary of at least 20 characters,required"`
	Images         []Image `json:"images" validate:"required,min=1,dive" jsonschema:"description=Catalog of the supplied product photos,required"`
	VisualFeatures VisualFeatures `json:"visual_features" jsonschema:"description=How the product reads visually"`
	SellingPoints  []SellingPoint `json:"selling_points" jsonschema:"description=Feature and benefit pairs"`

	// MainStone is set only for stone-bearing jewelry.
	MainStone string `json:"main_stone,omitempty" jsonschema:"description=Main stone when present"`

	// EarringDesignType is mandatory when Category is earrings; the rules
	// tier enforces the cross-field constraint.
	EarringDesignType string `json:"earring_design_type,omitempty" jsonschema:"description=Earring construction type when category is earrings"`

	// ReferenceAnchor is the pre-written visual anchor block carried
	// verbatim into every generated prompt.
	ReferenceAnchor string `json:"reference_anchor" jsonschema:"description=Pre-written visual anchor text"`
}

// Size records the product dimensions and where they came from.
type Size struct {
	Dimensions string `json:"dimensions" jsonschema:"description=Human-readable dimensions such as 12 x 8 mm"`
	Source     string `json:"source" jsonschema:"description=How the size was obtained,enum=spreadsheet,enum=estimated,enum=measured"`
}

// Image describes one supplied product photo.
type Image struct {
	Filename string `json:"filename" validate:"required" jsonschema:"required"`
	Angle    string `json:"angle" jsonschema:"description=Camera angle of the shot"`
	Type     string `json:"type" jsonschema:"description=Shot type such as product_only or macro"`
	Hero     bool   `json:"is_hero" jsonschema:"description=True for the single primary shot"`
}

// VisualFeatures captures how the product interacts with light and touch.
type VisualFeatures struct {
	MaterialFinish   string `json:"material_finish"`
	ColorTone        string `json:"color_tone"`
	SurfaceQuality   string `json:"surface_quality"`
	LightInteraction string `json:"light_interaction"`
}

// SellingPoint pairs a concrete product feature with the customer benefit.
type SellingPoint struct {
	Feature string `json:"feature" validate:"required" jsonschema:"required"`
	Benefit string `json:"benefit" jsonschema:"description=Why the feature matters to the buyer"`
}

// HeroImage returns the image flagged as hero, or nil when none is flagged.
func (d *Data) HeroImage() *Image {
	for i := range d.Images {
		if d.Images[i].Hero {
			return &d.Images[i]
		}
	}
	return nil
}
