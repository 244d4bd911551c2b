package core

import (
	"time"
)

// Corpus column names, in file order.
const (
	ColMinistry        = "Ministry"
	ColPriorityLevel   = "Priority_Level"
	ColProjectsCount   = "Projects_Count"
	ColRegionImpact    = "Region_Impact"
	ColDevIndex        = "Dev_Index"
	ColPrevBudget      = "Prev_Budget (Cr)"
	ColGDPImpact       = "GDP_Impact (%)"
	ColAllocatedBudget = "Allocated_Budget (Cr)"
)

// CorpusHeader is the header row of a generated corpus file.
var CorpusHeader = []string{
	ColMinistry,
	ColPriorityLevel,
	ColProjectsCount,
	ColRegionImpact,
	ColDevIndex,
	ColPrevBudget,
	ColGDPImpact,
	ColAllocatedBudget,
}

// CategoricalColumns lists the columns that go through a label encoder.
var CategoricalColumns = []string{ColMinistry, ColPriorityLevel, ColRegionImpact}

// Allocation formula coefficients.
const (
	DevIndexCoefficient  = 0.3
	PriorityCoefficient  = 0.2
	GDPImpactCoefficient = 0.1
)

type (
	// BudgetRecord is one generated corpus row.
	BudgetRecord struct {
		Ministry        string
		PriorityLevel   string
		ProjectsCount   int
		RegionImpact    string
		DevIndex        float64
		PrevBudget      float64
		GDPImpact       float64
		AllocatedBudget float64
	}

	// Category is a categorical value together with its encoded form.
	// Code is -1 when the label is outside the encoder vocabulary.
	Category struct {
		Label string
		Code  int
	}

	// FeatureRecord is the model input: a BudgetRecord without the
	// allocation, categoricals label-encoded.
	FeatureRecord struct {
		Ministry      Category
		PriorityLevel Category
		RegionImpact  Category
		ProjectsCount int
		DevIndex      float64
		PrevBudget    float64
		GDPImpact     float64
	}

	// Prediction is the stored document for one served prediction.
	Prediction struct {
		ID              string    `json:"id,omitempty"`
		Ministry        string    `json:"Ministry"`
		PriorityLevel   string    `json:"Priority_Level"`
		ProjectsCount   int       `json:"Projects_Count"`
		RegionImpact    string    `json:"Region_Impact"`
		DevIndex        float64   `json:"Dev_Index"`
		PrevBudget      float64   `json:"Prev_Budget (Cr)"`
		GDPImpact       float64   `json:"GDP_Impact (%)"`
		PredictedBudget float64   `json:"predicted_budget"`
		ExpectedBudget  *float64  `json:"expected_budget,omitempty"`
		Reasoning       []string  `json:"reasoning,omitempty"`
		CreatedAt       time.Time `json:"created_at"`
	}
)

// Unknown is the code assigned to a label outside the encoder vocabulary.
const Unknown = -1

// Features strips the allocation and pairs each categorical with a code
// produced by encode.
func (r BudgetRecord) Features(encode func(column, label string) int) FeatureRecord {
	return FeatureRecord{
		Ministry:      Category{Label: r.Ministry, Code: encode(ColMinistry, r.Ministry)},
		PriorityLevel: Category{Label: r.PriorityLevel, Code: encode(ColPriorityLevel, r.PriorityLevel)},
		RegionImpact:  Category{Label: r.RegionImpact, Code: encode(ColRegionImpact, r.RegionImpact)},
		ProjectsCount: r.ProjectsCount,
		DevIndex:      r.DevIndex,
		PrevBudget:    r.PrevBudget,
		GDPImpact:     r.GDPImpact,
	}
}

// NewPrediction builds the stored document for a feature record.
func NewPrediction(f FeatureRecord, predicted float64, expected *float64, reasoning []string, at time.Time) Prediction {
	return Prediction{
		Ministry:        f.Ministry.Label,
		PriorityLevel:   f.PriorityLevel.Label,
		ProjectsCount:   f.ProjectsCount,
		RegionImpact:    f.RegionImpact.Label,
		DevIndex:        f.DevIndex,
		PrevBudget:      f.PrevBudget,
		GDPImpact:       f.GDPImpact,
		PredictedBudget: Round2(predicted),
		ExpectedBudget:  expected,
		Reasoning:       reasoning,
		CreatedAt:       at.UTC(),
	}
}
