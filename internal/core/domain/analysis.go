package domain

// PageText is the extracted text of a single page.
type PageText struct {
	PageNumber int     `json:"page_number"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// OcrResult is the text-extractor output for one file. A nil result means
// the extractor could not produce anything.
type OcrResult struct {
	FullText          string     `json:"full_text"`
	Pages             []PageText `json:"pages,omitempty"`
	AverageConfidence float64    `json:"average_confidence"`
	PageCount         int        `json:"page_count"`
}

// AnalysisMode tags which strategy produced an AnalysisResult.
type AnalysisMode string

const (
	AnalysisCombined   AnalysisMode = "combined"
	AnalysisSequential AnalysisMode = "sequential"
	AnalysisFailed     AnalysisMode = "failed"
)

// WarrantyData is the raw warranty sub-object of an analysis; dates stay
// unparsed strings until the archiver validates them.
type WarrantyData struct {
	HasWarranty     bool   `json:"has_warranty"`
	ProductName     string `json:"product_name,omitempty"`
	PurchaseDate    string `json:"purchase_date,omitempty"`
	WarrantyEndDate string `json:"warranty_end_date,omitempty"`
	DurationMonths  int    `json:"warranty_duration_months,omitempty"`
	StoreName       string `json:"store_name,omitempty"`
}

// AnalysisResult is the transient analyzer output consumed once by the
// archiver. Field values are kept as close to the model output as possible;
// defensive parsing happens at archive time.
type AnalysisResult struct {
	Mode                  AnalysisMode  `json:"mode"`
	DocumentType          DocumentType  `json:"document_type"`
	Confidence            float64       `json:"confidence"`
	Title                 string        `json:"title,omitempty"`
	Sender                string        `json:"sender,omitempty"`
	Recipient             string        `json:"recipient,omitempty"`
	DocumentDate          string        `json:"document_date,omitempty"`
	Amount                *float64      `json:"amount,omitempty"`
	Currency              string        `json:"currency,omitempty"`
	ReferenceNumber       string        `json:"reference_number,omitempty"`
	Tags                  []string      `json:"tags,omitempty"`
	Summary               string        `json:"summary,omitempty"`
	TaxRelevant           bool          `json:"tax_relevant"`
	TaxCategory           string        `json:"tax_category,omitempty"`
	TaxYear               *int          `json:"tax_year,omitempty"`
	Warranty              *WarrantyData `json:"warranty_info,omitempty"`
	FilingScope           string        `json:"filing_scope,omitempty"`
	FilingScopeConfidence float64       `json:"filing_scope_confidence,omitempty"`
	NeedsReview           bool          `json:"needs_review"`
	ReviewQuestions       []string      `json:"review_questions,omitempty"`
}
