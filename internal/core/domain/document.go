package domain

import (
	"strings"
	"time"
)

type DocumentType string

const (
	TypeRechnung            DocumentType = "RECHNUNG"
	TypeQuittung            DocumentType = "QUITTUNG"
	TypeKaufvertrag         DocumentType = "KAUFVERTRAG"
	TypeGarantieschein      DocumentType = "GARANTIESCHEIN"
	TypeVersicherungspolice DocumentType = "VERSICHERUNGSPOLICE"
	TypeKontoauszug         DocumentType = "KONTOAUSZUG"
	TypeLohnabrechnung      DocumentType = "LOHNABRECHNUNG"
	TypeSteuerbescheid      DocumentType = "STEUERBESCHEID"
	TypeMietvertrag         DocumentType = "MIETVERTRAG"
	TypeHandwerkerRechnung  DocumentType = "HANDWERKER_RECHNUNG"
	TypeArztrechnung        DocumentType = "ARZTRECHNUNG"
	TypeRezept              DocumentType = "REZEPT"
	TypeAmtlichesSchreiben  DocumentType = "AMTLICHES_SCHREIBEN"
	TypeBedienungsanleitung DocumentType = "BEDIENUNGSANLEITUNG"
	TypeSonstiges           DocumentType = "SONSTIGES"
)

var validDocumentTypes = map[DocumentType]struct{}{
	TypeRechnung: {}, TypeQuittung: {}, TypeKaufvertrag: {},
	TypeGarantieschein: {}, TypeVersicherungspolice: {}, TypeKontoauszug: {},
	TypeLohnabrechnung: {}, TypeSteuerbescheid: {}, TypeMietvertrag: {},
	TypeHandwerkerRechnung: {}, TypeArztrechnung: {}, TypeRezept: {},
	TypeAmtlichesSchreiben: {}, TypeBedienungsanleitung: {}, TypeSonstiges: {},
}

// ParseDocumentType maps arbitrary model output onto the known type set,
// falling back to SONSTIGES.
func ParseDocumentType(raw string) DocumentType {
	t := DocumentType(strings.TrimSpace(raw))
	if _, ok := validDocumentTypes[t]; ok {
		return t
	}
	return TypeSonstiges
}

type DocumentStatus string

const (
	DocumentActive   DocumentStatus = "ACTIVE"
	DocumentArchived DocumentStatus = "ARCHIVED"
	DocumentDeleted  DocumentStatus = "DELETED"
)

type ReviewStatus string

const (
	ReviewOK     ReviewStatus = "OK"
	ReviewNeeded ReviewStatus = "NEEDS_REVIEW"
	Reviewed     ReviewStatus = "REVIEWED"
)

type TaxCategory string

const (
	TaxWerbungskosten               TaxCategory = "Werbungskosten"
	TaxSonderausgaben               TaxCategory = "Sonderausgaben"
	TaxAussergewoehnlicheBelastung  TaxCategory = "Aussergewoehnliche_Belastungen"
	TaxHandwerkerleistungen         TaxCategory = "Handwerkerleistungen"
	TaxHaushaltsnaheDienstleistung  TaxCategory = "Haushaltsnahe_Dienstleistungen"
	TaxVorsorgeaufwendungen         TaxCategory = "Vorsorgeaufwendungen"
	TaxKeine                        TaxCategory = "Keine"
)

var validTaxCategories = map[TaxCategory]struct{}{
	TaxWerbungskosten: {}, TaxSonderausgaben: {},
	TaxAussergewoehnlicheBelastung: {}, TaxHandwerkerleistungen: {},
	TaxHaushaltsnaheDienstleistung: {}, TaxVorsorgeaufwendungen: {},
	TaxKeine: {},
}

// ParseTaxCategory tolerates compound model output such as
// "Werbungskosten | Sonderausgaben" and returns the first token that is a
// known category, or "" when none parses.
func ParseTaxCategory(raw string) TaxCategory {
	for _, part := range strings.Split(raw, "|") {
		c := TaxCategory(strings.TrimSpace(part))
		if _, ok := validTaxCategories[c]; ok {
			return c
		}
	}
	return ""
}

// Document is the durable archived record. It is created exactly once by
// the archiver and soft-deleted at most.
type Document struct {
	ID               string         `json:"id"`
	OriginalFilename string         `json:"original_filename"`
	StoredFilename   string         `json:"stored_filename"`
	FilePath         string         `json:"file_path"`
	ThumbnailPath    string         `json:"thumbnail_path,omitempty"`
	FileType         string         `json:"file_type"`
	FileSizeBytes    int64          `json:"file_size_bytes"`
	FileHash         string         `json:"file_hash"`
	DocumentType     DocumentType   `json:"document_type"`
	Title            string         `json:"title"`
	DocumentDate     *time.Time     `json:"document_date,omitempty"`
	Amount           *float64       `json:"amount,omitempty"`
	Currency         string         `json:"currency"`
	Issuer           string         `json:"issuer,omitempty"`
	Recipient        string         `json:"recipient,omitempty"`
	ReferenceNumber  string         `json:"reference_number,omitempty"`
	Summary          string         `json:"summary,omitempty"`
	OcrText          string         `json:"-"`
	OcrConfidence    float64        `json:"ocr_confidence"`
	TaxRelevant      bool           `json:"tax_relevant"`
	TaxYear          *int           `json:"tax_year,omitempty"`
	TaxCategory      TaxCategory    `json:"tax_category,omitempty"`
	FilingScopeID    string         `json:"filing_scope_id,omitempty"`
	Status           DocumentStatus `json:"status"`
	ReviewStatus     ReviewStatus   `json:"review_status"`
	AIConfidence     float64        `json:"ai_confidence"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	ScannedAt        *time.Time     `json:"scanned_at,omitempty"`
}

type Tag struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	IsAutoGenerated bool   `json:"is_auto_generated"`
}

type WarrantyType string

const (
	WarrantyLegal        WarrantyType = "LEGAL"
	WarrantyManufacturer WarrantyType = "MANUFACTURER"
	WarrantyExtended     WarrantyType = "EXTENDED"
)

const DefaultWarrantyMonths = 24

type WarrantyInfo struct {
	ID              string       `json:"id"`
	DocumentID      string       `json:"document_id"`
	ProductName     string       `json:"product_name"`
	PurchaseDate    time.Time    `json:"purchase_date"`
	WarrantyEndDate time.Time    `json:"warranty_end_date"`
	WarrantyType    WarrantyType `json:"warranty_type"`
	DurationMonths  int          `json:"warranty_duration_months"`
	Retailer        string       `json:"retailer,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

func (w WarrantyInfo) IsExpired(now time.Time) bool {
	return now.After(w.WarrantyEndDate)
}

// ReviewQuestion is a pending disambiguation attached to a document. A
// document is promoted to REVIEWED only once all its questions are answered.
type ReviewQuestion struct {
	ID               string     `json:"id"`
	DocumentID       string     `json:"document_id"`
	Question         string     `json:"question"`
	QuestionType     string     `json:"question_type,omitempty"`
	Explanation      string     `json:"explanation,omitempty"`
	Answer           string     `json:"answer,omitempty"`
	FieldAffected    string     `json:"field_affected,omitempty"`
	SuggestedAnswers string     `json:"suggested_answers,omitempty"`
	IsAnswered       bool       `json:"is_answered"`
	Priority         int        `json:"priority"`
	CreatedAt        time.Time  `json:"created_at"`
	AnsweredAt       *time.Time `json:"answered_at,omitempty"`
}

// FilingScope is a named top-level archive bucket. Exactly one scope is
// flagged as default; the archiver relies on that for its fallback.
type FilingScope struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Keywords  []string  `json:"keywords,omitempty"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
}

type AuditAction string

const (
	AuditCreated    AuditAction = "CREATED"
	AuditUpdated    AuditAction = "UPDATED"
	AuditDeleted    AuditAction = "DELETED"
	AuditTagAdded   AuditAction = "TAG_ADDED"
	AuditTagRemoved AuditAction = "TAG_REMOVED"
	AuditReviewed   AuditAction = "REVIEWED"
)

// AuditEntry is append-only; the document reference is cleared, not the
// row, when a document goes away.
type AuditEntry struct {
	ID         int64       `json:"id"`
	DocumentID string      `json:"document_id,omitempty"`
	Action     AuditAction `json:"action"`
	Details    string      `json:"details,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// CorrectionMapping records a repeated manual correction. Once the same
// triple has been seen AutoApplyThreshold times it is flagged auto_apply;
// applying it automatically is a consumer concern.
type CorrectionMapping struct {
	ID              string    `json:"id"`
	Field           string    `json:"field"`
	OriginalValue   string    `json:"original_value"`
	CorrectedValue  string    `json:"corrected_value"`
	OccurrenceCount int       `json:"occurrence_count"`
	AutoApply       bool      `json:"auto_apply"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

const AutoApplyThreshold = 3
