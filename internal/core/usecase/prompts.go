package usecase

import "strings"

const analysisSystemPrompt = `You are an assistant for a household document archive. ` +
	`You read OCR text from scanned German documents (receipts, invoices, contracts, official letters) ` +
	`and answer with a single strict JSON object. No markdown, no prose, no extra keys.`

const documentTypeList = `RECHNUNG, QUITTUNG, KAUFVERTRAG, GARANTIESCHEIN, VERSICHERUNGSPOLICE, ` +
	`KONTOAUSZUG, LOHNABRECHNUNG, STEUERBESCHEID, MIETVERTRAG, HANDWERKER_RECHNUNG, ` +
	`ARZTRECHNUNG, REZEPT, AMTLICHES_SCHREIBEN, BEDIENUNGSANLEITUNG, SONSTIGES`

const taxCategoryList = `Werbungskosten, Sonderausgaben, Aussergewoehnliche_Belastungen, ` +
	`Handwerkerleistungen, Haushaltsnahe_Dienstleistungen, Vorsorgeaufwendungen, Keine`

const combinedPromptTemplate = `Analyze the following document text and return one JSON object with exactly these keys:
document_type (one of: ` + documentTypeList + `),
confidence (number 0..1),
title (string), sender (string), recipient (string),
document_date (string, YYYY-MM-DD or null),
amount (number or null), currency (ISO 4217 string),
reference_number (string), tags (array of lowercase strings), summary (string, one sentence),
tax_relevant (boolean), tax_category (one of: ` + taxCategoryList + ` or null), tax_year (number or null),
warranty_info (object with has_warranty, product_name, purchase_date, warranty_end_date, warranty_duration_months, store_name; or null),
filing_scope (string naming the storage area this belongs to, or null), filing_scope_confidence (number 0..1),
needs_review (boolean), review_questions (array of strings).

Document text:
{ocr_text}`

const classifyPromptTemplate = `Classify the following document. Return JSON with keys:
document_type (one of: ` + documentTypeList + `), confidence (number 0..1).

Document text:
{ocr_text}`

const metadataPromptTemplate = `Extract metadata from the following document. Return JSON with keys:
title, sender, recipient, document_date (YYYY-MM-DD or null), amount (number or null),
currency, reference_number, tags (array of lowercase strings), summary (one sentence).

Document text:
{ocr_text}`

const taxPromptTemplate = `Assess the tax relevance of the following document for a German household.
Return JSON with keys: tax_relevant (boolean), tax_category (one of: ` + taxCategoryList + ` or null),
tax_year (number or null).

Document text:
{ocr_text}`

const warrantyPromptTemplate = `Check the following document for warranty information.
Return JSON with keys: has_warranty (boolean), product_name, purchase_date (YYYY-MM-DD),
warranty_end_date (YYYY-MM-DD), warranty_duration_months (number), store_name.

Document text:
{ocr_text}`

func buildCombinedPrompt(text string) string {
	return strings.Replace(combinedPromptTemplate, "{ocr_text}", text, 1)
}

func buildClassifyPrompt(text string) string {
	return strings.Replace(classifyPromptTemplate, "{ocr_text}", text, 1)
}

func buildMetadataPrompt(text string) string {
	return strings.Replace(metadataPromptTemplate, "{ocr_text}", text, 1)
}

func buildTaxPrompt(text string) string {
	return strings.Replace(taxPromptTemplate, "{ocr_text}", text, 1)
}

func buildWarrantyPrompt(text string) string {
	return strings.Replace(warrantyPromptTemplate, "{ocr_text}", text, 1)
}
