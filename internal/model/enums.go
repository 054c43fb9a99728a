package model

import "strings"

type DealStatus string

const (
	DealStatusDrafting         DealStatus = "drafting"
	DealStatusDetailsSubmitted DealStatus = "details_submitted"
	DealStatusSigned           DealStatus = "signed"
	DealStatusCompleted        DealStatus = "completed"
	DealStatusCancelled        DealStatus = "cancelled"
)

type DealType string

const (
	DealTypePaid   DealType = "paid"
	DealTypeBarter DealType = "barter"
)

type ESignStatus string

const (
	ESignNotSent ESignStatus = "not_sent"
	ESignSent    ESignStatus = "sent"
	ESignPending ESignStatus = "pending"
	ESignSigned  ESignStatus = "signed"
	ESignFailed  ESignStatus = "failed"
)

// InFlight reports whether the current invitation is still awaiting a
// terminal webhook. The provider does not order "sent" and "pending"
// consistently, so both count.
func (s ESignStatus) InFlight() bool {
	return s == ESignSent || s == ESignPending
}

type TokenKind string

const (
	TokenKindDealDetails   TokenKind = "deal_details"
	TokenKindContractReady TokenKind = "contract_ready"
	TokenKindBrandReply    TokenKind = "brand_reply"
)

// SingleUse reports whether a token of this kind is consumed on first
// successful submission. Viewing/signing kinds permit repeated reads; the
// transitions they trigger are idempotent instead.
func (k TokenKind) SingleUse() bool {
	return k == TokenKindDealDetails
}

type ScanStatus string

const (
	ScanStatusNone    ScanStatus = "none"
	ScanStatusPending ScanStatus = "pending"
	ScanStatusClean   ScanStatus = "clean"
	ScanStatusFlagged ScanStatus = "flagged"
)

type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusIssued  InvoiceStatus = "issued"
	InvoiceStatusFailed  InvoiceStatus = "failed"
)

// ESignEvent is the internal tagged variant for provider webhook events.
type ESignEvent string

const (
	ESignEventSent    ESignEvent = "sent"
	ESignEventPending ESignEvent = "pending"
	ESignEventSigned  ESignEvent = "signed"
	ESignEventFailed  ESignEvent = "failed"
	ESignEventUnknown ESignEvent = "unknown"
)

// esignEventTable enumerates every provider spelling once. New spellings
// fail closed to ESignEventUnknown rather than falling through to a default.
var esignEventTable = map[string]ESignEvent{
	"sent":              ESignEventSent,
	"document.sent":     ESignEventSent,
	"pending":           ESignEventPending,
	"awaiting":          ESignEventPending,
	"document.viewed":   ESignEventPending,
	"signed":            ESignEventSigned,
	"document.signed":   ESignEventSigned,
	"completed":         ESignEventSigned,
	"failed":            ESignEventFailed,
	"document.failed":   ESignEventFailed,
	"declined":          ESignEventFailed,
	"document.declined": ESignEventFailed,
	"expired":           ESignEventFailed,
}

// NormalizeESignEvent maps a raw provider status or event string to the
// internal variant. Case-insensitive; unrecognized values return
// ESignEventUnknown and false.
func NormalizeESignEvent(raw string) (ESignEvent, bool) {
	ev, ok := esignEventTable[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return ESignEventUnknown, false
	}
	return ev, true
}
