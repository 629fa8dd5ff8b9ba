// Package review exposes the generic human-review surface: a materialized
// projection that flattens heterogeneous domain rows into one Reviewable
// shape, plus the action dispatch that routes approvals and corrections back
// to the source tables.
package review

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReviewType discriminates what kind of record a Reviewable wraps. Adding a
// reviewable type means adding a projection source with the same output
// shape, never new columns for callers.
type ReviewType string

const (
	TypeReceiptLineItem    ReviewType = "receipt_line_item"
	TypeReimbursementBatch ReviewType = "reimbursement_batch"
	TypeBankMatch          ReviewType = "bank_match"
)

// ReviewStatus is the workflow state of a reviewable item.
type ReviewStatus string

const (
	StatusPending   ReviewStatus = "pending"
	StatusNeedsInfo ReviewStatus = "needs_info"
	StatusApproved  ReviewStatus = "approved"
	StatusRejected  ReviewStatus = "rejected"
	StatusPosted    ReviewStatus = "posted"
	StatusSnoozed   ReviewStatus = "snoozed"
)

// Action is a reviewer's verb.
type Action string

const (
	ActionApprove   Action = "approve"
	ActionReject    Action = "reject"
	ActionCorrect   Action = "correct"
	ActionSnooze    Action = "snooze"
	ActionNeedsInfo Action = "needs_info"
)

// SourceRef points back at the row a Reviewable projects.
type SourceRef struct {
	Table  string `json:"table"`
	Schema string `json:"schema"`
	PK     string `json:"pk"`
}

// Reviewable is the read-only contract the review UI renders. All mutations
// go to source tables through Act; the projection re-materializes afterward.
type Reviewable struct {
	ID        string     `json:"id"` // "<source_table>:<schema>:<pk>"
	Type      ReviewType `json:"type"`
	Entity    string     `json:"entity"`
	CreatedAt time.Time  `json:"created_at"`

	SourceRef SourceRef      `json:"source_ref"`
	Summary   string         `json:"summary"`
	Details   map[string]any `json:"details"`

	Confidence     *decimal.Decimal `json:"confidence,omitempty"`
	RequiresReview bool             `json:"requires_review"`
	Status         ReviewStatus     `json:"status"`
	Assignee       *string          `json:"assignee,omitempty"`

	Vendor   *string          `json:"vendor,omitempty"`
	Date     *time.Time       `json:"date,omitempty"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	AgeHours *decimal.Decimal `json:"age_hours,omitempty"`
}

// Correction is the payload of an ActionCorrect.
type Correction struct {
	NormalizedDescription string  `json:"normalized_description"`
	ProductCategory       string  `json:"product_category"`
	AccountCode           string  `json:"account_code"`
	Brand                 *string `json:"brand,omitempty"`
	Reason                string  `json:"reason,omitempty"`
}

// QueueFilters narrows projection reads.
type QueueFilters struct {
	Status        ReviewStatus
	Vendor        string
	MaxConfidence *float64
	Limit         int
	Offset        int
}
