package models

import "time"

// Attestation is a certificate of technical capability: an issuer's
// statement that the owning user previously rendered the listed services.
// It is created only when the job that produced it completes successfully
// and is immutable afterward except for user edits to its Services.
type Attestation struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	Issuer     string    `db:"issuer" json:"issuer"`
	IssueDate  time.Time `db:"issue_date" json:"issue_date"`
	FilePath   string    `db:"file_path" json:"file_path"`
	OCRText    string    `db:"ocr_text" json:"-"`
	Services   []Service `db:"-" json:"services"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
