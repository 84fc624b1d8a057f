// Package archive appends generated applications to flat-text logs and
// parses them back.
//
// Each processing run appends one section to the owner's file and one to the
// global file. A section is a header framed by lines of 100 "=" followed by
// one block per application, each closed by a line of 100 "/". Bodies are
// written verbatim; a body that itself contains a separator line or one of
// the "### " section markers cannot be split back reliably.
package archive

import (
	"strings"
	"time"
)

const (
	TimeLayout = "2006-01-02 15:04:05"

	userFileName   = "cover_letters.md"
	globalFileName = "cover_letter.md"
)

var (
	RunSeparator    = strings.Repeat("=", 100)
	RecordSeparator = strings.Repeat("/", 100)
)

const (
	markerDescription = "### Job Description\n"
	markerCover       = "### Cover Letter\n"
	markerInterview   = "### Interview Preparation\n"
)

// Record is one generated application. It is never modified once written.
type Record struct {
	UserID         string    `json:"user_id"`
	JobID          string    `json:"job_id"`
	Title          string    `json:"title"`
	Score          float64   `json:"score"`
	CoverLetter    string    `json:"cover_letter"`
	InterviewPrep  string    `json:"interview_prep"`
	JobDescription string    `json:"job_description"`
	CreatedAt      time.Time `json:"created_at"`
}

// Run is one appended section.
type Run struct {
	Date    time.Time `json:"date"`
	User    string    `json:"user"`
	Batch   int       `json:"batch"`
	Records []Record  `json:"records"`
}
