package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Writer appends run sections under DataDir.
type Writer struct {
	DataDir string
	Now     func() time.Time

	mu sync.Mutex
}

func NewWriter(dataDir string) *Writer {
	return &Writer{DataDir: dataDir, Now: time.Now}
}

// UserFile is the owner's archive path.
func (w *Writer) UserFile(owner string) string {
	return filepath.Join(w.DataDir, "users", owner, userFileName)
}

// GlobalFile is the archive path holding every owner's runs.
func (w *Writer) GlobalFile() string {
	return filepath.Join(w.DataDir, globalFileName)
}

// Append writes one section for records to the owner's file and to the
// global file. An empty record list writes nothing.
func (w *Writer) Append(owner string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := validOwner(owner); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.Now()
	userPath := w.UserFile(owner)
	if err := os.MkdirAll(filepath.Dir(userPath), 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}
	if err := appendFile(userPath, renderSection(owner, records, now, false)); err != nil {
		return err
	}
	return appendFile(w.GlobalFile(), renderSection(owner, records, now, true))
}

func renderSection(owner string, records []Record, now time.Time, global bool) string {
	var b strings.Builder
	b.WriteString("\n\n" + RunSeparator + "\n")
	b.WriteString("DATE: " + now.Format(TimeLayout) + "\n")
	b.WriteString("USER: " + owner + "\n")
	fmt.Fprintf(&b, "BATCH: %d applications\n", len(records))
	b.WriteString(RunSeparator + "\n\n")

	for _, r := range records {
		b.WriteString("# Title: " + singleLine(r.Title) + "\n")
		b.WriteString("Score: " + FormatScore(r.Score) + "/10\n")
		b.WriteString("Job ID: " + r.JobID + "\n")
		if global {
			b.WriteString("User ID: " + owner + "\n")
		}
		b.WriteString("\n")
		b.WriteString(markerDescription + r.JobDescription + "\n\n")
		b.WriteString(markerCover + r.CoverLetter + "\n\n")
		b.WriteString(markerInterview + r.InterviewPrep + "\n\n")
		b.WriteString(RecordSeparator + "\n\n")
	}
	return b.String()
}

// FormatScore prints the shortest form of a score: 8, 7.5.
func FormatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func validOwner(owner string) error {
	if owner == "" || owner == "." || owner == ".." || strings.ContainsAny(owner, `/\`) || strings.ContainsRune(owner, '\n') {
		return errors.New("invalid archive owner")
	}
	return nil
}

func appendFile(path, content string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return fmt.Errorf("failed to write archive %s: %w", path, err)
	}
	return f.Close()
}
