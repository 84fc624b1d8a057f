package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
)

// ReadFile parses the archive at path. A missing file has no runs.
func ReadFile(path string) ([]Run, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse splits an archive back into runs and records.
func Parse(r io.Reader) ([]Run, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}

	pieces := strings.Split(string(data), "\n\n"+RunSeparator+"\n")
	runs := make([]Run, 0, len(pieces))
	// pieces[0] is whatever precedes the first section, normally empty
	for i, piece := range pieces[1:] {
		run, err := parseRun(piece)
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", i+1, err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// Records flattens runs, most recent run first.
func Records(runs []Run) []Record {
	var out []Record
	for i := len(runs) - 1; i >= 0; i-- {
		out = append(out, runs[i].Records...)
	}
	return out
}

func parseRun(piece string) (Run, error) {
	var run Run

	end := strings.Index(piece, "\n"+RunSeparator+"\n\n")
	if end < 0 {
		return run, errors.New("unterminated run header")
	}
	header, body := piece[:end], piece[end+len(RunSeparator)+3:]

	for _, line := range strings.Split(header, "\n") {
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		switch key {
		case "DATE":
			t, err := time.ParseInLocation(TimeLayout, value, time.Local)
			if err != nil {
				return run, fmt.Errorf("invalid date %q: %w", value, err)
			}
			run.Date = t
		case "USER":
			run.User = value
		case "BATCH":
			n, err := strconv.Atoi(strings.TrimSuffix(value, " applications"))
			if err != nil {
				return run, fmt.Errorf("invalid batch %q: %w", value, err)
			}
			run.Batch = n
		}
	}

	for _, block := range strings.Split(body, RecordSeparator+"\n\n") {
		if strings.TrimSpace(block) == "" {
			continue
		}
		rec, err := parseRecord(block)
		if err != nil {
			return run, err
		}
		if rec.UserID == "" {
			rec.UserID = run.User
		}
		rec.CreatedAt = run.Date
		run.Records = append(run.Records, rec)
	}
	return run, nil
}

func parseRecord(block string) (Record, error) {
	var rec Record

	head, rest, ok := strings.Cut(block, "\n\n"+markerDescription)
	if !ok {
		return rec, errors.New("record without job description")
	}
	for _, line := range strings.Split(head, "\n") {
		switch {
		case strings.HasPrefix(line, "# Title: "):
			rec.Title = strings.TrimPrefix(line, "# Title: ")
		case strings.HasPrefix(line, "Score: "):
			v := strings.TrimSuffix(strings.TrimPrefix(line, "Score: "), "/10")
			score, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return rec, fmt.Errorf("invalid score %q: %w", v, err)
			}
			rec.Score = score
		case strings.HasPrefix(line, "Job ID: "):
			rec.JobID = strings.TrimPrefix(line, "Job ID: ")
		case strings.HasPrefix(line, "User ID: "):
			rec.UserID = strings.TrimPrefix(line, "User ID: ")
		}
	}

	desc, rest, ok := strings.Cut(rest, "\n\n"+markerCover)
	if !ok {
		return rec, fmt.Errorf("record %s without cover letter", rec.JobID)
	}
	cover, rest, ok := strings.Cut(rest, "\n\n"+markerInterview)
	if !ok {
		return rec, fmt.Errorf("record %s without interview preparation", rec.JobID)
	}
	interview, ok := strings.CutSuffix(rest, "\n\n")
	if !ok {
		return rec, fmt.Errorf("record %s is truncated", rec.JobID)
	}

	rec.JobDescription = desc
	rec.CoverLetter = cover
	rec.InterviewPrep = interview
	return rec, nil
}
