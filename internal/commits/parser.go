package commits

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/temirov/treediff/internal/shared"
)

const (
	recordSeparatorByteConstant = 0x1e
	fieldSeparatorConstant      = "\x1f"

	// LogPrettyFormat emits one record per commit: hash, author, email, ISO-8601 author date, subject, raw body.
	LogPrettyFormat = "--pretty=format:%x1e%H%x1f%an%x1f%ae%x1f%aI%x1f%s%x1f%B"

	minimumFieldCountConstant   = 5
	maximumFieldCountConstant   = 6
	initialBufferSizeConstant   = 64 * 1024
	maximumRecordSizeConstant   = 64 * 1024 * 1024
	recordTrailingCharsConstant = "\r\n"
)

// ParseOptions configures record construction.
type ParseOptions struct {
	Tree       shared.Tree
	Project    string
	MaxCount   int
	Identifier TrailerExtractor
	ReviewedOn TrailerExtractor
}

// ParseStatistics summarizes a completed parse.
type ParseStatistics struct {
	Records   int
	Malformed int
}

// ParseLog streams commit records from delimited log output, invoking visit once per record.
// Records with fewer than five fields or an empty hash are counted as malformed and skipped.
// A visit returning ErrStopIteration ends the parse without error.
func ParseLog(reader io.Reader, options ParseOptions, visit func(shared.CommitRecord) error) (ParseStatistics, error) {
	var statistics ParseStatistics

	recordScanner := bufio.NewScanner(reader)
	recordScanner.Buffer(make([]byte, 0, initialBufferSizeConstant), maximumRecordSizeConstant)
	recordScanner.Split(splitRecords)

	for recordScanner.Scan() {
		if options.MaxCount > 0 && statistics.Records >= options.MaxCount {
			return statistics, nil
		}
		rawRecord := recordScanner.Text()
		if len(strings.TrimSpace(rawRecord)) == 0 {
			continue
		}
		record, parsed := parseRecord(rawRecord, options)
		if !parsed {
			statistics.Malformed++
			continue
		}
		statistics.Records++
		if visitError := visit(record); visitError != nil {
			if errors.Is(visitError, ErrStopIteration) {
				return statistics, nil
			}
			return statistics, visitError
		}
	}
	return statistics, recordScanner.Err()
}

func parseRecord(rawRecord string, options ParseOptions) (shared.CommitRecord, bool) {
	fields := strings.SplitN(rawRecord, fieldSeparatorConstant, maximumFieldCountConstant)
	if len(fields) < minimumFieldCountConstant {
		return shared.CommitRecord{}, false
	}
	hash := strings.TrimSpace(fields[0])
	if len(hash) == 0 {
		return shared.CommitRecord{}, false
	}

	message := ""
	if len(fields) == maximumFieldCountConstant {
		message = strings.TrimRight(fields[5], recordTrailingCharsConstant)
	}
	subject := strings.TrimRight(fields[4], recordTrailingCharsConstant)

	return buildRecord(options, hash, fields[1], fields[2], parseAuthorDate(fields[3]), subject, message), true
}

func buildRecord(options ParseOptions, hash string, author string, email string, authoredAt time.Time, subject string, message string) shared.CommitRecord {
	return shared.CommitRecord{
		Tree:        options.Tree,
		Project:     options.Project,
		Hash:        hash,
		Identifier:  options.Identifier.Extract(message),
		ReviewedOn:  options.ReviewedOn.Extract(message),
		Author:      strings.TrimSpace(author),
		AuthorEmail: strings.TrimSpace(email),
		AuthoredAt:  authoredAt,
		Subject:     subject,
		Message:     message,
	}
}

// parseAuthorDate returns the zero time for dates git could not render.
func parseAuthorDate(value string) time.Time {
	parsed, parseError := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if parseError != nil {
		return time.Time{}
	}
	return parsed
}

func splitRecords(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if separatorIndex := bytes.IndexByte(data, recordSeparatorByteConstant); separatorIndex >= 0 {
		return separatorIndex + 1, data[:separatorIndex], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
