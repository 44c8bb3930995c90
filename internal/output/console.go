package output

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Console event kinds recorded in text outputs.
const (
	ConsoleInput  = 0
	ConsoleOutput = 1
	ConsoleError  = 2
)

// ConsoleRecord is one console event of a text output.
type ConsoleRecord struct {
	Kind int
	Text string
}

// EncodeConsoleRecord renders one CSV record terminated by "\n". Text containing
// newlines or quotes is quoted.
func EncodeConsoleRecord(kind int, text string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{strconv.Itoa(kind), text}); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseConsoleRecords decodes a text output. Lines with fewer than two fields are
// skipped and kinds that do not parse as integers count as ConsoleOutput. Bytes inside
// quoted fields are kept as written, including "\r\n".
func ParseConsoleRecords(r io.Reader) ([]ConsoleRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read console records: %w", err)
	}
	out := make([]ConsoleRecord, 0, 16)
	for n := 1; len(data) > 0; n++ {
		fields, rest, err := parseConsoleLine(data)
		if err != nil {
			return nil, fmt.Errorf("%w: console record %d: %v", ErrDecode, n, err)
		}
		data = rest
		if len(fields) < 2 {
			continue
		}
		kind, convErr := strconv.Atoi(strings.TrimSpace(fields[0]))
		if convErr != nil {
			kind = ConsoleOutput
		}
		out = append(out, ConsoleRecord{Kind: kind, Text: fields[1]})
	}
	return out, nil
}

var errUnterminatedQuote = errors.New("unterminated quoted field")

// parseConsoleLine reads one record from b and returns the remaining input. A quoted
// field may span lines; "" inside it is a literal quote. Text after a closing quote is
// appended to the field. An unquoted "\r\n" line end is treated as "\n".
func parseConsoleLine(b []byte) ([]string, []byte, error) {
	var (
		fields []string
		field  []byte
	)
	i := 0
	for {
		if i < len(b) && b[i] == '"' {
			i++
			for {
				if i >= len(b) {
					return nil, nil, errUnterminatedQuote
				}
				if b[i] == '"' {
					if i+1 < len(b) && b[i+1] == '"' {
						field = append(field, '"')
						i += 2
						continue
					}
					i++
					break
				}
				field = append(field, b[i])
				i++
			}
		}
		tail := len(field)
		for i < len(b) && b[i] != ',' && b[i] != '\n' {
			field = append(field, b[i])
			i++
		}
		if i < len(b) && b[i] == '\n' && len(field) > tail && field[len(field)-1] == '\r' {
			field = field[:len(field)-1]
		}
		fields = append(fields, string(field))
		field = field[:0]

		switch {
		case i >= len(b):
			return fields, nil, nil
		case b[i] == ',':
			i++
		default:
			return fields, b[i+1:], nil
		}
	}
}
