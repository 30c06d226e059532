// Package importer bulk-creates sign-in accounts from a CSV file.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"storefront/internal/domain"
)

type AccountWriter interface {
	Register(ctx context.Context, username, password, role string) (*domain.User, error)
}

// Result counts what a run did.
type Result struct {
	Created int
	Skipped int
}

// CSVImporter reads rows with username, password and an optional role
// column. Columns are matched by header name in any order.
type CSVImporter struct {
	reader *csv.Reader
	users  AccountWriter
}

func NewCSVImporter(r io.Reader, users AccountWriter) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	csvr.TrimLeadingSpace = true
	return &CSVImporter{reader: csvr, users: users}
}

// Run registers every row. Usernames that already exist are skipped; any
// other failure stops the run and reports the offending line.
func (i *CSVImporter) Run(ctx context.Context) (Result, error) {
	var res Result
	headers, err := i.reader.Read()
	if err != nil {
		return res, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	if _, ok := index["username"]; !ok {
		return res, errors.New("missing username column")
	}
	if _, ok := index["password"]; !ok {
		return res, errors.New("missing password column")
	}

	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("read row: %w", err)
		}
		line, _ := i.reader.FieldPos(0)

		username := pick(record, index, "username")
		if username == "" {
			continue
		}
		role := pick(record, index, "role")
		if role == "" {
			role = domain.RoleCustomer
		}

		_, err = i.users.Register(ctx, username, pick(record, index, "password"), role)
		switch {
		case errors.Is(err, domain.ErrAlreadyExists):
			res.Skipped++
		case err != nil:
			return res, fmt.Errorf("line %d account %q: %w", line, username, err)
		default:
			res.Created++
		}
	}
	return res, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
