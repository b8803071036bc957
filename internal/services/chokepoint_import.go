package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/indoormap-backend/internal/data/repos"
	types "github.com/yungbote/indoormap-backend/internal/domain"
	"github.com/yungbote/indoormap-backend/internal/platform/apierr"
	"github.com/yungbote/indoormap-backend/internal/platform/dbctx"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
)

// ChokePointRow is one parsed CSV record. Line is the 1-based source line,
// zero for rows that did not come from a file.
type ChokePointRow struct {
	Line       int    `json:"line,omitempty"`
	Name       string `json:"name" validate:"required,max=128"`
	MacAddress string `json:"macAddress" validate:"required,max=64"`
}

type ChokePointImporter interface {
	ParseCSV(r io.Reader) ([]ChokePointRow, error)
	// BulkUpsertByNaturalKey updates chokePoints whose macAddress exists and
	// creates the rest. Results hold one record per row: updates first, then
	// creates, each in input order.
	BulkUpsertByNaturalKey(dbc dbctx.Context, rows []ChokePointRow) ([]*types.ChokePoint, error)
	ImportCSV(dbc dbctx.Context, r io.Reader) ([]*types.ChokePoint, error)
}

type chokePointImporter struct {
	log         *logger.Logger
	repos       repos.Set
	chokePoints ChokePointService
}

func NewChokePointImporter(log *logger.Logger, rs repos.Set, chokePoints ChokePointService) ChokePointImporter {
	return &chokePointImporter{
		log:         log.With("service", "ChokePointImporter"),
		repos:       rs,
		chokePoints: chokePoints,
	}
}

func (s *chokePointImporter) ImportCSV(dbc dbctx.Context, r io.Reader) ([]*types.ChokePoint, error) {
	rows, err := s.ParseCSV(r)
	if err != nil {
		return nil, err
	}
	return s.BulkUpsertByNaturalKey(dbc, rows)
}

// ParseCSV reads a header row naming name and macAddress columns, matched
// case-insensitively; other columns are ignored.
func (s *chokePointImporter) ParseCSV(r io.Reader) ([]ChokePointRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, apierr.Validation(errors.New("csv is empty"))
	}
	if err != nil {
		return nil, apierr.Validation(fmt.Errorf("read csv header: %w", err))
	}
	nameCol, macCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "name":
			nameCol = i
		case "macaddress":
			macCol = i
		}
	}
	if nameCol < 0 || macCol < 0 {
		return nil, apierr.Validation(errors.New("csv header must contain name and macAddress columns"))
	}

	var out []ChokePointRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apierr.Validation(fmt.Errorf("read csv: %w", err))
		}
		line, _ := cr.FieldPos(0)
		out = append(out, ChokePointRow{
			Line:       line,
			Name:       field(rec, nameCol),
			MacAddress: field(rec, macCol),
		})
	}
	return out, nil
}

func field(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func (s *chokePointImporter) BulkUpsertByNaturalKey(dbc dbctx.Context, rows []ChokePointRow) ([]*types.ChokePoint, error) {
	for i := range rows {
		rows[i].Name = strings.TrimSpace(rows[i].Name)
		rows[i].MacAddress = strings.TrimSpace(rows[i].MacAddress)
		if err := validateInput(rows[i]); err != nil {
			return nil, atRow(err, rows[i], i)
		}
	}
	if len(rows) == 0 {
		return []*types.ChokePoint{}, nil
	}

	macs := make([]string, 0, len(rows))
	for _, row := range rows {
		macs = append(macs, row.MacAddress)
	}
	found, err := s.repos.ChokePoints.GetByMacAddresses(dbc, macs)
	if err != nil {
		return nil, apierr.Wrap(err, "resolve macAddresses")
	}
	existing := make(map[string]uuid.UUID, len(found))
	for _, cp := range found {
		existing[cp.MacAddress] = cp.ID
	}

	var updates, creates []int
	for i, row := range rows {
		if _, ok := existing[row.MacAddress]; ok {
			updates = append(updates, i)
		} else {
			creates = append(creates, i)
		}
	}

	out := make([]*types.ChokePoint, 0, len(rows))
	for _, i := range updates {
		cp, err := s.chokePoints.Update(dbc, existing[rows[i].MacAddress], rowInput(rows[i]))
		if err != nil {
			return nil, atRow(err, rows[i], i)
		}
		out = append(out, cp)
	}
	created := make(map[string]uuid.UUID, len(creates))
	for _, i := range creates {
		var cp *types.ChokePoint
		if id, ok := created[rows[i].MacAddress]; ok {
			cp, err = s.chokePoints.Update(dbc, id, rowInput(rows[i]))
		} else {
			cp, err = s.chokePoints.Create(dbc, rowInput(rows[i]))
		}
		if err != nil {
			return nil, atRow(err, rows[i], i)
		}
		created[cp.MacAddress] = cp.ID
		out = append(out, cp)
	}
	s.log.Info("chokePoints upserted", "rows", len(rows), "updated", len(updates), "new_macs", len(created))
	return out, nil
}

func rowInput(row ChokePointRow) ChokePointInput {
	return ChokePointInput{Name: row.Name, MacAddress: row.MacAddress}
}

// atRow prefixes err with the row's position, keeping its api error code.
func atRow(err error, row ChokePointRow, idx int) error {
	where := fmt.Sprintf("row %d", idx+1)
	if row.Line > 0 {
		where = fmt.Sprintf("line %d", row.Line)
	}
	if e, ok := apierr.As(err); ok {
		return apierr.New(e.Status, e.Code, fmt.Errorf("%s: %w", where, e.Err))
	}
	return apierr.Internal(fmt.Errorf("%s: %w", where, err))
}
