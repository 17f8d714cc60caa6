package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Billy-Davies-2/knockout-pool/internal/config"
	"github.com/Billy-Davies-2/knockout-pool/internal/models"
)

// Draft form layout. Ranked teams sit in column C below the header in row
// 7; participant details are key/value pairs in columns I:J below row 2.
const (
	rankColumn     = 3
	rankFirstRow   = 8
	detailKeyCol   = 9
	detailFirstRow = 3
)

// DraftForm is one participant's filled-in form
type DraftForm struct {
	File        string
	Participant models.Participant
	Entries     []models.DraftEntry
}

// ReadDraftForms reads every *.xlsx in dir whose name does not start with
// an underscore. Forms are returned in file name order.
func ReadDraftForms(dir string, t *config.Tournament) ([]DraftForm, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.xlsx"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var forms []DraftForm
	for _, path := range paths {
		base := filepath.Base(path)
		if strings.HasPrefix(base, "_") {
			continue
		}
		form, err := readDraftForm(path, t)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", base, err)
		}
		forms = append(forms, form)
	}
	return forms, nil
}

func readDraftForm(path string, t *config.Tournament) (DraftForm, error) {
	f, err := os.Open(path)
	if err != nil {
		return DraftForm{}, err
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	form, err := ParseDraftForm(f, name, t)
	if err != nil {
		return DraftForm{}, err
	}
	form.File = path
	return form, nil
}

// ParseDraftForm reads one form for the named participant. The first ranked
// team receives the highest draft value.
func ParseDraftForm(r io.Reader, name string, t *config.Tournament) (DraftForm, error) {
	if strings.TrimSpace(name) == "" {
		return DraftForm{}, fmt.Errorf("%w: empty participant name", ErrInvalidForm)
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return DraftForm{}, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return DraftForm{}, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	ranking, err := ranking(rows, t)
	if err != nil {
		return DraftForm{}, err
	}
	values := t.DraftValues()
	if len(ranking) != len(values) {
		return DraftForm{}, fmt.Errorf("%w: %d teams ranked, %d expected", ErrInvalidForm, len(ranking), len(values))
	}

	entries := make([]models.DraftEntry, len(ranking))
	for i, ref := range ranking {
		entries[i] = models.DraftEntry{Reference: ref, Value: values[i]}
	}

	p := models.Participant{Name: strings.TrimSpace(name)}
	details := details(rows)
	p.TeamName = details["teamnaam"]
	p.Email = details["email"]

	return DraftForm{Participant: p, Entries: entries}, nil
}

func ranking(rows [][]string, t *config.Tournament) ([]string, error) {
	var refs []string
	seen := make(map[string]int)
	for i := rankFirstRow - 1; i < len(rows); i++ {
		if len(rows[i]) < rankColumn {
			continue
		}
		raw := strings.TrimSpace(rows[i][rankColumn-1])
		if raw == "" {
			continue
		}
		ref, err := reference(t, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", ErrInvalidForm, i+1, err)
		}
		if prev, dup := seen[ref]; dup {
			return nil, fmt.Errorf("%w: %q ranked in rows %d and %d", ErrInvalidForm, ref, prev, i+1)
		}
		seen[ref] = i + 1
		refs = append(refs, ref)
	}
	return refs, nil
}

// details reads the optional participant block, keyed by lower-case label
func details(rows [][]string) map[string]string {
	out := make(map[string]string)
	for i := detailFirstRow - 1; i < len(rows); i++ {
		if len(rows[i]) < detailKeyCol+1 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(rows[i][detailKeyCol-1]))
		val := strings.TrimSpace(rows[i][detailKeyCol])
		if key != "" && val != "" {
			out[key] = val
		}
	}
	return out
}
