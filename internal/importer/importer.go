// Package importer loads basket-to-shelf mapping data from CSV files into
// the store. Warehouse staff export these files from spreadsheets, so the
// reader tolerates header aliases, float-formatted shelf numbers and blank
// rows.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/siamwms/asrsd/internal/store"
	"github.com/siamwms/asrsd/pkg/wms"
)

// Result summarizes one import run.
type Result struct {
	Total    int
	Upserted int
	Skipped  int
	DryRun   bool
}

type row struct {
	basket  string
	shelfID int64
}

// headerAliases maps spreadsheet column names onto the canonical ones.
var headerAliases = map[string]string{
	"code":  "basket_id",
	"shelf": "shelf_id",
}

// ImportFile reads the CSV at path and upserts each mapping. With dryRun
// set it only parses and previews; nothing is written.
func ImportFile(ctx context.Context, st *store.Store, path string, dryRun bool) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Import(ctx, st, f, dryRun)
}

// Import reads CSV mapping data from r and upserts each row.
func Import(ctx context.Context, st *store.Store, r io.Reader, dryRun bool) (*Result, error) {
	rows, skipped, err := parse(r)
	if err != nil {
		return nil, err
	}

	// Numeric-aware order so B000000002 sorts before B000000010.
	sort.Slice(rows, func(i, j int) bool { return rows[i].basket < rows[j].basket })

	res := &Result{Total: len(rows) + skipped, Skipped: skipped, DryRun: dryRun}
	log.Printf("[Import] Rows to import: %d (skipped %d)", len(rows), skipped)

	if dryRun {
		preview := rows
		if len(preview) > 20 {
			preview = preview[:20]
		}
		for _, rw := range preview {
			log.Printf("[Import] %s -> shelf %d", rw.basket, rw.shelfID)
		}
		return res, nil
	}

	for _, rw := range rows {
		if err := st.UpsertMapping(ctx, rw.basket, rw.shelfID); err != nil {
			return res, fmt.Errorf("upsert %s: %w", rw.basket, err)
		}
		res.Upserted++
	}
	log.Printf("[Import] Completed: %d upserts, %d skipped", res.Upserted, res.Skipped)
	return res, nil
}

func parse(r io.Reader) (rows []row, skipped int, err error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}

	basketCol, shelfCol := -1, -1
	for i, name := range header {
		canon := strings.ToLower(strings.TrimSpace(name))
		if alias, ok := headerAliases[canon]; ok {
			canon = alias
		}
		switch canon {
		case "basket_id":
			basketCol = i
		case "shelf_id":
			shelfCol = i
		}
	}
	if basketCol < 0 {
		return nil, 0, fmt.Errorf("file must contain a 'basket_id' or 'code' column")
	}
	if shelfCol < 0 {
		return nil, 0, fmt.Errorf("file must contain a 'shelf_id' or 'shelf' column")
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read record: %w", err)
		}
		if basketCol >= len(record) || shelfCol >= len(record) {
			skipped++
			continue
		}

		rawBasket := strings.TrimSpace(record[basketCol])
		if rawBasket == "" {
			log.Printf("[Import] Skipping row with empty basket id")
			skipped++
			continue
		}
		basket, err := wms.NormalizeBasketID(rawBasket)
		if err != nil {
			log.Printf("[Import] Skipping basket %q: %v", rawBasket, err)
			skipped++
			continue
		}

		shelfID, ok := parseShelfID(record[shelfCol])
		if !ok {
			log.Printf("[Import] Skipping basket %s: no usable shelf value %q", basket, record[shelfCol])
			skipped++
			continue
		}

		rows = append(rows, row{basket: basket, shelfID: shelfID})
	}
	return rows, skipped, nil
}

// parseShelfID accepts spreadsheet-mangled integers such as "516.0".
func parseShelfID(raw string) (int64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int64(f), true
}
