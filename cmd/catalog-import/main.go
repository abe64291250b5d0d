// Command catalog-import converts a card spreadsheet export into the JSON
// card list read by catalog.path. Every card is compiled the way the server
// compiles it, and cards whose text fell back to a generic effect are listed
// for review.
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Miszion/riftbound-online-backend/internal/game/catalog"
	"github.com/Miszion/riftbound-online-backend/internal/game/resource"
)

// columns expected in the header row, in any order.
var columns = []string{"id", "name", "type", "domains", "cost", "might", "text"}

func main() {
	out := flag.String("out", "cards.json", "where to write the card list")
	flag.Parse()

	csvPath := "data/cards_export.csv"
	if flag.NArg() > 0 {
		csvPath = flag.Arg(0)
	}
	absPath, err := filepath.Abs(csvPath)
	if err != nil {
		log.Fatalf("Failed to get absolute path: %v", err)
	}

	fmt.Println("=== Riftbound Card Import ===")
	fmt.Printf("CSV file: %s\n", absPath)

	file, err := os.Open(absPath)
	if err != nil {
		log.Fatalf("Failed to open CSV file: %v", err)
	}
	defer file.Close()

	records, warnings, err := parseRecords(file)
	if err != nil {
		log.Fatalf("Failed to read CSV: %v", err)
	}
	for _, w := range warnings {
		log.Printf("Warning: %s", w)
	}
	fmt.Printf("Parsed %d cards\n", len(records))

	cat, err := catalog.New(records)
	if err != nil {
		log.Fatalf("Card list rejected: %v", err)
	}

	review := cat.NeedsReview()
	if len(review) > 0 {
		fmt.Printf("\n%d cards need review:\n", len(review))
		for _, card := range review {
			fmt.Printf("  %-24s %s\n", card.ID, card.Text)
		}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode cards: %v", err)
	}
	if err := os.WriteFile(*out, append(data, '\n'), 0o644); err != nil {
		log.Fatalf("Failed to write %s: %v", *out, err)
	}

	fmt.Println("\n=== Import Complete ===")
	fmt.Printf("✓ Wrote %d cards to %s\n", cat.Len(), *out)
	fmt.Println("Set catalog.path (or RIFTBOUND_CATALOG_PATH) to load them.")
}

// parseRecords reads the export. Rows with a bad might value or the wrong
// column count are skipped and reported.
func parseRecords(r io.Reader) ([]catalog.Record, []string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(rows) < 2 {
		return nil, nil, fmt.Errorf("CSV file is empty or has no data rows")
	}

	index := make(map[string]int, len(columns))
	for i, name := range rows[0] {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range columns {
		if _, ok := index[name]; !ok {
			return nil, nil, fmt.Errorf("missing column %q", name)
		}
	}

	var (
		records  []catalog.Record
		warnings []string
	)
	for i, row := range rows[1:] {
		line := i + 2
		if len(row) != len(rows[0]) {
			warnings = append(warnings, fmt.Sprintf("skipping row %d - expected %d columns, got %d", line, len(rows[0]), len(row)))
			continue
		}
		field := func(name string) string { return strings.TrimSpace(row[index[name]]) }

		rec := catalog.Record{
			ID:   field("id"),
			Name: field("name"),
			Type: catalog.CardType(strings.ToLower(field("type"))),
			Cost: field("cost"),
			Text: field("text"),
		}
		if m := field("might"); m != "" {
			might, err := strconv.Atoi(m)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("skipping row %d - might %q is not a number", line, m))
				continue
			}
			rec.Might = might
		}
		for _, d := range strings.Split(field("domains"), ";") {
			if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
				rec.Domains = append(rec.Domains, resource.Domain(d))
			}
		}
		records = append(records, rec)
	}
	return records, warnings, nil
}
