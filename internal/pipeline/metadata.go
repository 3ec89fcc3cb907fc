package pipeline

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// idHeaders are the first-column names QIIME 2 accepts for sample and
// feature metadata, compared case-insensitively. The # forms and
// sample_name are legacy spellings it still reads.
var idHeaders = map[string]struct{}{
	"id":          {},
	"sampleid":    {},
	"sample id":   {},
	"sample-id":   {},
	"featureid":   {},
	"feature id":  {},
	"feature-id":  {},
	"#sampleid":   {},
	"#sample id":  {},
	"#otuid":      {},
	"#otu id":     {},
	"sample_name": {},
}

// readMetadataColumns returns the column names after the ID column of a
// QIIME 2 metadata TSV. Comment lines before the header are skipped.
func readMetadataColumns(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		first := strings.ToLower(strings.Trim(strings.TrimSpace(fields[0]), `"`))
		if _, ok := idHeaders[first]; ok {
			columns := make([]string, 0, len(fields)-1)
			for _, field := range fields[1:] {
				columns = append(columns, strings.Trim(strings.TrimSpace(field), `"`))
			}
			return columns, nil
		}
		if strings.HasPrefix(first, "#") {
			continue
		}
		return nil, fmt.Errorf("unrecognised ID column header %q", fields[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("no header line found")
}

// missingColumns returns the required names absent from columns.
func missingColumns(columns []string, required ...string) []string {
	have := make(map[string]struct{}, len(columns))
	for _, column := range columns {
		have[column] = struct{}{}
	}
	var missing []string
	for _, name := range required {
		if name == "" {
			continue
		}
		if _, ok := have[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
