package pipeline

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestReadMetadataColumns(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    []string
		wantErr bool
	}{
		{
			name:    "sample-id header with types directive",
			content: "sample-id\tbarcode-sequence\tsubject\n#q2:types\tcategorical\tcategorical\nL1S8\tAGCT\tsubject-1\n",
			want:    []string{"barcode-sequence", "subject"},
		},
		{
			name:    "legacy SampleID header after comments",
			content: "# exported from a spreadsheet\n\n#SampleID\tBarcodeSequence\tsubject\r\nL1S8\tAGCT\tsubject-1\r\n",
			want:    []string{"BarcodeSequence", "subject"},
		},
		{
			name:    "quoted header",
			content: "\"id\"\t\"subject\"\n",
			want:    []string{"subject"},
		},
		{
			name:    "feature id header",
			content: "feature id\tTaxon\n",
			want:    []string{"Taxon"},
		},
		{
			name:    "legacy OTU header",
			content: "#OTU ID\tsubject\n",
			want:    []string{"subject"},
		},
		{
			name:    "sample_name header",
			content: "sample_name\tsubject\tbarcode-sequence\n",
			want:    []string{"subject", "barcode-sequence"},
		},
		{
			name:    "unknown id column",
			content: "name\tsubject\n",
			wantErr: true,
		},
		{
			name:    "comments only",
			content: "# nothing here\n",
			wantErr: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "metadata.tsv")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatal(err)
			}
			got, err := readMetadataColumns(path)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got columns %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("columns = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMissingColumns(t *testing.T) {
	got := missingColumns([]string{"subject", "barcode-sequence"}, "subject", "", "body-site")
	if !reflect.DeepEqual(got, []string{"body-site"}) {
		t.Fatalf("unexpected missing columns: %v", got)
	}
}
