package clientsync

import "testing"

func TestBuildWorkbook_Rows(t *testing.T) {
	report := &Report{
		Mismatches: []Mismatch{{ClientID: 1, WpUserID: 10, FieldName: FieldFirstName, ValueFromClient: "Sam", ValueFromWP: "Samuel"}},
		Unlinked:   []LinkCandidate{{ClientID: 2, Email: "eve@example.com", SuggestedUserID: 20}},
	}
	f, err := buildWorkbook(report)
	if err != nil {
		t.Fatalf("buildWorkbook: %v", err)
	}
	defer f.Close()

	cases := []struct {
		sheet, cell, want string
	}{
		{mismatchSheet, "A1", "Client ID"},
		{mismatchSheet, "C2", FieldFirstName.Label()},
		{mismatchSheet, "E2", "Samuel"},
		{unlinkedSheet, "B2", "eve@example.com"},
		{unlinkedSheet, "C2", "20"},
	}
	for _, tc := range cases {
		got, err := f.GetCellValue(tc.sheet, tc.cell)
		if err != nil {
			t.Fatalf("%s!%s: %v", tc.sheet, tc.cell, err)
		}
		if got != tc.want {
			t.Fatalf("%s!%s: expected %q, got %q", tc.sheet, tc.cell, tc.want, got)
		}
	}
}

func TestSetRow_ReturnsCellError(t *testing.T) {
	report := &Report{Mismatches: []Mismatch{}, Unlinked: []LinkCandidate{}}
	f, err := buildWorkbook(report)
	if err != nil {
		t.Fatalf("buildWorkbook: %v", err)
	}
	defer f.Close()

	if err := setRow(f, "Missing", 1, "Client ID"); err == nil {
		t.Fatalf("expected an error writing to a sheet that does not exist")
	}
	if err := setRow(f, mismatchSheet, 0, "Client ID"); err == nil {
		t.Fatalf("expected an error for row 0")
	}
}
