package profile

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

func TestGenerateRegistryExport(t *testing.T) {
	joined := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	entries := []*RegistryEntry{
		{
			Profile: Profile{
				ID: uuid.MustParse("11111111-1111-1111-1111-111111111111"), Role: "patient",
				FullName: "Sarah Johnson", Age: intPtr(32), Gender: strPtr(GenderFemale), CreatedAt: joined,
			},
			LatestBMICategory: strPtr("normal"),
		},
		{
			Profile: Profile{
				ID: uuid.MustParse("22222222-2222-2222-2222-222222222222"), Role: "patient",
				FullName: "Alex Kim", Gender: strPtr(GenderPreferNotToSay), CreatedAt: joined,
			},
		},
	}

	data, err := GenerateRegistryExport(entries)
	if err != nil {
		t.Fatalf("GenerateRegistryExport: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	if sheets := f.GetSheetList(); len(sheets) != 1 || sheets[0] != registrySheet {
		t.Fatalf("unexpected sheets %v", sheets)
	}

	rows, err := f.GetRows(registrySheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][1] != "Full Name" || rows[0][5] != "Latest BMI Category" {
		t.Errorf("unexpected header %v", rows[0])
	}
	want := []string{"11111111-1111-1111-1111-111111111111", "Sarah Johnson", "32", "Female", "2026-03-14", "normal"}
	for i, v := range want {
		if rows[1][i] != v {
			t.Errorf("row 1 col %d: expected %q, got %q", i, v, rows[1][i])
		}
	}
	if rows[2][3] != "Prefer not to say" {
		t.Errorf("expected gender label, got %q", rows[2][3])
	}
}

func TestGenerateRegistryExport_Empty(t *testing.T) {
	data, err := GenerateRegistryExport(nil)
	if err != nil {
		t.Fatalf("GenerateRegistryExport: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows(registrySheet)
	if len(rows) != 1 {
		t.Errorf("expected only the header row, got %d", len(rows))
	}
}
