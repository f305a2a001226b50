package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestReadExtractionFileYAML(t *testing.T) {
	path := writeFile(t, "lease.yaml", `
extractions:
  - tenantId: twin-42
    chapterId: ch1
    fileName: Lease.pdf
    title: "1. Terms"
    text: Rent is due monthly.
    subchapters:
      - {title: "1.1 Amount", text: Rent is 900., tokenCount: 5}
slices:
  - tenantId: twin-42
    chapterId: ch9
    fileName: Lease.pdf
    chapterTitle: "9. Annex"
    chapterTokenCount: 12
`)
	slices, err := readExtractionFile(path)
	require.NoError(t, err)
	require.Len(t, slices, 2)
	assert.Equal(t, "ch9", slices[0].ChapterID)
	assert.Equal(t, "ch1-sub-1", slices[1].ID)
	assert.Equal(t, "1.1 Amount", slices[1].SubTitle)
}

func TestReadExtractionFileJSON(t *testing.T) {
	path := writeFile(t, "policy.json", `{"extractions":[{"tenantId":"T1","chapterId":"c","fileName":"Policy.pdf","title":"Coverage","text":"All risks.","tokenCount":3}]}`)
	slices, err := readExtractionFile(path)
	require.NoError(t, err)
	require.Len(t, slices, 1)
	assert.Equal(t, "c-chapter", slices[0].ID)
}

func TestReadExtractionFileErrors(t *testing.T) {
	_, err := readExtractionFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = readExtractionFile(writeFile(t, "empty.yaml", "extractions: []\n"))
	assert.ErrorContains(t, err, "no extractions")

	_, err = readExtractionFiles([]string{writeFile(t, "bad.yaml", "extractions: {")})
	assert.Error(t, err)
}
