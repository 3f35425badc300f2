package main

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Lllllllleong/tenderflow/internal/pdfdoc/pdftest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTender(t *testing.T, root, tenderID string, docs map[string][]byte) {
	t.Helper()
	dir := filepath.Join(root, "tender-documents", tenderID)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, data := range docs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	err := app.Run(append([]string{"tenderctl"}, args...))
	return out.String(), err
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := runApp(t, "--log-level", "loud", "status", "T1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestTenderArgumentRequired(t *testing.T) {
	root := t.TempDir()
	_, err := runApp(t, "--dir", root, "archive")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one <tenderId>")
}

func TestArchiveCommand(t *testing.T) {
	root := t.TempDir()
	writeTender(t, root, "T1", map[string][]byte{
		"a.pdf": pdftest.MustBuild(pdftest.Text("Invitation to bid")),
		"b.pdf": pdftest.MustBuild(pdftest.Text("Bid form")),
	})
	out := filepath.Join(t.TempDir(), "bundle.zip")

	stdout, err := runApp(t, "--dir", root, "--progress-dir", filepath.Join(root, ".progress"), "archive", "--out", out, "T1")
	require.NoError(t, err)
	assert.Contains(t, stdout, out)

	zr, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"a.pdf", "b.pdf"}, names)
}

func TestArchiveCommandUnknownTender(t *testing.T) {
	root := t.TempDir()
	_, err := runApp(t, "--dir", root, "archive", "--out", filepath.Join(root, "x.zip"), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tender has no documents")
}

func TestExportCommandWithExplicitPages(t *testing.T) {
	root := t.TempDir()
	writeTender(t, root, "T1", map[string][]byte{
		"a.pdf": pdftest.MustBuild(pdftest.Text("Conditions"), pdftest.Text("Bid form"), pdftest.Text("Annex")),
	})
	out := filepath.Join(t.TempDir(), "forms.pdf")

	stdout, err := runApp(t,
		"--dir", root, "--progress-dir", filepath.Join(t.TempDir(), "progress"),
		"export", "--out", out, "--pages", "a.pdf=2", "T1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote 1 pages")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestStatusCommandEmptyLedger(t *testing.T) {
	root := t.TempDir()
	stdout, err := runApp(t, "--dir", root, "--progress-dir", filepath.Join(root, "progress"), "status", "--ledger", "documents", "T9")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"completed"`)

	_, err = runApp(t, "--dir", root, "status", "--ledger", "nope", "T9")
	assert.Error(t, err)
}

func TestParsePages(t *testing.T) {
	forms, err := parsePages([]string{"a.pdf=1, 3", "b.pdf=2"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]int{"a.pdf": {1, 3}, "b.pdf": {2}}, forms)

	forms, err = parsePages(nil)
	require.NoError(t, err)
	assert.Nil(t, forms)

	_, err = parsePages([]string{"a.pdf"})
	assert.Error(t, err)
	_, err = parsePages([]string{"a.pdf=x"})
	assert.Error(t, err)
}
