package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPages_PlainText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("page one\fpage two"), 0600))

	pages, err := readPages(path)

	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, "page one", pages[0].Text)
	assert.Equal(t, 2, pages[1].Number)
	assert.Equal(t, "page two", pages[1].Text)
}

func TestReadPages_NoSeparatorIsOnePage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("just one page"), 0600))

	pages, err := readPages(path)

	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "just one page", pages[0].Text)
}

func TestReadPages_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	content := `[{"Number": 3, "Text": "third page"}, {"Number": 4, "Text": "fourth page"}]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	pages, err := readPages(path)

	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, 3, pages[0].Number)
	assert.Equal(t, "fourth page", pages[1].Text)
}

func TestReadPages_MissingFile(t *testing.T) {
	_, err := readPages(filepath.Join(t.TempDir(), "absent.txt"))

	assert.Error(t, err)
}

func TestJobCmd_HasSubcommands(t *testing.T) {
	commands := jobCmd.Commands()
	commandNames := make([]string, 0, len(commands))
	for _, cmd := range commands {
		commandNames = append(commandNames, cmd.Name())
	}

	assert.Contains(t, commandNames, "status")
	assert.Contains(t, commandNames, "cancel")
}

func TestJobStatusCmd_NotFound(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("job", "status", "missing")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload job not found")
}
