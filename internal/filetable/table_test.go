package filetable

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.bin"), []byte{0, 1, 2, 3}, 0o600))

	table, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())
	require.Equal(t, int64(9), table.Size())
	require.Equal(t, []string{"a.txt", "b.bin"}, table.Names())

	data, ok := table.Get("a.txt")
	require.True(t, ok)
	require.Equal(t, []byte("hello"), data)

	data, ok = table.Get("b.bin")
	require.True(t, ok)
	require.Equal(t, []byte{0, 1, 2, 3}, data)

	_, ok = table.Get("A.TXT")
	require.False(t, ok)
}

func TestLoad_emptyDirectory(t *testing.T) {
	table, err := Load(t.TempDir())
	require.NoError(t, err)
	require.Zero(t, table.Len())
	require.Empty(t, table.Names())
}

func TestLoad_missingDirectory(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_subdirectoryFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o700))

	_, err := Load(dir)
	require.ErrorIs(t, err, ErrSubdirectory)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string][]byte
		wantErr error
	}{
		{
			name:  "valid names",
			files: map[string][]byte{"a.txt": []byte("a"), "with space.bin": nil},
		},
		{
			name:    "empty name",
			files:   map[string][]byte{"": []byte("a")},
			wantErr: ErrInvalidName,
		},
		{
			name:    "slash",
			files:   map[string][]byte{"dir/a.txt": []byte("a")},
			wantErr: ErrInvalidName,
		},
		{
			name:    "backslash",
			files:   map[string][]byte{`dir\a.txt`: []byte("a")},
			wantErr: ErrInvalidName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.files)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNew_copiesInput(t *testing.T) {
	src := map[string][]byte{"a.txt": []byte("hello")}

	table, err := New(src)
	require.NoError(t, err)

	src["a.txt"][0] = 'j'
	src["b.txt"] = []byte("late")

	data, _ := table.Get("a.txt")
	require.Equal(t, []byte("hello"), data)
	require.Equal(t, []string{"a.txt"}, table.Names())
}

func TestNames_returnsCopy(t *testing.T) {
	table, err := New(map[string][]byte{"a": nil, "b": nil})
	require.NoError(t, err)

	names := table.Names()
	names[0] = "z"

	require.Equal(t, []string{"a", "b"}, table.Names())
}
