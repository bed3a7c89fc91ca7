package scope_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/devsbx/internal/scope"
)

func TestTempFile(t *testing.T) {
	tests := map[string]struct {
		name    string
		content []byte
		expErr  bool
	}{
		"Creating a temp file should write the content.": {
			name:    "firmware.hex",
			content: []byte(":020000040000FA"),
		},
		"Creating an empty temp file should work.": {
			name: "empty.bin",
		},
		"A name with path separators should fail.": {
			name:   "../firmware.hex",
			expErr: true,
		},
		"An empty name should fail.": {
			name:   "",
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			base := t.TempDir()
			f, err := scope.TempFile(base, test.name, test.content)

			if test.expErr {
				assert.Error(err)
				entries, err := os.ReadDir(base)
				require.NoError(err)
				assert.Empty(entries)
				return
			}

			require.NoError(err)
			data, err := os.ReadFile(f.Path)
			require.NoError(err)
			assert.Equal(string(test.content), string(data))
			assert.Equal(test.name, filepath.Base(f.Path))

			require.NoError(f.Release())
			_, err = os.Stat(f.Path)
			assert.True(os.IsNotExist(err))

			entries, err := os.ReadDir(base)
			require.NoError(err)
			assert.Empty(entries)
		})
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	f, err := scope.TempFile(t.TempDir(), "fw.hex", []byte("data"))
	require.NoError(err)

	assert.NoError(f.Release())
	assert.NoError(f.Release())
	assert.NoError(f.Release())
}

func TestGroupRelease(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	base := t.TempDir()
	g := &scope.Group{}

	var paths []string
	for _, name := range []string{"a.hex", "b.hex", "c.hex"} {
		f, err := scope.TempFile(base, name, []byte(name))
		require.NoError(err)
		g.Add(f)
		paths = append(paths, f.Path)
	}
	d, err := scope.TempDir(base)
	require.NoError(err)
	g.Add(d)

	require.NoError(g.Release())
	for _, p := range append(paths, d.Path) {
		_, err := os.Stat(p)
		assert.True(os.IsNotExist(err), p)
	}

	// Releasing again is a noop.
	assert.NoError(g.Release())
}
