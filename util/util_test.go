package util_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssrl-px/interceptor/util"
)

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.Nil(t, err)

	expanded, err := util.ExpandTilde("~/logs")
	require.Nil(t, err)
	assert.Equal(t, filepath.Join(home, "logs"), expanded)

	unchanged, err := util.ExpandTilde("/var/log/interceptor")
	require.Nil(t, err)
	assert.Equal(t, "/var/log/interceptor", unchanged)
}

func TestFileExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.txt")
	assert.False(t, util.FileExists(path))
	require.Nil(t, os.WriteFile(path, []byte("x"), 0644))
	assert.True(t, util.FileExists(path))
}

func TestStringListContains(t *testing.T) {
	list := []string{"n_spots", "hres", "score"}
	assert.True(t, util.StringListContains(list, "hres"))
	assert.False(t, util.StringListContains(list, "sg"))
	assert.False(t, util.StringListContains(nil, "hres"))
}

func TestLooksSafeToDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intxr_connect_8121.pid")
	require.Nil(t, os.WriteFile(path, []byte("1234"), 0644))

	assert.True(t, util.LooksSafeToDelete(path, 12, 0))
	assert.False(t, util.LooksSafeToDelete(path, 500, 0))
	assert.False(t, util.LooksSafeToDelete(path, 12, 60))
	assert.False(t, util.LooksSafeToDelete(filepath.Join(t.TempDir(), "gone"), 3, 0))
}

func TestPidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intxr_connect_8121.pid")

	assert.False(t, util.IsRunningInOtherProcess(path))
	require.Nil(t, util.WritePidFile(path))
	assert.Equal(t, os.Getpid(), util.ReadPidFile(path))

	// Our own pid never counts as another process.
	assert.False(t, util.IsRunningInOtherProcess(path))

	require.Nil(t, util.DeletePidFile(path))
	assert.False(t, util.FileExists(path))
}
