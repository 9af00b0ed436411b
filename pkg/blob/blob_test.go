package blob

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSStore_SaveAndOpen(t *testing.T) {
	s, err := NewFS(t.TempDir())
	require.NoError(t, err)

	ref, err := s.Save("rpt-1", "html", []byte("<html>report</html>"))
	require.NoError(t, err)
	assert.Equal(t, "rpt-1.html", ref)

	r, err := s.Open(ref)
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "<html>report</html>", string(data))
}

func TestFSStore_SaveOverwrites(t *testing.T) {
	s, err := NewFS(t.TempDir())
	require.NoError(t, err)

	_, err = s.Save("rpt-1", "pdf", []byte("v1"))
	require.NoError(t, err)
	ref, err := s.Save("rpt-1", "pdf", []byte("v2"))
	require.NoError(t, err)

	r, err := s.Open(ref)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestFSStore_RejectsPathEscapes(t *testing.T) {
	s, err := NewFS(t.TempDir())
	require.NoError(t, err)

	_, err = s.Save("../evil", "html", []byte("x"))
	require.Error(t, err)

	_, err = s.Open("../../etc/passwd")
	require.Error(t, err)

	_, err = s.Open("")
	require.Error(t, err)
}

func TestFSStore_OpenMissing(t *testing.T) {
	s, err := NewFS(t.TempDir())
	require.NoError(t, err)

	_, err = s.Open("rpt-9.pdf")
	require.Error(t, err)
}
