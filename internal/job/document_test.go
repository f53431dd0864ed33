package job

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportImport(t *testing.T) {
	dir := t.TempDir()
	s, _ := newTestStore()

	src := validJob()
	src.Points[1].Kind = KindSurfaceMount
	src.Points[1].Dwell = 2500 * time.Millisecond
	id, err := s.Create(src)
	require.NoError(t, err)

	path := filepath.Join(dir, "board.sjob")
	require.NoError(t, s.Export(id, path))

	doc, err := LoadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, DocumentVersion, doc.Version)
	assert.Equal(t, int64(2500), doc.Points[1].DwellTime)
	assert.Equal(t, "SMD", doc.Points[1].Type)

	newID, err := s.Import(path)
	require.NoError(t, err)
	assert.NotEqual(t, id, newID)

	orig, _ := s.Get(id)
	copied, _ := s.Get(newID)
	assert.Equal(t, orig.Name, copied.Name)
	assert.Equal(t, orig.Points, copied.Points)
	assert.Equal(t, orig.PCB.Size, copied.PCB.Size)
	assert.True(t, orig.Deadline.Equal(copied.Deadline))
}

func TestImportFile_ImageRelativeToDocument(t *testing.T) {
	dir := t.TempDir()

	img := image.NewGray(image.Rect(0, 0, 8, 6))
	img.SetGray(2, 2, color.Gray{Y: 200})
	imgPath := filepath.Join(dir, "images", "top.png")
	require.NoError(t, os.MkdirAll(filepath.Dir(imgPath), 0755))
	f, err := os.Create(imgPath)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	docPath := filepath.Join(dir, "job.json")
	doc := NewDocument(validJob())
	doc.SetImage(docPath, imgPath)
	assert.Equal(t, filepath.Join("images", "top.png"), doc.PCB.ImagePath)
	require.NoError(t, doc.Save(docPath))

	j, err := ImportFile(docPath)
	require.NoError(t, err)
	require.NotNil(t, j.PCB.Image)
	assert.Equal(t, image.Rect(0, 0, 8, 6), j.PCB.Image.Bounds())
	assert.Equal(t, imgPath, j.PCB.ImagePath)
}

func TestImportFile_UnsupportedFormats(t *testing.T) {
	for _, name := range []string{"board.gbr", "board.dxf", "board.txt"} {
		_, err := ImportFile(filepath.Join(t.TempDir(), name))
		assert.ErrorIs(t, err, ErrUnsupportedFormat, name)
	}
}

func TestParsePointKind(t *testing.T) {
	assert.Equal(t, KindThroughHole, ParsePointKind("PTH"))
	assert.Equal(t, KindSurfaceMount, ParsePointKind("surface-mount"))
	assert.Equal(t, KindOther, ParsePointKind("press-fit"))
}
