package program

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solderbot/internal/events"
	"solderbot/internal/job"
	"solderbot/pkg/geometry"
)

func testPCB() job.PCBDocument {
	return job.PCBDocument{Name: "ctrl-board", Width: 100, Height: 80}
}

func recordTwo(t *testing.T, r *Recorder) {
	t.Helper()
	require.NoError(t, r.Add(geometry.NewPoint3D(10, 10, 0), 350, time.Second, job.KindThroughHole))
	require.NoError(t, r.Add(geometry.NewPoint3D(20, 15, 0), 320, 1500*time.Millisecond, job.KindSurfaceMount))
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()

	_, err := r.Stop()
	assert.ErrorIs(t, err, ErrNotRecording)
	assert.ErrorIs(t, r.Add(geometry.Point3D{}, 350, time.Second, job.KindThroughHole), ErrNotRecording)

	require.NoError(t, r.Start("ctrl", testPCB()))
	assert.ErrorIs(t, r.Start("other", testPCB()), ErrRecording)

	recordTwo(t, r)
	on, n := r.Recording()
	assert.True(t, on)
	assert.Equal(t, 2, n)

	p, err := r.Stop()
	require.NoError(t, err)
	assert.Equal(t, "ctrl", p.Name)
	require.Len(t, p.Points, 2)
	assert.Equal(t, int64(1500), p.Points[1].DwellTime)
	assert.Equal(t, "SMD", p.Points[1].Type)

	on, _ = r.Recording()
	assert.False(t, on)
}

func TestRecorder_ClearAndEmptyStop(t *testing.T) {
	r := NewRecorder()
	require.NoError(t, r.Start("ctrl", testPCB()))
	recordTwo(t, r)
	require.NoError(t, r.Clear())

	_, n := r.Recording()
	assert.Equal(t, 0, n)

	_, err := r.Stop()
	assert.ErrorIs(t, err, ErrInvalid)

	// the recorder is idle again after a failed stop
	assert.NoError(t, r.Start("ctrl", testPCB()))
}

func TestValidate(t *testing.T) {
	valid := func() *Program {
		return &Program{
			Name:   "ctrl",
			Points: []job.PointDocument{{X: 1, Y: 1, Temperature: 350, DwellTime: 1000}},
		}
	}

	tests := []struct {
		name   string
		modify func(*Program)
		ok     bool
	}{
		{"valid", func(*Program) {}, true},
		{"zero temperature", func(p *Program) { p.Points[0].Temperature = 0 }, true},
		{"max temperature", func(p *Program) { p.Points[0].Temperature = 450 }, true},
		{"empty name", func(p *Program) { p.Name = "  " }, false},
		{"path in name", func(p *Program) { p.Name = "../x" }, false},
		{"no points", func(p *Program) { p.Points = nil }, false},
		{"too hot", func(p *Program) { p.Points[0].Temperature = 451 }, false},
		{"negative temperature", func(p *Program) { p.Points[0].Temperature = -1 }, false},
		{"negative dwell", func(p *Program) { p.Points[0].DwellTime = -1 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.modify(p)
			err := p.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalid)
			}
		})
	}
}

func TestStore_SaveLoadListDelete(t *testing.T) {
	dir := t.TempDir()
	rec := &events.Recorder{}
	s, err := NewStore(dir, rec, nil)
	require.NoError(t, err)

	r := NewRecorder()
	require.NoError(t, r.Start("beta", testPCB()))
	recordTwo(t, r)
	beta, err := r.Stop()
	require.NoError(t, err)
	require.NoError(t, s.Save(beta))

	alpha := *beta
	alpha.Name = "alpha"
	require.NoError(t, s.Save(&alpha))

	assert.FileExists(t, filepath.Join(dir, "beta.json"))
	assert.True(t, rec.Has(events.ProgramRecorded))

	// stray files are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	names, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, names)

	loaded, err := s.Load("beta")
	require.NoError(t, err)
	assert.Equal(t, beta.Points, loaded.Points)
	assert.Equal(t, beta.PCB, loaded.PCB)

	require.NoError(t, s.Delete("beta"))
	_, err = s.Load("beta")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete("beta"), ErrNotFound)
}

func TestStore_SaveRejectsInvalid(t *testing.T) {
	s, err := NewStore(t.TempDir(), nil, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Save(&Program{Name: "empty"}), ErrInvalid)

	names, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestProgramJob(t *testing.T) {
	r := NewRecorder()
	require.NoError(t, r.Start("ctrl", testPCB()))
	recordTwo(t, r)
	p, err := r.Stop()
	require.NoError(t, err)

	deadline := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	j := p.Job(3, deadline)

	assert.Equal(t, "ctrl", j.Name)
	assert.Equal(t, 3, j.Priority)
	assert.Equal(t, deadline, j.Deadline)
	assert.Equal(t, job.StatusWaiting, j.Status)
	assert.Equal(t, geometry.NewSize(100, 80), j.PCB.Size)
	require.Len(t, j.Points, 2)
	assert.Equal(t, geometry.NewPoint3D(20, 15, 0), j.Points[1].Position)
	assert.Equal(t, 1500*time.Millisecond, j.Points[1].Dwell)
	assert.Equal(t, job.KindSurfaceMount, j.Points[1].Kind)
	assert.NoError(t, job.ValidateJob(j))
}

func TestFromJob(t *testing.T) {
	j := job.SolderJob{
		Name: "board",
		PCB:  job.PCBData{Size: geometry.NewSize(50, 50)},
		Points: []job.SolderPoint{
			{Position: geometry.NewPoint3D(5, 5, 0), Temperature: 350, Dwell: time.Second, Completed: true},
		},
	}
	p := FromJob("saved", j)
	assert.Equal(t, "saved", p.Name)
	assert.False(t, p.Points[0].Completed)
	assert.NoError(t, p.Validate())
}
