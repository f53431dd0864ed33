package job

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"solderbot/internal/scan"
	"solderbot/pkg/geometry"
)

// DocumentVersion is written into every exported job file.
const DocumentVersion = 1

// Document is the on-disk JSON form of a job (.sjob).
type Document struct {
	Version  int             `json:"version"`
	ID       string          `json:"id,omitempty"`
	Name     string          `json:"name"`
	Priority int             `json:"priority"`
	Created  time.Time       `json:"created"`
	Deadline time.Time       `json:"deadline"`
	Status   string          `json:"status,omitempty"`
	PCB      PCBDocument     `json:"pcb"`
	Points   []PointDocument `json:"points"`
}

// PCBDocument is the board section of a Document.
type PCBDocument struct {
	Name         string             `json:"name"`
	Width        float64            `json:"width"`
	Height       float64            `json:"height"`
	OriginX      float64            `json:"origin_x"`
	OriginY      float64            `json:"origin_y"`
	FiducialType string             `json:"fiducial_type,omitempty"`
	Fiducials    []geometry.Point2D `json:"fiducials,omitempty"`

	// Image path (relative to the document)
	ImagePath string `json:"image,omitempty"`
}

// PointDocument is a single point of a Document. Dwell is in milliseconds.
type PointDocument struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Z           float64 `json:"z"`
	Temperature float64 `json:"temperature"`
	DwellTime   int64   `json:"dwell_time"`
	Type        string  `json:"type"`
	Completed   bool    `json:"completed,omitempty"`
}

// NewDocument converts a job to its file form.
func NewDocument(j SolderJob) *Document {
	doc := &Document{
		Version:  DocumentVersion,
		ID:       j.ID,
		Name:     j.Name,
		Priority: j.Priority,
		Created:  j.Created,
		Deadline: j.Deadline,
		Status:   j.Status.String(),
		PCB: PCBDocument{
			Name:         j.PCB.Name,
			Width:        j.PCB.Size.Width,
			Height:       j.PCB.Size.Height,
			OriginX:      j.PCB.Origin.X,
			OriginY:      j.PCB.Origin.Y,
			FiducialType: j.PCB.FiducialKind,
			Fiducials:    append([]geometry.Point2D(nil), j.PCB.Fiducials...),
			ImagePath:    j.PCB.ImagePath,
		},
		Points: make([]PointDocument, len(j.Points)),
	}
	for i, p := range j.Points {
		doc.Points[i] = PointDocument{
			X:           p.Position.X,
			Y:           p.Position.Y,
			Z:           p.Position.Z,
			Temperature: p.Temperature,
			DwellTime:   p.Dwell.Milliseconds(),
			Type:        p.Kind.String(),
			Completed:   p.Completed,
		}
	}
	return doc
}

// Job converts the document back into a job. The board image is not loaded.
func (d *Document) Job() SolderJob {
	j := SolderJob{
		ID:       d.ID,
		Name:     d.Name,
		Priority: d.Priority,
		Created:  d.Created,
		Deadline: d.Deadline,
		PCB: PCBData{
			Name:         d.PCB.Name,
			Size:         geometry.NewSize(d.PCB.Width, d.PCB.Height),
			Origin:       geometry.NewPoint2D(d.PCB.OriginX, d.PCB.OriginY),
			FiducialKind: d.PCB.FiducialType,
			Fiducials:    append([]geometry.Point2D(nil), d.PCB.Fiducials...),
			ImagePath:    d.PCB.ImagePath,
		},
		Points: make([]SolderPoint, len(d.Points)),
	}
	if st, err := ParseStatus(d.Status); err == nil {
		j.Status = st
	}
	for i, p := range d.Points {
		j.Points[i] = SolderPoint{
			Position:    geometry.NewPoint3D(p.X, p.Y, p.Z),
			Temperature: p.Temperature,
			Dwell:       time.Duration(p.DwellTime) * time.Millisecond,
			Kind:        ParsePointKind(p.Type),
			Completed:   p.Completed,
		}
	}
	return j
}

// LoadDocument reads a job document from a JSON file.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("job: parse %s: %w", path, err)
	}
	return &doc, nil
}

// Save writes the document as indented JSON.
func (d *Document) Save(path string) error {
	if d.Version == 0 {
		d.Version = DocumentVersion
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SetImage records the board image path relative to the document.
func (d *Document) SetImage(docPath, imagePath string) {
	rel, err := filepath.Rel(filepath.Dir(docPath), imagePath)
	if err != nil {
		d.PCB.ImagePath = imagePath
	} else {
		d.PCB.ImagePath = rel
	}
}

// GetImagePath returns the absolute path to the board image, or "".
func (d *Document) GetImagePath(docPath string) string {
	if d.PCB.ImagePath == "" {
		return ""
	}
	if filepath.IsAbs(d.PCB.ImagePath) {
		return d.PCB.ImagePath
	}
	return filepath.Join(filepath.Dir(docPath), d.PCB.ImagePath)
}

// ImportFile loads a job from path. Only JSON documents are supported; Gerber
// and CAD exports are recognized and rejected.
func ImportFile(path string) (SolderJob, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", ".sjob":
	case ".gbr", ".ger", ".gtl", ".gbl", ".drl", ".dxf", ".brd", ".kicad_pcb", ".step":
		return SolderJob{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	default:
		return SolderJob{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	doc, err := LoadDocument(path)
	if err != nil {
		return SolderJob{}, err
	}
	j := doc.Job()
	if p := doc.GetImagePath(path); p != "" {
		sc, err := scan.Load(p)
		if err != nil {
			return SolderJob{}, err
		}
		j.PCB.Image = sc.Image
		j.PCB.ImagePath = p
	}
	return j, nil
}

// Import reads a job file and creates it in the store.
func (s *Store) Import(path string) (string, error) {
	j, err := ImportFile(path)
	if err != nil {
		return "", err
	}
	return s.Create(j)
}

// Export writes the job to path as a JSON document.
func (s *Store) Export(id, path string) error {
	j, err := s.Get(id)
	if err != nil {
		return err
	}
	doc := NewDocument(j)
	if j.PCB.ImagePath != "" {
		doc.SetImage(path, j.PCB.ImagePath)
	}
	return doc.Save(path)
}
