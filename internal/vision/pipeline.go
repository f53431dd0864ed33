// Package vision finds fiducials and solder pads on board images and
// inspects finished joints.
package vision

import (
	"image"

	"go.uber.org/zap"

	"solderbot/pkg/geometry"
)

// Pipeline runs detection at a fixed parameter set and reports positions in
// board millimeters (pixel * MMPerPixel, origin at the image's top-left).
type Pipeline struct {
	params Params
	logger *zap.Logger
}

// NewPipeline validates params and returns a pipeline.
func NewPipeline(params Params, logger *zap.Logger) (*Pipeline, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{params: params, logger: logger.Named("vision")}, nil
}

// Params returns the parameters the pipeline runs with.
func (p *Pipeline) Params() Params {
	return p.params
}

// DetectFiducials returns fiducial centroids in board millimeters.
func (p *Pipeline) DetectFiducials(img image.Image) ([]geometry.Point2D, error) {
	px, err := DetectFiducials(img, p.params)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("fiducials detected", zap.Int("count", len(px)))
	return p.toBoard(px), nil
}

// DetectSolderCandidates returns pad centers in board millimeters.
func (p *Pipeline) DetectSolderCandidates(img image.Image) ([]geometry.Point2D, error) {
	circles, err := DetectSolderCandidates(img, p.params)
	if err != nil {
		return nil, err
	}
	px := make([]geometry.Point2D, len(circles))
	for i, c := range circles {
		px[i] = c.Center
	}
	p.logger.Debug("solder candidates detected", zap.Int("count", len(px)))
	return p.toBoard(px), nil
}

// AnalyzeJoint inspects a joint close-up and annotates the image with the
// verdict.
func (p *Pipeline) AnalyzeJoint(img image.Image) (JointAnalysis, error) {
	a, err := AnalyzeJoint(img, p.params)
	if err != nil {
		return a, err
	}
	if a.Annotated, err = AnnotateJoint(img, a); err != nil {
		p.logger.Warn("joint annotation failed", zap.Error(err))
	}
	p.logger.Debug("joint analyzed",
		zap.Float64("diameter", a.Diameter),
		zap.Float64("quality", a.Quality),
		zap.Stringer("defect", a.Defect),
		zap.Bool("acceptable", a.Acceptable))
	return a, nil
}

func (p *Pipeline) toBoard(px []geometry.Point2D) []geometry.Point2D {
	out := make([]geometry.Point2D, len(px))
	for i, pt := range px {
		out[i] = geometry.Point2D{X: pt.X * p.params.MMPerPixel, Y: pt.Y * p.params.MMPerPixel}
	}
	return out
}
