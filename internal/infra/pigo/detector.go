package pigo

import (
	"context"
	"fmt"
	"os"
	"sync"

	pigo "github.com/esimov/pigo/core"
	"github.com/vidmask/vidmask-processing-service/internal/domain/entity"
	"github.com/vidmask/vidmask-processing-service/internal/domain/port"
	"go.uber.org/zap"
)

// Provider lazily loads the pigo cascade and hands out the detector. The
// cascade file is read once; a missing or corrupt file makes Resolve fail,
// which the pipeline maps to its pass-through degrade path.
type Provider struct {
	cascadeFile string
	minSize     int
	maxSize     int
	qThresh     float32
	logger      *zap.Logger

	once       sync.Once
	classifier *pigo.Pigo
	loadErr    error
}

type Config struct {
	CascadeFile string
	MinFaceSize int
	MaxFaceSize int
	QThreshold  float32
}

func NewProvider(cfg Config, logger *zap.Logger) *Provider {
	return &Provider{
		cascadeFile: cfg.CascadeFile,
		minSize:     cfg.MinFaceSize,
		maxSize:     cfg.MaxFaceSize,
		qThresh:     cfg.QThreshold,
		logger:      logger,
	}
}

func (p *Provider) Resolve(ctx context.Context) (port.FaceDetector, error) {
	p.once.Do(func() {
		data, err := os.ReadFile(p.cascadeFile)
		if err != nil {
			p.loadErr = fmt.Errorf("read cascade %s: %w", p.cascadeFile, err)
			return
		}
		classifier, err := pigo.NewPigo().Unpack(data)
		if err != nil {
			p.loadErr = fmt.Errorf("unpack cascade: %w", err)
			return
		}
		p.classifier = classifier
		p.logger.Info("face detection cascade loaded", zap.String("file", p.cascadeFile))
	})
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	return &detector{provider: p}, nil
}

// detector runs the cascade over a still image. Not reentrant: the pipeline
// processes frames strictly sequentially, so no two detections overlap.
type detector struct {
	provider *Provider
}

func (d *detector) DetectFaces(ctx context.Context, imagePath string) ([]entity.BoundingBox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := pigo.GetImage(imagePath)
	if err != nil {
		return nil, fmt.Errorf("load image %s: %w", imagePath, err)
	}

	pixels := pigo.RgbToGrayscale(src)
	cols, rows := src.Bounds().Max.X, src.Bounds().Max.Y

	params := pigo.CascadeParams{
		MinSize:     d.provider.minSize,
		MaxSize:     d.provider.maxSize,
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.provider.classifier.RunCascade(params, 0.0)
	dets = d.provider.classifier.ClusterDetections(dets, 0.2)

	boxes := make([]entity.BoundingBox, 0, len(dets))
	for _, det := range dets {
		if det.Q < d.provider.qThresh {
			continue
		}
		half := det.Scale / 2
		boxes = append(boxes, entity.BoundingBox{
			Left:   det.Col - half,
			Top:    det.Row - half,
			Width:  det.Scale,
			Height: det.Scale,
		})
	}
	return boxes, nil
}
