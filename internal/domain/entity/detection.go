package entity

import "image"

// BoundingBox is an axis-aligned face region in the pixel coordinates of the
// frame it was detected on.
type BoundingBox struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Left+b.Width, b.Top+b.Height)
}

// ProgressEvent is a fire-and-forget pipeline progress update. CurrentFrame
// and TotalFrames are zero outside the frame-processing phase.
type ProgressEvent struct {
	Step            string
	PercentComplete int
	CurrentFrame    int
	TotalFrames     int
}
