package format

import (
	"fmt"
	"math"

	"synthfilter/internal/engine"
	"synthfilter/internal/timeline"
)

// VideoFormat is the engine-side view of a pipeline media type.
type VideoFormat struct {
	Name       string
	Definition Definition
	Info       engine.VideoInfo
}

// VideoFormatOf derives the engine descriptor for a pipeline media type.
// Pipeline sources are open ended, so NumFrames is always
// timeline.NumFramesForInfiniteStream.
func VideoFormatOf(mt MediaType) (VideoFormat, error) {
	def, ok := LookupSubtype(mt.Subtype)
	if !ok {
		return VideoFormat{}, fmt.Errorf("%w: subtype %s", ErrUnknownFormat, mt.Subtype)
	}
	bmi := mt.Header.Bitmap
	height := bmi.Height
	if height < 0 {
		height = -height
	}
	if bmi.Width <= 0 || height == 0 {
		return VideoFormat{}, fmt.Errorf("%w: no picture geometry", ErrInvalidMediaType)
	}
	avg := mt.Header.AvgTimePerFrame
	if avg <= 0 {
		avg = timeline.DefaultAvgTimePerFrame
	}
	if avg > math.MaxUint32 {
		return VideoFormat{}, fmt.Errorf("%w: average frame time %d out of range", ErrInvalidMediaType, avg)
	}
	info := engine.VideoInfo{
		Width:     bmi.Width,
		Height:    height,
		NumFrames: timeline.NumFramesForInfiniteStream,
		PixelType: def.PixelType,
	}
	info.SetFPS(uint32(timeline.Units), uint32(avg))
	return VideoFormat{Name: def.Name, Definition: def, Info: info}, nil
}

// NewMediaType builds a VideoInfo2 descriptor for the named format.
func NewMediaType(name string, width, height int, avgTimePerFrame int64, aspectX, aspectY uint32) (MediaType, error) {
	def, err := Lookup(name)
	if err != nil {
		return MediaType{}, err
	}
	if aspectX == 0 || aspectY == 0 {
		aspectX, aspectY = reduce(uint64(width), uint64(height))
	}
	bmi := BitmapInfoHeader{Width: width, Height: height, BitCount: def.BitCount}
	bmi.Compression = compressionFor(def)
	bmi.SizeImage = BitmapSize(bmi)
	rect := Rect{Right: width, Bottom: height}
	return MediaType{
		MajorType:  MediaTypeVideo,
		Subtype:    def.Subtype,
		FormatType: FormatVideoInfo2,
		SampleSize: bmi.SizeImage,
		Header: VideoInfoHeader{
			Source:           rect,
			Target:           rect,
			AvgTimePerFrame:  avgTimePerFrame,
			PictAspectRatioX: aspectX,
			PictAspectRatioY: aspectY,
			Bitmap:           bmi,
		},
	}, nil
}

// Translate returns a copy of template describing the script output script
// in the named format.
//
// The engine carries no display aspect metadata, so when the script changes
// the pixel proportions the display aspect ratio of a VideoInfo2 template is
// scaled by the ratio between the new and the old geometry.
func Translate(template MediaType, name string, script engine.VideoInfo) (MediaType, error) {
	def, err := Lookup(name)
	if err != nil {
		return MediaType{}, err
	}

	out := template
	out.Subtype = def.Subtype
	hdr := &out.Header
	bmi := &hdr.Bitmap

	if out.FormatType == FormatVideoInfo2 {
		oldW, oldH := int64(bmi.Width), absInt64(int64(bmi.Height))
		w, h := int64(script.Width), int64(script.Height)
		if w*oldH != h*oldW {
			ax := int64(hdr.PictAspectRatioX) * w * oldH
			ay := int64(hdr.PictAspectRatioY) * h * oldW
			hdr.PictAspectRatioX, hdr.PictAspectRatioY = reduce(uint64(ax), uint64(ay))
		}
	}

	hdr.Source = Rect{Right: script.Width, Bottom: script.Height}
	hdr.Target = hdr.Source
	hdr.AvgTimePerFrame = timeline.AvgFrameDuration(script.FPSNumerator, script.FPSDenominator)

	bmi.Width = script.Width
	bmi.Height = script.Height
	bmi.BitCount = def.BitCount
	bmi.SizeImage = BitmapSize(*bmi)
	out.SampleSize = bmi.SizeImage
	bmi.Compression = compressionFor(def)
	return out, nil
}

func compressionFor(def Definition) uint32 {
	if code, ok := FourCC(def.Subtype); ok {
		return code
	}
	return CompressionRGB
}

func reduce(a, b uint64) (uint32, uint32) {
	g := gcd(a, b)
	if g == 0 {
		return 0, 0
	}
	return uint32(a / g), uint32(b / g)
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
