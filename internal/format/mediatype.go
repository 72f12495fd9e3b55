package format

import (
	"fmt"

	"github.com/google/uuid"
)

// MediaTypeVideo is the major type of every descriptor handled here.
var MediaTypeVideo = uuid.MustParse("73646976-0000-0010-8000-00aa00389b71")

// FormatType tells which video header layout a MediaType carries.
type FormatType int

const (
	FormatVideoInfo FormatType = iota
	// FormatVideoInfo2 adds picture aspect ratio fields.
	FormatVideoInfo2
)

func (f FormatType) String() string {
	if f == FormatVideoInfo2 {
		return "VideoInfo2"
	}
	return "VideoInfo"
}

// CompressionRGB is the generic uncompressed pixel encoding tag.
const CompressionRGB uint32 = 0

// Rect is a display rectangle in pixels.
type Rect struct {
	Left, Top, Right, Bottom int
}

// BitmapInfoHeader is the pixel geometry part of a video header.
type BitmapInfoHeader struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	BitCount    int    `json:"bit_count"`
	Compression uint32 `json:"compression"`
	SizeImage   int    `json:"size_image"`
}

// VideoInfoHeader is the union of the VideoInfo and VideoInfo2 headers.
// PictAspectRatioX/Y are only meaningful for FormatVideoInfo2.
type VideoInfoHeader struct {
	Source           Rect             `json:"source"`
	Target           Rect             `json:"target"`
	AvgTimePerFrame  int64            `json:"avg_time_per_frame"`
	PictAspectRatioX uint32           `json:"pict_aspect_ratio_x,omitempty"`
	PictAspectRatioY uint32           `json:"pict_aspect_ratio_y,omitempty"`
	Bitmap           BitmapInfoHeader `json:"bitmap"`
}

// MediaType is a video format descriptor exchanged with the pipeline. It is
// a value type: copying it yields an independent descriptor.
type MediaType struct {
	MajorType  uuid.UUID       `json:"major_type"`
	Subtype    uuid.UUID       `json:"subtype"`
	FormatType FormatType      `json:"format_type"`
	SampleSize int             `json:"sample_size"`
	Header     VideoInfoHeader `json:"header"`
}

func (mt MediaType) String() string {
	name := mt.Subtype.String()
	if def, ok := LookupSubtype(mt.Subtype); ok {
		name = def.Name
	}
	return fmt.Sprintf("%s %dx%d %s avg=%d", name, mt.Header.Bitmap.Width, mt.Header.Bitmap.Height, mt.FormatType, mt.Header.AvgTimePerFrame)
}

// fourCCBase is the GUID template for FourCC subtypes; the first four bytes
// carry the code.
var fourCCBase = uuid.MustParse("00000000-0000-0010-8000-00aa00389b71")

// FourCCSubtype returns the subtype GUID for a FourCC code.
func FourCCSubtype(code uint32) uuid.UUID {
	id := fourCCBase
	id[0] = byte(code >> 24)
	id[1] = byte(code >> 16)
	id[2] = byte(code >> 8)
	id[3] = byte(code)
	return id
}

// FourCC extracts the FourCC code from a subtype GUID. It reports false for
// subtypes that are not built from the FourCC template.
func FourCC(subtype uuid.UUID) (uint32, bool) {
	for i := 4; i < len(subtype); i++ {
		if subtype[i] != fourCCBase[i] {
			return 0, false
		}
	}
	return uint32(subtype[0])<<24 | uint32(subtype[1])<<16 | uint32(subtype[2])<<8 | uint32(subtype[3]), true
}

// FourCCCode packs a four character code in little-endian order.
func FourCCCode(code string) uint32 {
	var out uint32
	for i := 0; i < 4 && i < len(code); i++ {
		out |= uint32(code[i]) << (8 * i)
	}
	return out
}

// BitmapSize returns the image size of bmi with rows padded to 32 bits.
func BitmapSize(bmi BitmapInfoHeader) int {
	height := bmi.Height
	if height < 0 {
		height = -height
	}
	return ((bmi.Width*bmi.BitCount + 31) &^ 31) / 8 * height
}
