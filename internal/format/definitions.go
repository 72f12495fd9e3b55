package format

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"synthfilter/internal/engine"
)

// ErrUnknownFormat is returned when a format name has no definition.
var ErrUnknownFormat = errors.New("unknown format")

// ErrInvalidMediaType marks a media type whose header cannot describe a
// video stream.
var ErrInvalidMediaType = errors.New("invalid media type")

// Definition maps a named pipeline format onto the engine's pixel layout.
type Definition struct {
	Name      string
	Subtype   uuid.UUID
	PixelType engine.PixelType
	// BitCount is the bits per pixel advertised in the bitmap header.
	BitCount int
}

var (
	subtypeRGB24 = uuid.MustParse("e436eb7d-524f-11ce-9f53-0020af0ba770")
	subtypeRGB32 = uuid.MustParse("e436eb7e-524f-11ce-9f53-0020af0ba770")
)

func fourCCDefinition(name string, pixel engine.PixelType, bitCount int) Definition {
	return Definition{Name: name, Subtype: FourCCSubtype(FourCCCode(name)), PixelType: pixel, BitCount: bitCount}
}

// definitions is ordered by negotiation preference.
var definitions = []Definition{
	fourCCDefinition("NV12", engine.PixelYUV420P8, 12),
	fourCCDefinition("YV12", engine.PixelYUV420P8, 12),
	fourCCDefinition("I420", engine.PixelYUV420P8, 12),
	fourCCDefinition("IYUV", engine.PixelYUV420P8, 12),
	fourCCDefinition("P010", engine.PixelYUV420P16, 24),
	fourCCDefinition("P016", engine.PixelYUV420P16, 24),
	fourCCDefinition("YUY2", engine.PixelYUY2, 16),
	fourCCDefinition("P210", engine.PixelYUV422P16, 32),
	fourCCDefinition("P216", engine.PixelYUV422P16, 32),
	fourCCDefinition("YV24", engine.PixelYUV444P8, 24),
	{Name: "RGB24", Subtype: subtypeRGB24, PixelType: engine.PixelRGB24, BitCount: 24},
	{Name: "RGB32", Subtype: subtypeRGB32, PixelType: engine.PixelRGB32, BitCount: 32},
}

// Lookup returns the definition registered under name.
func Lookup(name string) (Definition, error) {
	for _, def := range definitions {
		if def.Name == name {
			return def, nil
		}
	}
	return Definition{}, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// LookupSubtype returns the definition whose subtype GUID is subtype.
func LookupSubtype(subtype uuid.UUID) (Definition, bool) {
	for _, def := range definitions {
		if def.Subtype == subtype {
			return def, true
		}
	}
	return Definition{}, false
}

// Names lists every known format in preference order.
func Names() []string {
	names := make([]string, 0, len(definitions))
	for _, def := range definitions {
		names = append(names, def.Name)
	}
	return names
}

// NamesForPixelType lists the formats that carry pt, in preference order.
func NamesForPixelType(pt engine.PixelType) []string {
	var names []string
	for _, def := range definitions {
		if def.PixelType == pt {
			names = append(names, def.Name)
		}
	}
	return names
}
