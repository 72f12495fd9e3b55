package main

import (
	"fmt"
	"strings"

	"synthfilter/internal/config"
	"synthfilter/internal/engine"
	"synthfilter/internal/format"
	"synthfilter/internal/services"
)

// negotiateOutputFormat picks the first enabled format, in definition order,
// that carries the script's pixel type.
func negotiateOutputFormat(cfg *config.Config, pt engine.PixelType) (string, error) {
	for _, name := range format.NamesForPixelType(pt) {
		if cfg.IsInputFormatEnabled(name) {
			return name, nil
		}
	}
	return "", services.Wrap(services.ErrValidation, "cli", "negotiate output",
		fmt.Sprintf("no enabled format carries pixel type %s", pt), nil)
}

// sourceMediaType builds the upstream descriptor after checking that the
// format is accepted.
func sourceMediaType(cfg *config.Config, name string, width, height int, avg int64) (format.MediaType, error) {
	def, err := format.Lookup(strings.ToUpper(strings.TrimSpace(name)))
	if err != nil {
		return format.MediaType{}, services.Wrap(services.ErrValidation, "cli", "source format", name, err)
	}
	if !cfg.IsInputFormatEnabled(def.Name) {
		return format.MediaType{}, services.Wrap(services.ErrValidation, "cli", "source format",
			fmt.Sprintf("input format %s is disabled in the configuration", def.Name), nil)
	}
	mt, err := format.NewMediaType(def.Name, width, height, avg, 0, 0)
	if err != nil {
		return format.MediaType{}, services.Wrap(services.ErrValidation, "cli", "source format", name, err)
	}
	return mt, nil
}

func fourCCString(code uint32) string {
	if code == format.CompressionRGB {
		return "BI_RGB"
	}
	b := []byte{byte(code), byte(code >> 8), byte(code >> 16), byte(code >> 24)}
	return string(b)
}
