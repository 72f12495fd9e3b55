// Package format describes pipeline-side video media types and translates
// them to match the pixel format a script produces.
//
// The definition table is ordered by preference; callers negotiating an
// output format walk it with NamesForPixelType.
package format
