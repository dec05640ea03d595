// Package metadata decodes the acquisition metadata that IM03 and IM04
// microscopes encode positionally in their image filenames.
//
// Every field sits at a fixed byte range of the name. The ranges differ
// between the two models and are kept as data in one table per variant; a
// single slice-and-cast routine reads any field of either model:
//
//	d, _ := metadata.NewDecoder(metadata.IM04)
//	z, err := d.ZSlice(name)
//
// Decode reads every field at once and detects the variant from the first
// characters of the name. Format builds a filename from a Record and is the
// inverse of Decode for values that fit the fixed field widths.
//
// Pixel sizes are looked up on the integer code written in the filename
// (units of 1e-4 um), so 1.625 um always maps to the 4x objective. Sizes
// that are not a whole number of codes match nothing. A pixel size without a
// table entry fails ObjectiveMagnification and ObjectiveNA, while Decode keeps
// the image and leaves the record's objective fields zero.
package metadata
