// Package imageprocessor decodes photos into packed RGB rasters and derives
// the fixed-size content fingerprint used to recognise copies of a photo.
//
// Decoding goes through an ImageLoaderRegistry keyed by file extension. The
// default loaders use the Go image decoders (JPEG, PNG, GIF, TIFF, BMP, WebP);
// an OpenCV-backed loader lives in the opencv subpackage.
package imageprocessor
