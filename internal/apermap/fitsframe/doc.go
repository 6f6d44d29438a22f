// Package fitsframe moves detector frames and aperture maps in and out of
// FITS files.
//
// Responsibilities:
//   - decode the primary image HDU of a trace exposure into an
//     apermap.Frame, applying BSCALE/BZERO and reading the BINNING card
//   - encode an aperture map as a 32-bit integer primary HDU carrying the
//     IFUTYPE, NIFU1, NIFU2, NSLITS, NMAX and BINNING cards
//
// Dependency rule: fitsframe may import internal/apermap and
// internal/apermap/l6apermap. Nothing in the pipeline layers imports it.
package fitsframe
