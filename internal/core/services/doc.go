// Package services implements the driving port interfaces.
// The harvester service contains the paged sync loop and orchestrates
// calls to driven ports (fetcher, extractor, sink, checkpoint store).
package services
