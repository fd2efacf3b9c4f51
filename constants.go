package iocoalesce

import "github.com/ehrlich-b/go-iocoalesce/internal/constants"

// Re-export constants for public API
const (
	MaxVectorEntries    = constants.MaxVectorEntries
	DefaultPoolCapacity = constants.DefaultPoolCapacity
	SectorSize          = constants.SectorSize
)
