package backend

import (
	"fmt"
	"slices"

	"flotta/internal/config"
)

// MirrorType selects where maintenance logs are mirrored.
type MirrorType string

const (
	MirrorDisabled MirrorType = "disabled"
	MirrorMemory   MirrorType = "memory"
	MirrorSheets   MirrorType = "sheets"
)

func (mt MirrorType) String() string {
	return string(mt)
}

// IsValid reports whether mt names a known mirror type.
func (mt MirrorType) IsValid() bool {
	return slices.Contains(MirrorTypes(), mt)
}

// MirrorTypes lists every mirror type, for validation messages.
func MirrorTypes() []MirrorType {
	return []MirrorType{MirrorDisabled, MirrorMemory, MirrorSheets}
}

// Config selects and parameterizes a mirror backend.
type Config struct {
	Type MirrorType

	// Google Sheets specific
	GoogleSpreadsheetID string
	GoogleSheetName     string
}

// FromAppConfig narrows the application config down to what the mirror
// needs.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	mt := MirrorType(appConfig.MirrorBackend)
	if !mt.IsValid() {
		return Config{}, fmt.Errorf("invalid mirror backend in config: %s", appConfig.MirrorBackend)
	}

	return Config{
		Type:                mt,
		GoogleSpreadsheetID: appConfig.GoogleSpreadsheetID,
		GoogleSheetName:     appConfig.GoogleSheetName,
	}, nil
}

// Validate reports whether the config describes a constructible mirror.
// Only the sheets mirror carries settings of its own to check.
func (c Config) Validate() error {
	switch c.Type {
	case MirrorDisabled, MirrorMemory:
		return nil
	case MirrorSheets:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for the sheets mirror")
		}
		return nil
	default:
		return fmt.Errorf("invalid mirror backend type: %s (valid: %v)", c.Type, MirrorTypes())
	}
}
