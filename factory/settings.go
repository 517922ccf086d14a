/*
Package factory provides JSON to Go conversion for team overtime settings.

PURPOSE:
  Team overtime settings are stored as a JSON document (settings table,
  PUT /api/settings/overtime, scenario files). The factory turns that
  document into payroll.TeamSettings, fills defaults, and validates.

JSON SCHEMA:
  {
    "threshold_hours": 8,
    "conversion_enabled": true,
    "mode": "per_day"
  }

  threshold_hours    Overtime hours in one day that earn one daily bonus.
                     Decimal; string or number. Default 8.
  conversion_enabled Turns overtime-to-daily conversion on. Default false.
  mode               "per_day" (default) or "event_total".

USAGE:
  settings, err := factory.ParseTeamSettings(`{"threshold_hours": 4, "conversion_enabled": true}`)

  // Presets
  settings, err = factory.ParseTeamSettings(factory.PerDayConversionJSON(8))

SEE ALSO:
  - payroll/overtime.go: How the settings drive conversion
  - payroll/validate.go: ValidateSettings
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/crew-payroll/generic"
	"github.com/warp/crew-payroll/payroll"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// TeamSettingsJSON is the JSON representation of team overtime settings.
// decimal.Decimal accepts both 8 and "8" on unmarshal.
type TeamSettingsJSON struct {
	ThresholdHours    *decimal.Decimal `json:"threshold_hours,omitempty"`
	ConversionEnabled bool             `json:"conversion_enabled"`
	Mode              string           `json:"mode,omitempty"`
}

// =============================================================================
// PARSING
// =============================================================================

// ParseTeamSettings parses and validates a settings document. An empty
// document yields payroll.DefaultTeamSettings.
func ParseTeamSettings(jsonStr string) (payroll.TeamSettings, error) {
	if strings.TrimSpace(jsonStr) == "" {
		return payroll.DefaultTeamSettings(), nil
	}

	var sj TeamSettingsJSON
	if err := json.Unmarshal([]byte(jsonStr), &sj); err != nil {
		return payroll.TeamSettings{}, fmt.Errorf("failed to parse settings JSON: %w: %v", generic.ErrInvalidSettings, err)
	}
	return FromJSON(sj)
}

// FromJSON converts TeamSettingsJSON, filling defaults, and validates it.
func FromJSON(sj TeamSettingsJSON) (payroll.TeamSettings, error) {
	s := payroll.DefaultTeamSettings()
	if sj.ThresholdHours != nil {
		s.ThresholdHours = *sj.ThresholdHours
	}
	s.ConversionEnabled = sj.ConversionEnabled
	if sj.Mode != "" {
		s.Mode = payroll.ConversionMode(sj.Mode)
	}

	if err := payroll.ValidateSettings(s); err != nil {
		return payroll.TeamSettings{}, err
	}
	return s, nil
}

// ToJSON converts settings back to their JSON representation.
func ToJSON(s payroll.TeamSettings) TeamSettingsJSON {
	threshold := s.ThresholdHours
	mode := s.Mode
	if mode == "" {
		mode = payroll.ModePerDay
	}
	return TeamSettingsJSON{
		ThresholdHours:    &threshold,
		ConversionEnabled: s.ConversionEnabled,
		Mode:              string(mode),
	}
}

// Marshal renders settings as the stored JSON document.
func Marshal(s payroll.TeamSettings) (string, error) {
	b, err := json.Marshal(ToJSON(s))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// =============================================================================
// PRESETS
// =============================================================================

// HourlyOnlyJSON pays every overtime hour at the hourly rate.
func HourlyOnlyJSON() string {
	return presetJSON(TeamSettingsJSON{ConversionEnabled: false, Mode: string(payroll.ModePerDay)}, 8)
}

// PerDayConversionJSON converts each day reaching threshold into a bonus.
func PerDayConversionJSON(threshold int64) string {
	return presetJSON(TeamSettingsJSON{ConversionEnabled: true, Mode: string(payroll.ModePerDay)}, threshold)
}

// EventTotalConversionJSON converts the event's pooled overtime hours.
func EventTotalConversionJSON(threshold int64) string {
	return presetJSON(TeamSettingsJSON{ConversionEnabled: true, Mode: string(payroll.ModeEventTotal)}, threshold)
}

func presetJSON(sj TeamSettingsJSON, threshold int64) string {
	t := decimal.NewFromInt(threshold)
	sj.ThresholdHours = &t
	b, _ := json.MarshalIndent(sj, "", "  ")
	return string(b)
}
