package eligibility

import "github.com/target/eligibility-api/internal/domain/model"

// UnknownNAICSTitle is reported for codes missing from the title table.
const UnknownNAICSTitle = "Unknown NAICS"

var naicsTitles = map[string]string{
	"541511": "Custom Computer Programming Services",
	"541512": "Computer Systems Design Services",
	"236220": "Commercial and Institutional Building Construction",
	"336611": "Ship Building and Repairing",
}

// TitleFor returns the 2022 NAICS title for code.
func TitleFor(code string) string {
	if t, ok := naicsTitles[code]; ok {
		return t
	}
	return UnknownNAICSTitle
}

// FallbackSizeStandards is the built-in table used when the size_standards table has no row for a code.
func FallbackSizeStandards() map[string]model.SizeStandard {
	fy := 2025
	return map[string]model.SizeStandard{
		"541511": fallbackRow("541511", model.SizeBasisReceipts, 34500000, "USD", fy),
		"541512": fallbackRow("541512", model.SizeBasisReceipts, 34500000, "USD", fy),
		"336611": fallbackRow("336611", model.SizeBasisEmployees, 1300, "employees", fy),
	}
}

func fallbackRow(naics string, basis model.SizeBasisKind, threshold float64, unit string, fy int) model.SizeStandard {
	title := TitleFor(naics)
	return model.SizeStandard{
		NAICS:       naics,
		Title:       &title,
		Basis:       basis,
		Threshold:   threshold,
		Unit:        unit,
		EffectiveFY: &fy,
	}
}
