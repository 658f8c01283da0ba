package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Raw rows arrive with inconsistent field naming across API revisions: plain
// lowercase, title case, and the x0020-escaped variants from the XML-derived
// feed. Each logical field carries a priority list of accepted aliases; the
// first alias present wins.
var (
	aliasState     = []string{"state", "State"}
	aliasDistrict  = []string{"district", "District"}
	aliasMarket    = []string{"market", "Market"}
	aliasCommodity = []string{"commodity", "Commodity"}
	aliasVariety   = []string{"variety", "Variety"}
	aliasGrade     = []string{"grade", "Grade"}
	aliasDate      = []string{"arrival_date", "Arrival_Date", "arrivaldate", "ArrivalDate"}
	aliasMin       = []string{"min_price", "Min_Price", "min_x0020_price", "Min_x0020_Price"}
	aliasMax       = []string{"max_price", "Max_Price", "max_x0020_price", "Max_x0020_Price"}
	aliasModal     = []string{"modal_price", "Modal_Price", "modal_x0020_price", "Modal_x0020_Price"}
	aliasArrivals  = []string{"arrivals", "Arrivals", "arrival_quantity", "Arrival_Quantity"}
)

var dateLayouts = []string{"02-01-2006", "02/01/2006", "2006-01-02"}

// FromRaw maps one raw API row into a canonical PriceRecord. The second return
// is false when a required field is missing or the date is unparsable; such
// rows are dropped from the batch, never stored partially.
func FromRaw(raw map[string]any, syncedAt time.Time) (PriceRecord, bool) {
	rec := PriceRecord{
		State:     rawString(raw, aliasState),
		District:  rawString(raw, aliasDistrict),
		Market:    rawString(raw, aliasMarket),
		Commodity: rawString(raw, aliasCommodity),
		Variety:   rawString(raw, aliasVariety),
		Grade:     rawString(raw, aliasGrade),
		Source:    SourceGovernmentAPI,
		SyncedAt:  syncedAt,
	}

	if rec.Variety == "" {
		rec.Variety = VarietyUnknown
	}

	date, ok := parseArrivalDate(rawString(raw, aliasDate))
	if !ok {
		return PriceRecord{}, false
	}
	rec.ArrivalDate = date

	rec.MinPrice = rawFloatPtr(raw, aliasMin)
	rec.MaxPrice = rawFloatPtr(raw, aliasMax)
	rec.ArrivalQuantity = rawFloatPtr(raw, aliasArrivals)
	// Modal price falls back to 0 rather than null when unparsable.
	if p := rawFloatPtr(raw, aliasModal); p != nil {
		rec.ModalPrice = *p
	}

	if err := rec.Validate(); err != nil {
		return PriceRecord{}, false
	}
	return rec, true
}

// TransformBatch converts raw rows into validated records, dropping rows that
// fail required-field validation.
func TransformBatch(raws []map[string]any, syncedAt time.Time) []PriceRecord {
	records := make([]PriceRecord, 0, len(raws))
	dropped := 0
	for _, raw := range raws {
		rec, ok := FromRaw(raw, syncedAt)
		if !ok {
			dropped++
			continue
		}
		records = append(records, rec)
	}
	if dropped > 0 {
		zap.L().Debug("dropped malformed records",
			zap.Int("dropped", dropped),
			zap.Int("kept", len(records)),
		)
	}
	return records
}

// parseArrivalDate reparses DD-MM-YYYY, DD/MM/YYYY, or ISO date strings.
func parseArrivalDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// rawString returns the first non-empty string value among the aliases.
func rawString(raw map[string]any, aliases []string) string {
	for _, key := range aliases {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		switch s := v.(type) {
		case string:
			if t := strings.TrimSpace(s); t != "" {
				return t
			}
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64)
		default:
			if t := strings.TrimSpace(fmt.Sprint(v)); t != "" {
				return t
			}
		}
	}
	return ""
}

// rawFloatPtr parses the first alias present as a float, returning nil when
// absent or unparsable (the API uses "NA" and empty strings for missing data).
func rawFloatPtr(raw map[string]any, aliases []string) *float64 {
	s := rawString(raw, aliases)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
