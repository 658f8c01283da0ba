// Package market defines the canonical commodity price record and the
// transformation from raw Agmarknet API rows into validated records.
package market

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

// Source tags the provenance of a price record.
type Source string

const (
	SourceGovernmentAPI Source = "government-api"
	SourceManual        Source = "manual"
	SourceOCR           Source = "ocr"
	SourceAIUpload      Source = "ai-upload"
)

// VarietyUnknown is the sentinel used when the source omits the variety.
const VarietyUnknown = "Unknown"

// PriceRecord is one observation of a commodity's price at a market on a date.
type PriceRecord struct {
	ArrivalDate     time.Time `json:"arrival_date"`
	State           string    `json:"state"`
	District        string    `json:"district"`
	Market          string    `json:"market"`
	Commodity       string    `json:"commodity"`
	Variety         string    `json:"variety"`
	Grade           string    `json:"grade,omitempty"`
	MinPrice        *float64  `json:"min_price,omitempty"`
	MaxPrice        *float64  `json:"max_price,omitempty"`
	ModalPrice      float64   `json:"modal_price"`
	ArrivalQuantity *float64  `json:"arrival_quantity,omitempty"`
	Source          Source    `json:"source"`
	SyncedAt        time.Time `json:"synced_at"`
}

// Key returns the natural key identifying this observation. At most one stored
// row exists per key.
func (r PriceRecord) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		r.ArrivalDate.Format("2006-01-02"),
		r.State, r.District, r.Market, r.Commodity, r.Variety,
	)
}

// Validate checks the required fields. Records failing validation are discarded
// before persistence, never stored partially.
func (r PriceRecord) Validate() error {
	if r.ArrivalDate.IsZero() {
		return eris.New("market: record missing arrival date")
	}
	if r.State == "" {
		return eris.New("market: record missing state")
	}
	if r.District == "" {
		return eris.New("market: record missing district")
	}
	if r.Market == "" {
		return eris.New("market: record missing market")
	}
	if r.Commodity == "" {
		return eris.New("market: record missing commodity")
	}
	return nil
}
