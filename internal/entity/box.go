package entity

import "github.com/shopspring/decimal"

// Box is the client-built price band and time window a bet is placed on.
type Box struct {
	ID          string          `json:"Id"`
	MinPrice    decimal.Decimal `json:"MinPrice"`
	MaxPrice    decimal.Decimal `json:"MaxPrice"`
	TimeToGraph float64         `json:"TimeToGraph"` // seconds
	TimeLength  float64         `json:"TimeLength"`  // seconds
	Coefficient decimal.Decimal `json:"Coefficient"`
}

// BoxSize holds game parameters of one asset pair.
// BoxHeight and TimeToFirstBox are kept in milliseconds.
type BoxSize struct {
	AssetPair      string  `json:"AssetPair" yaml:"asset_pair"`
	BoxesPerRow    int     `json:"BoxesPerRow" yaml:"boxes_per_row"`
	BoxHeight      float64 `json:"BoxHeight" yaml:"box_height"`
	BoxWidth       float64 `json:"BoxWidth" yaml:"box_width"`
	TimeToFirstBox float64 `json:"TimeToFirstBox" yaml:"time_to_first_box"`
	ScaleK         float64 `json:"ScaleK" yaml:"scale_k"`
	GameAllowed    bool    `json:"GameAllowed" yaml:"game_allowed"`
	SaveHistory    bool    `json:"SaveHistory" yaml:"save_history"`
}

const DefaultScaleK = 0.0009

// DefaultBoxSize is what a configured asset gets when storage has no row for it.
func DefaultBoxSize(pair string) BoxSize {
	return BoxSize{
		AssetPair:      pair,
		BoxesPerRow:    7,
		BoxHeight:      7000,
		BoxWidth:       0.00003,
		TimeToFirstBox: 4000,
		ScaleK:         DefaultScaleK,
		GameAllowed:    false,
		SaveHistory:    false,
	}
}
