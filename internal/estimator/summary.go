package estimator

import (
	"strconv"

	"github.com/stwalsh4118/rainyield/internal/models"
)

// HarvestSummary is the rounded, display-ready form of a HarvestEstimate.
type HarvestSummary struct {
	RoofArea          string `json:"roof_area"`
	AnnualRainfall    string `json:"annual_rainfall"`
	AnnualVolume      string `json:"annual_volume"`
	TankSize          string `json:"tank_size"`
	RechargeVolume    string `json:"recharge_volume"`
	RechargePitSize   string `json:"recharge_pit_size"`
	RainfallEstimated bool   `json:"rainfall_estimated"`
}

// PowerSummary is the rounded, display-ready form of a PowerEstimate.
type PowerSummary struct {
	FlowRate string `json:"flow_rate"`
	Power    string `json:"power"`
	Energy   string `json:"energy"`
}

// SummarizeHarvest formats e for display: area to two decimals, rainfall and
// volumes to whole units.
func SummarizeHarvest(e models.HarvestEstimate) HarvestSummary {
	side := fixed(e.RechargePitSideM, 2)
	return HarvestSummary{
		RoofArea:          fixed(e.RoofAreaM2, 2) + " m²",
		AnnualRainfall:    fixed(e.AnnualRainfallMm, 0) + " mm/year",
		AnnualVolume:      fixed(e.AnnualVolumeLiters, 0) + " L",
		TankSize:          fixed(e.TankSizeLiters, 0) + " L",
		RechargeVolume:    fixed(e.RechargePitVolumeLiters, 0) + " L",
		RechargePitSize:   side + " m × " + side + " m × " + fixed(e.RechargePitDepthM, -1) + " m",
		RainfallEstimated: e.RainfallSource == models.RainfallFallback,
	}
}

// SummarizePower formats e for display: flow to five decimals, power and
// energy to two.
func SummarizePower(e models.PowerEstimate) PowerSummary {
	return PowerSummary{
		FlowRate: fixed(e.FlowRateM3PerS, 5) + " m³/s",
		Power:    fixed(e.PowerWatts, 2) + " W",
		Energy:   fixed(e.EnergyWattHoursPerHour, 2) + " Wh",
	}
}

func fixed(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
