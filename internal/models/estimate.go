package models

// HarvestEstimate is the rainwater yield, storage and recharge sizing for one rooftop.
// Every estimation produces a new value; nothing mutates it afterwards.
type HarvestEstimate struct {
	RainfallSource          RainfallSource `json:"rainfall_source"`
	Centroid                GeoPoint       `json:"centroid"`
	RoofAreaM2              float64        `json:"roof_area_m2"`
	AnnualRainfallMm        float64        `json:"annual_rainfall_mm"`
	AnnualVolumeLiters      float64        `json:"annual_volume_liters"`
	TankSizeLiters          float64        `json:"tank_size_liters"`
	RechargePitVolumeLiters float64        `json:"recharge_pit_volume_liters"`
	RechargePitSideM        float64        `json:"recharge_pit_side_m"`
	RechargePitDepthM       float64        `json:"recharge_pit_depth_m"`
}

// PowerEstimate is the micro-hydro output for a roof, a rainfall intensity,
// a head height and a turbine efficiency.
type PowerEstimate struct {
	RoofAreaM2             float64 `json:"roof_area_m2"`
	RainfallRateMmPerHour  float64 `json:"rainfall_rate_mm_per_hour"`
	PipeHeightM            float64 `json:"pipe_height_m"`
	Efficiency             float64 `json:"efficiency"`
	FlowRateM3PerS         float64 `json:"flow_rate_m3_per_s"`
	PowerWatts             float64 `json:"power_watts"`
	DurationSeconds        float64 `json:"duration_seconds"`
	EnergyWattHoursPerHour float64 `json:"energy_wh_per_hour"`
}
