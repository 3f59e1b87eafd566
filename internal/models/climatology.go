package models

import "time"

// Month is a calendar month key as used by the climatology service (JAN..DEC).
type Month string

const (
	January   Month = "JAN"
	February  Month = "FEB"
	March     Month = "MAR"
	April     Month = "APR"
	May       Month = "MAY"
	June      Month = "JUN"
	July      Month = "JUL"
	August    Month = "AUG"
	September Month = "SEP"
	October   Month = "OCT"
	November  Month = "NOV"
	December  Month = "DEC"
)

// Months lists the twelve calendar months in order.
var Months = []Month{
	January, February, March, April, May, June,
	July, August, September, October, November, December,
}

var daysInMonth = map[Month]int{
	January: 31, February: 28, March: 31, April: 30,
	May: 31, June: 30, July: 31, August: 31,
	September: 30, October: 31, November: 30, December: 31,
}

// Days returns the number of days in the month for a non-leap year,
// or 0 for an unknown key.
func (m Month) Days() int {
	return daysInMonth[m]
}

// Valid reports whether m is one of the twelve calendar months.
func (m Month) Valid() bool {
	_, ok := daysInMonth[m]
	return ok
}

// Climatology maps a month to its long-run mean daily precipitation in mm/day.
// Months without data are absent from the map.
type Climatology map[Month]float64

// RainfallSource records where an annual rainfall figure came from.
type RainfallSource string

const (
	// RainfallFromClimatology means the figure was summed from monthly rates.
	RainfallFromClimatology RainfallSource = "climatology"
	// RainfallFallback means the lookup failed and the fixed fallback was used.
	RainfallFallback RainfallSource = "fallback"
)

// ClimatologyRecord is a cached climatology lookup.
type ClimatologyRecord struct {
	FetchedAt time.Time
	ExpiresAt time.Time
	Rates     Climatology
	Key       string
	Parameter string
	Lat       float64
	Lng       float64
}
