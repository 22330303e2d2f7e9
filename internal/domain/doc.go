// Package domain models the two datasets behind the price estimator: NOAA
// Global Surface Summary of the Day (GSOD) weather observations and the French
// "Demandes de valeurs foncières" (DVF) property transactions.
//
// # GSOD conventions
//
// Each yearly archive holds one CSV per station with one row per day. The
// first column is the station identifier (USAF+WBAN, e.g. 07149099999). NAME
// carries the station name and a FIPS country code: "PARIS-ORLY, FR".
//
// Missing values use sentinels rather than empty fields:
//
//	TEMP, DEWP, MAX, MIN   9999.9  -> NaN
//	WDSP, MXSPD            999.9   -> NaN
//	SNDP                   999.9   -> 0 (no snow reported)
//	PRCP                   99.99   -> 0 (no precipitation reported)
//
// Units are imperial and converted on parse: Fahrenheit to Celsius, knots to
// km/h, inches to millimetres (SNDP x2.54, PRCP x0.254 as hundredths).
//
// FRSHTT is a six digit indicator string: Fog, Rain, Snow, Hail, Thunder,
// Tornado. Tornado is discarded.
//
// # Station identity drift
//
// Across twenty years a station may change identifier, name, or both while
// staying at the same coordinates. [ReconcileStations] rewrites identity
// columns to the most recent values seen so facts from every year join to a
// single dimension row.
//
// # DVF conventions
//
// One row per lot of a mutation. A mutation with several lots repeats its
// id_mutation and is dropped entirely because its valeur_fonciere covers all
// lots. Département codes are two characters ("01", "2A", "75") or three for
// overseas ("971"). Corsican commune codes keep their letter ("2A004") and are
// mapped to integers for the models by [EncodeCommuneCode].
package domain
