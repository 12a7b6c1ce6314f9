package usecase

import (
	"math"
	"math/rand"
	"strings"

	"github.com/shelfscore/backend/internal/domain"
)

// geohashBase32 is the standard geohash alphabet (no a, i, l, o).
const geohashBase32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// earthRadiusMeters is Earth's mean radius, used by the flat-earth
// meters-to-degrees conversion. The approximation is fine at the
// sub-100m displacement scale.
const earthRadiusMeters = 6371000.0

// PrivacyEncoderConfig holds the tunables for location privacy.
type PrivacyEncoderConfig struct {
	MinJitterMeters  float64
	MaxJitterMeters  float64
	GeohashPrecision int
}

// PrivacyEncoder jitters coordinates and buckets them into fixed-
// precision geohashes so that only a privacy-acceptable radius is ever
// persisted.
type PrivacyEncoder struct {
	minJitter float64
	maxJitter float64
	precision int
}

// NewPrivacyEncoder creates a privacy encoder, applying defaults for
// zero config values (50-100m jitter, precision 6).
func NewPrivacyEncoder(config PrivacyEncoderConfig) *PrivacyEncoder {
	minJitter := config.MinJitterMeters
	if minJitter <= 0 {
		minJitter = 50
	}
	maxJitter := config.MaxJitterMeters
	if maxJitter <= minJitter {
		maxJitter = minJitter + 50
	}
	precision := config.GeohashPrecision
	if precision <= 0 {
		precision = 6
	}

	return &PrivacyEncoder{
		minJitter: minJitter,
		maxJitter: maxJitter,
		precision: precision,
	}
}

// EncodePoint jitters the true coordinate and returns the persistable
// point: jittered lat/lon plus the geohash of the jittered value. The
// raw input never leaves this function.
func (e *PrivacyEncoder) EncodePoint(lat, lon float64) *domain.GeoPoint {
	jlat, jlon := e.Jitter(lat, lon)
	return &domain.GeoPoint{
		Lat:     jlat,
		Lon:     jlon,
		Geohash: EncodeGeohash(jlat, jlon, e.precision),
	}
}

// Jitter displaces the coordinate by a uniformly random distance in
// [minJitter, maxJitter] meters along a uniformly random bearing.
// Deliberately not reproducible: re-jittering the same location must
// yield a different point each time.
func (e *PrivacyEncoder) Jitter(lat, lon float64) (float64, float64) {
	distance := e.minJitter + rand.Float64()*(e.maxJitter-e.minJitter)
	bearing := rand.Float64() * 2 * math.Pi

	dLat := (distance * math.Cos(bearing)) / earthRadiusMeters * (180 / math.Pi)
	dLon := (distance * math.Sin(bearing)) / (earthRadiusMeters * math.Cos(lat*math.Pi/180)) * (180 / math.Pi)

	return lat + dLat, lon + dLon
}

// EncodeGeohash encodes a coordinate as a standard base-32 geohash of
// the given precision. Bits alternate longitude/latitude starting with
// longitude, halving the candidate interval per bit; every 5 bits emit
// one character. Pure and deterministic.
func EncodeGeohash(lat, lon float64, precision int) string {
	if precision <= 0 {
		precision = 6
	}

	latLo, latHi := -90.0, 90.0
	lonLo, lonHi := -180.0, 180.0

	var sb strings.Builder
	sb.Grow(precision)

	evenBit := true // longitude first
	bit := 0
	ch := 0

	for sb.Len() < precision {
		if evenBit {
			mid := (lonLo + lonHi) / 2
			if lon >= mid {
				ch = ch<<1 | 1
				lonLo = mid
			} else {
				ch <<= 1
				lonHi = mid
			}
		} else {
			mid := (latLo + latHi) / 2
			if lat >= mid {
				ch = ch<<1 | 1
				latLo = mid
			} else {
				ch <<= 1
				latHi = mid
			}
		}
		evenBit = !evenBit

		bit++
		if bit == 5 {
			sb.WriteByte(geohashBase32[ch])
			bit = 0
			ch = 0
		}
	}

	return sb.String()
}
