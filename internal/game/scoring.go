package game

import (
	"math"

	"geoplayer/internal/model"
)

const earthRadiusKm = 6371.0

// Haversine returns the great-circle distance in kilometers between two
// coordinates. This is the authoritative distance for scoring; the client
// renders the same formula, so the two must never diverge.
func Haversine(a, b model.LatLng) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

func toRad(deg float64) float64 {
	return deg * (math.Pi / 180)
}

// Score maps a guess distance in kilometers to points on the 0-5000 curve.
func Score(distanceKm float64) int {
	switch {
	case distanceKm <= 1:
		return 5000
	case distanceKm <= 50:
		// 1-50km → 5000-4000
		return int(math.Round(5000 - (distanceKm/50)*1000))
	case distanceKm <= 500:
		// 50-500km → 4000-1500
		return int(math.Round(4000 - ((distanceKm-50)/450)*2500))
	case distanceKm <= 2000:
		// 500-2000km → 1500-500
		return int(math.Round(1500 - ((distanceKm-500)/1500)*1000))
	case distanceKm <= 5000:
		// 2000-5000km → 500-100
		return int(math.Round(500 - ((distanceKm-2000)/3000)*400))
	default:
		// 5000km+ → 100-0
		score := int(math.Round(100 - ((distanceKm-5000)/15000)*100))
		if score < 0 {
			return 0
		}
		return score
	}
}

// Rating is the display tier for a finished game.
type Rating struct {
	Label string `json:"label"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

// ScoreRating classifies a total score against the maximum achievable over the
// given number of rounds.
func ScoreRating(totalScore, rounds int) Rating {
	if rounds <= 0 {
		rounds = 5
	}
	maxScore := rounds * 5000
	percentage := float64(totalScore) / float64(maxScore) * 100

	switch {
	case percentage >= 95:
		return Rating{Label: "PERFECT", Color: "#fbbf24", Icon: "perfect"}
	case percentage >= 85:
		return Rating{Label: "AMAZING", Color: "#22d3ee", Icon: "amazing"}
	case percentage >= 70:
		return Rating{Label: "GREAT", Color: "#a855f7", Icon: "great"}
	case percentage >= 55:
		return Rating{Label: "GOOD", Color: "#6366f1", Icon: "good"}
	case percentage >= 40:
		return Rating{Label: "DECENT", Color: "#22c55e", Icon: "decent"}
	case percentage >= 25:
		return Rating{Label: "OKAY", Color: "#f97316", Icon: "okay"}
	default:
		return Rating{Label: "BAD", Color: "#ef4444", Icon: "bad"}
	}
}
