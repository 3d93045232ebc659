package analysis

import "github.com/jengzang/traffic-backend-go/internal/models"

// IsJammed reports whether any reading of the strip, in either direction, is
// below JamFactor x the road limit. Strips without a limit are never jammed.
func IsJammed(s *models.RoadStrip) bool {
	limit := s.MaxSpeed()
	if limit <= 0 {
		return false
	}
	threshold := float64(limit) * JamFactor
	for _, set := range []models.SpeedSet{s.ToStart, s.ToEnd} {
		for _, sp := range set {
			if float64(sp.Value) < threshold {
				return true
			}
		}
	}
	return false
}
