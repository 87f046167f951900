// Package facematch resolves a face embedding to a registered student.
package facematch

import (
	"math"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// Policy names, used for logging and metrics labels.
const (
	PolicyFirstHit = "threshold_first_hit"
	PolicyNearest  = "best_match_nearest"
	PolicyIndexed  = "indexed_nearest"
)

// Result is the outcome of matching one query embedding against the roster.
// Distance is the smallest distance seen, +Inf when nothing was compared.
type Result struct {
	Matched   bool
	StudentID string
	Name      string
	Distance  float64
}

// Matcher decides which student, if any, a query embedding belongs to.
// Callers guarantee exactly one query embedding per call.
type Matcher interface {
	Match(query []float32, roster []database.StudentProfile) Result
	Policy() string
}

// EuclideanDistance returns the L2 distance between a and b. Embeddings of
// different dimensions are infinitely far apart.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func noMatch(distance float64) Result {
	return Result{Name: database.UnknownStudentName, Distance: distance}
}

// ThresholdFirstHit walks the roster in order and accepts the first profile
// having any stored embedding within Tolerance (inclusive) of the query.
// The result depends on roster order when several profiles are in tolerance;
// a later, closer profile is never considered.
type ThresholdFirstHit struct {
	Tolerance float64
}

// NewThresholdFirstHit returns a first-hit matcher, falling back to the
// default tolerance for non-positive values.
func NewThresholdFirstHit(tolerance float64) ThresholdFirstHit {
	if tolerance <= 0 {
		tolerance = config.DefaultMatchTolerance
	}
	return ThresholdFirstHit{Tolerance: tolerance}
}

func (m ThresholdFirstHit) Policy() string { return PolicyFirstHit }

func (m ThresholdFirstHit) Match(query []float32, roster []database.StudentProfile) Result {
	closest := math.Inf(1)
	for i := range roster {
		p := &roster[i]
		for _, stored := range p.Embeddings {
			d := EuclideanDistance(stored, query)
			if d <= m.Tolerance {
				return Result{Matched: true, StudentID: p.StudentID, Name: p.Name, Distance: d}
			}
			closest = min(closest, d)
		}
	}
	return noMatch(closest)
}

// BestMatchNearest scans every stored embedding and accepts the overall
// nearest one when its distance is strictly below Threshold. Ties keep the
// earliest profile in roster order.
type BestMatchNearest struct {
	Threshold float64
}

// NewBestMatchNearest returns a nearest-neighbour matcher, falling back to the
// default threshold for non-positive values.
func NewBestMatchNearest(threshold float64) BestMatchNearest {
	if threshold <= 0 {
		threshold = config.DefaultPredictThreshold
	}
	return BestMatchNearest{Threshold: threshold}
}

func (m BestMatchNearest) Policy() string { return PolicyNearest }

func (m BestMatchNearest) Match(query []float32, roster []database.StudentProfile) Result {
	best := -1
	bestDist := math.Inf(1)
	for i := range roster {
		for _, stored := range roster[i].Embeddings {
			if d := EuclideanDistance(stored, query); d < bestDist {
				best, bestDist = i, d
			}
		}
	}
	return decide(roster, best, bestDist, m.Threshold)
}

func decide(roster []database.StudentProfile, best int, dist, threshold float64) Result {
	if best < 0 || dist >= threshold {
		return noMatch(dist)
	}
	return Result{Matched: true, StudentID: roster[best].StudentID, Name: roster[best].Name, Distance: dist}
}
