package analysis

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Recurring-problem clustering parameters
const (
	JamFactor             = 0.8    // hourly average below JamFactor x limit is a jam
	MinJamObservations    = 2      // distinct days per (strip, weekday, hour)
	ProblemClusterRadiusM = 5000.0 // strips jammed together within this radius form one problem
)

// JamObservation is a (strip, weekday, hour) slot that was jammed on Days
// distinct days.
type JamObservation struct {
	StripID int64
	Weekday time.Weekday
	Hour    int
	Days    int
}

// Cluster is a group of strips jammed at the same hour on one or more weekdays.
type Cluster struct {
	Hour     int
	Weekdays []time.Weekday // ascending from Monday
	Strips   []int64        // ascending
}

// Key identifies the cluster for deduplication.
func (c Cluster) Key() string {
	return fmt.Sprintf("%d/%v", c.Hour, c.Strips)
}

// NearFunc reports whether two strips are within the clustering radius.
type NearFunc func(a, b int64) bool

// ClusterProblems groups recurring jams.
//
// Slots with fewer than MinJamObservations days are dropped. Each unvisited
// slot seeds a group with every other slot of the same weekday and hour whose
// strip is near the seed. Groups with the same strips and hour on different
// weekdays are merged. The result is ordered by hour then strips.
func ClusterProblems(observations []JamObservation, near NearFunc) []Cluster {
	var slots []JamObservation
	for _, o := range observations {
		if o.Days >= MinJamObservations {
			slots = append(slots, o)
		}
	}
	sort.Slice(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if a.Weekday != b.Weekday {
			return a.Weekday < b.Weekday
		}
		if a.Hour != b.Hour {
			return a.Hour < b.Hour
		}
		return a.StripID < b.StripID
	})

	visited := make([]bool, len(slots))
	merged := make(map[string]*Cluster)

	for i, seed := range slots {
		if visited[i] {
			continue
		}
		visited[i] = true
		strips := []int64{seed.StripID}

		for j := i + 1; j < len(slots); j++ {
			other := slots[j]
			if visited[j] || other.Weekday != seed.Weekday || other.Hour != seed.Hour {
				continue
			}
			if near(seed.StripID, other.StripID) {
				visited[j] = true
				strips = append(strips, other.StripID)
			}
		}
		sort.Slice(strips, func(a, b int) bool { return strips[a] < strips[b] })

		c := Cluster{Hour: seed.Hour, Strips: strips}
		if existing, ok := merged[c.Key()]; ok {
			existing.Weekdays = appendWeekday(existing.Weekdays, seed.Weekday)
			continue
		}
		c.Weekdays = []time.Weekday{seed.Weekday}
		merged[c.Key()] = &c
	}

	clusters := make([]Cluster, 0, len(merged))
	for _, c := range merged {
		sort.Slice(c.Weekdays, func(a, b int) bool {
			return mondayFirst(c.Weekdays[a]) < mondayFirst(c.Weekdays[b])
		})
		clusters = append(clusters, *c)
	}
	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].Hour != clusters[j].Hour {
			return clusters[i].Hour < clusters[j].Hour
		}
		return clusters[i].Key() < clusters[j].Key()
	})
	return clusters
}

func appendWeekday(days []time.Weekday, d time.Weekday) []time.Weekday {
	for _, existing := range days {
		if existing == d {
			return days
		}
	}
	return append(days, d)
}

func mondayFirst(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// DescribeProblem renders the text shown to drivers, e.g.
// "Recurring problem (Main Street): Mondays, Fridays, from 8:00".
// The street part is left out when unknown.
func DescribeProblem(street string, weekdays []time.Weekday, hour int) string {
	var b strings.Builder
	b.WriteString("Recurring problem")
	if street != "" {
		fmt.Fprintf(&b, " (%s)", street)
	}
	b.WriteString(": ")

	names := make([]string, len(weekdays))
	for i, d := range weekdays {
		names[i] = d.String() + "s"
	}
	b.WriteString(strings.Join(names, ", "))
	if len(names) > 0 {
		b.WriteString(", ")
	}
	fmt.Fprintf(&b, "from %d:00", hour)
	return b.String()
}
