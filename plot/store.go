// Package plot holds the per-series sample history and the windowing and
// auto-scale engines that turn it into a bounded view per plot.
package plot

// Sample is one (time, value) point in a series.
type Sample struct {
	T float64 `json:"t"`
	V float64 `json:"v"`
}

// Store accumulates per-series sample history. Series are created lazily
// the first time an index is observed and cleared in bulk on disconnect.
type Store struct {
	series    [][]Sample
	retention float64
}

func NewStore() *Store {
	return &Store{}
}

// SetRetention bounds history to the given duration in seconds behind the
// latest timestamp. Zero or negative keeps history unbounded.
func (s *Store) SetRetention(seconds float64) {
	s.retention = seconds
}

// Append records one parsed tuple at elapsed time t. Series indices beyond
// the tuple length are left unchanged; no placeholder points are injected.
func (s *Store) Append(t float64, values []float64) {
	for len(s.series) < len(values) {
		s.series = append(s.series, nil)
	}
	for i, v := range values {
		s.series[i] = append(s.series[i], Sample{T: t, V: v})
	}
	if s.retention > 0 {
		s.trim(t - s.retention)
	}
}

// trim drops samples older than cutoff from the front of each series.
func (s *Store) trim(cutoff float64) {
	for i, samples := range s.series {
		drop := 0
		for drop < len(samples) && samples[drop].T < cutoff {
			drop++
		}
		if drop > 0 {
			s.series[i] = append(samples[:0:0], samples[drop:]...)
		}
	}
}

// SeriesCount returns the number of series observed so far this session.
func (s *Store) SeriesCount() int {
	return len(s.series)
}

// Series returns the full history of series i, oldest first.
func (s *Store) Series(i int) []Sample {
	if i < 0 || i >= len(s.series) {
		return nil
	}
	return s.series[i]
}

// Latest returns the most recent sample of series i.
func (s *Store) Latest(i int) (Sample, bool) {
	samples := s.Series(i)
	if len(samples) == 0 {
		return Sample{}, false
	}
	return samples[len(samples)-1], true
}

// LatestTime returns the largest timestamp across all series.
func (s *Store) LatestTime() (float64, bool) {
	found := false
	max := 0.0
	for i := range s.series {
		if smp, ok := s.Latest(i); ok && (!found || smp.T > max) {
			max = smp.T
			found = true
		}
	}
	return max, found
}

// Clear drops all history, used on disconnect.
func (s *Store) Clear() {
	s.series = nil
}
