package window

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestTrackerBounds_PropertyBased checks that for arbitrary tick sequences a
// tracker never holds more than N samples per key and never keeps a key that
// was absent from the latest update.
func TestTrackerBounds_PropertyBased(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	ticks := gen.SliceOf(gen.SliceOfN(6, gen.IntRange(0, 1)))

	properties.Property("window stays bounded and live-only", prop.ForAll(
		func(size int, seq [][]int) bool {
			tr, err := New[int](size)
			if err != nil {
				return false
			}
			now := time.Unix(0, 0)
			var last map[int]struct{}
			for i, presence := range seq {
				batch := make([]Entry[int], 0, len(presence))
				last = make(map[int]struct{}, len(presence))
				for key, present := range presence {
					if present == 1 {
						batch = append(batch, Entry[int]{Key: key, Value: float64(i)})
						last[key] = struct{}{}
					}
				}
				tr.Update(now.Add(time.Duration(i)*time.Second), batch)
				for key := range tr.entries {
					if len(tr.entries[key].samples) > size {
						return false
					}
					if _, ok := last[key]; !ok {
						return false
					}
				}
			}
			return true
		},
		gen.IntRange(1, 5),
		ticks,
	))

	properties.Property("average of identical samples equals the sample", prop.ForAll(
		func(size int, value float64) bool {
			tr, _ := New[int](size)
			for i := 0; i < size; i++ {
				tr.Update(time.Unix(int64(i), 0), []Entry[int]{{Key: 1, Value: value}})
			}
			avg, err := tr.Average(1)
			if err != nil {
				return false
			}
			diff := avg - value
			return diff < 1e-9 && diff > -1e-9
		},
		gen.IntRange(1, 10),
		gen.Float64Range(0, 100),
	))

	properties.TestingRun(t)
}
