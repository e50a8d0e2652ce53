package thermal

import (
	"errors"
	"fmt"
	"log"
)

// ErrNoSensor means the temperature is unknown: neither sensor resolved, or
// the preferred one read non-positive and the fallback did not resolve.
var ErrNoSensor = errors.New("thermal: no usable sensor")

// Reading is a single temperature sample.
type Reading struct {
	Sensor string
	Zone   int
	MilliC int
}

// Sampler reads the temperature for a profile's preferred/fallback pair.
type Sampler struct {
	r *Resolver
}

// NewSampler creates a sampler over r.
func NewSampler(r *Resolver) *Sampler {
	return &Sampler{r: r}
}

// Sample prefers the preferred sensor when it resolves and reads positive.
// Otherwise the fallback sensor's raw reading is used without validation.
// ErrNoSensor is returned when no sensor can give a temperature. A read
// failure is returned as is so the caller can retry; this includes a failed
// preferred read with no fallback to cover it.
func (s *Sampler) Sample(preferred, fallback string) (Reading, error) {
	var preferredErr error
	if id, ok := s.r.Resolve(preferred); ok {
		t, err := s.r.ReadTemp(id)
		switch {
		case err != nil:
			log.Printf("thermal: read %s (zone %d): %v, trying %s", preferred, id, err, fallback)
			s.r.Forget(preferred)
			preferredErr = fmt.Errorf("read %s (zone %d): %w", preferred, id, err)
		case t > 0:
			return Reading{Sensor: preferred, Zone: id, MilliC: t}, nil
		}
	}

	id, ok := s.r.Resolve(fallback)
	if !ok {
		if preferredErr != nil {
			return Reading{}, fmt.Errorf("%w, %s not found", preferredErr, fallback)
		}
		return Reading{}, fmt.Errorf("%w: %s, %s", ErrNoSensor, preferred, fallback)
	}
	t, err := s.r.ReadTemp(id)
	if err != nil {
		s.r.Forget(fallback)
		return Reading{}, fmt.Errorf("read %s (zone %d): %w", fallback, id, err)
	}
	return Reading{Sensor: fallback, Zone: id, MilliC: t}, nil
}
