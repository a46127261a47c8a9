package driver

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cast"
)

// DefaultMaxTTL bounds entry lifetimes, in seconds, when no ttl is configured.
const DefaultMaxTTL = 300

// Options configures a driver. Zero fields leave the current value alone.
type Options struct {
	// TTL is the maximum lifetime of any entry, in seconds.
	TTL int
	// Namespace scopes every key this driver writes within the shared store.
	Namespace string
}

// OptionsFromMap reads the "ttl" and "namespace" keys of a loosely typed
// option map, as found in decoded config files. Other keys are ignored.
func OptionsFromMap(m map[string]any) (Options, error) {
	var opts Options
	if v, ok := m["ttl"]; ok && v != nil {
		ttl, err := cast.ToIntE(v)
		if err != nil {
			return Options{}, fmt.Errorf("%w: ttl: %v", ErrInvalidOption, err)
		}
		if ttl <= 0 {
			return Options{}, fmt.Errorf("%w: ttl must be positive, got %d", ErrInvalidOption, ttl)
		}
		opts.TTL = ttl
	}
	if v, ok := m["namespace"]; ok && v != nil {
		ns, err := cast.ToStringE(v)
		if err != nil {
			return Options{}, fmt.Errorf("%w: namespace: %v", ErrInvalidOption, err)
		}
		opts.Namespace = ns
	}
	return opts, nil
}

// NewNamespace returns a fresh random namespace for deployments that did not
// configure one.
func NewNamespace() string { return uuid.NewString() }
