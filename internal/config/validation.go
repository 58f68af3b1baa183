package config

import (
	"regexp"
	"strings"

	"github.com/docker/go-units"
	"github.com/go-playground/validator/v10"
	"github.com/k1LoW/duration"
)

var sizePattern = regexp.MustCompile(`(?i)^\d+(\.\d+)?\s*(B|KB|MB|GB|TB|PB|KiB|MiB|GiB|TiB|PiB)?$`)

// validSize accepts human-readable byte sizes as parsed by docker/go-units'
// binary system (e.g. "5GiB", "512MiB"): go-units ignores the "i" when
// choosing decimal vs. binary and instead picks the system per parsing
// function, so trash quota sizes are parsed with RAMInBytes everywhere
// (manager.go) to get 2^30-based gigabytes rather than 10^9-based ones.
func validSize(fl validator.FieldLevel) bool {
	value := strings.ToUpper(strings.TrimSpace(fl.Field().String()))
	if !sizePattern.MatchString(value) {
		return false
	}
	_, err := units.RAMInBytes(value)
	return err == nil
}

// validDuration accepts natural-language durations as parsed by
// k1LoW/duration, e.g. "30 days", "2 weeks".
func validDuration(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	_, err := duration.Parse(value)
	return err == nil
}
