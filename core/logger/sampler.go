package logger

import (
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// debugSampler thins out high-volume debug records such as update receipts.
// A nil policy lets everything through.
type debugSampler struct {
	policy atomic.Pointer[rate.Sometimes]
}

// Set keeps roughly num of every den records; non-positive values disable sampling.
func (s *debugSampler) Set(num, den int) {
	if num <= 0 || den <= 0 || num >= den {
		s.policy.Store(nil)
		return
	}
	s.policy.Store(&rate.Sometimes{First: 1, Every: den / num})
}

// Allow reports whether the next record passes.
func (s *debugSampler) Allow() bool {
	p := s.policy.Load()
	if p == nil {
		return true
	}
	allowed := false
	p.Do(func() { allowed = true })
	return allowed
}

// parseSampleSpec reads "num/den" or a plain "den" meaning 1/den. "0" or
// "off" disables sampling; ok is false for unparsable input.
func parseSampleSpec(spec string) (num, den int, ok bool) {
	spec = strings.ToLower(strings.TrimSpace(spec))
	switch spec {
	case "":
		return 0, 0, false
	case "0", "off", "none":
		return 0, 0, true
	}
	a, b, hasSlash := strings.Cut(spec, "/")
	if !hasSlash {
		a, b = "1", spec
	}
	num, err1 := strconv.Atoi(strings.TrimSpace(a))
	den, err2 := strconv.Atoi(strings.TrimSpace(b))
	if err1 != nil || err2 != nil || num < 0 || den <= 0 {
		return 0, 0, false
	}
	return num, den, true
}
