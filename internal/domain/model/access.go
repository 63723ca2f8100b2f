package model

import "time"

// UnlockedModuleCount is the number of leading modules of a track the
// subscription opens at now. A live subscription opens its first module
// immediately and one more per full period since StartAt. Inactive or
// expired subscriptions open nothing.
func UnlockedModuleCount(s *Subscription, now time.Time) int {
	if !s.IsLive(now) {
		return 0
	}
	elapsed := now.Sub(s.StartAt)
	if elapsed < 0 {
		return 1
	}
	n := int(elapsed/DefaultPeriod) + 1
	if n < 1 {
		return 1
	}
	return n
}

// ModuleAccessible reports whether the zero-based module index is open.
// Chapters inherit the access of their module.
func ModuleAccessible(s *Subscription, index int, now time.Time) bool {
	return index >= 0 && index < UnlockedModuleCount(s, now)
}
