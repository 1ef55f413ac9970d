package school

import "time"

// SetNow freezes the clock used by the service until the returned func is called.
func SetNow(t time.Time) (restore func()) {
	orig := nowFunc
	nowFunc = func() time.Time { return t }
	return func() { nowFunc = orig }
}
