package numbering

// SetAdjustNumber installs a hook that rewrites each computed number.
func SetAdjustNumber(a *Allocator, fn func(number int) int) {
	a.adjustNumber = fn
}
