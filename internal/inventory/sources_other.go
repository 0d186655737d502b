//go:build !linux && !windows

package inventory

func platformSources() []Source { return nil }
