//go:build !linux && !windows && !darwin

package facts

import "context"

func collectBIOS(_ context.Context) BIOSInfo {
	return BIOSInfo{}
}
