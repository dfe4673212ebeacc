// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"errors"
	"slices"
	"syscall"
)

// isFatalFsnotifyError reports whether err means the watcher can no longer
// deliver events, such as an exhausted watch or handle limit.
func isFatalFsnotifyError(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}
	return slices.Contains(fatalErrnos, errno)
}
