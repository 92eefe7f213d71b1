//go:build !linux && !darwin

package changes

import (
	"io/fs"
	"time"
)

func changeTime(info fs.FileInfo) time.Time {
	return info.ModTime()
}
