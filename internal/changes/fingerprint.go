package changes

import (
	"crypto/sha1"
	"encoding/hex"
	"io/fs"
	"strconv"
	"time"
)

// Stat is the subset of file metadata a fingerprint is computed from.
type Stat struct {
	ModTime    time.Time
	ChangeTime time.Time
	Size       int64
}

// StatOf extracts a Stat from file info. Platforms without a change time
// report the modification time instead.
func StatOf(info fs.FileInfo) *Stat {
	return &Stat{
		ModTime:    info.ModTime(),
		ChangeTime: changeTime(info),
		Size:       info.Size(),
	}
}

// Fingerprint derives the version string for path. A nil stat means the
// path no longer exists and yields RemovedVersion.
//
// The fingerprint depends only on metadata, so two writes that leave size
// and timestamps identical within clock resolution are indistinguishable.
func Fingerprint(path string, st *Stat) string {
	if st == nil {
		return RemovedVersion
	}
	h := sha1.New()
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(st.ModTime.UnixNano(), 10)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(st.ChangeTime.UnixNano(), 10)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(st.Size, 10)))
	return hex.EncodeToString(h.Sum(nil))
}
