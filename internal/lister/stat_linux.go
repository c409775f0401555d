//go:build linux

package lister

import (
	"io/fs"

	"golang.org/x/sys/unix"

	"github.com/soyeahso/lla/pkg/wire"
)

func platformMetadata(path string, _ fs.FileInfo, md *wire.Metadata) {
	var st unix.Statx_t
	mask := unix.STATX_BASIC_STATS | unix.STATX_BTIME
	if err := unix.Statx(unix.AT_FDCWD, path, unix.AT_SYMLINK_NOFOLLOW, mask, &st); err != nil {
		return
	}
	md.UID = st.Uid
	md.GID = st.Gid
	md.Accessed = unixSeconds(st.Atime.Sec)
	if st.Mask&unix.STATX_BTIME != 0 {
		md.Created = unixSeconds(st.Btime.Sec)
	}
}
