//go:build darwin || freebsd || netbsd

package lister

import (
	"io/fs"

	"golang.org/x/sys/unix"

	"github.com/soyeahso/lla/pkg/wire"
)

func platformMetadata(path string, _ fs.FileInfo, md *wire.Metadata) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return
	}
	md.UID = st.Uid
	md.GID = st.Gid
	md.Accessed = unixSeconds(int64(st.Atim.Sec))
	md.Created = unixSeconds(int64(st.Btim.Sec))
}
