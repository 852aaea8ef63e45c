package index

import (
	"os"
	"syscall"
	"time"
)

func fillSys(m *Metadata, info os.FileInfo) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return
	}
	m.CreatedAt = time.Unix(st.Ctimespec.Sec, st.Ctimespec.Nsec)
	m.Dev = uint32(st.Dev)
	m.Inode = uint32(st.Ino)
	m.UID = st.Uid
	m.GID = st.Gid
}
