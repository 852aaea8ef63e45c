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
	m.CreatedAt = time.Unix(int64(st.Ctim.Sec), int64(st.Ctim.Nsec))
	m.Dev = uint32(st.Dev)
	m.Inode = uint32(st.Ino)
	m.UID = st.Uid
	m.GID = st.Gid
}
