//go:build !linux && !darwin

package index

import "os"

// fillSys leaves ctime, device, inode and owner at their defaults on
// platforms without a unix stat structure.
func fillSys(m *Metadata, info os.FileInfo) {}
