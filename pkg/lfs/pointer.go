package lfs

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/grovetools/gitbutler/errors"
)

// SpecVersion is the version line of a pointer file.
const SpecVersion = "https://git-lfs.github.com/spec/v1"

// Pointer stands in for the content of an externalized file.
type Pointer struct {
	OID  string
	Size int64
}

// String renders the pointer text.
func (p Pointer) String() string {
	return fmt.Sprintf("version %s\noid sha256:%s\nsize %d\n", SpecVersion, p.OID, p.Size)
}

// ParsePointer parses pointer text.
func ParsePointer(data []byte) (Pointer, error) {
	var p Pointer
	var sawVersion, sawOID, sawSize bool

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), " ")
		if !ok {
			return Pointer{}, invalidPointer("malformed line %q", scanner.Text())
		}
		switch key {
		case "version":
			if value != SpecVersion {
				return Pointer{}, invalidPointer("unsupported version %q", value)
			}
			sawVersion = true
		case "oid":
			oid, found := strings.CutPrefix(value, "sha256:")
			if !found || oid == "" {
				return Pointer{}, invalidPointer("unsupported oid %q", value)
			}
			p.OID = oid
			sawOID = true
		case "size":
			size, err := strconv.ParseInt(value, 10, 64)
			if err != nil || size < 0 {
				return Pointer{}, invalidPointer("bad size %q", value)
			}
			p.Size = size
			sawSize = true
		}
	}

	if !sawVersion || !sawOID || !sawSize {
		return Pointer{}, invalidPointer("missing version, oid or size")
	}
	return p, nil
}

func invalidPointer(format string, args ...interface{}) error {
	return errors.New(errors.ErrCodeInvalidInput, "invalid pointer: "+fmt.Sprintf(format, args...))
}
