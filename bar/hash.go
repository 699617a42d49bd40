package bar

import (
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// FileNameHash returns the header hash of an archive file name: Paul Hsieh's
// SuperFastHash over the Windows-1252 bytes of the uppercased name.
// Characters outside Windows-1252 hash as '?'.
func FileNameHash(name string) uint32 {
	upper := strings.ToUpper(name)
	b := make([]byte, 0, len(upper))
	for _, r := range upper {
		c, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			c = '?'
		}
		b = append(b, c)
	}
	return superFastHash(b)
}

func superFastHash(data []byte) uint32 {
	if len(data) == 0 {
		return 0
	}
	hash := uint32(len(data)) //nolint:gosec // names are far below 4 GiB
	rem := len(data) & 3
	i := 0
	for n := len(data) >> 2; n > 0; n-- {
		hash += uint32(data[i]) | uint32(data[i+1])<<8
		tmp := (uint32(data[i+2])|uint32(data[i+3])<<8)<<11 ^ hash
		hash = hash<<16 ^ tmp
		hash += hash >> 11
		i += 4
	}
	switch rem {
	case 3:
		hash += uint32(data[i]) | uint32(data[i+1])<<8
		hash ^= hash << 16
		hash ^= uint32(data[i+2]) << 18
		hash += hash >> 11
	case 2:
		hash += uint32(data[i]) | uint32(data[i+1])<<8
		hash ^= hash << 11
		hash += hash >> 17
	case 1:
		hash += uint32(data[i])
		hash ^= hash << 10
		hash += hash >> 1
	}
	hash ^= hash << 3
	hash += hash >> 5
	hash ^= hash << 4
	hash += hash >> 17
	hash ^= hash << 25
	hash += hash >> 6
	return hash
}
