package tarball

import "io/fs"

// Kind identifies the type of an archive entry.
type Kind uint8

// Entry kinds, numbered as their ustar typeflag digits.
const (
	KindFile Kind = iota
	KindLink
	KindSymlink
	KindCharDevice
	KindBlockDevice
	KindDirectory
	KindFIFO
	KindContiguousFile
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindLink:
		return "link"
	case KindSymlink:
		return "symlink"
	case KindCharDevice:
		return "character-device"
	case KindBlockDevice:
		return "block-device"
	case KindDirectory:
		return "directory"
	case KindFIFO:
		return "fifo"
	case KindContiguousFile:
		return "contiguous-file"
	default:
		return "unknown"
	}
}

// typeflag returns the ustar typeflag character for k.
func (k Kind) typeflag() string {
	if k > KindContiguousFile {
		k = KindFile
	}
	return string(rune('0' + k))
}

// hasBody reports whether entries of this kind carry content.
func (k Kind) hasBody() bool {
	return k == KindFile || k == KindContiguousFile
}

// kindFromTypeflag decodes a typeflag. Unknown and absent flags, including
// the legacy NUL, are regular files.
func kindFromTypeflag(flag string) Kind {
	if len(flag) != 1 || flag[0] < '0' || flag[0] > '7' {
		return KindFile
	}
	return Kind(flag[0] - '0')
}

// kindFromMode classifies a file mode as reported by Lstat. Sockets have no
// ustar type and are archived as FIFOs.
func kindFromMode(mode fs.FileMode) Kind {
	switch {
	case mode.IsDir():
		return KindDirectory
	case mode&fs.ModeSymlink != 0:
		return KindSymlink
	case mode&fs.ModeDevice != 0 && mode&fs.ModeCharDevice != 0:
		return KindCharDevice
	case mode&fs.ModeDevice != 0:
		return KindBlockDevice
	case mode&(fs.ModeNamedPipe|fs.ModeSocket) != 0:
		return KindFIFO
	default:
		return KindFile
	}
}
