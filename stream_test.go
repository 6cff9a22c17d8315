package tarball

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func streamAll(t *testing.T, tb *Tarball, opts ...StreamOption) []byte {
	t.Helper()
	rc, err := tb.Stream(context.Background(), opts...)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

func roundTrip(t *testing.T, tb *Tarball) *Tarball {
	t.Helper()
	loaded, err := Load(context.Background(), bytes.NewReader(streamAll(t, tb)))
	require.NoError(t, err)
	return loaded
}

func readMember(t *testing.T, m *Member) string {
	t.Helper()
	require.NotNil(t, m)
	r, err := m.Stream()
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

// normalized strips location and monotonic data from the time so entries
// can be compared with assert.Equal.
func normalized(e Entry) Entry {
	e.ModTime = time.Unix(e.ModTime.Unix(), 0).UTC()
	return e
}

func sampleTarball(t *testing.T) (*Tarball, map[string]string) {
	t.Helper()
	mtime := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
	bodies := map[string]string{
		"root/empty.txt": "",
		"root/511.bin":   strings.Repeat("a", 511),
		"root/512.bin":   strings.Repeat("b", 512),
		"root/513.bin":   strings.Repeat("c", 513),
	}

	tb := New()
	require.NoError(t, tb.Append("root", Data{}, EntryWithKind(KindDirectory), EntryWithModTime(mtime), EntryWithMode(0o750)))
	for _, p := range []string{"root/empty.txt", "root/511.bin", "root/512.bin", "root/513.bin"} {
		require.NoError(t, tb.Append(p, FromString(bodies[p]),
			EntryWithModTime(mtime),
			EntryWithMode(0o640),
			EntryWithUID(1000),
			EntryWithGID(100),
			EntryWithOwner("alice"),
			EntryWithGroup("users"),
		))
	}
	require.NoError(t, tb.Append("root/link", Data{}, EntryWithKind(KindSymlink), EntryWithLinkName("512.bin"), EntryWithModTime(mtime)))
	return tb, bodies
}

func TestStreamLoadRoundTrip(t *testing.T) {
	t.Parallel()

	tb, bodies := sampleTarball(t)
	var want []Entry
	for e := range tb.Entries() {
		want = append(want, normalized(e))
	}

	data := streamAll(t, tb)
	assert.Len(t, data, int(tb.Size()))
	assert.Zero(t, len(data)%512)
	assert.Equal(t, make([]byte, 1024), data[len(data)-1024:])

	loaded, err := Load(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)

	var got []Entry
	for e := range loaded.Entries() {
		got = append(got, normalized(e))
	}
	assert.Equal(t, want, got)

	for p, body := range bodies {
		assert.Equal(t, body, readMember(t, loaded.Retrieve(p)), p)
	}
	assert.Equal(t, tb.Size(), loaded.Size())
}

func TestStreamCompressedRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		c     Compression
		magic []byte
	}{
		{"gzip", CompressionGzip, gzipMagic},
		{"zstd", CompressionZstd, zstdMagic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tb, bodies := sampleTarball(t)
			data := streamAll(t, tb, StreamWithCompression(tt.c))
			require.True(t, bytes.HasPrefix(data, tt.magic))

			detected, err := Load(context.Background(), bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, bodies["root/513.bin"], readMember(t, detected.Retrieve("root/513.bin")))

			explicit, err := Load(context.Background(), bytes.NewReader(data), LoadWithCompression(tt.c))
			require.NoError(t, err)
			assert.Equal(t, detected.Len(), explicit.Len())
		})
	}
}

func TestStreamGzipLevel(t *testing.T) {
	t.Parallel()

	build := func() *Tarball {
		tb := New()
		require.NoError(t, tb.Append("a.txt", FromString(strings.Repeat("compressible ", 1000))))
		return tb
	}
	fast := streamAll(t, build(), StreamWithGzip(), StreamWithLevel(1))
	best := streamAll(t, build(), StreamWithGzip(), StreamWithLevel(9))
	assert.LessOrEqual(t, len(best), len(fast))

	loaded, err := Load(context.Background(), bytes.NewReader(best), LoadWithGzip())
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
}

func TestStreamReadableByArchiveTar(t *testing.T) {
	t.Parallel()

	tb, bodies := sampleTarball(t)
	tr := tar.NewReader(bytes.NewReader(streamAll(t, tb)))

	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, hdr.Name)

		switch hdr.Typeflag {
		case tar.TypeReg:
			body, err := io.ReadAll(tr)
			require.NoError(t, err)
			assert.Equal(t, bodies[hdr.Name], string(body))
			assert.Equal(t, int64(0o640), hdr.Mode)
			assert.Equal(t, "alice", hdr.Uname)
			assert.Equal(t, 1000, hdr.Uid)
		case tar.TypeSymlink:
			assert.Equal(t, "512.bin", hdr.Linkname)
		case tar.TypeDir:
			assert.Equal(t, "root", strings.TrimSuffix(hdr.Name, "/"))
		default:
			t.Fatalf("unexpected typeflag %q", hdr.Typeflag)
		}
	}
	assert.Equal(t, []string{"root", "root/empty.txt", "root/511.bin", "root/512.bin", "root/513.bin", "root/link"}, names)
}

func TestLoadArchiveTarOutput(t *testing.T) {
	t.Parallel()

	mtime := time.Unix(1700000000, 0)
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "pkg/", Typeflag: tar.TypeDir, Mode: 0o755, ModTime: mtime, Format: tar.FormatUSTAR}))
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "pkg/x", Typeflag: tar.TypeReg, Mode: 0o600, Size: 3, ModTime: mtime, Format: tar.FormatUSTAR}))
	_, err := tw.Write([]byte("one"))
	require.NoError(t, err)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "pkg/y", Typeflag: tar.TypeReg, Mode: 0o600, Size: 1, ModTime: mtime, Format: tar.FormatUSTAR}))
	_, err = tw.Write([]byte("y"))
	require.NoError(t, err)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "pkg/x", Typeflag: tar.TypeReg, Mode: 0o644, Size: 3, ModTime: mtime, Format: tar.FormatUSTAR}))
	_, err = tw.Write([]byte("two"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	loaded, err := Load(context.Background(), &buf)
	require.NoError(t, err)

	assert.Equal(t, []string{"pkg", "pkg/x", "pkg/y"}, paths(loaded))
	x := loaded.Retrieve("pkg/x")
	assert.Equal(t, "two", readMember(t, x), "a repeated path replaces the earlier entry in place")
	assert.Equal(t, 0o644, int(x.Mode))
	assert.Equal(t, KindDirectory, loaded.Retrieve("pkg").Kind)
}

func TestLoadDotPrefixedArchive(t *testing.T) {
	t.Parallel()

	mtime := time.Unix(1700000000, 0)
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "./", Typeflag: tar.TypeDir, Mode: 0o755, ModTime: mtime, Format: tar.FormatUSTAR}))
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "./a.txt", Typeflag: tar.TypeReg, Mode: 0o644, Size: 2, ModTime: mtime, Format: tar.FormatUSTAR}))
	_, err := tw.Write([]byte("hi"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	loaded, err := Load(context.Background(), &buf)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt"}, paths(loaded))
	m := loaded.Retrieve("./a.txt")
	require.NotNil(t, m)
	assert.Equal(t, "a.txt", m.RelativePath)
	assert.Equal(t, "hi", readMember(t, m))
}

func TestLoadTruncated(t *testing.T) {
	t.Parallel()

	tb := New()
	require.NoError(t, tb.Append("a.txt", FromString("hello")))
	data := streamAll(t, tb)

	tests := []struct {
		name    string
		cut     int
		wantErr bool
		entries int
	}{
		{"mid header", 100, true, 0},
		{"mid body", 512 + 3, true, 0},
		{"mid padding", 512 + 5 + 10, true, 0},
		{"after body", 512 + 5, false, 1},
		{"no trailer", 1024, false, 1},
		{"half trailer", 1024 + 512, false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			loaded, err := Load(context.Background(), bytes.NewReader(data[:tt.cut]), LoadWithCompression(CompressionNone))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrCorrupted)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.entries, loaded.Len())
		})
	}
}

func TestLoadCorruptedChecksum(t *testing.T) {
	t.Parallel()

	tb := New()
	require.NoError(t, tb.Append("a.txt", FromString("hello")))
	data := streamAll(t, tb)
	data[10] ^= 0x20

	_, err := Load(context.Background(), bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestLoadIgnoresBytesAfterTrailer(t *testing.T) {
	t.Parallel()

	tb := New()
	require.NoError(t, tb.Append("a.txt", FromString("hello")))
	data := append(streamAll(t, tb), []byte("trailing garbage")...)

	loaded, err := Load(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
}

func TestStreamSizeMismatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		size int64
	}{
		{"short body", "abc", 5},
		{"long body", "abc", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tb := New()
			require.NoError(t, tb.Append("r.bin", FromReader(strings.NewReader(tt.body)), EntryWithSize(tt.size)))

			rc, err := tb.Stream(context.Background())
			require.NoError(t, err)
			defer rc.Close()
			_, err = io.ReadAll(rc)
			assert.ErrorIs(t, err, ErrSizeMismatch)
		})
	}
}

func TestStreamCanceled(t *testing.T) {
	t.Parallel()

	tb := New()
	require.NoError(t, tb.Append("a.txt", FromString("hello")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rc, err := tb.Stream(ctx)
	require.NoError(t, err)
	defer rc.Close()

	_, err = io.ReadAll(rc)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStreamProgress(t *testing.T) {
	t.Parallel()

	tb, _ := sampleTarball(t)
	var events []ProgressEvent
	data := streamAll(t, tb, StreamWithProgress(func(e ProgressEvent) {
		events = append(events, e)
	}))

	require.Len(t, events, tb.Len())
	last := events[len(events)-1]
	assert.Equal(t, StageArchiving, last.Stage)
	assert.True(t, last.LengthComputable())
	assert.Equal(t, uint64(len(data)), last.BytesTotal)
	assert.Equal(t, uint64(len(data)-1024), last.BytesDone)
	assert.Equal(t, tb.Len(), last.FilesDone)
}

func TestStreamProgressCountsUncompressedBytes(t *testing.T) {
	t.Parallel()

	tb, _ := sampleTarball(t)
	size := tb.Size()
	var events []ProgressEvent
	streamAll(t, tb, StreamWithGzip(), StreamWithProgress(func(e ProgressEvent) {
		events = append(events, e)
	}))

	require.NotEmpty(t, events)
	var prev uint64
	for _, e := range events {
		assert.Zero(t, e.BytesDone%512, "entries end on a block boundary")
		assert.Greater(t, e.BytesDone, prev)
		prev = e.BytesDone
	}
	assert.Equal(t, uint64(size), events[len(events)-1].BytesTotal)
	assert.Equal(t, uint64(size-1024), prev)
}
