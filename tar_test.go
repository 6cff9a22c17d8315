package tarball

import (
	"archive/tar"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestTree writes root/{a.txt, sub/b.txt} below dir and returns root.
func createTestTree(t *testing.T, dir string) string {
	t.Helper()
	root := filepath.Join(dir, "root")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o640))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.txt"), nil, 0o600))
	return root
}

func TestTar(t *testing.T) {
	t.Parallel()

	root := createTestTree(t, t.TempDir())
	tb, err := Tar(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{"root", "root/a.txt", "root/sub", "root/sub/b.txt"}, paths(tb))
	assert.Equal(t, KindDirectory, tb.Retrieve("root").Kind)
	a := tb.Retrieve("root/a.txt")
	assert.Equal(t, int64(5), a.Size)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0o640), a.Mode)
		assert.Equal(t, uint32(os.Getuid()), a.UID) //nolint:gosec // uid is non-negative on unix
	}

	assert.Equal(t, "hello", readMember(t, a))
}

func TestTarMissingSource(t *testing.T) {
	t.Parallel()

	_, err := Tar(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestTarCanceled(t *testing.T) {
	t.Parallel()

	root := createTestTree(t, t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Tar(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTarRecordsSymlinks(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on windows")
	}

	root := createTestTree(t, t.TempDir())
	require.NoError(t, os.Symlink("a.txt", filepath.Join(root, "link")))

	tb, err := Tar(context.Background(), root)
	require.NoError(t, err)

	link := tb.Retrieve("root/link")
	require.NotNil(t, link)
	assert.Equal(t, KindSymlink, link.Kind)
	assert.Equal(t, "a.txt", link.LinkName)
	assert.Zero(t, link.Size)
}

func TestTarUntarEndToEnd(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts []TarOption
		file string
	}{
		{"plain", nil, "out.tar"},
		{"gzip", []TarOption{TarWithGzip()}, "out.tar.gz"},
		{"zstd", []TarOption{TarWithCompression(CompressionZstd)}, "out.tar.zst"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			root := createTestTree(t, dir)
			mtime := time.Date(2021, 7, 8, 9, 10, 11, 0, time.UTC)
			require.NoError(t, os.Chtimes(filepath.Join(root, "a.txt"), mtime, mtime))
			require.NoError(t, os.Chtimes(filepath.Join(root, "sub"), mtime, mtime))

			archive := filepath.Join(dir, tt.file)
			require.NoError(t, TarFile(context.Background(), root, archive, tt.opts...))

			out := filepath.Join(dir, "out")
			require.NoError(t, Untar(context.Background(), archive, out))

			got, err := os.ReadFile(filepath.Join(out, "root", "a.txt"))
			require.NoError(t, err)
			assert.Equal(t, "hello", string(got))

			got, err = os.ReadFile(filepath.Join(out, "root", "sub", "b.txt"))
			require.NoError(t, err)
			assert.Empty(t, got)

			info, err := os.Stat(filepath.Join(out, "root", "a.txt"))
			require.NoError(t, err)
			assert.True(t, info.ModTime().Equal(mtime), "file mtime %v", info.ModTime())
			if runtime.GOOS != "windows" {
				assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
			}

			info, err = os.Stat(filepath.Join(out, "root", "sub"))
			require.NoError(t, err)
			assert.True(t, info.IsDir())
			assert.True(t, info.ModTime().Equal(mtime), "directory mtime %v", info.ModTime())
		})
	}
}

func TestTarFileGzipMagic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	root := createTestTree(t, dir)
	archive := filepath.Join(dir, "out.tgz")
	require.NoError(t, TarFile(context.Background(), root, archive, TarWithGzip(), TarWithLevel(9)))

	data, err := os.ReadFile(archive)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, gzipMagic))

	loaded, err := LoadFile(context.Background(), archive, LoadWithGzip())
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Len())
}

func TestTarUntarVirtualFilesystem(t *testing.T) {
	t.Parallel()

	mem := memfs.New()
	require.NoError(t, util.WriteFile(mem, "src/a.txt", []byte("virtual"), 0o644))
	require.NoError(t, util.WriteFile(mem, "src/nested/b.txt", []byte("deeper"), 0o644))

	require.NoError(t, TarFile(context.Background(), "src", "out.tar", TarWithFilesystem(mem)))
	require.NoError(t, Untar(context.Background(), "out.tar", "dest", UntarWithFilesystem(mem)))

	got, err := util.ReadFile(mem, "dest/src/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "virtual", string(got))

	got, err = util.ReadFile(mem, "dest/src/nested/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "deeper", string(got))

	loaded, err := LoadFile(context.Background(), "out.tar", LoadWithFilesystem(mem))
	require.NoError(t, err)
	assert.Equal(t, []string{"src", "src/a.txt", "src/nested", "src/nested/b.txt"}, paths(loaded))
	assert.Empty(t, loaded.Retrieve("src/a.txt").Owner, "names are not looked up for virtual trees")
}

// rawArchive writes headers with archive/tar so tests can produce entries
// that Append refuses to create.
func rawArchive(t *testing.T, hdrs ...*tar.Header) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, h := range hdrs {
		h.Format = tar.FormatUSTAR
		h.ModTime = time.Unix(1700000000, 0)
		if h.Mode == 0 {
			h.Mode = 0o644
		}
		require.NoError(t, tw.WriteHeader(h))
		if h.Size > 0 {
			_, err := tw.Write(bytes.Repeat([]byte{'x'}, int(h.Size)))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func TestUntarRejectsEscapingPaths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path string
	}{
		{"parent", "../evil.txt"},
		{"nested parent", "ok/../../evil.txt"},
		{"absolute", "/etc/evil.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			data := rawArchive(t, &tar.Header{Name: tt.path, Typeflag: tar.TypeReg, Size: 1})
			err := UntarReader(context.Background(), bytes.NewReader(data), filepath.Join(dir, "out"))
			assert.ErrorIs(t, err, ErrInvalidPath)

			_, statErr := os.Stat(filepath.Join(dir, "evil.txt"))
			assert.ErrorIs(t, statErr, os.ErrNotExist)
		})
	}
}

func TestUntarDotPrefixedArchive(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "out")
	data := rawArchive(t,
		&tar.Header{Name: "./", Typeflag: tar.TypeDir, Mode: 0o755},
		&tar.Header{Name: "./a.txt", Typeflag: tar.TypeReg, Size: 3},
		&tar.Header{Name: "./sub/", Typeflag: tar.TypeDir, Mode: 0o750},
		&tar.Header{Name: "./sub/./b.txt", Typeflag: tar.TypeReg, Size: 1},
	)
	require.NoError(t, UntarReader(context.Background(), bytes.NewReader(data), out))

	got, err := os.ReadFile(filepath.Join(out, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "xxx", string(got))
	got, err = os.ReadFile(filepath.Join(out, "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(got))
}

func TestUntarRepeatedPathLastWins(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not restored on windows")
	}

	out := filepath.Join(t.TempDir(), "out")
	data := rawArchive(t,
		&tar.Header{Name: "a.txt", Typeflag: tar.TypeReg, Size: 1, Mode: 0o600},
		&tar.Header{Name: "b.txt", Typeflag: tar.TypeReg, Size: 1, Mode: 0o600},
		&tar.Header{Name: "a.txt", Typeflag: tar.TypeReg, Size: 2, Mode: 0o640},
	)
	require.NoError(t, UntarReader(context.Background(), bytes.NewReader(data), out, UntarWithWorkers(8)))

	info, err := os.Stat(filepath.Join(out, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.Size())
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
}

func TestLastByPath(t *testing.T) {
	t.Parallel()

	entries := []Entry{
		{RelativePath: "a", Mode: 0o600},
		{RelativePath: "b", Mode: 0o600},
		{RelativePath: "a", Mode: 0o640},
		{RelativePath: "c", Mode: 0o600},
		{RelativePath: "b", Mode: 0o644},
	}
	got := lastByPath(entries)
	require.Len(t, got, 3)
	assert.Equal(t, Entry{RelativePath: "a", Mode: 0o640}, got[0])
	assert.Equal(t, Entry{RelativePath: "b", Mode: 0o644}, got[1])
	assert.Equal(t, Entry{RelativePath: "c", Mode: 0o600}, got[2])
}

func TestUntarSymlinks(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on windows")
	}

	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	data := rawArchive(t,
		&tar.Header{Name: "root/a.txt", Typeflag: tar.TypeReg, Size: 3},
		&tar.Header{Name: "root/ok", Typeflag: tar.TypeSymlink, Linkname: "a.txt"},
		&tar.Header{Name: "root/escape", Typeflag: tar.TypeSymlink, Linkname: "../../outside"},
		&tar.Header{Name: "root/abs", Typeflag: tar.TypeSymlink, Linkname: "/etc/passwd"},
	)
	require.NoError(t, UntarReader(context.Background(), bytes.NewReader(data), out))

	target, err := os.Readlink(filepath.Join(out, "root", "ok"))
	require.NoError(t, err)
	assert.Equal(t, "a.txt", target)

	for _, name := range []string{"escape", "abs"} {
		_, err := os.Lstat(filepath.Join(out, "root", name))
		assert.ErrorIs(t, err, os.ErrNotExist, name)
	}
}

func TestUntarRejectsWritesThroughSymlinks(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on windows")
	}

	data := rawArchive(t,
		&tar.Header{Name: "root/sub/", Typeflag: tar.TypeDir, Mode: 0o755},
		&tar.Header{Name: "root/l", Typeflag: tar.TypeSymlink, Linkname: "sub"},
		&tar.Header{Name: "root/l/x.txt", Typeflag: tar.TypeReg, Size: 1},
	)
	err := UntarReader(context.Background(), bytes.NewReader(data), filepath.Join(t.TempDir(), "out"))
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestUntarSkipsUnsupportedKinds(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "out")
	data := rawArchive(t,
		&tar.Header{Name: "a.txt", Typeflag: tar.TypeReg, Size: 2},
		&tar.Header{Name: "hard", Typeflag: tar.TypeLink, Linkname: "a.txt"},
		&tar.Header{Name: "pipe", Typeflag: tar.TypeFifo},
	)
	require.NoError(t, UntarReader(context.Background(), bytes.NewReader(data), out))

	_, err := os.Stat(filepath.Join(out, "a.txt"))
	require.NoError(t, err)
	for _, name := range []string{"hard", "pipe"} {
		_, err := os.Lstat(filepath.Join(out, name))
		assert.ErrorIs(t, err, os.ErrNotExist, name)
	}
}

func TestUntarProgress(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	root := createTestTree(t, dir)
	archive := filepath.Join(dir, "out.tar")
	require.NoError(t, TarFile(context.Background(), root, archive))
	info, err := os.Stat(archive)
	require.NoError(t, err)

	var mu sync.Mutex
	var extracting, restoring []ProgressEvent
	err = Untar(context.Background(), archive, filepath.Join(dir, "out"),
		UntarWithWorkers(2),
		UntarWithProgress(func(e ProgressEvent) {
			mu.Lock()
			defer mu.Unlock()
			switch e.Stage {
			case StageExtracting:
				extracting = append(extracting, e)
			case StageRestoring:
				restoring = append(restoring, e)
			default:
			}
		}),
	)
	require.NoError(t, err)

	require.Len(t, extracting, 4)
	last := extracting[len(extracting)-1]
	assert.Equal(t, uint64(info.Size()), last.BytesTotal) //nolint:gosec // file sizes are non-negative
	assert.Positive(t, last.BytesDone)
	assert.LessOrEqual(t, last.BytesDone, last.BytesTotal)
	assert.Equal(t, 4, last.FilesDone)

	require.Len(t, restoring, 4)
	for _, e := range restoring {
		assert.Equal(t, 4, e.FilesTotal)
	}
}

func TestUntarCanceled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	root := createTestTree(t, dir)
	archive := filepath.Join(dir, "out.tar")
	require.NoError(t, TarFile(context.Background(), root, archive))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Untar(ctx, archive, filepath.Join(dir, "out"))
	assert.ErrorIs(t, err, context.Canceled)
}
