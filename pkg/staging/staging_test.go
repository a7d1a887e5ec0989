package staging

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver(t *testing.T, key string) *Resolver {
	t.Helper()
	r, err := NewResolver(Options{BaseDir: t.TempDir(), Name: "app", WorkerKey: key})
	require.NoError(t, err)
	return r
}

func TestResolver_Layout(t *testing.T) {
	base := t.TempDir()
	r, err := NewResolver(Options{BaseDir: base, Name: "app", WorkerKey: "7_w1"})
	require.NoError(t, err)

	root := r.Dir(UploadPrefix)
	assert.Equal(t, filepath.Join(base, "__tmp__to__app"), root)
	assert.Equal(t, filepath.Join(base, "__tmp__to__app", "7_w1"), r.ChildDir(root))
	assert.Equal(t, filepath.Join(base, "__tmp_from__app"), r.Dir(DownloadPrefix))
}

func TestResolver_Defaults(t *testing.T) {
	r, err := NewResolver(Options{})
	require.NoError(t, err)

	exe := os.Args[0]
	assert.Equal(t, filepath.Dir(exe), r.base)
	assert.Equal(t, strings.TrimSuffix(filepath.Base(exe), filepath.Ext(exe)), r.name)
	assert.True(t, strings.HasPrefix(r.Key(), fmt.Sprintf("%d_", os.Getpid())))
}

func TestResolver_DistinctKeys(t *testing.T) {
	a, b := DefaultWorkerKey(), DefaultWorkerKey()
	assert.NotEqual(t, a, b)
}

func TestResolver_InvalidKey(t *testing.T) {
	_, err := NewResolver(Options{BaseDir: t.TempDir(), Name: "app", WorkerKey: "../escape"})
	require.Error(t, err)
}

func TestNextAvailable(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "stock.csv")

	assert.Equal(t, p, NextAvailable(p))

	require.NoError(t, os.WriteFile(p, nil, 0644))
	assert.Equal(t, p+".1", NextAvailable(p))

	require.NoError(t, os.WriteFile(p+".1", nil, 0644))
	assert.Equal(t, p+".1.1", NextAvailable(p))
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "stock", TableName("/a/stock.csv"))
	assert.Equal(t, "stock", TableName("/a/b/stock.csv.zst"))
	assert.Equal(t, "C:/tmp/stock.csv", FormatPath(filepath.FromSlash("C:/tmp/stock.csv")))
}

func TestIsStagedFile(t *testing.T) {
	assert.True(t, IsStagedFile("stock.csv"))
	assert.True(t, IsStagedFile("stock.csv.zst"))
	assert.False(t, IsStagedFile(ColumnsFile))
	assert.False(t, IsStagedFile("str_columns.123.tmp"))
}

func TestLineTerminator(t *testing.T) {
	assert.Equal(t, "\r\n", lineTerminator("windows"))
	assert.Equal(t, "\n", lineTerminator("linux"))
}

func TestMkdirsAndClear(t *testing.T) {
	r := newResolver(t, "k")
	root := r.Dir(UploadPrefix)
	child := r.ChildDir(root)

	require.NoError(t, r.Mkdirs(root, child))
	require.NoError(t, r.Mkdirs(root, child))
	require.NoError(t, os.WriteFile(filepath.Join(child, "stock.csv"), []byte("1\n"), 0644))

	r.Clear(root)
	_, err := os.Stat(root)
	assert.True(t, os.IsNotExist(err))

	// повторная очистка отсутствующего каталога не ошибка
	r.Clear(root)
}

func TestWriteColumns_ExactlyOnce(t *testing.T) {
	root := t.TempDir()
	names := []string{"code", "open", "time"}

	created, err := WriteColumns(root, names)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = WriteColumns(root, names)
	require.NoError(t, err)
	assert.False(t, created)

	list, err := ReadColumns(root)
	require.NoError(t, err)
	assert.Equal(t, "(code, open, time)", list.List)
	assert.Equal(t, names, list.Names)
	assert.Equal(t, Fingerprint(names), list.Fingerprint)
}

func TestWriteColumns_Mismatch(t *testing.T) {
	root := t.TempDir()
	_, err := WriteColumns(root, []string{"code", "open"})
	require.NoError(t, err)

	_, err = WriteColumns(root, []string{"code", "close"})
	require.ErrorIs(t, err, ErrColumnMismatch)

	_, err = WriteColumns(root, []string{"open", "code"})
	require.ErrorIs(t, err, ErrColumnMismatch)
}

func TestWriteColumns_ConcurrentSingleWriter(t *testing.T) {
	root := t.TempDir()
	names := []string{"code", "open"}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := WriteColumns(root, names)
			assert.NoError(t, err)
			if created {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ColumnsFile, entries[0].Name())
}

func TestReadColumns_Absent(t *testing.T) {
	_, err := ReadColumns(t.TempDir())
	require.ErrorIs(t, err, os.ErrNotExist)
}

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	rc, err := OpenFile(path)
	require.NoError(t, err)
	defer rc.Close()

	records, err := csv.NewReader(rc).ReadAll()
	require.NoError(t, err)
	return records
}

func TestAppendRecords(t *testing.T) {
	for _, compress := range []bool{false, true} {
		t.Run(FileName("stock", compress), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName("stock", compress))

			require.NoError(t, AppendRecords(path, [][]string{{"000101", "10.5"}}))
			require.NoError(t, AppendRecords(path, [][]string{{"000102", "nan"}, {"000103", "a,b"}}))

			assert.Equal(t, [][]string{
				{"000101", "10.5"},
				{"000102", "nan"},
				{"000103", "a,b"},
			}, readAll(t, path))
		})
	}
}

func TestStagedFiles(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{
		filepath.Join(root, "w1", "stock.csv"),
		filepath.Join(root, "w2", "quotes.csv.zst"),
		filepath.Join(root, ColumnsFile),
	} {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, nil, 0644))
	}

	files, err := StagedFiles(root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "w1", "stock.csv"),
		filepath.Join(root, "w2", "quotes.csv.zst"),
	}, files)
}

func TestChecksum(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	b := filepath.Join(dir, "b.csv")
	require.NoError(t, os.WriteFile(a, []byte("1,2\n"), 0644))
	require.NoError(t, os.WriteFile(b, []byte("1,3\n"), 0644))

	sumA, err := Checksum(a)
	require.NoError(t, err)
	sumB, err := Checksum(b)
	require.NoError(t, err)

	assert.Len(t, sumA, 16)
	assert.NotEqual(t, sumA, sumB)

	_, err = Checksum(filepath.Join(dir, "missing.csv"))
	require.Error(t, err)
}

func TestAppendRecords_SingleEmptyField(t *testing.T) {
	p := filepath.Join(t.TempDir(), "codes.csv")
	require.NoError(t, AppendRecords(p, [][]string{{"a"}, {""}, {"nan"}}))

	f, err := OpenFile(p)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}, {""}, {"nan"}}, records)
}

func TestPrune(t *testing.T) {
	a := newResolver(t, "a")
	root := a.Dir(DownloadPrefix)
	childA := a.ChildDir(root)
	childB := filepath.Join(root, "b")
	require.NoError(t, a.Mkdirs(childA, childB))

	a.Clear(childA)
	a.Prune(root)
	_, err := os.Stat(childB)
	require.NoError(t, err, "directory of another worker must survive")

	a.Clear(childB)
	a.Prune(root)
	_, err = os.Stat(root)
	assert.True(t, os.IsNotExist(err))
}
