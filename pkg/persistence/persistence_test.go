package persistence

import (
	"os"
	"testing"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestJSONFileStoreRoundtrip(t *testing.T) {
	svc := NewJSONFileService(t.TempDir())
	store := svc.NewStore("risk", "paper", "state")

	in := payload{Name: "snapshot", Count: 3}
	if err := store.Save(in); err != nil {
		t.Fatalf("保存失败: %v", err)
	}

	var out payload
	if err := store.Load(&out); err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if out != in {
		t.Fatalf("数据不一致: %+v != %+v", out, in)
	}
}

func TestLoadMissingReturnsErrNotExists(t *testing.T) {
	svc := NewJSONFileService(t.TempDir())
	store := svc.NewStore("risk", "paper", "state")

	var out payload
	if err := store.Load(&out); err != ErrNotExists {
		t.Fatalf("缺失数据应返回 ErrNotExists: actual=%v", err)
	}
}

// Save 覆盖写入后不留临时文件
func TestSaveOverwriteAtomically(t *testing.T) {
	dir := t.TempDir()
	svc := NewJSONFileService(dir)
	store := svc.NewStore("risk", "paper", "state").(*JSONFileStore)

	if err := store.Save(payload{Count: 1}); err != nil {
		t.Fatalf("第一次保存失败: %v", err)
	}
	if err := store.Save(payload{Count: 2}); err != nil {
		t.Fatalf("覆盖保存失败: %v", err)
	}

	var out payload
	if err := store.Load(&out); err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if out.Count != 2 {
		t.Fatalf("应读到最新数据: actual=%d", out.Count)
	}

	if _, err := os.Stat(store.FilePath() + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("不应残留临时文件")
	}
}

func TestSnapshotPathMatchesStore(t *testing.T) {
	dir := t.TempDir()
	svc := NewJSONFileService(dir)
	store := svc.NewStore("risk", "U123", "state").(*JSONFileStore)

	if got := SnapshotPath(dir, "risk", "U123", "state"); got != store.FilePath() {
		t.Fatalf("SnapshotPath 与 store 路径不一致: %s != %s", got, store.FilePath())
	}
}
