package badgerstore

import (
	"testing"

	"github.com/dgvm-project/dgvm/pkg/treect"
)

func TestSaveAndLoadLayers(t *testing.T) {
	store, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	defer store.Close()

	base := treect.New()
	base.Set("Tank/O/1/health", 100)
	checkpoint := treect.New()
	checkpoint.Set("Tank/O/1/health", 80)

	if err := store.SaveLayer(0, base); err != nil {
		t.Fatalf("SaveLayer(0): %v", err)
	}
	if err := store.SaveLayer(1, checkpoint); err != nil {
		t.Fatalf("SaveLayer(1): %v", err)
	}

	layers, err := store.LoadLayers()
	if err != nil {
		t.Fatalf("LoadLayers: %v", err)
	}
	if len(layers) != 2 {
		t.Fatalf("expected 2 layers, got %d", len(layers))
	}

	v, err := layers[1].Get("Tank/O/1/health")
	if err != nil {
		t.Fatalf("unexpected error reading restored layer: %v", err)
	}
	if int(v.(float64)) != 80 {
		t.Errorf("expected restored value 80, got %v", v)
	}
}

func TestAppendAndLoadCommitRecords(t *testing.T) {
	store, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	defer store.Close()

	if err := store.AppendCommitRecord(0, []byte(`["VM_BEGINTRANS"]`)); err != nil {
		t.Fatalf("AppendCommitRecord(0): %v", err)
	}
	if err := store.AppendCommitRecord(1, []byte(`["VM_ENDTRANS"]`)); err != nil {
		t.Fatalf("AppendCommitRecord(1): %v", err)
	}

	records, err := store.LoadCommitRecords()
	if err != nil {
		t.Fatalf("LoadCommitRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if string(records[0]) != `["VM_BEGINTRANS"]` {
		t.Errorf("unexpected first record: %s", records[0])
	}
}
