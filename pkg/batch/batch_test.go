package batch

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"reflect"
	"testing"

	"github.com/seferlab/lexgraph/pkg/common"
)

func testNouns() []common.Noun {
	return []common.Noun{
		{ID: "n-1", Surface: "שלום", Class: common.ClassThing},
		{ID: "n-2", Surface: "אברהם", Class: common.ClassPerson},
		{ID: "n-3", Surface: "ירושלים", Class: common.ClassPlace},
	}
}

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		MinBatchSize: 1,
		ReviewDir:    t.TempDir(),
	}
}

func TestProcess_OrderIndependent(t *testing.T) {
	cfg := testConfig(t)

	nouns := testNouns()
	permuted := []common.Noun{nouns[2], nouns[0], nouns[1]}

	a, err := Process(nouns, cfg)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	b, err := Process(permuted, cfg)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if a.BatchID != b.BatchID {
		t.Fatalf("batch ids differ: %s vs %s", a.BatchID, b.BatchID)
	}
	if !reflect.DeepEqual(a.Manifest.InputHashes, b.Manifest.InputHashes) {
		t.Fatal("input hashes differ across permutations")
	}
	if !reflect.DeepEqual(a.Manifest.ResultHashes, b.Manifest.ResultHashes) {
		t.Fatal("result hashes differ across permutations")
	}
}

func TestProcess_BatchIDFormat(t *testing.T) {
	bundle, err := Process(testNouns(), testConfig(t))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(bundle.BatchID) != 16 {
		t.Fatalf("expected 16-character batch id, got %q", bundle.BatchID)
	}
	if bundle.Manifest.BatchID != bundle.BatchID {
		t.Fatal("manifest batch id does not match bundle batch id")
	}
}

func TestProcess_RetainsErrorResults(t *testing.T) {
	nouns := append(testNouns(), common.Noun{ID: "n-4", Surface: "unknown"})

	bundle, err := Process(nouns, testConfig(t))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(bundle.Results) != len(nouns) {
		t.Fatalf("expected %d results, got %d", len(nouns), len(bundle.Results))
	}
	if bundle.Processed != 3 {
		t.Fatalf("expected 3 processed, got %d", bundle.Processed)
	}

	errored := 0
	for _, r := range bundle.Results {
		if r.Error != "" {
			errored++
			if r.Noun != nil {
				t.Fatal("error result should not carry a noun")
			}
		}
	}
	if errored != 1 {
		t.Fatalf("expected 1 error result, got %d", errored)
	}
}

func TestProcess_NormalizesNouns(t *testing.T) {
	bundle, err := Process([]common.Noun{{ID: "n-1", Surface: "שלום", Class: "weird"}}, testConfig(t))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	got := bundle.Nouns()
	if len(got) != 1 {
		t.Fatalf("expected 1 noun, got %d", len(got))
	}
	if got[0].GematriaValue != 376 {
		t.Fatalf("expected computed gematria 376, got %d", got[0].GematriaValue)
	}
	if got[0].Class != common.ClassOther {
		t.Fatalf("expected class other, got %q", got[0].Class)
	}
}

func TestValidateSize_AbortWritesReviewArtifact(t *testing.T) {
	cfg := Config{MinBatchSize: 5, ReviewDir: t.TempDir()}
	nouns := testNouns()

	err := ValidateSize(nouns, cfg)
	var abort *AbortError
	if !errors.As(err, &abort) {
		t.Fatalf("expected AbortError, got %v", err)
	}
	if abort.NounsAvailable != 3 || abort.NounsRequired != 5 {
		t.Fatalf("unexpected counts: %d available, %d required", abort.NounsAvailable, abort.NounsRequired)
	}

	f, err := os.Open(abort.ReviewPath)
	if err != nil {
		t.Fatalf("review artifact not written: %v", err)
	}
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var record struct {
			Noun   common.Noun `json:"noun"`
			Status string      `json:"status"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			t.Fatalf("invalid review record: %v", err)
		}
		if record.Status != "pending_review" {
			t.Fatalf("expected pending_review status, got %q", record.Status)
		}
		lines++
	}
	if lines != len(nouns) {
		t.Fatalf("expected %d review records, got %d", len(nouns), lines)
	}
}

func TestValidateSize_AllowPartialNeverAborts(t *testing.T) {
	cfg := Config{MinBatchSize: 100, AllowPartial: true, PartialReason: "operator override", ReviewDir: t.TempDir()}
	if err := ValidateSize(testNouns(), cfg); err != nil {
		t.Fatalf("expected nil error with allow_partial, got %v", err)
	}
}

func TestValidateSize_EmptyWithoutOverrideAborts(t *testing.T) {
	err := ValidateSize([]common.Noun{}, Config{MinBatchSize: 1, ReviewDir: t.TempDir()})
	var abort *AbortError
	if !errors.As(err, &abort) {
		t.Fatalf("expected AbortError for empty input, got %v", err)
	}
	if abort.NounsAvailable != 0 || abort.NounsRequired != 1 {
		t.Fatalf("unexpected counts: %d available, %d required", abort.NounsAvailable, abort.NounsRequired)
	}
}

func TestValidateSize_EmptyWithOverrideIsNoWork(t *testing.T) {
	cfg := Config{MinBatchSize: 1, AllowPartial: true, ReviewDir: t.TempDir()}
	if err := ValidateSize(nil, cfg); !errors.Is(err, ErrNoWork) {
		t.Fatalf("expected ErrNoWork with allow_partial, got %v", err)
	}
}

func TestConfigFromEnv_ReadsOverrides(t *testing.T) {
	t.Setenv("BATCH_MIN_SIZE", "25")
	t.Setenv("BATCH_ALLOW_PARTIAL", "true")
	t.Setenv("BATCH_PARTIAL_REASON", "backfill")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MinBatchSize != 25 || !cfg.AllowPartial || cfg.PartialReason != "backfill" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestConfigFromEnv_RejectsInvalidMinSize(t *testing.T) {
	t.Setenv("BATCH_MIN_SIZE", "0")
	if _, err := ConfigFromEnv(); err == nil {
		t.Fatal("expected error for minimum batch size below 1")
	}
}
